package models

import (
	"time"

	"gorm.io/gorm"
)

// Account holds a player's identity plus all economy balances.
// Every draw/claim touches this row.
type Account struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`

	// Currencies
	Tickets          int64 `json:"tickets" gorm:"default:0;check:tickets >= 0"`
	LegendaryTickets int64 `json:"legendary_tickets" gorm:"default:0;check:legendary_tickets >= 0"`
	IconTickets      int64 `json:"icon_tickets" gorm:"default:0;check:icon_tickets >= 0"`
	Coins            int64 `json:"coins" gorm:"default:0;check:coins >= 0"`

	// Progression
	Score          int64 `json:"score" gorm:"default:0"`
	Experience     int64 `json:"experience" gorm:"default:0"`
	Level          int   `json:"level" gorm:"default:1"`
	PrestigePoints int64 `json:"prestige_points" gorm:"default:0"`

	ClanID *string `gorm:"index" json:"clan_id,omitempty"`

	// Milestones
	TokenLastClaimedAt *time.Time `json:"token_last_claimed_at,omitempty"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	LastLevelUpAt      *time.Time `json:"last_level_up_at,omitempty"`

	// Optimistic concurrency guard — bumped on every conditional update.
	Version int64 `json:"-" gorm:"default:0;not null"`

	Timestamps
}

// Balances is the balance snapshot returned to clients after an action.
type Balances struct {
	Tickets          int64 `json:"tickets"`
	LegendaryTickets int64 `json:"legendary_tickets"`
	IconTickets      int64 `json:"icon_tickets"`
	Coins            int64 `json:"coins"`
	Score            int64 `json:"score"`
	Experience       int64 `json:"experience"`
	Level            int   `json:"level"`
	PrestigePoints   int64 `json:"prestige_points"`
}

func (a *Account) Balances() Balances {
	return Balances{
		Tickets:          a.Tickets,
		LegendaryTickets: a.LegendaryTickets,
		IconTickets:      a.IconTickets,
		Coins:            a.Coins,
		Score:            a.Score,
		Experience:       a.Experience,
		Level:            a.Level,
		PrestigePoints:   a.PrestigePoints,
	}
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
