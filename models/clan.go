package models

import "time"

// Clan is a player guild. MaxMembers only grows via expansion-tier unlocks;
// TotalDonated accumulates within a tier cycle and NextExpansionCost is
// recomputed when a tier unlocks.
type Clan struct {
	ID                string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name              string `gorm:"not null" json:"name"`
	Slug              string `gorm:"uniqueIndex;not null" json:"slug"`
	Level             int    `gorm:"default:1" json:"level"`
	XP                int64  `gorm:"default:0" json:"xp"`
	MaxMembers        int    `gorm:"default:30" json:"max_members"`
	MemberCount       int    `gorm:"default:0" json:"member_count"`
	TotalDonated      int64  `gorm:"default:0" json:"total_donated"`
	NextExpansionCost int64  `gorm:"default:50" json:"next_expansion_cost"`
	FounderID         string `gorm:"index;not null" json:"founder_id"`

	Version int64 `json:"-" gorm:"default:0;not null"`

	Timestamps
}

// DonationLog is an append-only audit trail of clan donations.
// Writes are best-effort — they never roll back the balance update.
type DonationLog struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ClanID    string    `gorm:"index;not null" json:"clan_id"`
	AccountID string    `gorm:"index;not null" json:"account_id"`
	Amount    int64     `gorm:"not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
