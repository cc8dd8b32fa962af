package models

import "time"

// TimeWindow backs every start/end or counter-based eligibility gate:
// discount validity, daily battle limits, pass cooldowns. One row per key.
//
// Lazy expiry: if EndsAt has passed, the window is inactive regardless of
// the stored IsActive flag, and the next read self-heals by clearing it.
type TimeWindow struct {
	ID           string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Key          string     `gorm:"uniqueIndex;not null" json:"key"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	EndsAt       *time.Time `gorm:"index" json:"ends_at,omitempty"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	MaxPerPeriod int64      `gorm:"default:0" json:"max_per_period"`
	Counter      int64      `gorm:"default:0" json:"counter"`
	PeriodKey    string     `json:"period_key"` // UTC date for calendar-day policies
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`

	Version int64 `json:"-" gorm:"default:0;not null"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
