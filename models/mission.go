package models

import "time"

// MissionProgress tracks a per-period counter against a goal threshold.
// Progress never decreases within a period and is allowed to exceed the
// goal; Completed flips true once progress >= goal and stays true.
type MissionProgress struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ScopeID    string `gorm:"index:idx_mission_scope,unique;not null" json:"scope_id"` // account or clan ID
	MissionKey string `gorm:"index:idx_mission_scope,unique;not null" json:"mission_key"`
	PeriodKey  string `gorm:"index:idx_mission_scope,unique;not null" json:"period_key"` // UTC date for dailies
	Progress   int64  `gorm:"default:0" json:"progress"`
	Goal       int64  `gorm:"not null" json:"goal"`
	Completed  bool   `gorm:"default:false" json:"completed"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MissionClaim is the one-shot claim receipt. The unique index is the whole
// dedupe mechanism: a second claim insert fails and returns granted=false.
type MissionClaim struct {
	ID         string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ScopeID    string    `gorm:"index:idx_mission_claim,unique;not null" json:"scope_id"`
	MissionKey string    `gorm:"index:idx_mission_claim,unique;not null" json:"mission_key"`
	PeriodKey  string    `gorm:"index:idx_mission_claim,unique;not null" json:"period_key"`
	ClaimedAt  time.Time `gorm:"autoCreateTime" json:"claimed_at"`
}

// MissionReward is what a completed mission pays out.
type MissionReward struct {
	Tickets int64 `json:"tickets"`
	Coins   int64 `json:"coins"`
}

// MissionDefinition: static mission config.
type MissionDefinition struct {
	Key    string        `json:"key"`
	Name   string        `json:"name"`
	Goal   int64         `json:"goal"`
	Daily  bool          `json:"daily"`
	Reward MissionReward `json:"reward"`
}

// Predefined missions. Daily missions key their period by UTC date.
var MissionDefinitions = []MissionDefinition{
	{
		Key:    "daily_draws",
		Name:   "Open 5 packs",
		Goal:   5,
		Daily:  true,
		Reward: MissionReward{Tickets: 1},
	},
	{
		Key:    "daily_battles",
		Name:   "Fight 3 battles",
		Goal:   3,
		Daily:  true,
		Reward: MissionReward{Coins: 50},
	},
	{
		Key:    "clan_donations",
		Name:   "Donate 100 coins to your clan",
		Goal:   100,
		Daily:  true,
		Reward: MissionReward{Tickets: 1, Coins: 25},
	},
}

// MissionByKey returns the static definition, if any.
func MissionByKey(key string) (MissionDefinition, bool) {
	for _, def := range MissionDefinitions {
		if def.Key == key {
			return def, true
		}
	}
	return MissionDefinition{}, false
}
