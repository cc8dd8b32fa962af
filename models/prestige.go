package models

import "time"

// PrestigeRecord is the PvP ranking score, floored at zero.
type PrestigeRecord struct {
	AccountID string    `gorm:"primaryKey;type:uuid" json:"account_id"`
	Points    int64     `gorm:"default:0;check:points >= 0" json:"points"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BattleModeConfig overrides the default prestige deltas (+20/-10/0) for a
// specific battle mode.
type BattleModeConfig struct {
	Mode        string `gorm:"primaryKey" json:"mode"`
	WinnerDelta int64  `gorm:"default:20" json:"winner_delta"`
	LoserDelta  int64  `gorm:"default:-10" json:"loser_delta"`
	DrawDelta   int64  `gorm:"default:0" json:"draw_delta"`
}

// BattleOutcome from the reporting player's perspective.
type BattleOutcome string

const (
	BattleWin  BattleOutcome = "win"
	BattleLoss BattleOutcome = "loss"
	BattleDraw BattleOutcome = "draw"
)

func (o BattleOutcome) Valid() bool {
	switch o {
	case BattleWin, BattleLoss, BattleDraw:
		return true
	}
	return false
}
