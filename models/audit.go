package models

import "time"

// PurchaseLog records pack purchases and draws (append-only, best-effort).
type PurchaseLog struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AccountID string    `gorm:"index;not null" json:"account_id"`
	PackType  string    `gorm:"not null" json:"pack_type"`
	Count     int       `gorm:"default:1" json:"count"`
	CostPaid  int64     `json:"cost_paid"`
	Currency  string    `json:"currency"` // tickets / legendary_tickets / icon_tickets / coins
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BattleLog records a PvP result (append-only, best-effort).
type BattleLog struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AccountID   string    `gorm:"index;not null" json:"account_id"`
	OpponentID  string    `gorm:"index;not null" json:"opponent_id"`
	Mode        string    `json:"mode"`
	Outcome     string    `gorm:"type:varchar(16);check:outcome IN ('win','loss','draw')" json:"outcome"`
	WinnerDelta int64     `json:"winner_delta"`
	LoserDelta  int64     `json:"loser_delta"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
