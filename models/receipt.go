package models

import "time"

// ActionReceipt dedupes retried client requests. The first Execute for an
// idempotency key stores its serialized result here; replays return the
// stored result instead of re-applying the effect.
type ActionReceipt struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	IdempotencyKey string    `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	AccountID      string    `gorm:"index;not null" json:"account_id"`
	Action         string    `gorm:"not null" json:"action"`
	ResultJSON     string    `gorm:"type:text" json:"result_json"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
