package models

// Card level bounds. Leveling consumes exactly two copies of level L to
// produce one copy of level L+1.
const (
	CardLevelMin      = 1
	CardLevelMax      = 15
	CardLevelUpCopies = 2
)

// UserCard records ownership of a catalog card at a given level.
// One row per (account, card, level).
type UserCard struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	AccountID string `gorm:"index:idx_user_card,unique;not null" json:"account_id"`
	CardID    string `gorm:"index:idx_user_card,unique;not null" json:"card_id"`
	Level     int    `gorm:"index:idx_user_card,unique;default:1" json:"level"`
	Quantity  int64  `gorm:"default:0;check:quantity >= 0" json:"quantity"`

	Card *Card `json:"card,omitempty" gorm:"foreignKey:CardID"`

	Timestamps
}
