package models

import "time"

// Rarity is the ordinal tier of a card (common < rare < epic < legendary).
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Rarities in ascending order, used when a draw has to resample.
var Rarities = []Rarity{RarityCommon, RarityRare, RarityEpic, RarityLegendary}

func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Card is an immutable catalog entry. Ownership rows reference it by ID,
// never copy it.
type Card struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	Slug      string `gorm:"uniqueIndex;not null" json:"slug"`
	Character string `gorm:"index" json:"character"`
	Rarity    Rarity `gorm:"type:varchar(16);not null;index" json:"rarity"`
	ImageRef  string `gorm:"type:text" json:"image_ref"`

	// PullWeight skews the within-rarity pick; 1 = uniform.
	PullWeight int `gorm:"default:1" json:"pull_weight"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
