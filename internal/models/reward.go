package models

import (
	"time"
)

// Reward status constants. Single-letter codes are persisted.
const (
	RewardStatusCreated      = "C"
	RewardStatusAccepted     = "A"
	RewardStatusMarkedBought = "M"
	RewardStatusBought       = "D"
	RewardStatusDeleted      = "X"
)

// Price bounds for rewards, in carrots.
const (
	RewardPriceMin = 1
	RewardPriceMax = 100
)

// Reward is an item the relation owner offers for sale. The quester buys it
// with carrots earned from completed quests. Rewards are purchasable as soon
// as they are created, so the default status is accepted.
type Reward struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RelationID  uint      `gorm:"not null;index" json:"relation_id"`
	Relation    Relation  `gorm:"foreignKey:RelationID" json:"relation,omitempty"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Price       int       `gorm:"not null;default:1" json:"price"`
	ImagePath   string    `gorm:"type:text" json:"image_path,omitempty"`
	Status      string    `gorm:"size:1;not null;default:'A';index" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for Reward model.
func (Reward) TableName() string {
	return "rewards"
}

// IsPurchasable reports whether the reward can still be bought.
func (r *Reward) IsPurchasable() bool {
	return r.Status == RewardStatusAccepted
}
