package models

import (
	"time"
)

// Relation status constants. Single-letter codes are persisted.
const (
	RelationStatusCreated  = "C"
	RelationStatusAccepted = "A"
	RelationStatusDeclined = "R"
	RelationStatusDeleted  = "X"
)

// Relation pairs an owner with a quester and carries the carrot balance the
// quester has earned within that pairing. At most one relation may exist per
// (owner, quester) pair.
type Relation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index;uniqueIndex:idx_relations_owner_quester" json:"owner_id"`
	Owner     User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	QuesterID uint      `gorm:"not null;index;uniqueIndex:idx_relations_owner_quester" json:"quester_id"`
	Quester   User      `gorm:"foreignKey:QuesterID" json:"quester,omitempty"`
	Balance   int       `gorm:"not null;default:0" json:"balance"`
	Status    string    `gorm:"size:1;not null;default:'C';index" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Relation model.
func (Relation) TableName() string {
	return "relations"
}

// IsAccepted reports whether the relation is active, i.e. the quester has
// accepted the pairing.
func (r *Relation) IsAccepted() bool {
	return r.Status == RelationStatusAccepted
}
