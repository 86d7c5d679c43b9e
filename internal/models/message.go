package models

import (
	"time"
)

// Message is an internal user-to-user message. Every successful lifecycle
// transition produces one so both parties have a durable trail of what
// happened in their relation.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SenderID    uint      `gorm:"not null;index" json:"sender_id"`
	Sender      User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RecipientID uint      `gorm:"not null;index" json:"recipient_id"`
	Recipient   User      `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Subject     string    `gorm:"size:255;not null" json:"subject"`
	Body        string    `gorm:"type:text" json:"body"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for Message model.
func (Message) TableName() string {
	return "messages"
}
