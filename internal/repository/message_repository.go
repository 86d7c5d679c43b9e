package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/carrotwars/carrotwars/internal/models"
)

// MessageRepository handles internal message persistence.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a new message.
func (r *MessageRepository) Create(message *models.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// Inbox retrieves the messages addressed to a user, newest first.
func (r *MessageRepository) Inbox(userID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("recipient_id = ?", userID).
		Preload("Sender").
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox for user %d: %w", userID, err)
	}
	return messages, nil
}

// Outbox retrieves the messages sent by a user, newest first.
func (r *MessageRepository) Outbox(userID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("sender_id = ?", userID).
		Preload("Recipient").
		Order("created_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox for user %d: %w", userID, err)
	}
	return messages, nil
}

// MarkRead marks a message as read, scoped to its recipient.
func (r *MessageRepository) MarkRead(id, recipientID uint) error {
	result := r.db.Model(&models.Message{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark message %d read: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
