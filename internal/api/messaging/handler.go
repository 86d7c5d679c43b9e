// Package messaging provides REST API handlers for the internal message
// inbox and outbox.
package messaging

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carrotwars/carrotwars/internal/api/middleware"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// MessageStore is the read side of the message repository.
type MessageStore interface {
	Inbox(userID uint) ([]models.Message, error)
	Outbox(userID uint) ([]models.Message, error)
	MarkRead(id, recipientID uint) error
}

// Handler handles message API requests.
type Handler struct {
	messages MessageStore
	log      *logger.Logger
}

// NewHandler creates a new messaging handler.
func NewHandler(messages MessageStore, log *logger.Logger) *Handler {
	return &Handler{
		messages: messages,
		log:      log,
	}
}

// Inbox returns the caller's received messages, newest first.
// GET /api/v1/messages/inbox.
func (h *Handler) Inbox(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	messages, err := h.messages.Inbox(userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to load inbox")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":       messages,
		"total_messages": len(messages),
	})
}

// Outbox returns the caller's sent messages, newest first.
// GET /api/v1/messages/outbox.
func (h *Handler) Outbox(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	messages, err := h.messages.Outbox(userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to load outbox")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":       messages,
		"total_messages": len(messages),
	})
}

// MarkRead marks one of the caller's received messages as read.
// POST /api/v1/messages/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	messageID, err := h.parseID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.messages.MarkRead(messageID, userID); err != nil {
		h.errorResponse(c, http.StatusNotFound, "Message not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "read": true})
}

// parseID extracts the message id path parameter.
func (h *Handler) parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid message ID")
	}
	return uint(id), nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
