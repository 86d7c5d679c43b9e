// Package quests provides REST API handlers for the quest lifecycle.
package quests

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carrotwars/carrotwars/internal/api/middleware"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/internal/service/quests"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// QuestService interface for quest operations.
type QuestService interface {
	Propose(ctx context.Context, ownerID uint, input quests.ProposeInput) (*models.Quest, error)
	Accept(ctx context.Context, actorID, questID uint) (*models.Quest, error)
	Decline(ctx context.Context, actorID, questID uint) (*models.Quest, error)
	Complete(ctx context.Context, actorID, questID uint) (*models.Quest, error)
	Confirm(ctx context.Context, actorID, questID uint) (*models.Quest, error)
	Deny(ctx context.Context, actorID, questID uint) (*models.Quest, error)
	Get(ctx context.Context, actorID, questID uint) (*models.Quest, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Quest, error)
	OverviewForUser(ctx context.Context, userID uint) (*quests.Overview, error)
}

// Handler handles quest API requests.
type Handler struct {
	questService QuestService
	log          *logger.Logger
}

// NewHandler creates a new quests handler.
func NewHandler(questService *quests.Service, log *logger.Logger) *Handler {
	return &Handler{
		questService: questService,
		log:          log,
	}
}

// NewHandlerWithInterfaces creates a new quests handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(questService QuestService, log *logger.Logger) *Handler {
	return &Handler{
		questService: questService,
		log:          log,
	}
}

type proposeRequest struct {
	QuesterID   uint   `json:"quester_id" binding:"required"`
	Title       string `json:"title" binding:"required,max=60"`
	Description string `json:"description"`
	Rating      int    `json:"rating" binding:"required"`
	Bomb        bool   `json:"bomb"`
}

// Propose creates a quest with the caller as owner.
// POST /api/v1/quests.
func (h *Handler) Propose(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	quest, err := h.questService.Propose(c.Request.Context(), userID, quests.ProposeInput{
		QuesterID:   req.QuesterID,
		Title:       req.Title,
		Description: req.Description,
		Rating:      req.Rating,
		Bomb:        req.Bomb,
	})
	if err != nil {
		switch {
		case errors.Is(err, quests.ErrRatingOutOfRange):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, quests.ErrRelationNotAccepted):
			h.errorResponse(c, http.StatusBadRequest, "No accepted relation with this quester")
		default:
			h.log.Error().Err(err).Uint("owner_id", userID).Msg("Failed to propose quest")
			h.errorResponse(c, http.StatusBadRequest, "Failed to create quest")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quest": quest})
}

// Accept activates a created quest.
// POST /api/v1/quests/:id/accept.
func (h *Handler) Accept(c *gin.Context) {
	h.transition(c, "accept", h.questService.Accept)
}

// Decline rejects a created quest.
// POST /api/v1/quests/:id/decline.
func (h *Handler) Decline(c *gin.Context) {
	h.transition(c, "decline", h.questService.Decline)
}

// Complete marks an active quest as done, pending the owner's confirmation.
// POST /api/v1/quests/:id/complete.
func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, "complete", h.questService.Complete)
}

// Confirm acknowledges a completion and credits the carrots.
// POST /api/v1/quests/:id/confirm.
func (h *Handler) Confirm(c *gin.Context) {
	h.transition(c, "confirm", h.questService.Confirm)
}

// Deny rejects a completion claim and reactivates the quest.
// POST /api/v1/quests/:id/deny.
func (h *Handler) Deny(c *gin.Context) {
	h.transition(c, "deny", h.questService.Deny)
}

// transition runs a quest transition. Guard failures are answered with 200
// and the unchanged quest; the actor is not told what went wrong.
func (h *Handler) transition(c *gin.Context, name string, fn func(ctx context.Context, actorID, questID uint) (*models.Quest, error)) {
	userID, _ := middleware.UserID(c)
	questID, err := h.parseID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	quest, err := fn(c.Request.Context(), userID, questID)
	if err != nil {
		if errors.Is(err, quests.ErrPermissionDenied) || errors.Is(err, quests.ErrInvalidState) {
			c.JSON(http.StatusOK, gin.H{"quest": quest})
			return
		}
		h.log.Error().Err(err).Uint("quest_id", questID).Str("transition", name).Msg("Failed to transition quest")
		h.errorResponse(c, http.StatusNotFound, "Quest not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"quest": quest})
}

// Get returns a single quest the caller participates in.
// GET /api/v1/quests/:id.
func (h *Handler) Get(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	questID, err := h.parseID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	quest, err := h.questService.Get(c.Request.Context(), userID, questID)
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "Quest not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"quest": quest})
}

// List returns every quest the caller participates in.
// GET /api/v1/quests.
func (h *Handler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	list, err := h.questService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list quests")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve quests")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quests":       list,
		"total_quests": len(list),
	})
}

// Overview returns the status-filtered quest lists for the caller.
// GET /api/v1/quests/overview.
func (h *Handler) Overview(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	overview, err := h.questService.OverviewForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to build quest overview")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve quests")
		return
	}

	c.JSON(http.StatusOK, overview)
}

// parseID extracts the quest id path parameter.
func (h *Handler) parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid quest ID")
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
