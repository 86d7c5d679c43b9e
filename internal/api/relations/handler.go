// Package relations provides REST API handlers for the owner/quester
// pairing lifecycle.
package relations

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carrotwars/carrotwars/internal/api/middleware"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/internal/service/relations"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// RelationService interface for relation operations.
type RelationService interface {
	Propose(ctx context.Context, ownerID, questerID uint) (*models.Relation, error)
	Accept(ctx context.Context, actorID, relationID uint) (*models.Relation, error)
	Decline(ctx context.Context, actorID, relationID uint) (*models.Relation, error)
	Get(ctx context.Context, actorID, relationID uint) (*models.Relation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Relation, error)
	OverviewForUser(ctx context.Context, userID uint) (*relations.Overview, error)
}

// Handler handles relation API requests.
type Handler struct {
	relationService RelationService
	log             *logger.Logger
}

// NewHandler creates a new relations handler.
func NewHandler(relationService *relations.Service, log *logger.Logger) *Handler {
	return &Handler{
		relationService: relationService,
		log:             log,
	}
}

// NewHandlerWithInterfaces creates a new relations handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(relationService RelationService, log *logger.Logger) *Handler {
	return &Handler{
		relationService: relationService,
		log:             log,
	}
}

type proposeRequest struct {
	QuesterID uint `json:"quester_id" binding:"required"`
}

// Propose creates a relation with the caller as owner.
// POST /api/v1/relations.
func (h *Handler) Propose(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	relation, err := h.relationService.Propose(c.Request.Context(), userID, req.QuesterID)
	if err != nil {
		switch {
		case errors.Is(err, relations.ErrSelfRelation):
			h.errorResponse(c, http.StatusBadRequest, "Cannot create a relation with yourself")
		case errors.Is(err, relations.ErrDuplicateRelation):
			h.errorResponse(c, http.StatusConflict, "A relation with this quester already exists")
		default:
			h.log.Error().Err(err).Uint("owner_id", userID).Msg("Failed to propose relation")
			h.errorResponse(c, http.StatusInternalServerError, "Failed to create relation")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"relation": relation})
}

// Accept activates a proposed relation.
// POST /api/v1/relations/:id/accept.
func (h *Handler) Accept(c *gin.Context) {
	h.transition(c, "accept", h.relationService.Accept)
}

// Decline rejects a proposed relation.
// POST /api/v1/relations/:id/decline.
func (h *Handler) Decline(c *gin.Context) {
	h.transition(c, "decline", h.relationService.Decline)
}

// transition runs a relation transition. Guard failures are answered with
// 200 and the unchanged relation; the actor is not told what went wrong.
func (h *Handler) transition(c *gin.Context, name string, fn func(ctx context.Context, actorID, relationID uint) (*models.Relation, error)) {
	userID, _ := middleware.UserID(c)
	relationID, err := h.parseID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	relation, err := fn(c.Request.Context(), userID, relationID)
	if err != nil {
		if errors.Is(err, relations.ErrPermissionDenied) || errors.Is(err, relations.ErrInvalidState) {
			c.JSON(http.StatusOK, gin.H{"relation": relation})
			return
		}
		h.log.Error().Err(err).Uint("relation_id", relationID).Str("transition", name).Msg("Failed to transition relation")
		h.errorResponse(c, http.StatusNotFound, "Relation not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"relation": relation})
}

// Get returns a single relation the caller participates in.
// GET /api/v1/relations/:id.
func (h *Handler) Get(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	relationID, err := h.parseID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	relation, err := h.relationService.Get(c.Request.Context(), userID, relationID)
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "Relation not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"relation": relation})
}

// List returns every relation the caller participates in.
// GET /api/v1/relations.
func (h *Handler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	list, err := h.relationService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list relations")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve relations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"relations":       list,
		"total_relations": len(list),
	})
}

// Overview returns the status-filtered relation lists for the caller.
// GET /api/v1/relations/overview.
func (h *Handler) Overview(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	overview, err := h.relationService.OverviewForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to build relation overview")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve relations")
		return
	}

	c.JSON(http.StatusOK, overview)
}

// parseID extracts the relation id path parameter.
func (h *Handler) parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid relation ID")
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
