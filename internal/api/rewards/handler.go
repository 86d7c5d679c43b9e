// Package rewards provides REST API handlers for the reward catalog.
package rewards

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carrotwars/carrotwars/internal/api/middleware"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/internal/service/rewards"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// RewardService interface for reward operations.
type RewardService interface {
	Propose(ctx context.Context, ownerID uint, input rewards.ProposeInput) (*models.Reward, error)
	Buy(ctx context.Context, actorID, rewardID uint) (*models.Reward, error)
	Get(ctx context.Context, actorID, rewardID uint) (*models.Reward, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Reward, error)
	OverviewForUser(ctx context.Context, userID uint) (*rewards.Overview, error)
}

// Handler handles reward API requests.
type Handler struct {
	rewardService RewardService
	log           *logger.Logger
}

// NewHandler creates a new rewards handler.
func NewHandler(rewardService *rewards.Service, log *logger.Logger) *Handler {
	return &Handler{
		rewardService: rewardService,
		log:           log,
	}
}

// NewHandlerWithInterfaces creates a new rewards handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(rewardService RewardService, log *logger.Logger) *Handler {
	return &Handler{
		rewardService: rewardService,
		log:           log,
	}
}

// Propose creates a reward with the caller as owner. The request is
// multipart form data so an image can ride along.
// POST /api/v1/rewards.
func (h *Handler) Propose(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	questerID, err := strconv.ParseUint(c.PostForm("quester_id"), 10, 32)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid quester_id")
		return
	}
	price, err := strconv.Atoi(c.PostForm("price"))
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid price")
		return
	}
	title := c.PostForm("title")
	if title == "" {
		h.errorResponse(c, http.StatusBadRequest, "Title is required")
		return
	}

	input := rewards.ProposeInput{
		QuesterID:   uint(questerID),
		Title:       title,
		Description: c.PostForm("description"),
		Price:       price,
	}

	if file, err := c.FormFile("image"); err == nil {
		if file.Size > rewards.MaxImageBytes {
			h.errorResponse(c, http.StatusBadRequest, "Image is too large")
			return
		}
		src, err := file.Open()
		if err != nil {
			h.errorResponse(c, http.StatusBadRequest, "Failed to read image")
			return
		}
		defer src.Close()

		data, err := io.ReadAll(io.LimitReader(src, rewards.MaxImageBytes+1))
		if err != nil {
			h.errorResponse(c, http.StatusBadRequest, "Failed to read image")
			return
		}
		input.Image = data
		input.ImageName = file.Filename
	}

	reward, err := h.rewardService.Propose(c.Request.Context(), userID, input)
	if err != nil {
		switch {
		case errors.Is(err, rewards.ErrPriceOutOfRange):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, rewards.ErrImageTooLarge), errors.Is(err, rewards.ErrImageInvalid):
			h.errorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, rewards.ErrRelationNotAccepted):
			h.errorResponse(c, http.StatusBadRequest, "No accepted relation with this quester")
		default:
			h.log.Error().Err(err).Uint("owner_id", userID).Msg("Failed to propose reward")
			h.errorResponse(c, http.StatusBadRequest, "Failed to create reward")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"reward": reward})
}

// Buy purchases a reward with the caller's relation balance. Guard failures
// are answered with 200 and the unchanged reward; a short balance is a 402
// telling the quester how many carrots are missing.
// POST /api/v1/rewards/:id/buy.
func (h *Handler) Buy(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	rewardID, err := h.parseID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	reward, err := h.rewardService.Buy(c.Request.Context(), userID, rewardID)
	if err != nil {
		var insufficient *rewards.InsufficientBalanceError
		switch {
		case errors.Is(err, rewards.ErrPermissionDenied), errors.Is(err, rewards.ErrInvalidState):
			c.JSON(http.StatusOK, gin.H{"reward": reward})
		case errors.As(err, &insufficient):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":     "Not enough carrots",
				"balance":   insufficient.Balance,
				"price":     insufficient.Price,
				"shortfall": insufficient.Shortfall,
				"timestamp": time.Now().UTC(),
			})
		default:
			h.log.Error().Err(err).Uint("reward_id", rewardID).Msg("Failed to buy reward")
			h.errorResponse(c, http.StatusNotFound, "Reward not found")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"reward": reward})
}

// Get returns a single reward the caller participates in.
// GET /api/v1/rewards/:id.
func (h *Handler) Get(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	rewardID, err := h.parseID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	reward, err := h.rewardService.Get(c.Request.Context(), userID, rewardID)
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "Reward not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reward": reward})
}

// List returns every reward the caller participates in.
// GET /api/v1/rewards.
func (h *Handler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	list, err := h.rewardService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to list rewards")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve rewards")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards":       list,
		"total_rewards": len(list),
	})
}

// Overview returns the status-filtered reward lists for the caller.
// GET /api/v1/rewards/overview.
func (h *Handler) Overview(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	overview, err := h.rewardService.OverviewForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to build reward overview")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve rewards")
		return
	}

	c.JSON(http.StatusOK, overview)
}

// parseID extracts the reward id path parameter.
func (h *Handler) parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid reward ID")
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
