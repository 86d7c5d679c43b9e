// Package accounts provides REST API handlers for registration, login and
// user lookup.
package accounts

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carrotwars/carrotwars/internal/api/middleware"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/internal/service/accounts"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// AccountService interface for account operations.
type AccountService interface {
	Signup(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Handler handles account API requests.
type Handler struct {
	accountService AccountService
	log            *logger.Logger
}

// NewHandler creates a new accounts handler.
func NewHandler(accountService *accounts.Service, log *logger.Logger) *Handler {
	return &Handler{
		accountService: accountService,
		log:            log,
	}
}

// NewHandlerWithInterfaces creates a new accounts handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(accountService AccountService, log *logger.Logger) *Handler {
	return &Handler{
		accountService: accountService,
		log:            log,
	}
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Signup registers a new user.
// POST /api/v1/auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.accountService.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrUsernameTaken) {
			h.errorResponse(c, http.StatusConflict, "Username is already taken")
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("Failed to sign up user")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials and returns a bearer token.
// POST /api/v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := h.accountService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			h.errorResponse(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("Failed to log in user")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Me returns the authenticated user.
// GET /api/v1/me.
func (h *Handler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.accountService.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user")
		h.errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetUser returns a user by id.
// GET /api/v1/users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.accountService.GetUser(c.Request.Context(), uint(id))
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListUsers returns all users, used to pick a quester when proposing a
// relation.
// GET /api/v1/users.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.accountService.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list users")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":       users,
		"total_users": len(users),
	})
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"timestamp": time.Now().UTC(),
	})
}
