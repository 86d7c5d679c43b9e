// Package accounts implements registration and token-based login.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/carrotwars/carrotwars/internal/config"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// Sentinel errors returned by account operations.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username is already taken")
)

// UserRepository is the persistence surface for users.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	List() ([]models.User, error)
}

// Service handles signup, login and token issuance.
type Service struct {
	users UserRepository
	auth  *config.AuthConfig
	log   *logger.Logger
}

// NewService creates a new accounts service.
func NewService(users UserRepository, auth *config.AuthConfig, log *logger.Logger) *Service {
	return &Service{
		users: users,
		auth:  auth,
		log:   log,
	}
}

// Signup registers a new user with a bcrypt-hashed password.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	if _, err := s.users.GetByUsername(username); err == nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}

	s.log.Info().Uint("user_id", user.ID).Str("username", username).Msg("User registered")
	return user, nil
}

// Login checks the credentials and returns a signed bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) issueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.auth.TokenTTLDuration())),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GetUser retrieves a user by id.
func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(id)
}

// ListUsers retrieves all users. Used to pick a quester when proposing a
// relation.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List()
}
