// Package rewards implements the reward catalog: owners price items in
// carrots, questers buy them with their relation balance.
package rewards

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	// Register decoders for upload validation.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"os"
	"path/filepath"
	"time"

	"github.com/carrotwars/carrotwars/internal/metrics"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/internal/repository"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// Image upload limits.
const (
	MaxImageBytes  = 1 << 20 // 1MB
	MaxImageWidth  = 600
	MaxImageHeight = 600
)

// Sentinel errors returned by reward operations.
var (
	ErrPermissionDenied    = errors.New("actor is not permitted to perform this reward transition")
	ErrInvalidState        = errors.New("reward transition not allowed from its current status")
	ErrPriceOutOfRange     = fmt.Errorf("reward price must be between %d and %d", models.RewardPriceMin, models.RewardPriceMax)
	ErrImageTooLarge       = fmt.Errorf("reward image must be at most %d bytes and %dx%d pixels", MaxImageBytes, MaxImageWidth, MaxImageHeight)
	ErrImageInvalid        = errors.New("reward image is not a supported image file")
	ErrRelationNotAccepted = errors.New("relation is not accepted, rewards cannot be proposed on it")
)

// InsufficientBalanceError reports a purchase attempt the balance does not
// cover, including how many carrots are missing.
type InsufficientBalanceError struct {
	Balance   int
	Price     int
	Shortfall int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("not enough carrots: have %d, need %d more", e.Balance, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return repository.ErrInsufficientBalance }

// RewardRepository is the persistence surface for rewards. Status changes are
// conditional on the expected current status so that concurrent purchases
// cannot both take effect; a lost race surfaces as
// repository.ErrStatusConflict.
type RewardRepository interface {
	Create(reward *models.Reward) error
	GetByID(id uint) (*models.Reward, error)
	UpdateStatus(id uint, from, to string) error
	OwnedBy(userID uint) ([]models.Reward, error)
	AssignedTo(userID uint) ([]models.Reward, error)
	ListForUser(userID uint) ([]models.Reward, error)
}

// RelationRepository is the slice of the relation store the reward catalog
// needs.
type RelationRepository interface {
	GetByPair(ownerID, questerID uint) (*models.Relation, error)
	GetByID(id uint) (*models.Relation, error)
	DebitBalance(id uint, amount int) error
}

// Notifier delivers internal messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, senderID, recipientID uint, subject, body string)
}

// Service handles reward catalog operations.
type Service struct {
	rewards    RewardRepository
	relations  RelationRepository
	notifier   Notifier
	log        *logger.Logger
	uploadsDir string
}

// NewService creates a new reward service. uploadsDir may be empty when
// image uploads are not served from the local filesystem.
func NewService(rewards RewardRepository, relations RelationRepository, notifier Notifier, log *logger.Logger, uploadsDir string) *Service {
	return &Service{
		rewards:    rewards,
		relations:  relations,
		notifier:   notifier,
		log:        log,
		uploadsDir: uploadsDir,
	}
}

// ProposeInput carries the owner-supplied fields of a new reward.
type ProposeInput struct {
	QuesterID   uint
	Title       string
	Description string
	Price       int
	Image       []byte // optional
	ImageName   string
}

// Propose creates a reward on the owner's relation with the given quester.
// Rewards are purchasable immediately.
func (s *Service) Propose(ctx context.Context, ownerID uint, input ProposeInput) (*models.Reward, error) {
	if input.Price < models.RewardPriceMin || input.Price > models.RewardPriceMax {
		return nil, ErrPriceOutOfRange
	}

	relation, err := s.relations.GetByPair(ownerID, input.QuesterID)
	if err != nil {
		return nil, fmt.Errorf("no relation with quester %d: %w", input.QuesterID, err)
	}
	if !relation.IsAccepted() {
		return nil, ErrRelationNotAccepted
	}

	imagePath := ""
	if len(input.Image) > 0 {
		imagePath, err = s.storeImage(input.Image, input.ImageName)
		if err != nil {
			return nil, err
		}
	}

	reward := &models.Reward{
		RelationID:  relation.ID,
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		ImagePath:   imagePath,
		Status:      models.RewardStatusAccepted,
	}
	if err := s.rewards.Create(reward); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, ownerID, relation.QuesterID, "New reward!", reward.Title)

	s.log.Info().
		Uint("reward_id", reward.ID).
		Uint("relation_id", relation.ID).
		Int("price", reward.Price).
		Msg("Reward proposed")

	return reward, nil
}

// Buy purchases a reward. Only the quester may buy, only while the reward is
// purchasable, and only when the relation balance covers the price; the
// debit and the check are one atomic operation, so a short balance leaves
// everything unchanged.
func (s *Service) Buy(ctx context.Context, actorID, rewardID uint) (*models.Reward, error) {
	reward, err := s.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}

	if actorID != reward.Relation.QuesterID {
		metrics.RecordRewardPurchase("denied")
		return reward, ErrPermissionDenied
	}
	if !reward.IsPurchasable() {
		metrics.RecordRewardPurchase("invalid_state")
		return reward, ErrInvalidState
	}

	// Take the reward off the shelf first; the conditional flip decides the
	// winner between concurrent purchases, so the price is debited at most
	// once.
	if err := s.rewards.UpdateStatus(reward.ID, models.RewardStatusAccepted, models.RewardStatusBought); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.RecordRewardPurchase("invalid_state")
			if fresh, gerr := s.rewards.GetByID(reward.ID); gerr == nil {
				reward = fresh
			}
			return reward, ErrInvalidState
		}
		metrics.RecordRewardPurchase("error")
		return nil, err
	}
	reward.Status = models.RewardStatusBought

	if err := s.relations.DebitBalance(reward.RelationID, reward.Price); err != nil {
		// Put it back on the shelf; the purchase did not happen.
		if revertErr := s.rewards.UpdateStatus(reward.ID, models.RewardStatusBought, models.RewardStatusAccepted); revertErr != nil {
			s.log.Error().Err(revertErr).Uint("reward_id", reward.ID).Msg("Failed to revert reward status after debit failure")
		} else {
			reward.Status = models.RewardStatusAccepted
		}
		if errors.Is(err, repository.ErrInsufficientBalance) {
			metrics.RecordRewardPurchase("insufficient_balance")
			balance := reward.Relation.Balance
			if relation, rerr := s.relations.GetByID(reward.RelationID); rerr == nil {
				balance = relation.Balance
			}
			return reward, &InsufficientBalanceError{
				Balance:   balance,
				Price:     reward.Price,
				Shortfall: reward.Price - balance,
			}
		}
		metrics.RecordRewardPurchase("error")
		return nil, err
	}
	metrics.CarrotsDebitedTotal.WithLabelValues("purchase").Add(float64(reward.Price))
	metrics.RecordRewardPurchase("success")

	s.notifier.Notify(ctx, actorID, reward.Relation.OwnerID,
		fmt.Sprintf("Reward %s has been bought.", reward.Title), "")

	s.log.Info().
		Uint("reward_id", reward.ID).
		Uint("relation_id", reward.RelationID).
		Int("price", reward.Price).
		Msg("Reward bought")

	return reward, nil
}

// storeImage validates an uploaded image and writes it under the uploads
// directory, returning the stored path.
func (s *Service) storeImage(data []byte, name string) (string, error) {
	if len(data) > MaxImageBytes {
		return "", ErrImageTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrImageInvalid
	}
	if cfg.Width > MaxImageWidth || cfg.Height > MaxImageHeight {
		return "", ErrImageTooLarge
	}

	dir := filepath.Join(s.uploadsDir, "rewards")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(name)))
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to store reward image: %w", err)
	}
	return path, nil
}

// Get retrieves a reward, visible only to the relation's owner or quester.
func (s *Service) Get(ctx context.Context, actorID, rewardID uint) (*models.Reward, error) {
	reward, err := s.rewards.GetByID(rewardID)
	if err != nil {
		return nil, err
	}
	if actorID != reward.Relation.OwnerID && actorID != reward.Relation.QuesterID {
		return nil, ErrPermissionDenied
	}
	return reward, nil
}

// ListForUser retrieves every reward the user can see.
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.Reward, error) {
	return s.rewards.ListForUser(userID)
}

// Overview bundles the per-user reward lists the dashboard renders.
type Overview struct {
	Owned    []models.Reward `json:"owned"`
	Assigned []models.Reward `json:"assigned"`
}

// OverviewForUser retrieves the status-filtered reward lists for a user.
func (s *Service) OverviewForUser(ctx context.Context, userID uint) (*Overview, error) {
	var (
		overview Overview
		err      error
	)
	if overview.Owned, err = s.rewards.OwnedBy(userID); err != nil {
		return nil, err
	}
	if overview.Assigned, err = s.rewards.AssignedTo(userID); err != nil {
		return nil, err
	}
	return &overview, nil
}
