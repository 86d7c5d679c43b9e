package repository

import (
	"fmt"

	"github.com/carrotwars/carrotwars/internal/models"
)

// RewardRepository handles reward-related database operations.
type RewardRepository struct {
	db *DB
}

// NewRewardRepository creates a new reward repository.
func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Create creates a new reward.
func (r *RewardRepository) Create(reward *models.Reward) error {
	if err := r.db.Create(reward).Error; err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}
	return nil
}

// GetByID retrieves a reward with its relation and both users preloaded.
func (r *RewardRepository) GetByID(id uint) (*models.Reward, error) {
	var reward models.Reward
	err := r.db.Preload("Relation").
		Preload("Relation.Owner").
		Preload("Relation.Quester").
		First(&reward, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get reward by id %d: %w", id, err)
	}
	return &reward, nil
}

// UpdateStatus moves a reward from one status to another. The update is
// conditional on the current status, so two racing transitions cannot both
// succeed; the loser gets ErrStatusConflict and the row is untouched.
func (r *RewardRepository) UpdateStatus(id uint, from, to string) error {
	result := r.db.Model(&models.Reward{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update reward %d status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// OwnedBy retrieves the purchasable rewards in relations the user owns.
func (r *RewardRepository) OwnedBy(userID uint) ([]models.Reward, error) {
	return r.listJoined("relations.owner_id = ? AND rewards.status = ?", userID, models.RewardStatusAccepted)
}

// AssignedTo retrieves the purchasable rewards offered to the user.
func (r *RewardRepository) AssignedTo(userID uint) ([]models.Reward, error) {
	return r.listJoined("relations.quester_id = ? AND rewards.status = ?", userID, models.RewardStatusAccepted)
}

// ListForUser retrieves every reward in relations the user participates in.
// This is the read-API visibility scope.
func (r *RewardRepository) ListForUser(userID uint) ([]models.Reward, error) {
	return r.listJoined("relations.owner_id = ? OR relations.quester_id = ?", userID, userID)
}

func (r *RewardRepository) listJoined(query string, args ...interface{}) ([]models.Reward, error) {
	var rewards []models.Reward
	err := r.db.Joins("JOIN relations ON relations.id = rewards.relation_id").
		Where(query, args...).
		Preload("Relation").
		Preload("Relation.Owner").
		Preload("Relation.Quester").
		Order("rewards.created_at DESC").
		Find(&rewards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}

// InvalidateByRelation marks every non-terminal reward of a relation deleted.
// Called when the relation itself is declined or deleted.
func (r *RewardRepository) InvalidateByRelation(relationID uint) error {
	err := r.db.Model(&models.Reward{}).
		Where("relation_id = ? AND status IN ?", relationID,
			[]string{models.RewardStatusCreated, models.RewardStatusAccepted, models.RewardStatusMarkedBought}).
		Update("status", models.RewardStatusDeleted).Error
	if err != nil {
		return fmt.Errorf("failed to invalidate rewards for relation %d: %w", relationID, err)
	}
	return nil
}
