package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/carrotwars/carrotwars/internal/models"
)

// RelationRepository handles relation-related database operations.
type RelationRepository struct {
	db *DB
}

// NewRelationRepository creates a new relation repository.
func NewRelationRepository(db *DB) *RelationRepository {
	return &RelationRepository{db: db}
}

// Create creates a new relation. The unique constraint on (owner, quester)
// is translated to ErrDuplicateRelation.
func (r *RelationRepository) Create(relation *models.Relation) error {
	if err := r.db.Create(relation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRelation
		}
		return fmt.Errorf("failed to create relation: %w", err)
	}
	return nil
}

// GetByID retrieves a relation with both users preloaded.
func (r *RelationRepository) GetByID(id uint) (*models.Relation, error) {
	var relation models.Relation
	err := r.db.Preload("Owner").Preload("Quester").First(&relation, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get relation by id %d: %w", id, err)
	}
	return &relation, nil
}

// GetByPair retrieves the relation for an (owner, quester) pair.
func (r *RelationRepository) GetByPair(ownerID, questerID uint) (*models.Relation, error) {
	var relation models.Relation
	err := r.db.Where("owner_id = ? AND quester_id = ?", ownerID, questerID).
		Preload("Owner").
		Preload("Quester").
		First(&relation).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get relation for owner %d and quester %d: %w", ownerID, questerID, err)
	}
	return &relation, nil
}

// OwnedBy retrieves the accepted relations the user owns.
func (r *RelationRepository) OwnedBy(userID uint) ([]models.Relation, error) {
	return r.listWhere("owner_id = ? AND status = ?", userID, models.RelationStatusAccepted)
}

// AssignedTo retrieves the accepted relations where the user is the quester.
func (r *RelationRepository) AssignedTo(userID uint) ([]models.Relation, error) {
	return r.listWhere("quester_id = ? AND status = ?", userID, models.RelationStatusAccepted)
}

// ProposedBy retrieves the relations the user has proposed that are still
// waiting for the quester.
func (r *RelationRepository) ProposedBy(userID uint) ([]models.Relation, error) {
	return r.listWhere("owner_id = ? AND status = ?", userID, models.RelationStatusCreated)
}

// PendingFor retrieves the relation proposals waiting on the user.
func (r *RelationRepository) PendingFor(userID uint) ([]models.Relation, error) {
	return r.listWhere("quester_id = ? AND status = ?", userID, models.RelationStatusCreated)
}

// ListForUser retrieves every relation the user participates in, either as
// owner or quester. This is the read-API visibility scope.
func (r *RelationRepository) ListForUser(userID uint) ([]models.Relation, error) {
	return r.listWhere("owner_id = ? OR quester_id = ?", userID, userID)
}

func (r *RelationRepository) listWhere(query string, args ...interface{}) ([]models.Relation, error) {
	var relations []models.Relation
	err := r.db.Where(query, args...).
		Preload("Owner").
		Preload("Quester").
		Order("created_at DESC").
		Find(&relations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	return relations, nil
}

// UpdateStatus moves a relation from one status to another. The update is
// conditional on the current status, so two racing transitions cannot both
// succeed; the loser gets ErrStatusConflict and the row is untouched.
func (r *RelationRepository) UpdateStatus(id uint, from, to string) error {
	result := r.db.Model(&models.Relation{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update relation %d status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// CreditBalance atomically adds amount carrots to the relation balance.
func (r *RelationRepository) CreditBalance(id uint, amount int) error {
	err := r.db.Model(&models.Relation{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
	if err != nil {
		return fmt.Errorf("failed to credit relation %d: %w", id, err)
	}
	return nil
}

// DebitBalance atomically subtracts amount carrots from the relation balance.
// The debit only happens when the balance covers the full amount; otherwise
// ErrInsufficientBalance is returned and nothing changes.
func (r *RelationRepository) DebitBalance(id uint, amount int) error {
	res := r.db.Model(&models.Relation{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return fmt.Errorf("failed to debit relation %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// DebitBalanceClamped subtracts up to amount carrots, never letting the
// balance go negative, and returns the amount actually deducted. The update
// is guarded by an optimistic balance check so a concurrent mutation cannot
// be overwritten; on contention the read-compute-update cycle is retried.
func (r *RelationRepository) DebitBalanceClamped(id uint, amount int) (int, error) {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var relation models.Relation
		if err := r.db.Select("id", "balance").First(&relation, id).Error; err != nil {
			return 0, fmt.Errorf("failed to read relation %d balance: %w", id, err)
		}

		deduction := amount
		if relation.Balance < deduction {
			deduction = relation.Balance
		}
		if deduction <= 0 {
			return 0, nil
		}

		res := r.db.Model(&models.Relation{}).
			Where("id = ? AND balance = ?", id, relation.Balance).
			Update("balance", gorm.Expr("balance - ?", deduction))
		if res.Error != nil {
			return 0, fmt.Errorf("failed to debit relation %d: %w", id, res.Error)
		}
		if res.RowsAffected == 1 {
			return deduction, nil
		}
		// Balance moved under us, retry with a fresh read.
	}

	return 0, fmt.Errorf("failed to debit relation %d: too much contention", id)
}
