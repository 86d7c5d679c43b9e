package repository

import (
	"fmt"

	"github.com/carrotwars/carrotwars/internal/models"
)

// QuestRepository handles quest-related database operations.
type QuestRepository struct {
	db *DB
}

// NewQuestRepository creates a new quest repository.
func NewQuestRepository(db *DB) *QuestRepository {
	return &QuestRepository{db: db}
}

// Create creates a new quest.
func (r *QuestRepository) Create(quest *models.Quest) error {
	if err := r.db.Create(quest).Error; err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}
	return nil
}

// GetByID retrieves a quest with its relation and both users preloaded.
func (r *QuestRepository) GetByID(id uint) (*models.Quest, error) {
	var quest models.Quest
	err := r.db.Preload("Relation").
		Preload("Relation.Owner").
		Preload("Relation.Quester").
		First(&quest, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get quest by id %d: %w", id, err)
	}
	return &quest, nil
}

// UpdateStatus moves a quest from one status to another. The update is
// conditional on the current status, so two racing transitions cannot both
// succeed; the loser gets ErrStatusConflict and the row is untouched.
func (r *QuestRepository) UpdateStatus(id uint, from, to string) error {
	result := r.db.Model(&models.Quest{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return fmt.Errorf("failed to update quest %d status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// Activate stamps the activation date and deadline of a created quest and
// moves it to accepted, all in one conditional update. A quest that already
// left the created status is not touched; its dates are set exactly once.
func (r *QuestRepository) Activate(quest *models.Quest) error {
	result := r.db.Model(&models.Quest{}).
		Where("id = ? AND status = ?", quest.ID, models.QuestStatusCreated).
		Updates(map[string]interface{}{
			"status":          quest.Status,
			"activation_date": quest.ActivationDate,
			"deadline":        quest.Deadline,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to activate quest %d: %w", quest.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// OwnedBy retrieves the active quests in relations the user owns.
func (r *QuestRepository) OwnedBy(userID uint) ([]models.Quest, error) {
	return r.listJoined("relations.owner_id = ? AND quests.status = ?", userID, models.QuestStatusAccepted)
}

// AssignedTo retrieves the active quests assigned to the user.
func (r *QuestRepository) AssignedTo(userID uint) ([]models.Quest, error) {
	return r.listJoined("relations.quester_id = ? AND quests.status = ?", userID, models.QuestStatusAccepted)
}

// ProposedBy retrieves the quests the user has proposed that are waiting for
// the quester.
func (r *QuestRepository) ProposedBy(userID uint) ([]models.Quest, error) {
	return r.listJoined("relations.owner_id = ? AND quests.status = ?", userID, models.QuestStatusCreated)
}

// PendingFor retrieves the quest proposals waiting on the user.
func (r *QuestRepository) PendingFor(userID uint) ([]models.Quest, error) {
	return r.listJoined("relations.quester_id = ? AND quests.status = ?", userID, models.QuestStatusCreated)
}

// CompletedFor retrieves the quests marked complete that wait for the user's
// confirmation as owner.
func (r *QuestRepository) CompletedFor(userID uint) ([]models.Quest, error) {
	return r.listJoined("relations.owner_id = ? AND quests.status = ?", userID, models.QuestStatusMarkedComplete)
}

// WaitingFor retrieves the quests the user has marked complete that wait for
// the owner's confirmation.
func (r *QuestRepository) WaitingFor(userID uint) ([]models.Quest, error) {
	return r.listJoined("relations.quester_id = ? AND quests.status = ?", userID, models.QuestStatusMarkedComplete)
}

// ListForUser retrieves every quest in relations the user participates in.
// This is the read-API visibility scope.
func (r *QuestRepository) ListForUser(userID uint) ([]models.Quest, error) {
	return r.listJoined("relations.owner_id = ? OR relations.quester_id = ?", userID, userID)
}

func (r *QuestRepository) listJoined(query string, args ...interface{}) ([]models.Quest, error) {
	var quests []models.Quest
	err := r.db.Joins("JOIN relations ON relations.id = quests.relation_id").
		Where(query, args...).
		Preload("Relation").
		Preload("Relation.Owner").
		Preload("Relation.Quester").
		Order("quests.created_at DESC").
		Find(&quests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	return quests, nil
}

// ListAccepted retrieves all accepted quests with their relations preloaded.
// This is the input set for the overdue sweep.
func (r *QuestRepository) ListAccepted() ([]models.Quest, error) {
	var quests []models.Quest
	err := r.db.Where("status = ?", models.QuestStatusAccepted).
		Preload("Relation").
		Preload("Relation.Owner").
		Preload("Relation.Quester").
		Find(&quests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accepted quests: %w", err)
	}
	return quests, nil
}

// InvalidateByRelation marks every non-terminal quest of a relation deleted.
// Called when the relation itself is declined or deleted.
func (r *QuestRepository) InvalidateByRelation(relationID uint) error {
	err := r.db.Model(&models.Quest{}).
		Where("relation_id = ? AND status IN ?", relationID,
			[]string{models.QuestStatusCreated, models.QuestStatusAccepted, models.QuestStatusMarkedComplete}).
		Update("status", models.QuestStatusDeleted).Error
	if err != nil {
		return fmt.Errorf("failed to invalidate quests for relation %d: %w", relationID, err)
	}
	return nil
}
