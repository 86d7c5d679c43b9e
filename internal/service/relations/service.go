// Package relations implements the owner/quester pairing lifecycle and is
// the aggregate root for quests and rewards: declining or deleting a
// relation invalidates its dependents.
package relations

import (
	"context"
	"errors"
	"fmt"

	"github.com/carrotwars/carrotwars/internal/metrics"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/internal/repository"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// Sentinel errors returned by relation operations.
var (
	ErrPermissionDenied  = errors.New("actor is not permitted to perform this relation transition")
	ErrInvalidState      = errors.New("relation transition not allowed from its current status")
	ErrSelfRelation      = errors.New("a relation needs two distinct users")
	ErrDuplicateRelation = repository.ErrDuplicateRelation
)

// RelationRepository is the persistence surface for relations.
type RelationRepository interface {
	Create(relation *models.Relation) error
	GetByID(id uint) (*models.Relation, error)
	UpdateStatus(id uint, from, to string) error
	OwnedBy(userID uint) ([]models.Relation, error)
	AssignedTo(userID uint) ([]models.Relation, error)
	ProposedBy(userID uint) ([]models.Relation, error)
	PendingFor(userID uint) ([]models.Relation, error)
	ListForUser(userID uint) ([]models.Relation, error)
}

// DependentInvalidator invalidates the quests or rewards of a relation when
// the relation itself goes away.
type DependentInvalidator interface {
	InvalidateByRelation(relationID uint) error
}

// Notifier delivers internal messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, senderID, recipientID uint, subject, body string)
}

// Service handles relation lifecycle operations.
type Service struct {
	relations RelationRepository
	quests    DependentInvalidator
	rewards   DependentInvalidator
	notifier  Notifier
	log       *logger.Logger
}

// NewService creates a new relation service.
func NewService(relations RelationRepository, quests, rewards DependentInvalidator, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		relations: relations,
		quests:    quests,
		rewards:   rewards,
		notifier:  notifier,
		log:       log,
	}
}

// Propose creates a relation from owner to quester with a zero balance,
// waiting for the quester's acceptance. At most one relation may exist per
// (owner, quester) pair.
func (s *Service) Propose(ctx context.Context, ownerID, questerID uint) (*models.Relation, error) {
	if ownerID == questerID {
		return nil, ErrSelfRelation
	}

	relation := &models.Relation{
		OwnerID:   ownerID,
		QuesterID: questerID,
		Status:    models.RelationStatusCreated,
	}
	if err := s.relations.Create(relation); err != nil {
		if errors.Is(err, ErrDuplicateRelation) {
			metrics.RecordRelationTransition("propose", "duplicate")
			return nil, err
		}
		metrics.RecordRelationTransition("propose", "error")
		return nil, err
	}
	metrics.RecordRelationTransition("propose", "success")

	s.notifier.Notify(ctx, ownerID, questerID, "New relation requested", "")

	s.log.Info().
		Uint("relation_id", relation.ID).
		Uint("owner_id", ownerID).
		Uint("quester_id", questerID).
		Msg("Relation proposed")

	return relation, nil
}

// Accept activates a proposed relation. Only the quester may accept, and
// only from the created status.
func (s *Service) Accept(ctx context.Context, actorID, relationID uint) (*models.Relation, error) {
	relation, err := s.relations.GetByID(relationID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(relation, actorID, "accept"); err != nil {
		return relation, err
	}

	if relation, err = s.transition(relation, models.RelationStatusAccepted, "accept"); err != nil {
		return relation, err
	}
	metrics.RecordRelationTransition("accept", "success")

	s.notifier.Notify(ctx, actorID, relation.OwnerID,
		fmt.Sprintf("Relation %s - %s has been accepted.", relation.Owner.Username, relation.Quester.Username), "")

	return relation, nil
}

// Decline rejects a proposed relation and invalidates any quests and rewards
// already referencing it. Only the quester may decline, and only from the
// created status.
func (s *Service) Decline(ctx context.Context, actorID, relationID uint) (*models.Relation, error) {
	relation, err := s.relations.GetByID(relationID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(relation, actorID, "decline"); err != nil {
		return relation, err
	}

	if relation, err = s.transition(relation, models.RelationStatusDeclined, "decline"); err != nil {
		return relation, err
	}
	metrics.RecordRelationTransition("decline", "success")

	if err := s.quests.InvalidateByRelation(relation.ID); err != nil {
		s.log.Error().Err(err).Uint("relation_id", relation.ID).Msg("Failed to invalidate quests")
	}
	if err := s.rewards.InvalidateByRelation(relation.ID); err != nil {
		s.log.Error().Err(err).Uint("relation_id", relation.ID).Msg("Failed to invalidate rewards")
	}

	s.notifier.Notify(ctx, actorID, relation.OwnerID,
		fmt.Sprintf("Relation %s - %s has been declined.", relation.Owner.Username, relation.Quester.Username), "")

	return relation, nil
}

// transition flips the relation status with a conditional update. Losing a
// race against a concurrent transition reads the same as finding the relation
// in the wrong status to begin with: ErrInvalidState, with the relation
// reloaded so the caller reports what actually happened.
func (s *Service) transition(relation *models.Relation, to, op string) (*models.Relation, error) {
	if err := s.relations.UpdateStatus(relation.ID, models.RelationStatusCreated, to); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.RecordRelationTransition(op, "invalid_state")
			if fresh, gerr := s.relations.GetByID(relation.ID); gerr == nil {
				relation = fresh
			}
			return relation, ErrInvalidState
		}
		metrics.RecordRelationTransition(op, "error")
		return nil, err
	}
	relation.Status = to
	return relation, nil
}

func (s *Service) guard(relation *models.Relation, actorID uint, transition string) error {
	if actorID != relation.QuesterID {
		metrics.RecordRelationTransition(transition, "denied")
		return ErrPermissionDenied
	}
	if relation.Status != models.RelationStatusCreated {
		metrics.RecordRelationTransition(transition, "invalid_state")
		return ErrInvalidState
	}
	return nil
}

// Get retrieves a relation, visible only to its owner or quester.
func (s *Service) Get(ctx context.Context, actorID, relationID uint) (*models.Relation, error) {
	relation, err := s.relations.GetByID(relationID)
	if err != nil {
		return nil, err
	}
	if actorID != relation.OwnerID && actorID != relation.QuesterID {
		return nil, ErrPermissionDenied
	}
	return relation, nil
}

// ListForUser retrieves every relation the user participates in.
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.Relation, error) {
	return s.relations.ListForUser(userID)
}

// Overview bundles the per-user relation lists the dashboard renders.
type Overview struct {
	Owned    []models.Relation `json:"owned"`
	Assigned []models.Relation `json:"assigned"`
	Proposed []models.Relation `json:"proposed"`
	Pending  []models.Relation `json:"pending"`
}

// OverviewForUser retrieves the status-filtered relation lists for a user.
func (s *Service) OverviewForUser(ctx context.Context, userID uint) (*Overview, error) {
	var (
		overview Overview
		err      error
	)
	if overview.Owned, err = s.relations.OwnedBy(userID); err != nil {
		return nil, err
	}
	if overview.Assigned, err = s.relations.AssignedTo(userID); err != nil {
		return nil, err
	}
	if overview.Proposed, err = s.relations.ProposedBy(userID); err != nil {
		return nil, err
	}
	if overview.Pending, err = s.relations.PendingFor(userID); err != nil {
		return nil, err
	}
	return &overview, nil
}
