// Package quests implements the quest lifecycle: proposal, acceptance,
// completion, confirmation and failure, plus the balance bookkeeping that
// goes with them.
package quests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carrotwars/carrotwars/internal/metrics"
	"github.com/carrotwars/carrotwars/internal/models"
	"github.com/carrotwars/carrotwars/internal/repository"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// Sentinel errors returned by quest transitions. Guard failures
// (ErrPermissionDenied, ErrInvalidState) leave all state untouched; callers
// that want the classic silent no-op behavior just swallow them.
var (
	ErrPermissionDenied    = errors.New("actor is not permitted to perform this quest transition")
	ErrInvalidState        = errors.New("quest transition not allowed from its current status")
	ErrRatingOutOfRange    = fmt.Errorf("quest rating must be between %d and %d", models.QuestRatingMin, models.QuestRatingMax)
	ErrRelationNotAccepted = errors.New("relation is not accepted, quests cannot be proposed on it")
)

// QuestRepository is the persistence surface for quests. Status changes are
// conditional on the expected current status so that concurrent transitions
// cannot both take effect; a lost race surfaces as
// repository.ErrStatusConflict.
type QuestRepository interface {
	Create(quest *models.Quest) error
	GetByID(id uint) (*models.Quest, error)
	Activate(quest *models.Quest) error
	UpdateStatus(id uint, from, to string) error
	OwnedBy(userID uint) ([]models.Quest, error)
	AssignedTo(userID uint) ([]models.Quest, error)
	ProposedBy(userID uint) ([]models.Quest, error)
	PendingFor(userID uint) ([]models.Quest, error)
	CompletedFor(userID uint) ([]models.Quest, error)
	WaitingFor(userID uint) ([]models.Quest, error)
	ListForUser(userID uint) ([]models.Quest, error)
	ListAccepted() ([]models.Quest, error)
}

// RelationRepository is the slice of the relation store the quest lifecycle
// needs: pair lookup and the two balance mutations.
type RelationRepository interface {
	GetByPair(ownerID, questerID uint) (*models.Relation, error)
	CreditBalance(id uint, amount int) error
	DebitBalanceClamped(id uint, amount int) (int, error)
}

// Notifier delivers internal messages. Delivery is fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, senderID, recipientID uint, subject, body string)
}

// Service handles quest lifecycle operations. The acting user is always an
// explicit parameter; the service holds no request state.
type Service struct {
	quests    QuestRepository
	relations RelationRepository
	notifier  Notifier
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a new quest service.
func NewService(quests QuestRepository, relations RelationRepository, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		quests:    quests,
		relations: relations,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// ProposeInput carries the owner-supplied fields of a new quest.
type ProposeInput struct {
	QuesterID   uint
	Title       string
	Description string
	Rating      int
	Bomb        bool
}

// Propose creates a quest on the owner's relation with the given quester.
// Bomb quests are obligatory: they activate immediately instead of waiting
// for the quester's acceptance.
func (s *Service) Propose(ctx context.Context, ownerID uint, input ProposeInput) (*models.Quest, error) {
	if input.Rating < models.QuestRatingMin || input.Rating > models.QuestRatingMax {
		return nil, ErrRatingOutOfRange
	}

	relation, err := s.relations.GetByPair(ownerID, input.QuesterID)
	if err != nil {
		return nil, fmt.Errorf("no relation with quester %d: %w", input.QuesterID, err)
	}
	if !relation.IsAccepted() {
		return nil, ErrRelationNotAccepted
	}

	quest := &models.Quest{
		RelationID:  relation.ID,
		Title:       input.Title,
		Description: input.Description,
		Rating:      input.Rating,
		Bomb:        input.Bomb,
		Status:      models.QuestStatusCreated,
	}
	if quest.Bomb {
		quest.Activate(s.now())
	}

	if err := s.quests.Create(quest); err != nil {
		metrics.RecordQuestTransition("propose", "error")
		return nil, err
	}
	metrics.RecordQuestTransition("propose", "success")

	s.notifier.Notify(ctx, ownerID, relation.QuesterID, "New quest!", quest.Title)

	s.log.Info().
		Uint("quest_id", quest.ID).
		Uint("relation_id", relation.ID).
		Bool("bomb", quest.Bomb).
		Msg("Quest proposed")

	return quest, nil
}

// Accept activates a created quest: status moves to accepted, the activation
// date is stamped and the deadline is set seven days out. Only the quester
// may accept, and only from the created status; re-accepting an already
// active quest changes nothing.
func (s *Service) Accept(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	quest, err := s.quests.GetByID(questID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(quest, actorID, quest.Relation.QuesterID, models.QuestStatusCreated, "accept"); err != nil {
		return quest, err
	}

	quest.Activate(s.now())
	if err := s.quests.Activate(quest); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.RecordQuestTransition("accept", "invalid_state")
			return s.reload(quest), ErrInvalidState
		}
		metrics.RecordQuestTransition("accept", "error")
		return nil, err
	}
	metrics.RecordQuestTransition("accept", "success")

	s.notifier.Notify(ctx, actorID, quest.Relation.OwnerID,
		fmt.Sprintf("Quest %s has been accepted.", quest.Title), "")

	return quest, nil
}

// Decline rejects a created quest. Only the quester may decline, and only
// from the created status.
func (s *Service) Decline(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	quest, err := s.quests.GetByID(questID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(quest, actorID, quest.Relation.QuesterID, models.QuestStatusCreated, "decline"); err != nil {
		return quest, err
	}

	if quest, err = s.transition(quest, models.QuestStatusCreated, models.QuestStatusDeclined, "decline"); err != nil {
		return quest, err
	}
	metrics.RecordQuestTransition("decline", "success")

	s.notifier.Notify(ctx, actorID, quest.Relation.OwnerID,
		fmt.Sprintf("Quest %s has been declined.", quest.Title), "")

	return quest, nil
}

// Complete marks an active quest as done from the quester's point of view.
// The owner still has to confirm before carrots are credited.
func (s *Service) Complete(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	quest, err := s.quests.GetByID(questID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(quest, actorID, quest.Relation.QuesterID, models.QuestStatusAccepted, "complete"); err != nil {
		return quest, err
	}

	if quest, err = s.transition(quest, models.QuestStatusAccepted, models.QuestStatusMarkedComplete, "complete"); err != nil {
		return quest, err
	}
	metrics.RecordQuestTransition("complete", "success")

	s.notifier.Notify(ctx, actorID, quest.Relation.OwnerID,
		fmt.Sprintf("Quest %s has been marked as completed.", quest.Title), "")

	return quest, nil
}

// Confirm acknowledges a marked-complete quest and credits the relation
// balance with the quest rating. Only the owner may confirm.
func (s *Service) Confirm(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	quest, err := s.quests.GetByID(questID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(quest, actorID, quest.Relation.OwnerID, models.QuestStatusMarkedComplete, "confirm"); err != nil {
		return quest, err
	}

	// The conditional status flip decides the winner between concurrent
	// confirmations; only the winner reaches the credit, so the rating is
	// credited at most once.
	if quest, err = s.transition(quest, models.QuestStatusMarkedComplete, models.QuestStatusDone, "confirm"); err != nil {
		return quest, err
	}

	if err := s.relations.CreditBalance(quest.RelationID, quest.Rating); err != nil {
		metrics.RecordQuestTransition("confirm", "error")
		// Put the quest back to marked-complete so the owner can confirm
		// again once the ledger recovers; a done quest with no credit would
		// be unrecoverable.
		if revertErr := s.quests.UpdateStatus(quest.ID, models.QuestStatusDone, models.QuestStatusMarkedComplete); revertErr != nil {
			s.log.Error().Err(revertErr).Uint("quest_id", quest.ID).Msg("Failed to revert quest status after credit failure")
		} else {
			quest.Status = models.QuestStatusMarkedComplete
		}
		return nil, err
	}
	metrics.RecordQuestTransition("confirm", "success")
	metrics.CarrotsCreditedTotal.Add(float64(quest.Rating))

	s.notifier.Notify(ctx, actorID, quest.Relation.QuesterID,
		fmt.Sprintf("Quest %s completion has been confirmed. You earned %s!", quest.Title, carrots(quest.Rating)), "")

	s.log.Info().
		Uint("quest_id", quest.ID).
		Uint("relation_id", quest.RelationID).
		Int("credited", quest.Rating).
		Msg("Quest confirmed")

	return quest, nil
}

// Deny rejects a completion claim and puts the quest back to accepted so the
// quester has to complete it again. Only the owner may deny.
func (s *Service) Deny(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	quest, err := s.quests.GetByID(questID)
	if err != nil {
		return nil, err
	}
	if err := s.guard(quest, actorID, quest.Relation.OwnerID, models.QuestStatusMarkedComplete, "deny"); err != nil {
		return quest, err
	}

	if quest, err = s.transition(quest, models.QuestStatusMarkedComplete, models.QuestStatusAccepted, "deny"); err != nil {
		return quest, err
	}
	metrics.RecordQuestTransition("deny", "success")

	s.notifier.Notify(ctx, actorID, quest.Relation.QuesterID,
		fmt.Sprintf("Quest %s completion has been denied.", quest.Title), "")

	return quest, nil
}

// Fail marks an overdue accepted quest as failed. For bomb quests the
// relation balance is penalized by the quest rating, clamped at zero: the
// quest fails either way, with whatever partial penalty the balance covers.
// Only the overdue sweep calls this.
func (s *Service) Fail(ctx context.Context, quest *models.Quest) error {
	if quest.Status != models.QuestStatusAccepted {
		return ErrInvalidState
	}

	// Flip the status before touching the balance so a quest confirmed
	// between the sweep's listing and this call is left alone.
	if err := s.quests.UpdateStatus(quest.ID, models.QuestStatusAccepted, models.QuestStatusFailed); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.RecordQuestTransition("fail", "invalid_state")
			return ErrInvalidState
		}
		metrics.RecordQuestTransition("fail", "error")
		return err
	}
	quest.Status = models.QuestStatusFailed

	deduction := 0
	if quest.Bomb {
		var err error
		deduction, err = s.relations.DebitBalanceClamped(quest.RelationID, quest.Rating)
		if err != nil {
			metrics.RecordQuestTransition("fail", "error")
			// Revert so the next sweep retries the whole failure.
			if revertErr := s.quests.UpdateStatus(quest.ID, models.QuestStatusFailed, models.QuestStatusAccepted); revertErr != nil {
				s.log.Error().Err(revertErr).Uint("quest_id", quest.ID).Msg("Failed to revert quest status after debit failure")
			} else {
				quest.Status = models.QuestStatusAccepted
			}
			return err
		}
		metrics.CarrotsDebitedTotal.WithLabelValues("bomb_failure").Add(float64(deduction))
	}
	metrics.RecordQuestTransition("fail", "success")

	ownerNote := fmt.Sprintf("Quest %s has failed.", quest.Title)
	questerNote := ownerNote
	if quest.Bomb {
		questerName := quest.Relation.Quester.Username
		ownerNote = fmt.Sprintf("Quest %s has failed. %s lost %s.", quest.Title, questerName, carrots(deduction))
		questerNote = fmt.Sprintf("Quest %s has failed. You lost %s.", quest.Title, carrots(deduction))
	}
	s.notifier.Notify(ctx, quest.Relation.QuesterID, quest.Relation.OwnerID, ownerNote, "")
	s.notifier.Notify(ctx, quest.Relation.OwnerID, quest.Relation.QuesterID, questerNote, "")

	s.log.Info().
		Uint("quest_id", quest.ID).
		Bool("bomb", quest.Bomb).
		Int("deducted", deduction).
		Msg("Quest failed")

	return nil
}

// guard validates the actor and starting status of a transition. Guard
// failures mutate nothing.
func (s *Service) guard(quest *models.Quest, actorID, allowedID uint, requiredStatus, transition string) error {
	if actorID != allowedID {
		metrics.RecordQuestTransition(transition, "denied")
		return ErrPermissionDenied
	}
	if quest.Status != requiredStatus {
		metrics.RecordQuestTransition(transition, "invalid_state")
		return ErrInvalidState
	}
	return nil
}

// transition flips the quest status with a conditional update. Losing a race
// against a concurrent transition reads the same as finding the quest in the
// wrong status to begin with: ErrInvalidState, with the quest reloaded so the
// caller reports what actually happened.
func (s *Service) transition(quest *models.Quest, from, to, op string) (*models.Quest, error) {
	if err := s.quests.UpdateStatus(quest.ID, from, to); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.RecordQuestTransition(op, "invalid_state")
			return s.reload(quest), ErrInvalidState
		}
		metrics.RecordQuestTransition(op, "error")
		return nil, err
	}
	quest.Status = to
	return quest, nil
}

// reload re-reads a quest after a lost status race, falling back to the stale
// copy when the read fails.
func (s *Service) reload(quest *models.Quest) *models.Quest {
	fresh, err := s.quests.GetByID(quest.ID)
	if err != nil {
		return quest
	}
	return fresh
}

// Get retrieves a quest, visible only to the relation's owner or quester.
func (s *Service) Get(ctx context.Context, actorID, questID uint) (*models.Quest, error) {
	quest, err := s.quests.GetByID(questID)
	if err != nil {
		return nil, err
	}
	if actorID != quest.Relation.OwnerID && actorID != quest.Relation.QuesterID {
		return nil, ErrPermissionDenied
	}
	return quest, nil
}

// ListForUser retrieves every quest the user can see.
func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.Quest, error) {
	return s.quests.ListForUser(userID)
}

// Overview bundles the per-user quest lists the dashboard renders.
type Overview struct {
	Owned     []models.Quest `json:"owned"`
	Assigned  []models.Quest `json:"assigned"`
	Proposed  []models.Quest `json:"proposed"`
	Pending   []models.Quest `json:"pending"`
	Completed []models.Quest `json:"completed"`
	Waiting   []models.Quest `json:"waiting"`
}

// OverviewForUser retrieves the six status-filtered quest lists for a user.
func (s *Service) OverviewForUser(ctx context.Context, userID uint) (*Overview, error) {
	var (
		overview Overview
		err      error
	)
	if overview.Owned, err = s.quests.OwnedBy(userID); err != nil {
		return nil, err
	}
	if overview.Assigned, err = s.quests.AssignedTo(userID); err != nil {
		return nil, err
	}
	if overview.Proposed, err = s.quests.ProposedBy(userID); err != nil {
		return nil, err
	}
	if overview.Pending, err = s.quests.PendingFor(userID); err != nil {
		return nil, err
	}
	if overview.Completed, err = s.quests.CompletedFor(userID); err != nil {
		return nil, err
	}
	if overview.Waiting, err = s.quests.WaitingFor(userID); err != nil {
		return nil, err
	}
	return &overview, nil
}

// ListAccepted retrieves all accepted quests. Used by the overdue sweep.
func (s *Service) ListAccepted(ctx context.Context) ([]models.Quest, error) {
	return s.quests.ListAccepted()
}

// carrots formats an amount with the right plural.
func carrots(n int) string {
	if n == 1 {
		return "1 carrot"
	}
	return fmt.Sprintf("%d carrots", n)
}
