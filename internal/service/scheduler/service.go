// Package scheduler runs the daily overdue sweep that fails accepted quests
// whose deadline has passed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carrotwars/carrotwars/internal/config"
	prommetrics "github.com/carrotwars/carrotwars/internal/metrics"
	"github.com/carrotwars/carrotwars/internal/models"
	questssvc "github.com/carrotwars/carrotwars/internal/service/quests"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

// QuestService is the slice of the quest lifecycle the sweep drives.
type QuestService interface {
	ListAccepted(ctx context.Context) ([]models.Quest, error)
	Fail(ctx context.Context, quest *models.Quest) error
}

// RunGuard decides whether a sweep run may proceed for a given day. The
// Redis-backed implementation makes a second same-day trigger a no-op.
type RunGuard interface {
	ClaimSweepRun(ctx context.Context, day time.Time) bool
}

// Service schedules and executes the overdue sweep.
type Service struct {
	config *config.SchedulerConfig
	quests QuestService
	guard  RunGuard
	log    *logger.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// NewService creates a new scheduler service. The guard may be nil, in which
// case every trigger runs the sweep.
func NewService(cfg *config.SchedulerConfig, quests QuestService, guard RunGuard, log *logger.Logger) *Service {
	return &Service{
		config: cfg,
		quests: quests,
		guard:  guard,
		log:    log,
		now:    time.Now,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(cronExpr, func() {
		s.RunOverdueSweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register overdue sweep job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Timezone).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a daily cron expression from the configured
// "HH:MM" time.
func (s *Service) buildCronExpression() (string, error) {
	parts := strings.Split(s.config.Time, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// RunOverdueSweep walks all accepted quests and fails the overdue ones. The
// run guard makes a second trigger within the same day a no-op. Quests are
// processed independently: one failure never aborts the batch.
func (s *Service) RunOverdueSweep(ctx context.Context) {
	start := s.now()

	defer func() {
		prommetrics.ObserveSweepDuration(time.Since(start).Seconds())
		prommetrics.SetSweepLastRun()
	}()

	if s.guard != nil && !s.guard.ClaimSweepRun(ctx, start) {
		s.log.Info().Msg("Overdue sweep already ran today, skipping")
		prommetrics.RecordSweepRun("skipped")
		return
	}

	s.log.Info().Msg("Running overdue sweep")

	quests, err := s.quests.ListAccepted(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list accepted quests")
		prommetrics.RecordSweepRun("error")
		return
	}

	failed := 0
	errored := 0
	for i := range quests {
		quest := &quests[i]
		if !quest.IsOverdue(start) {
			continue
		}
		if err := s.quests.Fail(ctx, quest); err != nil {
			if errors.Is(err, questssvc.ErrInvalidState) {
				// A user transitioned the quest between listing and here;
				// it is no longer the sweep's to fail.
				s.log.Debug().Uint("quest_id", quest.ID).Msg("Quest left accepted status during sweep")
				continue
			}
			s.log.Error().Err(err).Uint("quest_id", quest.ID).Msg("Failed to fail overdue quest")
			errored++
			continue
		}
		failed++
		prommetrics.SweepQuestsFailedTotal.Inc()
	}

	status := "success"
	if errored > 0 {
		status = "error"
	}
	prommetrics.RecordSweepRun(status)

	s.log.Info().
		Int("checked", len(quests)).
		Int("failed", failed).
		Int("errors", errored).
		Dur("duration", time.Since(start)).
		Msg("Overdue sweep finished")
}
