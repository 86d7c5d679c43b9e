package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrotwars/carrotwars/internal/config"
	"github.com/carrotwars/carrotwars/internal/models"
	questssvc "github.com/carrotwars/carrotwars/internal/service/quests"
	"github.com/carrotwars/carrotwars/pkg/logger"
)

type mockQuestService struct {
	quests  []models.Quest
	listErr error
	failErr error
	failed  []uint
}

func (m *mockQuestService) ListAccepted(ctx context.Context) ([]models.Quest, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.quests, nil
}

func (m *mockQuestService) Fail(ctx context.Context, quest *models.Quest) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.failed = append(m.failed, quest.ID)
	quest.Status = models.QuestStatusFailed
	return nil
}

type mockGuard struct {
	allow  bool
	claims []time.Time
}

func (m *mockGuard) ClaimSweepRun(_ context.Context, day time.Time) bool {
	m.claims = append(m.claims, day)
	return m.allow
}

func acceptedQuest(id uint, deadline time.Time) models.Quest {
	d := deadline
	return models.Quest{
		ID:       id,
		Status:   models.QuestStatusAccepted,
		Deadline: &d,
	}
}

func setupTestService(t *testing.T, quests *mockQuestService, guard RunGuard) *Service {
	t.Helper()

	cfg := &config.SchedulerConfig{Enabled: true, Time: "06:00", Timezone: "UTC"}
	return NewService(cfg, quests, guard, logger.New("debug", "console", "stdout"))
}

func TestBuildCronExpression(t *testing.T) {
	tests := []struct {
		time    string
		want    string
		wantErr bool
	}{
		{"06:00", "0 6 * * *", false},
		{"23:59", "59 23 * * *", false},
		{"0:05", "5 0 * * *", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noon", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.time, func(t *testing.T) {
			svc := setupTestService(t, &mockQuestService{}, nil)
			svc.config.Time = tt.time

			got, err := svc.buildCronExpression()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunOverdueSweep(t *testing.T) {
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	quests := &mockQuestService{
		quests: []models.Quest{
			acceptedQuest(1, now.AddDate(0, 0, -1)), // overdue
			acceptedQuest(2, now),                   // due today, still fine
			acceptedQuest(3, now.AddDate(0, 0, 3)),  // future
			acceptedQuest(4, now.AddDate(0, 0, -5)), // overdue
		},
	}

	svc := setupTestService(t, quests, nil)
	svc.now = func() time.Time { return now }

	svc.RunOverdueSweep(context.Background())

	assert.Equal(t, []uint{1, 4}, quests.failed)
}

func TestRunOverdueSweep_GuardSkips(t *testing.T) {
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	quests := &mockQuestService{
		quests: []models.Quest{acceptedQuest(1, now.AddDate(0, 0, -1))},
	}
	guard := &mockGuard{allow: false}

	svc := setupTestService(t, quests, guard)
	svc.now = func() time.Time { return now }

	svc.RunOverdueSweep(context.Background())

	assert.Empty(t, quests.failed, "a second same-day trigger must not touch quests")
	require.Len(t, guard.claims, 1)
	assert.Equal(t, now, guard.claims[0])
}

func TestRunOverdueSweep_GuardAllows(t *testing.T) {
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	quests := &mockQuestService{
		quests: []models.Quest{acceptedQuest(1, now.AddDate(0, 0, -1))},
	}
	guard := &mockGuard{allow: true}

	svc := setupTestService(t, quests, guard)
	svc.now = func() time.Time { return now }

	svc.RunOverdueSweep(context.Background())

	assert.Equal(t, []uint{1}, quests.failed)
}

func TestRunOverdueSweep_ListError(t *testing.T) {
	quests := &mockQuestService{listErr: fmt.Errorf("db down")}
	svc := setupTestService(t, quests, nil)

	svc.RunOverdueSweep(context.Background())

	assert.Empty(t, quests.failed)
}

func TestRunOverdueSweep_FailErrorDoesNotAbortBatch(t *testing.T) {
	// With Fail erroring, every overdue quest is still attempted.
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	quests := &mockQuestService{
		quests: []models.Quest{
			acceptedQuest(1, now.AddDate(0, 0, -1)),
			acceptedQuest(2, now.AddDate(0, 0, -2)),
		},
		failErr: fmt.Errorf("transition refused"),
	}

	svc := setupTestService(t, quests, nil)
	svc.now = func() time.Time { return now }

	assert.NotPanics(t, func() {
		svc.RunOverdueSweep(context.Background())
	})
}

func TestRunOverdueSweep_TransitionedQuestIsSkipped(t *testing.T) {
	// A quest confirmed between listing and failing is not an error; the
	// sweep just moves on.
	now := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	quests := &mockQuestService{
		quests:  []models.Quest{acceptedQuest(1, now.AddDate(0, 0, -1))},
		failErr: questssvc.ErrInvalidState,
	}

	svc := setupTestService(t, quests, nil)
	svc.now = func() time.Time { return now }

	svc.RunOverdueSweep(context.Background())

	assert.Empty(t, quests.failed)
}

func TestStart_Disabled(t *testing.T) {
	svc := setupTestService(t, &mockQuestService{}, nil)
	svc.config.Enabled = false

	require.NoError(t, svc.Start())
	assert.Nil(t, svc.cron)
	svc.Stop()
}

func TestStart_InvalidTimezone(t *testing.T) {
	svc := setupTestService(t, &mockQuestService{}, nil)
	svc.config.Timezone = "Mars/Olympus"

	assert.Error(t, svc.Start())
}

func TestStartAndStop(t *testing.T) {
	svc := setupTestService(t, &mockQuestService{}, nil)

	require.NoError(t, svc.Start())
	require.NotNil(t, svc.cron)
	assert.Len(t, svc.cron.Entries(), 1)
	svc.Stop()
}
