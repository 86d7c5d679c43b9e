package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuest_Activate(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 0, 0, time.UTC)

	quest := &Quest{Status: QuestStatusCreated, Rating: 3}
	quest.Activate(now)

	assert.Equal(t, QuestStatusAccepted, quest.Status)
	assert.Equal(t, now, *quest.ActivationDate)
	assert.Equal(t, now.AddDate(0, 0, QuestDeadlineDays), *quest.Deadline)
}

func TestQuest_IsOverdue(t *testing.T) {
	deadline := time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		quest   Quest
		now     time.Time
		overdue bool
	}{
		{
			name:    "no deadline set",
			quest:   Quest{Status: QuestStatusAccepted},
			now:     time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			overdue: false,
		},
		{
			name:    "before deadline",
			quest:   Quest{Deadline: &deadline},
			now:     time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC),
			overdue: false,
		},
		{
			name:    "on deadline day, later time of day",
			quest:   Quest{Deadline: &deadline},
			now:     time.Date(2024, 3, 17, 23, 59, 0, 0, time.UTC),
			overdue: false,
		},
		{
			name:    "day after deadline, earlier time of day",
			quest:   Quest{Deadline: &deadline},
			now:     time.Date(2024, 3, 18, 0, 1, 0, 0, time.UTC),
			overdue: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overdue, tt.quest.IsOverdue(tt.now))
		})
	}
}
