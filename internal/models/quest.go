package models

import (
	"time"
)

// Quest status constants. Single-letter codes are persisted.
const (
	QuestStatusCreated        = "C"
	QuestStatusAccepted       = "A"
	QuestStatusDeclined       = "R"
	QuestStatusMarkedComplete = "M"
	QuestStatusDone           = "D"
	QuestStatusFailed         = "F"
	QuestStatusDeleted        = "X"
)

// Rating bounds for quests, in carrots.
const (
	QuestRatingMin = 1
	QuestRatingMax = 5
)

// QuestDeadlineDays is how long a quester has to finish a quest once it
// becomes active.
const QuestDeadlineDays = 7

// Quest is a task the relation owner proposes to the quester, worth its
// rating in carrots on confirmed completion. Bomb quests are obligatory:
// they activate without the quester's acceptance and penalize the relation
// balance when they fail.
type Quest struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	RelationID     uint       `gorm:"not null;index" json:"relation_id"`
	Relation       Relation   `gorm:"foreignKey:RelationID" json:"relation,omitempty"`
	Title          string     `gorm:"size:60;not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	Rating         int        `gorm:"not null;default:1" json:"rating"`
	Bomb           bool       `gorm:"not null;default:false" json:"bomb"`
	ActivationDate *time.Time `json:"activation_date,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Status         string     `gorm:"size:1;not null;default:'C';index" json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Quest model.
func (Quest) TableName() string {
	return "quests"
}

// IsActive reports whether the quest is accepted and still running.
func (q *Quest) IsActive() bool {
	return q.Status == QuestStatusAccepted
}

// Activate marks the quest accepted, stamps the activation date and sets the
// deadline seven days out.
func (q *Quest) Activate(now time.Time) {
	deadline := now.AddDate(0, 0, QuestDeadlineDays)
	q.Status = QuestStatusAccepted
	q.ActivationDate = &now
	q.Deadline = &deadline
}

// IsOverdue reports whether the quest deadline has passed. The comparison is
// date-only: a quest is overdue starting the day after its deadline date,
// regardless of time of day.
func (q *Quest) IsOverdue(now time.Time) bool {
	if q.Deadline == nil {
		return false
	}
	return startOfDay(now).After(startOfDay(*q.Deadline))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
