// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters.
	QuestTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrotwars_quest_transitions_total",
			Help: "Total number of quest lifecycle transitions",
		},
		[]string{"transition", "status"},
	)

	RelationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrotwars_relation_transitions_total",
			Help: "Total number of relation lifecycle transitions",
		},
		[]string{"transition", "status"},
	)

	RewardPurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrotwars_reward_purchases_total",
			Help: "Total number of reward purchase attempts",
		},
		[]string{"status"},
	)

	CarrotsCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carrotwars_carrots_credited_total",
			Help: "Total carrots credited by quest confirmations",
		},
	)

	CarrotsDebitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrotwars_carrots_debited_total",
			Help: "Total carrots debited, by cause",
		},
		[]string{"cause"}, // "purchase" or "bomb_failure"
	)

	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrotwars_messages_sent_total",
			Help: "Total internal messages sent",
		},
		[]string{"status"},
	)

	// Sweep metrics.
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrotwars_sweep_runs_total",
			Help: "Total overdue sweep runs",
		},
		[]string{"status"}, // "success", "error", "skipped"
	)

	SweepQuestsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carrotwars_sweep_quests_failed_total",
			Help: "Total quests failed by the overdue sweep",
		},
	)

	SweepDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carrotwars_sweep_duration_seconds",
			Help:    "Duration of overdue sweep runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	SweepLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carrotwars_sweep_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last sweep run",
		},
	)
)

// RecordQuestTransition records a quest transition attempt.
func RecordQuestTransition(transition, status string) {
	QuestTransitionsTotal.WithLabelValues(transition, status).Inc()
}

// RecordRelationTransition records a relation transition attempt.
func RecordRelationTransition(transition, status string) {
	RelationTransitionsTotal.WithLabelValues(transition, status).Inc()
}

// RecordRewardPurchase records a reward purchase attempt.
func RecordRewardPurchase(status string) {
	RewardPurchasesTotal.WithLabelValues(status).Inc()
}

// RecordSweepRun records the outcome of a sweep run.
func RecordSweepRun(status string) {
	SweepRunsTotal.WithLabelValues(status).Inc()
}

// ObserveSweepDuration records how long a sweep run took.
func ObserveSweepDuration(seconds float64) {
	SweepDurationSeconds.Observe(seconds)
}

// SetSweepLastRun stamps the last sweep run time.
func SetSweepLastRun() {
	SweepLastRunTimestamp.Set(float64(time.Now().Unix()))
}
