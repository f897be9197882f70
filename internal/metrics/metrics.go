package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gymbuddy"

// Event outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeSkipped   = "skipped"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomePermanent = "permanent_error"
	OutcomeError     = "error"
)

var (
	eventsHandled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "handled_total",
		Help:      "Events handled, by event type and outcome.",
	}, []string{"type", "outcome"})

	eventDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "duration_seconds",
		Help:      "Time spent handling an event.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})

	xpAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gamification",
		Name:      "xp_awarded_total",
		Help:      "Experience points granted, by source.",
	}, []string{"source"})

	levelUps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gamification",
		Name:      "level_ups_total",
		Help:      "Level increases applied to profiles.",
	})

	achievementsUnlocked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gamification",
		Name:      "achievements_unlocked_total",
		Help:      "Achievements unlocked, by achievement id.",
	}, []string{"achievement"})

	claimsResolved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "record_claims",
		Name:      "resolved_total",
		Help:      "Record claims resolved by the deadline sweep, by final status.",
	}, []string{"status"})

	claimFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "record_claims",
		Name:      "resolution_failures_total",
		Help:      "Record claims the sweep failed to resolve.",
	})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "record_claims",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full deadline sweep.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	notificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "fanout_failures_total",
		Help:      "Notifications that could not be created after the primary write committed.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(
		eventsHandled, eventDuration,
		xpAwarded, levelUps, achievementsUnlocked,
		claimsResolved, claimFailures, sweepDuration,
		notificationFailures,
	)
}

func RecordEvent(eventType, outcome string, took time.Duration) {
	eventsHandled.WithLabelValues(eventType, outcome).Inc()
	eventDuration.WithLabelValues(eventType).Observe(took.Seconds())
}

func RecordXP(source string, xp int, levelsGained int) {
	if xp > 0 {
		xpAwarded.WithLabelValues(source).Add(float64(xp))
	}
	if levelsGained > 0 {
		levelUps.Add(float64(levelsGained))
	}
}

func RecordAchievement(id string) {
	achievementsUnlocked.WithLabelValues(id).Inc()
}

func RecordClaimResolved(status string) {
	claimsResolved.WithLabelValues(status).Inc()
}

func RecordClaimFailure() {
	claimFailures.Inc()
}

func RecordSweep(took time.Duration) {
	sweepDuration.Observe(took.Seconds())
}

func RecordNotificationFailure(notificationType string) {
	notificationFailures.WithLabelValues(notificationType).Inc()
}
