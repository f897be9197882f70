package workout

import (
	"math"
	"time"

	"gymBuddyFunctions/internal/calendar"
)

const StatusCompleted = "completed"

const (
	BaseXP          = 50
	VolumeDivisor   = 100
	DurationDivisor = 300
	MaxXPPerWorkout = 200
)

// Log is a workout session document (users/{uid}/workoutLogs/{sessionId}).
type Log struct {
	Status          string     `json:"status" firestore:"status"`
	DurationSeconds float64    `json:"durationSeconds" firestore:"durationSeconds"`
	TotalVolume     float64    `json:"totalVolume" firestore:"totalVolume"`
	StartedAt       *time.Time `json:"startedAt,omitempty" firestore:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty" firestore:"endedAt"`
	RoutineID       string     `json:"routineId,omitempty" firestore:"routineId,omitempty"`
}

func (l *Log) IsCompleted() bool {
	return l != nil && l.Status == StatusCompleted
}

// JustCompleted reports the transition into the completed status. Any other
// write to a session log, including rewrites of an already completed one, is ignored.
func JustCompleted(before, after *Log) bool {
	return !before.IsCompleted() && after.IsCompleted()
}

// Routine is a user-defined workout plan (userRoutines/{id}).
type Routine struct {
	ID            string   `json:"id" firestore:"-"`
	UserID        string   `json:"userId" firestore:"userId"`
	Name          string   `json:"name" firestore:"name"`
	ScheduledDays []string `json:"scheduledDays" firestore:"scheduledDays"`
}

// Schedule returns the set of days the routine is planned for. Unknown entries are dropped.
func (r *Routine) Schedule() map[calendar.DayKey]bool {
	if r == nil {
		return nil
	}
	days := make(map[calendar.DayKey]bool, len(r.ScheduledDays))
	for _, raw := range r.ScheduledDays {
		key, err := calendar.ParseDayKey(raw)
		if err != nil {
			continue
		}
		days[key] = true
	}
	return days
}

// FindRoutine returns the routine with the given id, or nil.
func FindRoutine(routines []Routine, id string) *Routine {
	if id == "" {
		return nil
	}
	for i := range routines {
		if routines[i].ID == id {
			return &routines[i]
		}
	}
	return nil
}

// XPForWorkout computes the experience granted for one completed session.
func XPForWorkout(totalVolume, durationSeconds float64) int {
	xp := BaseXP + roundedShare(totalVolume, VolumeDivisor) + roundedShare(durationSeconds, DurationDivisor)
	if xp > MaxXPPerWorkout {
		return MaxXPPerWorkout
	}
	return xp
}

// roundedShare is clamped to the cap before the int conversion, which would
// otherwise overflow for huge inputs.
func roundedShare(v, divisor float64) int {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	share := math.Round(v / divisor)
	if share >= MaxXPPerWorkout {
		return MaxXPPerWorkout
	}
	return int(share)
}
