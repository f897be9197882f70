// Package streak tracks consecutive scheduled workouts.
//
// A streak only counts completions that fall on a day the matching routine is scheduled
// for. Completing a scheduled day extends the streak unless a scheduled day was skipped
// since the previous qualifying completion, in which case the streak restarts at 1.
package streak

import (
	"time"

	"gymBuddyFunctions/internal/calendar"
)

// State is the persisted streak portion of a user profile.
type State struct {
	Current int
	Longest int

	// Anchor of the last qualifying completion. Both are empty until the first one.
	LastScheduledCompletion *time.Time
	LastScheduledDayKey     calendar.DayKey
}

// Completion is a finished workout as seen by the streak engine.
type Completion struct {
	// StartedAt decides which calendar day the workout belongs to.
	StartedAt time.Time
	// CompletedAt is stored as the new anchor timestamp.
	CompletedAt time.Time
	// ScheduledDays of the routine the workout was logged against. Empty when the
	// workout has no routine or the routine could not be found.
	ScheduledDays map[calendar.DayKey]bool
}

type Outcome string

const (
	OutcomeUnscheduled Outcome = "unscheduled"
	OutcomeFirst       Outcome = "first"
	OutcomeSameDay     Outcome = "same_day"
	OutcomeExtended    Outcome = "extended"
	OutcomeReset       Outcome = "reset"
	OutcomeOutOfOrder  Outcome = "out_of_order"
)

// Advance applies one completion to the streak state.
func Advance(s State, c Completion) (State, Outcome) {
	next, outcome := advance(s, c)
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	return next, outcome
}

func advance(s State, c Completion) (State, Outcome) {
	if len(c.ScheduledDays) == 0 {
		return s, OutcomeUnscheduled
	}

	dayKey := calendar.DayKeyOf(c.StartedAt)
	if !c.ScheduledDays[dayKey] {
		return s, OutcomeUnscheduled
	}

	dayStart := calendar.DayStart(c.StartedAt)
	anchored := s
	anchor := c.CompletedAt
	anchored.LastScheduledCompletion = &anchor
	anchored.LastScheduledDayKey = dayKey

	if s.LastScheduledCompletion == nil || s.LastScheduledDayKey == "" {
		anchored.Current = 1
		return anchored, OutcomeFirst
	}

	lastDayStart := calendar.DayStart(*s.LastScheduledCompletion)
	if lastDayStart.Equal(dayStart) && s.LastScheduledDayKey == dayKey {
		return s, OutcomeSameDay
	}

	// A completion dated before the current anchor arrived late; moving the anchor
	// backwards would let the next completion skip over already-walked days.
	if dayStart.Before(lastDayStart) {
		return s, OutcomeOutOfOrder
	}

	if MissedScheduledDay(lastDayStart, dayStart, c.ScheduledDays) {
		anchored.Current = 1
		return anchored, OutcomeReset
	}

	anchored.Current = s.Current + 1
	return anchored, OutcomeExtended
}

// MissedScheduledDay reports whether any day strictly between the two day starts is
// scheduled.
func MissedScheduledDay(lastDayStart, currentDayStart time.Time, scheduled map[calendar.DayKey]bool) bool {
	for d := calendar.NextDay(lastDayStart); d.Before(currentDayStart); d = calendar.NextDay(d) {
		if scheduled[calendar.DayKeyOf(d)] {
			return true
		}
	}
	return false
}
