package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymBuddyFunctions/internal/calendar"
)

var monThu = map[calendar.DayKey]bool{calendar.Monday: true, calendar.Thursday: true}

// 2024-01-01 was a Monday.
func day(d, hour int) time.Time {
	return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC)
}

func completion(start time.Time, days map[calendar.DayKey]bool) Completion {
	return Completion{StartedAt: start, CompletedAt: start.Add(time.Hour), ScheduledDays: days}
}

func anchoredAt(current, longest int, at time.Time) State {
	return State{
		Current:                 current,
		Longest:                 longest,
		LastScheduledCompletion: &at,
		LastScheduledDayKey:     calendar.DayKeyOf(at),
	}
}

func TestAdvanceWithoutScheduleLeavesStateUntouched(t *testing.T) {
	prev := anchoredAt(3, 5, day(1, 9))

	got, outcome := Advance(prev, completion(day(2, 9), nil))
	assert.Equal(t, OutcomeUnscheduled, outcome)
	assert.Equal(t, prev, got)

	// Tuesday is not a scheduled day.
	got, outcome = Advance(prev, completion(day(2, 9), monThu))
	assert.Equal(t, OutcomeUnscheduled, outcome)
	assert.Equal(t, prev, got)
}

func TestAdvanceFirstQualifyingCompletion(t *testing.T) {
	c := completion(day(1, 7), monThu)

	got, outcome := Advance(State{}, c)

	assert.Equal(t, OutcomeFirst, outcome)
	assert.Equal(t, 1, got.Current)
	assert.Equal(t, 1, got.Longest)
	require.NotNil(t, got.LastScheduledCompletion)
	assert.Equal(t, c.CompletedAt, *got.LastScheduledCompletion)
	assert.Equal(t, calendar.Monday, got.LastScheduledDayKey)
}

func TestAdvanceSameDayIsIdempotent(t *testing.T) {
	prev := anchoredAt(4, 4, day(4, 8))

	got, outcome := Advance(prev, completion(day(4, 18), monThu))

	assert.Equal(t, OutcomeSameDay, outcome)
	assert.Equal(t, prev, got)
}

func TestAdvanceExtendsWhenNoScheduledDayWasMissed(t *testing.T) {
	// Monday then Thursday: Tuesday and Wednesday are not scheduled.
	prev := anchoredAt(1, 1, day(1, 9))

	got, outcome := Advance(prev, completion(day(4, 9), monThu))

	assert.Equal(t, OutcomeExtended, outcome)
	assert.Equal(t, 2, got.Current)
	assert.Equal(t, 2, got.Longest)
	assert.Equal(t, calendar.Thursday, got.LastScheduledDayKey)
}

func TestAdvanceResetsAfterMissedScheduledDay(t *testing.T) {
	// Monday to the following Monday skips Thursday the 4th.
	prev := anchoredAt(6, 9, day(1, 9))

	got, outcome := Advance(prev, completion(day(8, 9), monThu))

	assert.Equal(t, OutcomeReset, outcome)
	assert.Equal(t, 1, got.Current)
	assert.Equal(t, 9, got.Longest)
	require.NotNil(t, got.LastScheduledCompletion)
	assert.Equal(t, calendar.Monday, got.LastScheduledDayKey)
}

func TestAdvanceLongestNeverBelowCurrent(t *testing.T) {
	// Legacy profiles may carry a longest streak lower than the current one.
	prev := anchoredAt(7, 2, day(1, 9))

	got, _ := Advance(prev, completion(day(4, 9), monThu))
	assert.Equal(t, 8, got.Current)
	assert.Equal(t, 8, got.Longest)

	got, _ = Advance(prev, completion(day(2, 9), monThu))
	assert.Equal(t, 7, got.Longest)
}

func TestAdvanceIgnoresCompletionOlderThanAnchor(t *testing.T) {
	prev := anchoredAt(2, 2, day(8, 9))

	got, outcome := Advance(prev, completion(day(4, 9), monThu))

	assert.Equal(t, OutcomeOutOfOrder, outcome)
	assert.Equal(t, prev, got)
}

func TestAdvanceUsesStartDayForWorkoutsAcrossMidnight(t *testing.T) {
	prev := anchoredAt(1, 1, day(1, 9))
	// Started Wednesday 23:30, finished Thursday: the day is Wednesday, unscheduled.
	start := time.Date(2024, 1, 3, 23, 30, 0, 0, time.UTC)
	c := Completion{StartedAt: start, CompletedAt: start.Add(time.Hour), ScheduledDays: monThu}

	got, outcome := Advance(prev, c)

	assert.Equal(t, OutcomeUnscheduled, outcome)
	assert.Equal(t, prev, got)
}

func TestMissedScheduledDayExcludesEndpoints(t *testing.T) {
	mon := calendar.DayStart(day(1, 0))
	thu := calendar.DayStart(day(4, 0))
	nextMon := calendar.DayStart(day(8, 0))

	assert.False(t, MissedScheduledDay(mon, thu, monThu))
	assert.False(t, MissedScheduledDay(thu, nextMon, monThu))
	assert.True(t, MissedScheduledDay(mon, nextMon, monThu))
	assert.False(t, MissedScheduledDay(mon, mon, monThu))
}
