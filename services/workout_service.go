package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/achievement"
	"gymBuddyFunctions/internal/calendar"
	"gymBuddyFunctions/internal/leveling"
	"gymBuddyFunctions/internal/metrics"
	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/streak"
	"gymBuddyFunctions/internal/types/event"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/user"
	"gymBuddyFunctions/internal/types/workout"
)

type WorkoutService struct {
	store store.Store
	now   func() time.Time
}

func NewWorkoutService(st store.Store) *WorkoutService {
	return &WorkoutService{store: st, now: utcNow}
}

// WorkoutResult summarises what a completed workout changed on the profile.
type WorkoutResult struct {
	Outcome          Outcome
	XPGained         int
	XP               int
	Level            int
	LevelsGained     int
	Streak           streak.State
	StreakOutcome    streak.Outcome
	UnlockedFirstRun bool
}

// HandleWorkoutLogUpdated awards XP, advances the level and streak, and unlocks the
// first-workout achievement when a session log transitions to completed. The profile
// update, the achievement notification and the ledger entry commit together.
func (s *WorkoutService) HandleWorkoutLogUpdated(ctx context.Context, evt *event.WorkoutLogUpdated) (*WorkoutResult, error) {
	fields := log.Fields{"userId": evt.UserID, "sessionId": evt.SessionID, "eventId": evt.EventID}

	if !workout.JustCompleted(evt.Before, evt.After) {
		return &WorkoutResult{Outcome: Skipped}, nil
	}

	now := s.now()
	completedAt := now
	if evt.After.EndedAt != nil {
		completedAt = evt.After.EndedAt.UTC()
	}
	startedAt := now
	if evt.After.StartedAt != nil {
		startedAt = evt.After.StartedAt.UTC()
	}
	xpGained := workout.XPForWorkout(evt.After.TotalVolume, evt.After.DurationSeconds)
	ledger := newLedger("workoutCompleted", evt.EventID)

	log.WithFields(fields).Info("Workout completed. Calculating XP, streak and achievements")

	var result WorkoutResult
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		result = WorkoutResult{XPGained: xpGained}

		seen, err := ledger.seen(ctx, tx)
		if err != nil {
			return err
		}
		if seen {
			result.Outcome = Duplicate
			return nil
		}

		profile, err := tx.GetProfile(ctx, evt.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, evt.UserID)
		}
		if err != nil {
			return err
		}

		routines, err := tx.ListRoutines(ctx, evt.UserID)
		if err != nil {
			return err
		}
		routine := workout.FindRoutine(routines, evt.After.RoutineID)
		if evt.After.RoutineID != "" && routine == nil {
			log.WithFields(fields).WithField("routineId", evt.After.RoutineID).Warn("Workout references an unknown routine")
		}

		st, outcome := streak.Advance(streakState(profile), streak.Completion{
			StartedAt:     startedAt,
			CompletedAt:   completedAt,
			ScheduledDays: routine.Schedule(),
		})

		newXP := profile.XP + xpGained
		newLevel := leveling.ResolveLevel(newXP, profile.Level)
		result.XP, result.Level = newXP, newLevel
		result.LevelsGained = newLevel - max(profile.Level, 1)
		result.Streak, result.StreakOutcome = st, outcome

		update := user.Update{
			XP:                   &newXP,
			Level:                &newLevel,
			CurrentStreak:        &st.Current,
			LongestStreak:        &st.Longest,
			LastWorkoutTimestamp: &completedAt,
		}
		if st.LastScheduledCompletion != nil && st.LastScheduledDayKey != "" {
			key := st.LastScheduledDayKey.String()
			update.LastScheduledWorkoutCompletionTimestamp = st.LastScheduledCompletion
			update.LastScheduledWorkoutDayKey = &key
		}

		var unlocked *notification.Notification
		if !profile.HasAchievement(string(achievement.FirstWorkout)) {
			update.AddAchievementIDs = []string{string(achievement.FirstWorkout)}
			unlocked = notification.AchievementUnlocked(achievement.MustLookup(achievement.FirstWorkout), now)
			result.UnlockedFirstRun = true
		}

		if err := ledger.mark(ctx, tx); err != nil {
			return err
		}
		if unlocked != nil {
			if err := tx.AddNotification(ctx, evt.UserID, unlocked); err != nil {
				return err
			}
		}
		if err := tx.UpdateProfile(ctx, evt.UserID, update); err != nil {
			return err
		}
		result.Outcome = Applied
		return nil
	})
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Error updating user profile after workout")
		return nil, fmt.Errorf("failed to apply workout completion: %w", err)
	}

	if result.Outcome == Duplicate {
		log.WithFields(fields).Info("Workout completion already processed")
		return &result, nil
	}

	metrics.RecordXP("workout", result.XPGained, result.LevelsGained)
	if result.UnlockedFirstRun {
		metrics.RecordAchievement(string(achievement.FirstWorkout))
	}
	log.WithFields(fields).WithFields(log.Fields{
		"xpGained":      result.XPGained,
		"xp":            result.XP,
		"level":         result.Level,
		"currentStreak": result.Streak.Current,
		"streakOutcome": result.StreakOutcome,
	}).Info("User profile updated")
	return &result, nil
}

func streakState(p *user.Profile) streak.State {
	s := streak.State{
		Current:                 p.CurrentStreak,
		Longest:                 p.LongestStreak,
		LastScheduledCompletion: p.LastScheduledWorkoutCompletionTimestamp,
	}
	if p.LastScheduledWorkoutDayKey != nil {
		if key, err := calendar.ParseDayKey(*p.LastScheduledWorkoutDayKey); err == nil {
			s.LastScheduledDayKey = key
		}
	}
	return s
}
