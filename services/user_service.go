package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/achievement"
	"gymBuddyFunctions/internal/metrics"
	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/event"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/user"
)

type UserService struct {
	store store.Store
	now   func() time.Time
}

func NewUserService(st store.Store) *UserService {
	return &UserService{store: st, now: utcNow}
}

// CreateProfile writes the default profile for a new account. An existing profile is
// left untouched.
func (s *UserService) CreateProfile(ctx context.Context, req user.CreateProfileRequest) (Outcome, error) {
	if req.UID == "" {
		return "", fmt.Errorf("%w: profile without uid", event.ErrInvalidPayload)
	}

	err := s.store.CreateProfile(ctx, user.NewProfile(req, s.now()))
	if errors.Is(err, store.ErrAlreadyExists) {
		log.WithField("uid", req.UID).Warn("User profile already exists. Skipping creation")
		return Skipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create profile: %w", err)
	}

	log.WithField("uid", req.UID).Info("User profile created")
	return Applied, nil
}

func (s *UserService) HandleUserCreated(ctx context.Context, evt *event.UserCreated) (Outcome, error) {
	return s.CreateProfile(ctx, user.CreateProfileRequest{
		UID:         evt.UID,
		Email:       evt.Email,
		DisplayName: evt.DisplayName,
		PhotoURL:    evt.PhotoURL,
	})
}

func (s *UserService) DeleteProfile(ctx context.Context, uid string) error {
	if err := s.store.DeleteProfile(ctx, uid); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	log.WithField("uid", uid).Info("User profile deleted")
	return nil
}

// HandleProfileSetup unlocks the EarlyBird achievement when profileSetupComplete flips
// to true.
func (s *UserService) HandleProfileSetup(ctx context.Context, evt *event.UserWritten) (Outcome, error) {
	if evt.After == nil || !evt.After.ProfileSetupComplete {
		return Skipped, nil
	}
	if evt.Before != nil && evt.Before.ProfileSetupComplete {
		return Skipped, nil
	}

	now := s.now()
	ledger := newLedger("profileSetupCompleted", evt.EventID)
	fields := log.Fields{"userId": evt.UserID, "eventId": evt.EventID}

	var outcome Outcome
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		outcome = Applied
		seen, err := ledger.seen(ctx, tx)
		if err != nil {
			return err
		}
		if seen {
			outcome = Duplicate
			return nil
		}

		profile, err := tx.GetProfile(ctx, evt.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, evt.UserID)
		}
		if err != nil {
			return err
		}

		if err := ledger.mark(ctx, tx); err != nil {
			return err
		}
		if profile.HasAchievement(string(achievement.EarlyBird)) {
			outcome = Skipped
			return nil
		}

		unlocked := notification.AchievementUnlocked(achievement.MustLookup(achievement.EarlyBird), now)
		if err := tx.AddNotification(ctx, evt.UserID, unlocked); err != nil {
			return err
		}
		return tx.UpdateProfile(ctx, evt.UserID, user.Update{AddAchievementIDs: []string{string(achievement.EarlyBird)}})
	})
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Error awarding EarlyBird achievement")
		return "", fmt.Errorf("failed to award profile setup achievement: %w", err)
	}

	if outcome == Applied {
		metrics.RecordAchievement(string(achievement.EarlyBird))
		log.WithFields(fields).Info("Achievement earned: EarlyBird")
	}
	return outcome, nil
}
