package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymBuddyFunctions/internal/achievement"
	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/store/memory"
	"gymBuddyFunctions/internal/types/event"
	"gymBuddyFunctions/internal/types/user"
)

func newUserService(st *memory.Store) *UserService {
	svc := NewUserService(st)
	svc.now = fixedClock(testNow)
	return svc
}

func TestUserCreatedWritesDefaultProfileOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newUserService(st)

	outcome, err := svc.HandleUserCreated(ctx, &event.UserCreated{EventID: "e1", UID: "u1", Email: "New@Gym.App", PhotoURL: "https://p"})
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	p, err := st.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@gym.app", *p.Email)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, testNow, p.CreatedAt)

	outcome, err = svc.HandleUserCreated(ctx, &event.UserCreated{EventID: "e2", UID: "u1", Email: "other@gym.app"})
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)

	p, err = st.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@gym.app", *p.Email)
}

func TestCreateProfileRequiresUID(t *testing.T) {
	_, err := newUserService(memory.New()).CreateProfile(context.Background(), user.CreateProfileRequest{})
	assert.True(t, IsPermanent(err))
}

func TestDeleteProfile(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedProfile(st, "u1")

	require.NoError(t, newUserService(st).DeleteProfile(ctx, "u1"))
	_, err := st.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProfileSetupUnlocksEarlyBirdOnce(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	seedProfile(st, "u1")
	svc := newUserService(st)

	setup := &event.UserWritten{
		EventID: "e1",
		UserID:  "u1",
		Before:  &event.ProfileSnapshot{ProfileSetupComplete: false},
		After:   &event.ProfileSnapshot{ProfileSetupComplete: true},
	}
	outcome, err := svc.HandleProfileSetup(ctx, setup)
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	p, err := st.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{string(achievement.EarlyBird)}, p.AchievedRewardIDs)

	notifs := st.Notifications("u1")
	require.Len(t, notifs, 1)
	assert.Equal(t, "Profile Setup Complete!", notifs[0].Title)
	assert.Equal(t, "auto_awesome", notifs[0].IconName)

	// A second flip, e.g. after the client reset the flag, does not award it again.
	setup.EventID = "e2"
	outcome, err = svc.HandleProfileSetup(ctx, setup)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Len(t, st.Notifications("u1"), 1)

	outcome, err = svc.HandleProfileSetup(ctx, &event.UserWritten{
		EventID: "e3",
		UserID:  "u1",
		Before:  &event.ProfileSnapshot{ProfileSetupComplete: true},
		After:   &event.ProfileSnapshot{ProfileSetupComplete: true},
	})
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
}
