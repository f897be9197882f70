package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/user"
)

func TestFailedTransactionAppliesNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProfile(&user.Profile{UID: "u1", Level: 1})

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		xp := 100
		require.NoError(t, tx.UpdateProfile(ctx, "u1", user.Update{XP: &xp}))
		require.NoError(t, tx.MarkEventProcessed(ctx, "k", "workout"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, p.XP)
	assert.Zero(t, s.ProcessedEvents())
}

func TestReadAfterWriteIsRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutProfile(&user.Profile{UID: "u1"})

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.IncrementFollowersCount(ctx, "u1", 1))
		_, err := tx.GetProfile(ctx, "u1")
		return err
	})
	assert.Error(t, err)
}

func TestWritesToMissingDocumentsFail(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.IncrementCommentsCount(ctx, "nope", 1)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetProfile(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateProfileOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateProfile(ctx, &user.Profile{UID: "u1", XP: 5}))
	assert.ErrorIs(t, s.CreateProfile(ctx, &user.Profile{UID: "u1"}), store.ErrAlreadyExists)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.XP)
}

func TestListDueClaimsPagesInDeadlineOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	early, late, future := now.Add(-2*time.Hour), now.Add(-time.Hour), now.Add(time.Hour)

	claim := func(id string, deadline time.Time, status post.ClaimStatus) *post.Post {
		return &post.Post{ID: id, Type: post.TypeRecordClaim, RecordVerificationStatus: status, RecordVerificationDeadline: &deadline}
	}
	s.PutPost(claim("b", early, post.StatusPending))
	s.PutPost(claim("a", early, post.StatusPending))
	s.PutPost(claim("c", late, post.StatusPending))
	s.PutPost(claim("d", future, post.StatusPending))
	s.PutPost(claim("e", early, post.StatusVerified))
	s.PutPost(&post.Post{ID: "f", Type: "text"})

	page, err := s.ListDueClaims(ctx, now, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, err = s.ListDueClaims(ctx, now, &post.ClaimCursor{Deadline: early, ID: "b"}, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)
}

func TestAddNotificationIsIdempotentOnID(t *testing.T) {
	ctx := context.Background()
	s := New()
	n := notification.RecordExpired("p1", "Squat", time.Now())

	require.NoError(t, s.AddNotification(ctx, "u1", n))
	require.NoError(t, s.AddNotification(ctx, "u1", n))

	assert.Len(t, s.Notifications("u1"), 1)
}

func TestUpdatePostUnionsRewardedVoters(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutPost(&post.Post{ID: "p1", VotedAndRewardedUserIDs: []string{"v1"}})

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdatePost(ctx, "p1", post.Update{AddRewardedVoterIDs: []string{"v1", "v2"}})
	})
	require.NoError(t, err)

	p, err := s.Post("p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, p.VotedAndRewardedUserIDs)
}
