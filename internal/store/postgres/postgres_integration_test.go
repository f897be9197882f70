//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/user"
)

func newTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("gymbuddy"),
		postgrescontainer.WithUsername("gymbuddy"),
		postgrescontainer.WithPassword("gymbuddy"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := NewPool(ctx, connStr, 10, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx), "schema must be re-appliable")
	return s, pool
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func TestProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := user.NewProfile(user.CreateProfileRequest{UID: "u1", Email: "A@B.io"}, now)
	require.NoError(t, s.CreateProfile(ctx, p))
	assert.ErrorIs(t, s.CreateProfile(ctx, p), store.ErrAlreadyExists)

	err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		xp, level, key := 260, 2, "MON"
		return tx.UpdateProfile(ctx, "u1", user.Update{
			XP:                         &xp,
			Level:                      &level,
			LastScheduledWorkoutDayKey: &key,
			AddAchievementIDs:          []string{"firstWorkout"},
		})
	})
	require.NoError(t, err)

	err = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateProfile(ctx, "u1", user.Update{AddAchievementIDs: []string{"firstWorkout", "earlyBird"}})
	})
	require.NoError(t, err)

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", *got.Email)
	assert.Equal(t, 260, got.XP)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, "MON", *got.LastScheduledWorkoutDayKey)
	assert.Equal(t, []string{"firstWorkout", "earlyBird"}, got.AchievedRewardIDs)

	require.NoError(t, s.DeleteProfile(ctx, "u1"))
	_, err = s.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDueClaimsAndClaimUpdates(t *testing.T) {
	ctx := context.Background()
	s, pool := newTestStore(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	insert := `INSERT INTO posts (id, user_id, type, record_verification_status, record_verification_deadline, verification_votes, record_details)
		VALUES ($1, 'author', 'recordClaim', $2, $3, $4, '{"exerciseName":"Squat","weight":140,"reps":3}')`
	_, err := pool.Exec(ctx, insert, "b", "PENDING", now.Add(-time.Hour), `{"v1":"verify"}`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, insert, "a", "PENDING", now.Add(-time.Hour), `{}`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, insert, "c", "PENDING", now.Add(time.Hour), `{}`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, insert, "d", "VERIFIED", now.Add(-time.Hour), `{}`)
	require.NoError(t, err)

	page, err := s.ListDueClaims(ctx, now, nil, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)

	page, err = s.ListDueClaims(ctx, now, &post.ClaimCursor{Deadline: *page[0].RecordVerificationDeadline, ID: "a"}, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, post.VoteVerify, page[0].VerificationVotes["v1"])
	assert.Equal(t, "Squat", page[0].ExerciseName())

	verified := post.StatusVerified
	err = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetPost(ctx, "b")
		if err != nil {
			return err
		}
		assert.Equal(t, post.StatusPending, p.RecordVerificationStatus)
		return tx.UpdatePost(ctx, "b", post.Update{Status: &verified, AddRewardedVoterIDs: []string{"v1", "v1"}})
	})
	require.NoError(t, err)

	page, err = s.ListDueClaims(ctx, now, nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)
}

func TestConcurrentLedgerWritesApplyOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.CreateProfile(ctx, user.NewProfile(user.CreateProfileRequest{UID: "u1"}, time.Now())))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
				done, err := tx.EventProcessed(ctx, "follow:evt-1")
				if err != nil || done {
					return err
				}
				if err := tx.MarkEventProcessed(ctx, "follow:evt-1", "follow"); err != nil {
					return err
				}
				return tx.IncrementFollowersCount(ctx, "u1", 1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.FollowersCount)
}

func TestNotificationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s, pool := newTestStore(t)
	n := notification.RecordExpired("p1", "", time.Now())

	require.NoError(t, s.AddNotification(ctx, "u1", n))
	require.NoError(t, s.AddNotification(ctx, "u1", n))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = 'u1'`).Scan(&count))
	assert.Equal(t, 1, count)
}
