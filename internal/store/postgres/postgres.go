// Package postgres implements the store on PostgreSQL with pgx.
//
// Transactions run at SERIALIZABLE isolation and are retried on serialization
// failures, which gives handlers the same contract as Firestore transactions.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/user"
	"gymBuddyFunctions/internal/types/workout"
)

//go:embed schema.sql
var schema string

const (
	defaultMaxAttempts = 5
	retryBackoff       = 25 * time.Millisecond

	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"

	processedEventsPKey = "processed_events_pkey"
)

type Store struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, maxAttempts: defaultMaxAttempts}
}

// NewPool opens a pool sized like the API's and verifies the connection.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn store.TxFunc) error {
	for attempt := 1; ; attempt++ {
		err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, &txn{tx: tx})
		})
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt >= s.maxAttempts {
			return err
		}

		log.WithFields(log.Fields{"attempt": attempt, "error": err}).Debug("Retrying conflicting transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
}

// retryable reports conflicts a fresh attempt can resolve. A duplicate ledger entry
// means a concurrent delivery of the same event won; the retry observes it and skips.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case serializationFailure, deadlockDetected:
		return true
	case uniqueViolation:
		return pgErr.ConstraintName == processedEventsPKey
	}
	return false
}

func (s *Store) CreateProfile(ctx context.Context, p *user.Profile) error {
	query := `
		INSERT INTO users (uid, email, display_name, profile_picture_url, username, xp, level,
			achieved_reward_ids, profile_setup_complete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		p.UID, p.Email, p.DisplayName, p.ProfilePictureURL, p.Username, p.XP, p.Level,
		nonNil(p.AchievedRewardIDs), p.ProfileSetupComplete, p.CreatedAt, p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("profile %s: %w", p.UID, store.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create profile %s: %w", p.UID, err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*user.Profile, error) {
	return scanProfile(uid, s.pool.QueryRow(ctx, selectProfile+` WHERE uid = $1`, uid))
}

func (s *Store) DeleteProfile(ctx context.Context, uid string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE uid = $1`, uid); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", uid, err)
	}
	return nil
}

func (s *Store) ListDueClaims(ctx context.Context, now time.Time, after *post.ClaimCursor, limit int) ([]*post.Post, error) {
	var (
		afterDeadline *time.Time
		afterID       string
	)
	if after != nil {
		afterDeadline, afterID = &after.Deadline, after.ID
	}
	if limit <= 0 {
		limit = 500
	}

	query := selectPost + `
		WHERE type = $1 AND record_verification_status = $2 AND record_verification_deadline <= $3
		  AND ($4::timestamptz IS NULL OR (record_verification_deadline, id) > ($4::timestamptz, $5::text))
		ORDER BY record_verification_deadline, id
		LIMIT $6
	`
	rows, err := s.pool.Query(ctx, query, post.TypeRecordClaim, string(post.StatusPending), now, afterDeadline, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due claims: %w", err)
	}
	defer rows.Close()

	var claims []*post.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due claims: %w", err)
	}
	return claims, nil
}

func (s *Store) AddNotification(ctx context.Context, uid string, n *notification.Notification) error {
	return insertNotification(ctx, s.pool, uid, n)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertNotification(ctx context.Context, db execer, uid string, n *notification.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, title_loc_key, message, message_loc_key,
			message_loc_args, timestamp, is_read, icon_name, related_entity_id, related_entity_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	var ts *time.Time
	if !n.Timestamp.IsZero() {
		ts = &n.Timestamp
	}
	_, err := db.Exec(ctx, query,
		n.ID, uid, string(n.Type), n.Title, n.TitleLocKey, n.Message, n.MessageLocKey,
		nonNil(n.MessageLocArgs), ts, n.IsRead, n.IconName, n.RelatedEntityID, n.RelatedEntityType,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification %s for %s: %w", n.ID, uid, err)
	}
	return nil
}

const selectProfile = `
	SELECT uid, email, display_name, profile_picture_url, username, gender, date_of_birth,
		height_cm, weight_kg, fitness_goal, activity_level, xp, level, current_streak, longest_streak,
		last_workout_at, last_scheduled_workout_completion_at, last_scheduled_workout_day_key,
		followers_count, following_count, following, achieved_reward_ids, profile_setup_complete,
		created_at, updated_at
	FROM users`

func scanProfile(uid string, row pgx.Row) (*user.Profile, error) {
	var p user.Profile
	err := row.Scan(
		&p.UID, &p.Email, &p.DisplayName, &p.ProfilePictureURL, &p.Username, &p.Gender, &p.DateOfBirth,
		&p.HeightCm, &p.WeightKg, &p.FitnessGoal, &p.ActivityLevel, &p.XP, &p.Level, &p.CurrentStreak, &p.LongestStreak,
		&p.LastWorkoutTimestamp, &p.LastScheduledWorkoutCompletionTimestamp, &p.LastScheduledWorkoutDayKey,
		&p.FollowersCount, &p.FollowingCount, &p.Following, &p.AchievedRewardIDs, &p.ProfileSetupComplete,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", uid, err)
	}
	return &p, nil
}

const selectPost = `
	SELECT id, user_id, type, record_verification_status, record_verification_deadline,
		verification_votes, voted_and_rewarded_user_ids, record_details, comments_count,
		media_paths, created_at, updated_at
	FROM posts`

func scanPost(row pgx.Row) (*post.Post, error) {
	var (
		p       post.Post
		status  *string
		votes   []byte
		details []byte
	)
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Type, &status, &p.RecordVerificationDeadline,
		&votes, &p.VotedAndRewardedUserIDs, &details, &p.CommentsCount,
		&p.MediaPaths, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if status != nil {
		p.RecordVerificationStatus = post.ClaimStatus(*status)
	}
	if len(votes) > 0 {
		if err := json.Unmarshal(votes, &p.VerificationVotes); err != nil {
			return nil, fmt.Errorf("failed to decode votes of post %s: %w", p.ID, err)
		}
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &p.RecordDetails); err != nil {
			return nil, fmt.Errorf("failed to decode record details of post %s: %w", p.ID, err)
		}
	}
	return &p, nil
}

type txn struct {
	tx pgx.Tx
}

func (t *txn) EventProcessed(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_events WHERE id = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to read processed event %s: %w", key, err)
	}
	return exists, nil
}

func (t *txn) GetProfile(ctx context.Context, uid string) (*user.Profile, error) {
	return scanProfile(uid, t.tx.QueryRow(ctx, selectProfile+` WHERE uid = $1 FOR UPDATE`, uid))
}

func (t *txn) ListRoutines(ctx context.Context, uid string) ([]workout.Routine, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, user_id, name, scheduled_days FROM user_routines WHERE user_id = $1 ORDER BY id`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query routines of %s: %w", uid, err)
	}
	defer rows.Close()

	var routines []workout.Routine
	for rows.Next() {
		var r workout.Routine
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.ScheduledDays); err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		routines = append(routines, r)
	}
	return routines, rows.Err()
}

func (t *txn) GetPost(ctx context.Context, postID string) (*post.Post, error) {
	p, err := scanPost(t.tx.QueryRow(ctx, selectPost+` WHERE id = $1 FOR UPDATE`, postID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", postID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post %s: %w", postID, err)
	}
	return p, nil
}

func (t *txn) MarkEventProcessed(ctx context.Context, key, kind string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO processed_events (id, kind) VALUES ($1, $2)`, key, kind)
	return err
}

func (t *txn) UpdateProfile(ctx context.Context, uid string, u user.Update) error {
	query := `
		UPDATE users SET
			xp = COALESCE($2, xp),
			level = COALESCE($3, level),
			current_streak = COALESCE($4, current_streak),
			longest_streak = COALESCE($5, longest_streak),
			last_workout_at = COALESCE($6, last_workout_at),
			last_scheduled_workout_completion_at = COALESCE($7, last_scheduled_workout_completion_at),
			last_scheduled_workout_day_key = COALESCE($8, last_scheduled_workout_day_key),
			following_count = COALESCE($9, following_count),
			achieved_reward_ids = achieved_reward_ids || ARRAY(
				SELECT a FROM unnest($10::text[]) AS a WHERE a <> ALL(achieved_reward_ids)
			),
			updated_at = NOW()
		WHERE uid = $1
	`
	tag, err := t.tx.Exec(ctx, query, uid,
		u.XP, u.Level, u.CurrentStreak, u.LongestStreak,
		u.LastWorkoutTimestamp, u.LastScheduledWorkoutCompletionTimestamp, u.LastScheduledWorkoutDayKey,
		u.FollowingCount, u.AddAchievementIDs,
	)
	return affected(tag, err, "profile", uid)
}

func (t *txn) IncrementFollowersCount(ctx context.Context, uid string, delta int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET followers_count = followers_count + $2, updated_at = NOW() WHERE uid = $1`, uid, delta)
	return affected(tag, err, "profile", uid)
}

func (t *txn) UpdatePost(ctx context.Context, postID string, u post.Update) error {
	var status *string
	if u.Status != nil {
		s := string(*u.Status)
		status = &s
	}
	query := `
		UPDATE posts SET
			record_verification_status = COALESCE($2, record_verification_status),
			record_verification_deadline = COALESCE($3, record_verification_deadline),
			voted_and_rewarded_user_ids = voted_and_rewarded_user_ids || ARRAY(
				SELECT v FROM unnest($4::text[]) AS v WHERE v <> ALL(voted_and_rewarded_user_ids)
			),
			updated_at = NOW()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, query, postID, status, u.Deadline, u.AddRewardedVoterIDs)
	return affected(tag, err, "post", postID)
}

func (t *txn) IncrementCommentsCount(ctx context.Context, postID string, delta int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE posts SET comments_count = comments_count + $2, updated_at = NOW() WHERE id = $1`, postID, delta)
	return affected(tag, err, "post", postID)
}

func (t *txn) AddNotification(ctx context.Context, uid string, n *notification.Notification) error {
	return insertNotification(ctx, t.tx, uid, n)
}

func affected(tag pgconn.CommandTag, err error, kind, id string) error {
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
