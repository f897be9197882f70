// Package firestore implements the store on Cloud Firestore through the Firebase Admin SDK.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/user"
	"gymBuddyFunctions/internal/types/workout"
)

const (
	usersCollection           = "users"
	routinesCollection        = "userRoutines"
	postsCollection           = "posts"
	notificationsCollection   = "notifications"
	processedEventsCollection = "processedEvents"
)

type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// NewFromApp opens the Firestore client of the default database of app.
func NewFromApp(ctx context.Context, app *firebase.App) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open firestore client: %w", err)
	}
	return New(client), nil
}

// RunTransaction uses the client's optimistic transactions, which retry fn on contention.
func (s *Store) RunTransaction(ctx context.Context, fn store.TxFunc) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &txn{client: s.client, tx: tx})
	})
}

func (s *Store) CreateProfile(ctx context.Context, p *user.Profile) error {
	_, err := s.users().Doc(p.UID).Create(ctx, p)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("profile %s: %w", p.UID, store.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create profile %s: %w", p.UID, err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, uid string) (*user.Profile, error) {
	snap, err := s.users().Doc(uid).Get(ctx)
	return decodeProfile(uid, snap, err)
}

func (s *Store) DeleteProfile(ctx context.Context, uid string) error {
	if _, err := s.users().Doc(uid).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", uid, err)
	}
	return nil
}

func (s *Store) ListDueClaims(ctx context.Context, now time.Time, after *post.ClaimCursor, limit int) ([]*post.Post, error) {
	q := s.client.Collection(postsCollection).
		Where("type", "==", post.TypeRecordClaim).
		Where("recordVerificationStatus", "==", string(post.StatusPending)).
		Where("recordVerificationDeadline", "<=", now).
		OrderBy("recordVerificationDeadline", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
	if after != nil {
		q = q.StartAfter(after.Deadline, after.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var claims []*post.Post
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query due claims: %w", err)
		}
		p, err := decodePost(snap)
		if err != nil {
			return nil, err
		}
		claims = append(claims, p)
	}
	return claims, nil
}

func (s *Store) AddNotification(ctx context.Context, uid string, n *notification.Notification) error {
	_, err := s.notifications(uid).Doc(n.ID).Create(ctx, n)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create notification %s for %s: %w", n.ID, uid, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) users() *firestore.CollectionRef {
	return s.client.Collection(usersCollection)
}

func (s *Store) notifications(uid string) *firestore.CollectionRef {
	return s.users().Doc(uid).Collection(notificationsCollection)
}

func decodeProfile(uid string, snap *firestore.DocumentSnapshot, err error) (*user.Profile, error) {
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", uid, err)
	}
	var p user.Profile
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", uid, err)
	}
	if p.UID == "" {
		p.UID = uid
	}
	if p.Level < 1 {
		p.Level = 1
	}
	return &p, nil
}

func decodePost(snap *firestore.DocumentSnapshot) (*post.Post, error) {
	var p post.Post
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode post %s: %w", snap.Ref.ID, err)
	}
	p.ID = snap.Ref.ID
	return &p, nil
}

type txn struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func (t *txn) EventProcessed(_ context.Context, key string) (bool, error) {
	_, err := t.tx.Get(t.client.Collection(processedEventsCollection).Doc(key))
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read processed event %s: %w", key, err)
	}
	return true, nil
}

func (t *txn) GetProfile(_ context.Context, uid string) (*user.Profile, error) {
	snap, err := t.tx.Get(t.client.Collection(usersCollection).Doc(uid))
	return decodeProfile(uid, snap, err)
}

func (t *txn) ListRoutines(_ context.Context, uid string) ([]workout.Routine, error) {
	q := t.client.Collection(routinesCollection).Where("userId", "==", uid)
	snaps, err := t.tx.Documents(q).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query routines of %s: %w", uid, err)
	}
	routines := make([]workout.Routine, 0, len(snaps))
	for _, snap := range snaps {
		var r workout.Routine
		if err := snap.DataTo(&r); err != nil {
			return nil, fmt.Errorf("failed to decode routine %s: %w", snap.Ref.ID, err)
		}
		r.ID = snap.Ref.ID
		routines = append(routines, r)
	}
	return routines, nil
}

func (t *txn) GetPost(_ context.Context, postID string) (*post.Post, error) {
	snap, err := t.tx.Get(t.client.Collection(postsCollection).Doc(postID))
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("post %s: %w", postID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post %s: %w", postID, err)
	}
	return decodePost(snap)
}

func (t *txn) MarkEventProcessed(_ context.Context, key, kind string) error {
	return t.tx.Create(t.client.Collection(processedEventsCollection).Doc(key), map[string]interface{}{
		"kind":        kind,
		"processedAt": firestore.ServerTimestamp,
	})
}

func (t *txn) UpdateProfile(_ context.Context, uid string, u user.Update) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}}
	if u.XP != nil {
		updates = append(updates, firestore.Update{Path: "xp", Value: *u.XP})
	}
	if u.Level != nil {
		updates = append(updates, firestore.Update{Path: "level", Value: *u.Level})
	}
	if u.CurrentStreak != nil {
		updates = append(updates, firestore.Update{Path: "currentStreak", Value: *u.CurrentStreak})
	}
	if u.LongestStreak != nil {
		updates = append(updates, firestore.Update{Path: "longestStreak", Value: *u.LongestStreak})
	}
	if u.LastWorkoutTimestamp != nil {
		updates = append(updates, firestore.Update{Path: "lastWorkoutTimestamp", Value: *u.LastWorkoutTimestamp})
	}
	if u.LastScheduledWorkoutCompletionTimestamp != nil {
		updates = append(updates, firestore.Update{Path: "lastScheduledWorkoutCompletionTimestamp", Value: *u.LastScheduledWorkoutCompletionTimestamp})
	}
	if u.LastScheduledWorkoutDayKey != nil {
		updates = append(updates, firestore.Update{Path: "lastScheduledWorkoutDayKey", Value: *u.LastScheduledWorkoutDayKey})
	}
	if u.FollowingCount != nil {
		updates = append(updates, firestore.Update{Path: "followingCount", Value: *u.FollowingCount})
	}
	if len(u.AddAchievementIDs) > 0 {
		updates = append(updates, firestore.Update{Path: "achievedRewardIds", Value: firestore.ArrayUnion(toInterfaces(u.AddAchievementIDs)...)})
	}
	return t.tx.Update(t.client.Collection(usersCollection).Doc(uid), updates)
}

func (t *txn) IncrementFollowersCount(_ context.Context, uid string, delta int) error {
	return t.tx.Update(t.client.Collection(usersCollection).Doc(uid), []firestore.Update{
		{Path: "followersCount", Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

func (t *txn) UpdatePost(_ context.Context, postID string, u post.Update) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}}
	if u.Status != nil {
		updates = append(updates, firestore.Update{Path: "recordVerificationStatus", Value: string(*u.Status)})
	}
	if u.Deadline != nil {
		updates = append(updates, firestore.Update{Path: "recordVerificationDeadline", Value: *u.Deadline})
	}
	if len(u.AddRewardedVoterIDs) > 0 {
		updates = append(updates, firestore.Update{Path: "votedAndRewardedUserIds", Value: firestore.ArrayUnion(toInterfaces(u.AddRewardedVoterIDs)...)})
	}
	return t.tx.Update(t.client.Collection(postsCollection).Doc(postID), updates)
}

func (t *txn) IncrementCommentsCount(_ context.Context, postID string, delta int) error {
	return t.tx.Update(t.client.Collection(postsCollection).Doc(postID), []firestore.Update{
		{Path: "commentsCount", Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

func (t *txn) AddNotification(_ context.Context, uid string, n *notification.Notification) error {
	ref := t.client.Collection(usersCollection).Doc(uid).Collection(notificationsCollection).Doc(n.ID)
	return t.tx.Create(ref, n)
}

func toInterfaces(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
