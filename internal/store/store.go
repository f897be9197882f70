// Package store abstracts the document database the event handlers read and write.
//
// Every read-modify-write goes through Store.RunTransaction. Inside the callback all
// reads must happen before the first write, and the callback may run more than once
// when the backend retries on contention, so it must not have side effects outside tx.
package store

import (
	"context"
	"errors"
	"time"

	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/user"
	"gymBuddyFunctions/internal/types/workout"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

type TxFunc func(ctx context.Context, tx Tx) error

type Store interface {
	RunTransaction(ctx context.Context, fn TxFunc) error

	// CreateProfile writes p only if no profile exists for p.UID; otherwise ErrAlreadyExists.
	CreateProfile(ctx context.Context, p *user.Profile) error
	GetProfile(ctx context.Context, uid string) (*user.Profile, error)
	DeleteProfile(ctx context.Context, uid string) error

	// ListDueClaims returns pending record claims whose deadline is at or before now,
	// ordered by (deadline, id), starting after the cursor when given.
	ListDueClaims(ctx context.Context, now time.Time, after *post.ClaimCursor, limit int) ([]*post.Post, error)

	// AddNotification creates n under the user. Creating an id that already exists is a no-op.
	AddNotification(ctx context.Context, uid string, n *notification.Notification) error

	Close() error
}

type Tx interface {
	EventProcessed(ctx context.Context, key string) (bool, error)
	GetProfile(ctx context.Context, uid string) (*user.Profile, error)
	ListRoutines(ctx context.Context, uid string) ([]workout.Routine, error)
	GetPost(ctx context.Context, postID string) (*post.Post, error)

	MarkEventProcessed(ctx context.Context, key, kind string) error
	UpdateProfile(ctx context.Context, uid string, u user.Update) error
	IncrementFollowersCount(ctx context.Context, uid string, delta int) error
	UpdatePost(ctx context.Context, postID string, u post.Update) error
	IncrementCommentsCount(ctx context.Context, postID string, delta int) error
	AddNotification(ctx context.Context, uid string, n *notification.Notification) error
}

// LedgerKey names the processed-event entry of one handler for one event. Several
// handlers may react to the same event, each keeps its own entry.
func LedgerKey(kind, eventID string) string {
	return kind + ":" + eventID
}
