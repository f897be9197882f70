package services

import (
	"context"
	"errors"
	"time"

	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/event"
)

var (
	ErrProfileNotFound = errors.New("user profile not found")
	ErrPostNotFound    = errors.New("post not found")
)

// IsPermanent reports errors a redelivery of the same event cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, event.ErrInvalidPayload)
}

// Outcome tells the caller what a handler did with an event.
type Outcome string

const (
	Applied   Outcome = "ok"
	Skipped   Outcome = "skipped"
	Duplicate Outcome = "duplicate"
)

func utcNow() time.Time { return time.Now().UTC() }

// ledger guards a handler against applying the same event twice. The check and the
// mark run inside the handler's transaction, so the effect and the mark commit together.
type ledger struct {
	key  string
	kind string
}

func newLedger(kind, eventID string) ledger {
	if eventID == "" {
		return ledger{kind: kind}
	}
	return ledger{key: store.LedgerKey(kind, eventID), kind: kind}
}

func (l ledger) seen(ctx context.Context, tx store.Tx) (bool, error) {
	if l.key == "" {
		return false, nil
	}
	return tx.EventProcessed(ctx, l.key)
}

func (l ledger) mark(ctx context.Context, tx store.Tx) error {
	if l.key == "" {
		return nil
	}
	return tx.MarkEventProcessed(ctx, l.key, l.kind)
}
