package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/metrics"
	"gymBuddyFunctions/internal/types/event"
)

// EventRouter decodes envelopes and hands them to the owning services. It is shared by
// the HTTP ingress and the Kafka consumer.
type EventRouter struct {
	users    *UserService
	workouts *WorkoutService
	claims   *RecordClaimService
	social   *SocialService
	media    *MediaService
}

func NewEventRouter(users *UserService, workouts *WorkoutService, claims *RecordClaimService, social *SocialService, media *MediaService) *EventRouter {
	return &EventRouter{users: users, workouts: workouts, claims: claims, social: social, media: media}
}

// Dispatch handles one event. Malformed envelopes come back wrapping
// event.ErrInvalidPayload. Errors caused by missing documents are logged and swallowed,
// since redelivering the same event cannot succeed. Any other error is worth a retry.
func (r *EventRouter) Dispatch(ctx context.Context, env event.Envelope) error {
	started := time.Now()
	fields := log.Fields{"eventId": env.ID, "type": env.Type}

	payload, err := event.Decode(env)
	if err != nil {
		metrics.RecordEvent(string(env.Type), metrics.OutcomeInvalid, time.Since(started))
		log.WithFields(fields).WithError(err).Warn("Rejected malformed event")
		return err
	}

	outcome, err := r.route(ctx, payload)
	switch {
	case err == nil:
		metrics.RecordEvent(string(env.Type), string(outcome), time.Since(started))
		log.WithFields(fields).WithField("outcome", outcome).Debug("Event handled")
		return nil
	case IsPermanent(err):
		metrics.RecordEvent(string(env.Type), metrics.OutcomePermanent, time.Since(started))
		log.WithFields(fields).WithError(err).Warn("Dropping event that cannot be applied")
		return nil
	default:
		metrics.RecordEvent(string(env.Type), metrics.OutcomeError, time.Since(started))
		return fmt.Errorf("event %s (%s): %w", env.ID, env.Type, err)
	}
}

func (r *EventRouter) route(ctx context.Context, payload any) (Outcome, error) {
	switch evt := payload.(type) {
	case *event.UserCreated:
		return r.users.HandleUserCreated(ctx, evt)

	case *event.UserWritten:
		// Both reactions run; each keeps its own ledger entry so a retry after a
		// partial failure re-runs only the one that did not commit.
		setup, setupErr := r.users.HandleProfileSetup(ctx, evt)
		follow, followErr := r.social.HandleFollowingChanged(ctx, evt)
		for _, err := range []error{setupErr, followErr} {
			if err != nil && !IsPermanent(err) {
				return "", err
			}
		}
		if err := errors.Join(setupErr, followErr); err != nil {
			return "", err
		}
		if setup == Applied || follow == Applied {
			return Applied, nil
		}
		if setup == Duplicate || follow == Duplicate {
			return Duplicate, nil
		}
		return Skipped, nil

	case *event.WorkoutLogUpdated:
		res, err := r.workouts.HandleWorkoutLogUpdated(ctx, evt)
		if err != nil {
			return "", err
		}
		return res.Outcome, nil

	case *event.PostCreated:
		return r.claims.HandlePostCreated(ctx, evt)

	case *event.PostUpdated:
		return r.claims.HandlePostUpdated(ctx, evt)

	case *event.PostDeleted:
		return r.media.HandlePostDeleted(ctx, evt)

	case *event.CommentChanged:
		return r.social.HandleCommentChanged(ctx, evt)
	}
	return "", fmt.Errorf("%w: no handler for %T", event.ErrInvalidPayload, payload)
}
