package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/idset"
	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/event"
	"gymBuddyFunctions/internal/types/user"
)

// SocialService keeps the denormalised comment and follower counters in step with the
// documents they count.
type SocialService struct {
	store store.Store
}

func NewSocialService(st store.Store) *SocialService {
	return &SocialService{store: st}
}

// HandleCommentChanged adds evt.Delta to the post's comment counter. The counter never
// goes below zero.
func (s *SocialService) HandleCommentChanged(ctx context.Context, evt *event.CommentChanged) (Outcome, error) {
	kind := "commentCreated"
	if evt.Delta < 0 {
		kind = "commentDeleted"
	}
	ledger := newLedger(kind, evt.EventID)
	fields := log.Fields{"postId": evt.PostID, "commentId": evt.CommentID, "delta": evt.Delta}

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

		p, err := tx.GetPost(ctx, evt.PostID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrPostNotFound, evt.PostID)
		}
		if err != nil {
			return err
		}

		if err := ledger.mark(ctx, tx); err != nil {
			return err
		}
		if evt.Delta < 0 && p.CommentsCount+evt.Delta < 0 {
			log.WithFields(fields).Warn("Comment counter already at zero")
			outcome = Skipped
			return nil
		}
		return tx.IncrementCommentsCount(ctx, evt.PostID, evt.Delta)
	})
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Error updating comment count")
		return "", fmt.Errorf("failed to update comment count of %s: %w", evt.PostID, err)
	}
	if outcome == Applied {
		log.WithFields(fields).Info("Comment count updated")
	}
	return outcome, nil
}

// HandleFollowingChanged diffs the writer's following list. Every newly followed user
// gains a follower, every unfollowed user loses one, and the writer's followingCount is
// set to the size of the list. A deleted writer unfollows everyone.
func (s *SocialService) HandleFollowingChanged(ctx context.Context, evt *event.UserWritten) (Outcome, error) {
	var before, after []string
	if evt.Before != nil {
		before = evt.Before.Following
	}
	if evt.After != nil {
		after = evt.After.Following
	}
	beforeSet, afterSet := idset.From(before), idset.From(after)
	// Following yourself is not counted.
	delete(beforeSet, evt.UserID)
	delete(afterSet, evt.UserID)

	added := afterSet.Diff(beforeSet).Slice()
	removed := beforeSet.Diff(afterSet).Slice()
	followingCount := afterSet.Len()
	if len(added) == 0 && len(removed) == 0 {
		return Skipped, nil
	}

	ledger := newLedger("followingChanged", evt.EventID)
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

		var writer *user.Profile
		if evt.After != nil {
			writer, err = tx.GetProfile(ctx, evt.UserID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		increments := make(map[string]int, len(added)+len(removed))
		for _, uid := range added {
			if _, err := tx.GetProfile(ctx, uid); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					log.WithFields(fields).WithField("targetId", uid).Warn("Followed user not found")
					continue
				}
				return err
			}
			increments[uid] = 1
		}
		for _, uid := range removed {
			target, err := tx.GetProfile(ctx, uid)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
			if target.FollowersCount <= 0 {
				log.WithFields(fields).WithField("targetId", uid).Warn("Follower counter already at zero")
				continue
			}
			increments[uid] = -1
		}

		if err := ledger.mark(ctx, tx); err != nil {
			return err
		}
		for _, uid := range sortedKeys(increments) {
			if err := tx.IncrementFollowersCount(ctx, uid, increments[uid]); err != nil {
				return err
			}
		}
		if writer != nil && writer.FollowingCount != followingCount {
			if err := tx.UpdateProfile(ctx, evt.UserID, user.Update{FollowingCount: &followingCount}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Error updating follow counters")
		return "", fmt.Errorf("failed to update follow counters of %s: %w", evt.UserID, err)
	}
	if outcome == Applied {
		log.WithFields(fields).WithFields(log.Fields{"followed": len(added), "unfollowed": len(removed)}).Info("Follow counters updated")
	}
	return outcome, nil
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
