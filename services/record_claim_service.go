package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"gymBuddyFunctions/internal/achievement"
	"gymBuddyFunctions/internal/idset"
	"gymBuddyFunctions/internal/leveling"
	"gymBuddyFunctions/internal/metrics"
	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/event"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/user"
)

const (
	DefaultSweepPageSize    = 200
	DefaultSweepConcurrency = 8
)

type RecordClaimService struct {
	store       store.Store
	notifier    *NotificationService
	now         func() time.Time
	pageSize    int
	concurrency int
}

func NewRecordClaimService(st store.Store, notifier *NotificationService) *RecordClaimService {
	return &RecordClaimService{
		store:       st,
		notifier:    notifier,
		now:         utcNow,
		pageSize:    DefaultSweepPageSize,
		concurrency: DefaultSweepConcurrency,
	}
}

// WithSweepLimits sets the page size and the number of claims resolved in parallel.
func (s *RecordClaimService) WithSweepLimits(pageSize, concurrency int) *RecordClaimService {
	if pageSize > 0 {
		s.pageSize = pageSize
	}
	if concurrency > 0 {
		s.concurrency = concurrency
	}
	return s
}

// HandlePostCreated opens the voting window of a new record claim.
func (s *RecordClaimService) HandlePostCreated(ctx context.Context, evt *event.PostCreated) (Outcome, error) {
	if !evt.Post.IsRecordClaim() {
		return Skipped, nil
	}

	createdAt := evt.Post.CreatedAt
	if createdAt.IsZero() {
		createdAt = evt.Time
	}
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	deadline := createdAt.UTC().Add(post.VotingWindow)
	ledger := newLedger("recordClaimOpened", evt.EventID)

	outcome := Applied
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
		if p.RecordVerificationDeadline != nil || p.RecordVerificationStatus.Terminal() {
			outcome = Skipped
			return nil
		}

		pending := post.StatusPending
		if err := ledger.mark(ctx, tx); err != nil {
			return err
		}
		return tx.UpdatePost(ctx, evt.PostID, post.Update{Status: &pending, Deadline: &deadline})
	})
	if err != nil {
		return "", fmt.Errorf("failed to open record claim %s: %w", evt.PostID, err)
	}

	if outcome == Applied {
		log.WithFields(log.Fields{"postId": evt.PostID, "deadline": deadline}).Info("Record claim opened for voting")
	}
	return outcome, nil
}

// HandlePostUpdated rewards voters whose ballot is new or changed, once per voter per
// claim and only while the claim is pending.
func (s *RecordClaimService) HandlePostUpdated(ctx context.Context, evt *event.PostUpdated) (Outcome, error) {
	if !evt.After.IsRecordClaim() {
		return Skipped, nil
	}
	changed := post.ChangedVoters(evt.Before.VerificationVotes, evt.After.VerificationVotes)
	if len(changed) == 0 {
		return Skipped, nil
	}

	now := s.now()
	ledger := newLedger("recordClaimVotes", evt.EventID)
	fields := log.Fields{"postId": evt.PostID, "eventId": evt.EventID}

	var (
		outcome  Outcome
		rewarded []string
		levels   int
	)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		outcome, rewarded, levels = Applied, nil, 0

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
		if p.RecordVerificationStatus != post.StatusPending {
			outcome = Skipped
			return nil
		}

		already := idset.From(p.VotedAndRewardedUserIDs)
		type grant struct {
			uid    string
			update user.Update
		}
		var grants []grant
		for _, voter := range changed {
			if already.Has(voter) {
				continue
			}
			profile, err := tx.GetProfile(ctx, voter)
			if errors.Is(err, store.ErrNotFound) {
				log.WithFields(fields).WithField("voterId", voter).Warn("Voter profile not found, skipping reward")
				continue
			}
			if err != nil {
				return err
			}
			xp := profile.XP + post.VoteRewardXP
			level := leveling.ResolveLevel(xp, profile.Level)
			levels += level - max(profile.Level, 1)
			grants = append(grants, grant{uid: voter, update: user.Update{XP: &xp, Level: &level}})
			rewarded = append(rewarded, voter)
		}
		if len(grants) == 0 {
			outcome = Skipped
			return ledger.mark(ctx, tx)
		}

		if err := ledger.mark(ctx, tx); err != nil {
			return err
		}
		for _, g := range grants {
			if err := tx.UpdateProfile(ctx, g.uid, g.update); err != nil {
				return err
			}
			if err := tx.AddNotification(ctx, g.uid, notification.VoteReward(evt.PostID, p.ExerciseName(), post.VoteRewardXP, now)); err != nil {
				return err
			}
		}
		return tx.UpdatePost(ctx, evt.PostID, post.Update{AddRewardedVoterIDs: rewarded})
	})
	if err != nil {
		return "", fmt.Errorf("failed to reward voters of %s: %w", evt.PostID, err)
	}

	if len(rewarded) > 0 {
		metrics.RecordXP("vote", len(rewarded)*post.VoteRewardXP, levels)
		log.WithFields(fields).WithField("voters", rewarded).Info("Rewarded record claim voters")
	}
	return outcome, nil
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Scanned  int `json:"scanned"`
	Verified int `json:"verified"`
	Rejected int `json:"rejected"`
	Expired  int `json:"expired"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

func (r *SweepReport) add(status post.ClaimStatus) {
	switch status {
	case post.StatusVerified:
		r.Verified++
	case post.StatusRejected:
		r.Rejected++
	case post.StatusExpired:
		r.Expired++
	default:
		r.Skipped++
	}
}

// SweepExpiredClaims resolves every pending claim whose deadline is at or before now.
// Each claim commits on its own; a failing claim is logged and counted and does not
// stop the others.
func (s *RecordClaimService) SweepExpiredClaims(ctx context.Context, now time.Time) (*SweepReport, error) {
	started := time.Now()
	defer func() { metrics.RecordSweep(time.Since(started)) }()

	report := &SweepReport{}
	var mu sync.Mutex
	var cursor *post.ClaimCursor

	for {
		page, err := s.store.ListDueClaims(ctx, now, cursor, s.pageSize)
		if err != nil {
			return report, fmt.Errorf("failed to list due record claims: %w", err)
		}
		if len(page) == 0 {
			break
		}

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, claim := range page {
			g.Go(func() error {
				status, err := s.ResolveClaim(ctx, claim.ID, now)

				mu.Lock()
				defer mu.Unlock()
				report.Scanned++
				if err != nil {
					report.Failed++
					metrics.RecordClaimFailure()
					log.WithFields(log.Fields{"postId": claim.ID, "error": err}).Error("Failed to resolve record claim")
					return nil
				}
				report.add(status)
				return nil
			})
		}
		_ = g.Wait()

		last := page[len(page)-1]
		cursor = &post.ClaimCursor{Deadline: *last.RecordVerificationDeadline, ID: last.ID}
		if len(page) < s.pageSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	log.WithFields(log.Fields{
		"scanned":  report.Scanned,
		"verified": report.Verified,
		"rejected": report.Rejected,
		"expired":  report.Expired,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}).Info("Record claim sweep finished")
	return report, nil
}

// ResolveClaim settles one claim if it is still pending and due. It returns the status
// written, or an empty status when the claim needed no resolution.
func (s *RecordClaimService) ResolveClaim(ctx context.Context, postID string, now time.Time) (post.ClaimStatus, error) {
	var (
		resolved post.ClaimStatus
		authorID string
		notifs   []*notification.Notification
		xpGained int
		levels   int
		unlocked bool
	)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		resolved, authorID, notifs, xpGained, levels, unlocked = "", "", nil, 0, 0, false

		p, err := tx.GetPost(ctx, postID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrPostNotFound, postID)
		}
		if err != nil {
			return err
		}
		if !p.Due(now) {
			return nil
		}

		status := post.Resolve(post.TallyVotes(p.VerificationVotes))
		authorID = p.AuthorID

		var authorUpdate *user.Update
		switch status {
		case post.StatusVerified:
			profile, err := tx.GetProfile(ctx, p.AuthorID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				log.WithFields(log.Fields{"postId": postID, "authorId": p.AuthorID}).Warn("Author profile not found, resolving claim without reward")
				notifs = append(notifs, notification.RecordVerified(postID, p.ExerciseName(), 0, now))
			case err != nil:
				return err
			default:
				xpGained = post.AuthorRewardXP(p.RecordDetails)
				notifs = append(notifs, notification.RecordVerified(postID, p.ExerciseName(), xpGained, now))
				xp := profile.XP + xpGained
				level := leveling.ResolveLevel(xp, profile.Level)
				levels = level - max(profile.Level, 1)
				authorUpdate = &user.Update{XP: &xp, Level: &level}
				if !profile.HasAchievement(string(achievement.PersonalRecord)) {
					authorUpdate.AddAchievementIDs = []string{string(achievement.PersonalRecord)}
					n := notification.AchievementUnlocked(achievement.MustLookup(achievement.PersonalRecord), now)
					n.ID = notification.DeterministicID(postID, string(achievement.PersonalRecord))
					notifs = append(notifs, n)
					unlocked = true
				}
			}
		case post.StatusRejected:
			notifs = append(notifs, notification.RecordRejected(postID, p.ExerciseName(), now))
		case post.StatusExpired:
			notifs = append(notifs, notification.RecordExpired(postID, p.ExerciseName(), now))
		}

		if err := tx.UpdatePost(ctx, postID, post.Update{Status: &status}); err != nil {
			return err
		}
		if authorUpdate != nil {
			if err := tx.UpdateProfile(ctx, p.AuthorID, *authorUpdate); err != nil {
				return err
			}
		}
		resolved = status
		return nil
	})
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return "", nil
	}

	metrics.RecordClaimResolved(string(resolved))
	if xpGained > 0 {
		metrics.RecordXP("record", xpGained, levels)
	}
	if unlocked {
		metrics.RecordAchievement(string(achievement.PersonalRecord))
	}
	log.WithFields(log.Fields{"postId": postID, "status": resolved, "authorXp": xpGained}).Info("Record claim resolved")

	if authorID != "" {
		// The claim is already resolved; a failed notification is only logged.
		_ = s.notifier.Deliver(ctx, authorID, notifs...)
	}
	return resolved, nil
}
