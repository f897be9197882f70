// Package memory is an in-process store used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gymBuddyFunctions/internal/idset"
	"gymBuddyFunctions/internal/store"
	"gymBuddyFunctions/internal/types/notification"
	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/user"
	"gymBuddyFunctions/internal/types/workout"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	profiles      map[string]*user.Profile
	routines      map[string]workout.Routine
	posts         map[string]*post.Post
	notifications map[string][]*notification.Notification
	processed     map[string]string
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		profiles:      make(map[string]*user.Profile),
		routines:      make(map[string]workout.Routine),
		posts:         make(map[string]*post.Post),
		notifications: make(map[string][]*notification.Notification),
		processed:     make(map[string]string),
	}
}

// RunTransaction runs fn while holding the store lock. Writes are staged and applied
// only when fn returns nil.
func (s *Store) RunTransaction(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{s: s}
	if err := fn(ctx, t); err != nil {
		return err
	}
	for _, apply := range t.writes {
		apply()
	}
	return nil
}

func (s *Store) CreateProfile(_ context.Context, p *user.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.UID]; ok {
		return store.ErrAlreadyExists
	}
	s.profiles[p.UID] = p.Clone()
	return nil
}

func (s *Store) GetProfile(_ context.Context, uid string) (*user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile(uid)
}

func (s *Store) DeleteProfile(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, uid)
	return nil
}

func (s *Store) ListDueClaims(_ context.Context, now time.Time, after *post.ClaimCursor, limit int) ([]*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*post.Post
	for _, p := range s.posts {
		if !p.Due(now) {
			continue
		}
		if after != nil && !cursorBefore(*after, p) {
			continue
		}
		due = append(due, clonePost(p))
	}
	sort.Slice(due, func(i, j int) bool {
		di, dj := *due[i].RecordVerificationDeadline, *due[j].RecordVerificationDeadline
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func cursorBefore(c post.ClaimCursor, p *post.Post) bool {
	d := *p.RecordVerificationDeadline
	return d.After(c.Deadline) || (d.Equal(c.Deadline) && p.ID > c.ID)
}

func (s *Store) AddNotification(_ context.Context, uid string, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addNotification(uid, n)
	return nil
}

func (s *Store) Close() error { return nil }

// PutProfile, PutRoutine and PutPost seed documents the handlers expect clients to write.

func (s *Store) PutProfile(p *user.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UID] = p.Clone()
}

func (s *Store) PutRoutine(r workout.Routine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ScheduledDays = append([]string(nil), r.ScheduledDays...)
	s.routines[r.ID] = r
}

func (s *Store) PutPost(p *post.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = clonePost(p)
}

func (s *Store) Post(id string) (*post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.post(id)
}

// Notifications returns the user's notifications in creation order.
func (s *Store) Notifications(uid string) []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notification.Notification, 0, len(s.notifications[uid]))
	for _, n := range s.notifications[uid] {
		c := *n
		out = append(out, &c)
	}
	return out
}

func (s *Store) ProcessedEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

func (s *Store) profile(uid string) (*user.Profile, error) {
	p, ok := s.profiles[uid]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *Store) post(id string) (*post.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, store.ErrNotFound)
	}
	return clonePost(p), nil
}

func (s *Store) addNotification(uid string, n *notification.Notification) {
	for _, existing := range s.notifications[uid] {
		if existing.ID == n.ID {
			return
		}
	}
	c := *n
	c.MessageLocArgs = append([]string(nil), n.MessageLocArgs...)
	s.notifications[uid] = append(s.notifications[uid], &c)
}

func clonePost(p *post.Post) *post.Post {
	c := *p
	if p.RecordVerificationDeadline != nil {
		d := *p.RecordVerificationDeadline
		c.RecordVerificationDeadline = &d
	}
	if p.VerificationVotes != nil {
		c.VerificationVotes = make(map[string]post.VoteChoice, len(p.VerificationVotes))
		for k, v := range p.VerificationVotes {
			c.VerificationVotes[k] = v
		}
	}
	if p.RecordDetails != nil {
		d := *p.RecordDetails
		c.RecordDetails = &d
	}
	c.VotedAndRewardedUserIDs = append([]string(nil), p.VotedAndRewardedUserIDs...)
	c.MediaPaths = append([]string(nil), p.MediaPaths...)
	return &c
}

// txn reads committed state and queues writes. Validation that would make the commit
// fail happens while staging so a failing transaction leaves nothing behind.
type txn struct {
	s       *Store
	writes  []func()
	writing bool
}

func (t *txn) read() error {
	if t.writing {
		return fmt.Errorf("memory store: read after write in transaction")
	}
	return nil
}

func (t *txn) stage(apply func()) {
	t.writing = true
	t.writes = append(t.writes, apply)
}

func (t *txn) EventProcessed(_ context.Context, key string) (bool, error) {
	if err := t.read(); err != nil {
		return false, err
	}
	_, ok := t.s.processed[key]
	return ok, nil
}

func (t *txn) GetProfile(_ context.Context, uid string) (*user.Profile, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	return t.s.profile(uid)
}

func (t *txn) ListRoutines(_ context.Context, uid string) ([]workout.Routine, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	var out []workout.Routine
	for _, r := range t.s.routines {
		if r.UserID == uid {
			r.ScheduledDays = append([]string(nil), r.ScheduledDays...)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *txn) GetPost(_ context.Context, postID string) (*post.Post, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	return t.s.post(postID)
}

func (t *txn) MarkEventProcessed(_ context.Context, key, kind string) error {
	if _, ok := t.s.processed[key]; ok {
		return fmt.Errorf("event %s: %w", key, store.ErrAlreadyExists)
	}
	t.stage(func() { t.s.processed[key] = kind })
	return nil
}

func (t *txn) UpdateProfile(_ context.Context, uid string, u user.Update) error {
	if _, ok := t.s.profiles[uid]; !ok {
		return fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	t.stage(func() { t.s.profiles[uid].Apply(u, t.s.now()) })
	return nil
}

func (t *txn) IncrementFollowersCount(_ context.Context, uid string, delta int) error {
	if _, ok := t.s.profiles[uid]; !ok {
		return fmt.Errorf("profile %s: %w", uid, store.ErrNotFound)
	}
	t.stage(func() {
		p := t.s.profiles[uid]
		p.FollowersCount += delta
		p.UpdatedAt = t.s.now()
	})
	return nil
}

func (t *txn) UpdatePost(_ context.Context, postID string, u post.Update) error {
	if _, ok := t.s.posts[postID]; !ok {
		return fmt.Errorf("post %s: %w", postID, store.ErrNotFound)
	}
	t.stage(func() {
		p := t.s.posts[postID]
		if u.Status != nil {
			p.RecordVerificationStatus = *u.Status
		}
		if u.Deadline != nil {
			d := *u.Deadline
			p.RecordVerificationDeadline = &d
		}
		p.VotedAndRewardedUserIDs = idset.AppendMissing(p.VotedAndRewardedUserIDs, u.AddRewardedVoterIDs...)
		p.UpdatedAt = t.s.now()
	})
	return nil
}

func (t *txn) IncrementCommentsCount(_ context.Context, postID string, delta int) error {
	if _, ok := t.s.posts[postID]; !ok {
		return fmt.Errorf("post %s: %w", postID, store.ErrNotFound)
	}
	t.stage(func() {
		p := t.s.posts[postID]
		p.CommentsCount += delta
		p.UpdatedAt = t.s.now()
	})
	return nil
}

func (t *txn) AddNotification(_ context.Context, uid string, n *notification.Notification) error {
	t.stage(func() { t.s.addNotification(uid, n) })
	return nil
}
