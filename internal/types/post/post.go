package post

import (
	"math"
	"sort"
	"time"
)

const TypeRecordClaim = "recordClaim"

type ClaimStatus string

const (
	StatusPending  ClaimStatus = "PENDING"
	StatusVerified ClaimStatus = "VERIFIED"
	StatusRejected ClaimStatus = "REJECTED"
	StatusExpired  ClaimStatus = "EXPIRED"
)

// Terminal statuses are never left once written.
func (s ClaimStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected || s == StatusExpired
}

type VoteChoice string

const (
	VoteVerify  VoteChoice = "verify"
	VoteDispute VoteChoice = "dispute"
)

const (
	VotingWindow = 24 * time.Hour

	VoteRewardXP = 10

	AuthorBaseXP = 500
	AuthorMaxXP  = 1500

	// VerifyThresholdBps is the share of verify votes, in basis points, a claim needs.
	VerifyThresholdBps = 5500
)

type RecordDetails struct {
	ExerciseName string  `json:"exerciseName" firestore:"exerciseName"`
	Weight       float64 `json:"weight" firestore:"weight"`
	Reps         int     `json:"reps" firestore:"reps"`
}

// Post is a social feed entry (posts/{postId}). Record claims carry the verification fields.
type Post struct {
	ID       string `json:"id" firestore:"-"`
	AuthorID string `json:"userId" firestore:"userId"`
	Type     string `json:"type" firestore:"type"`

	RecordVerificationStatus   ClaimStatus           `json:"recordVerificationStatus,omitempty" firestore:"recordVerificationStatus,omitempty"`
	RecordVerificationDeadline *time.Time            `json:"recordVerificationDeadline,omitempty" firestore:"recordVerificationDeadline,omitempty"`
	VerificationVotes          map[string]VoteChoice `json:"verificationVotes,omitempty" firestore:"verificationVotes,omitempty"`
	VotedAndRewardedUserIDs    []string              `json:"votedAndRewardedUserIds,omitempty" firestore:"votedAndRewardedUserIds,omitempty"`
	RecordDetails              *RecordDetails        `json:"recordDetails,omitempty" firestore:"recordDetails,omitempty"`

	CommentsCount int      `json:"commentsCount" firestore:"commentsCount"`
	MediaPaths    []string `json:"mediaPaths,omitempty" firestore:"mediaPaths,omitempty"`

	CreatedAt time.Time `json:"timestamp" firestore:"timestamp"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

func (p *Post) IsRecordClaim() bool {
	return p != nil && p.Type == TypeRecordClaim
}

// Due reports whether a pending claim's voting window has closed at now.
func (p *Post) Due(now time.Time) bool {
	return p.IsRecordClaim() &&
		p.RecordVerificationStatus == StatusPending &&
		p.RecordVerificationDeadline != nil &&
		!p.RecordVerificationDeadline.After(now)
}

func (p *Post) ExerciseName() string {
	if p == nil || p.RecordDetails == nil {
		return ""
	}
	return p.RecordDetails.ExerciseName
}

// Update lists the claim fields a handler may change. Nil fields are left as stored.
type Update struct {
	Status              *ClaimStatus
	Deadline            *time.Time
	AddRewardedVoterIDs []string
}

// ClaimCursor marks the last claim of a sweep page in (deadline, id) order.
type ClaimCursor struct {
	Deadline time.Time
	ID       string
}

type Tally struct {
	Verify  int
	Dispute int
}

func (t Tally) Total() int { return t.Verify + t.Dispute }

// VerifyRatioBps is the verify share in basis points, 0 when nobody voted.
func (t Tally) VerifyRatioBps() int {
	if t.Total() == 0 {
		return 0
	}
	return t.Verify * 10000 / t.Total()
}

// TallyVotes counts the ballots. Unrecognised choices are not counted.
func TallyVotes(votes map[string]VoteChoice) Tally {
	var t Tally
	for _, v := range votes {
		switch v {
		case VoteVerify:
			t.Verify++
		case VoteDispute:
			t.Dispute++
		}
	}
	return t
}

// Resolve decides the outcome of a claim whose window has closed.
func Resolve(t Tally) ClaimStatus {
	switch {
	case t.Total() == 0:
		return StatusExpired
	case t.VerifyRatioBps() >= VerifyThresholdBps:
		return StatusVerified
	default:
		return StatusRejected
	}
}

// AuthorRewardXP is the experience granted to the author of a verified claim.
func AuthorRewardXP(d *RecordDetails) int {
	xp := AuthorBaseXP
	if d != nil && d.Weight > 0 && d.Reps > 0 {
		bonus := math.Floor(d.Weight * float64(d.Reps) / 10)
		if bonus >= AuthorMaxXP-AuthorBaseXP {
			return AuthorMaxXP
		}
		xp += int(bonus)
	}
	return xp
}

// ChangedVoters lists, sorted, the voters whose ballot in after is new or differs from before.
func ChangedVoters(before, after map[string]VoteChoice) []string {
	var changed []string
	for voter, choice := range after {
		if voter == "" {
			continue
		}
		if prev, ok := before[voter]; !ok || prev != choice {
			changed = append(changed, voter)
		}
	}
	sort.Strings(changed)
	return changed
}
