package post

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ballots(verify, dispute int) map[string]VoteChoice {
	votes := make(map[string]VoteChoice, verify+dispute)
	for i := 0; i < verify; i++ {
		votes[fmt.Sprintf("v%d", i)] = VoteVerify
	}
	for i := 0; i < dispute; i++ {
		votes[fmt.Sprintf("d%d", i)] = VoteDispute
	}
	return votes
}

func TestResolve(t *testing.T) {
	tests := []struct {
		verify, dispute int
		want            ClaimStatus
	}{
		{0, 0, StatusExpired},
		{10, 8, StatusVerified},
		{10, 9, StatusRejected},
		{11, 9, StatusVerified},
		{1, 0, StatusVerified},
		{0, 1, StatusRejected},
		{1, 1, StatusRejected},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d", tt.verify, tt.dispute), func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(TallyVotes(ballots(tt.verify, tt.dispute))))
		})
	}
}

func TestTallyIgnoresUnknownChoices(t *testing.T) {
	tally := TallyVotes(map[string]VoteChoice{"a": VoteVerify, "b": "maybe", "c": VoteDispute})

	assert.Equal(t, Tally{Verify: 1, Dispute: 1}, tally)
	assert.Equal(t, 5000, tally.VerifyRatioBps())
	assert.Equal(t, 0, Tally{}.VerifyRatioBps())
}

func TestAuthorRewardXP(t *testing.T) {
	assert.Equal(t, 500, AuthorRewardXP(nil))
	assert.Equal(t, 500, AuthorRewardXP(&RecordDetails{Weight: -20, Reps: 5}))
	assert.Equal(t, 550, AuthorRewardXP(&RecordDetails{Weight: 100, Reps: 5}))
	assert.Equal(t, 512, AuthorRewardXP(&RecordDetails{Weight: 12.5, Reps: 10}))
	assert.Equal(t, 1500, AuthorRewardXP(&RecordDetails{Weight: 250, Reps: 40}))
	assert.Equal(t, 1500, AuthorRewardXP(&RecordDetails{Weight: 1e9, Reps: 1e6}))
}

func TestChangedVoters(t *testing.T) {
	before := map[string]VoteChoice{"alice": VoteVerify, "bob": VoteDispute}
	after := map[string]VoteChoice{"alice": VoteVerify, "bob": VoteVerify, "carol": VoteDispute}

	assert.Equal(t, []string{"bob", "carol"}, ChangedVoters(before, after))
	assert.Empty(t, ChangedVoters(after, after))
	assert.Equal(t, []string{"alice", "bob", "carol"}, ChangedVoters(nil, after))
}

func TestDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	deadline := now
	p := &Post{Type: TypeRecordClaim, RecordVerificationStatus: StatusPending, RecordVerificationDeadline: &deadline}

	assert.True(t, p.Due(now))
	assert.False(t, p.Due(now.Add(-time.Second)))

	p.RecordVerificationStatus = StatusVerified
	assert.False(t, p.Due(now))
	assert.True(t, StatusVerified.Terminal())
	assert.False(t, StatusPending.Terminal())
}
