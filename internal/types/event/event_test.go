package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymBuddyFunctions/internal/types/post"
)

func envelope(t Type, params map[string]string, data string) Envelope {
	e := Envelope{ID: "evt-1", Type: t, Time: time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC), Params: params}
	if data != "" {
		e.Data = json.RawMessage(data)
	}
	return e
}

func TestValidateRejectsMalformedEnvelopes(t *testing.T) {
	assert.ErrorIs(t, Envelope{Type: TypePostCreated}.Validate(), ErrInvalidPayload)
	assert.ErrorIs(t, Envelope{ID: "x"}.Validate(), ErrInvalidPayload)
	assert.ErrorIs(t, Envelope{ID: "x", Type: "post.archived"}.Validate(), ErrInvalidPayload)
	assert.NoError(t, Envelope{ID: "x", Type: TypeCommentCreated}.Validate())
}

func TestDecodeWorkoutLogUpdated(t *testing.T) {
	e := envelope(TypeWorkoutLogUpdated, map[string]string{"userId": "u1", "sessionId": "s1"}, `{
		"before": {"status": "in_progress"},
		"after": {"status": "completed", "totalVolume": 5000, "durationSeconds": 3600,
		          "startedAt": "2024-04-01T07:00:00Z", "endedAt": "2024-04-01T08:00:00Z", "routineId": "r1"}
	}`)

	got, err := Decode(e)
	require.NoError(t, err)

	evt, ok := got.(*WorkoutLogUpdated)
	require.True(t, ok)
	assert.Equal(t, "evt-1", evt.EventID)
	assert.Equal(t, "u1", evt.UserID)
	assert.Equal(t, "s1", evt.SessionID)
	assert.Equal(t, "in_progress", evt.Before.Status)
	assert.Equal(t, "r1", evt.After.RoutineID)
	require.NotNil(t, evt.After.StartedAt)
	assert.Equal(t, 7, evt.After.StartedAt.Hour())
}

func TestDecodeWorkoutLogRequiresParams(t *testing.T) {
	e := envelope(TypeWorkoutLogUpdated, map[string]string{"userId": "u1"}, `{"after": {"status": "completed"}}`)

	_, err := Decode(e)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodePostEvents(t *testing.T) {
	created := envelope(TypePostCreated, map[string]string{"postId": "p1"}, `{
		"after": {"userId": "author", "type": "recordClaim", "recordDetails": {"exerciseName": "Deadlift", "weight": 200, "reps": 1}}
	}`)
	got, err := Decode(created)
	require.NoError(t, err)
	pc := got.(*PostCreated)
	assert.Equal(t, "p1", pc.Post.ID)
	assert.True(t, pc.Post.IsRecordClaim())
	assert.Equal(t, "Deadlift", pc.Post.ExerciseName())

	updated := envelope(TypePostUpdated, map[string]string{"postId": "p1"}, `{
		"before": {"type": "recordClaim", "verificationVotes": {}},
		"after": {"type": "recordClaim", "verificationVotes": {"v1": "verify"}}
	}`)
	got, err = Decode(updated)
	require.NoError(t, err)
	pu := got.(*PostUpdated)
	assert.Equal(t, post.VoteVerify, pu.After.VerificationVotes["v1"])

	_, err = Decode(envelope(TypePostUpdated, map[string]string{"postId": "p1"}, `{"after": {}}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	deleted := envelope(TypePostDeleted, map[string]string{"postId": "p1"}, `{"before": {"mediaPaths": ["posts/p1/a.jpg"]}}`)
	got, err = Decode(deleted)
	require.NoError(t, err)
	assert.Equal(t, []string{"posts/p1/a.jpg"}, got.(*PostDeleted).Post.MediaPaths)
}

func TestDecodeCommentEvents(t *testing.T) {
	got, err := Decode(envelope(TypeCommentCreated, map[string]string{"postId": "p1", "commentId": "c1"}, ""))
	require.NoError(t, err)
	assert.Equal(t, &CommentChanged{EventID: "evt-1", PostID: "p1", CommentID: "c1", Delta: 1}, got)

	got, err = Decode(envelope(TypeCommentDeleted, map[string]string{"postId": "p1"}, ""))
	require.NoError(t, err)
	assert.Equal(t, -1, got.(*CommentChanged).Delta)
}

func TestDecodeUserEvents(t *testing.T) {
	got, err := Decode(envelope(TypeAuthUserCreated, nil, `{"uid": "u1", "email": "A@B.C"}`))
	require.NoError(t, err)
	assert.Equal(t, "u1", got.(*UserCreated).UID)

	_, err = Decode(envelope(TypeAuthUserCreated, nil, `{"email": "a@b.c"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	got, err = Decode(envelope(TypeUserWritten, map[string]string{"userId": "u1"}, `{
		"before": {"profileSetupComplete": false, "following": ["a"]},
		"after": null
	}`))
	require.NoError(t, err)
	uw := got.(*UserWritten)
	assert.True(t, uw.Deleted())
	assert.Equal(t, []string{"a"}, uw.Before.Following)

	_, err = Decode(envelope(TypeUserWritten, map[string]string{"userId": "u1"}, `{not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
