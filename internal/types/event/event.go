// Package event defines the envelope delivered by the event ingress and the typed
// payloads decoded from it. Decoding validates every field the handlers rely on, so
// services never see a half-formed event.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymBuddyFunctions/internal/types/post"
	"gymBuddyFunctions/internal/types/workout"
)

type Type string

const (
	TypeAuthUserCreated   Type = "auth.user.created"
	TypeUserWritten       Type = "user.written"
	TypeWorkoutLogUpdated Type = "workoutLog.updated"
	TypePostCreated       Type = "post.created"
	TypePostUpdated       Type = "post.updated"
	TypePostDeleted       Type = "post.deleted"
	TypeCommentCreated    Type = "comment.created"
	TypeCommentDeleted    Type = "comment.deleted"
)

var ErrInvalidPayload = errors.New("invalid event payload")

// Envelope is the transport-neutral form of a document or auth event.
type Envelope struct {
	ID     string            `json:"id"`
	Type   Type              `json:"type"`
	Time   time.Time         `json:"time"`
	Params map[string]string `json:"params,omitempty"`
	Data   json.RawMessage   `json:"data,omitempty"`
}

// Change is the before/after pair of a document write. A nil side means the document
// did not exist.
type Change[T any] struct {
	Before *T `json:"before"`
	After  *T `json:"after"`
}

type UserCreated struct {
	EventID     string
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// ProfileSnapshot is the subset of a profile document the write handlers compare.
type ProfileSnapshot struct {
	ProfileSetupComplete bool     `json:"profileSetupComplete"`
	Following            []string `json:"following"`
	AchievedRewardIDs    []string `json:"achievedRewardIds"`
}

type UserWritten struct {
	EventID string
	UserID  string
	Before  *ProfileSnapshot
	After   *ProfileSnapshot
}

func (e *UserWritten) Deleted() bool { return e.After == nil }

type WorkoutLogUpdated struct {
	EventID   string
	UserID    string
	SessionID string
	Before    *workout.Log
	After     *workout.Log
	Time      time.Time
}

type PostCreated struct {
	EventID string
	PostID  string
	Post    post.Post
	Time    time.Time
}

type PostUpdated struct {
	EventID string
	PostID  string
	Before  post.Post
	After   post.Post
}

type PostDeleted struct {
	EventID string
	PostID  string
	Post    post.Post
}

type CommentChanged struct {
	EventID   string
	PostID    string
	CommentID string
	Delta     int
}

type authUserData struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: missing event id", ErrInvalidPayload)
	}
	switch e.Type {
	case TypeAuthUserCreated, TypeUserWritten, TypeWorkoutLogUpdated,
		TypePostCreated, TypePostUpdated, TypePostDeleted,
		TypeCommentCreated, TypeCommentDeleted:
		return nil
	case "":
		return fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	default:
		return fmt.Errorf("%w: unsupported event type %q", ErrInvalidPayload, e.Type)
	}
}

// Decode validates the envelope and returns the typed payload for its type:
// *UserCreated, *UserWritten, *WorkoutLogUpdated, *PostCreated, *PostUpdated,
// *PostDeleted or *CommentChanged.
func Decode(e Envelope) (any, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	switch e.Type {
	case TypeAuthUserCreated:
		var d authUserData
		if err := e.unmarshal(&d); err != nil {
			return nil, err
		}
		if d.UID == "" {
			return nil, fmt.Errorf("%w: %s without uid", ErrInvalidPayload, e.Type)
		}
		return &UserCreated{EventID: e.ID, UID: d.UID, Email: d.Email, DisplayName: d.DisplayName, PhotoURL: d.PhotoURL}, nil

	case TypeUserWritten:
		uid, err := e.param("userId")
		if err != nil {
			return nil, err
		}
		var c Change[ProfileSnapshot]
		if err := e.unmarshal(&c); err != nil {
			return nil, err
		}
		return &UserWritten{EventID: e.ID, UserID: uid, Before: c.Before, After: c.After}, nil

	case TypeWorkoutLogUpdated:
		uid, err := e.param("userId")
		if err != nil {
			return nil, err
		}
		sessionID, err := e.param("sessionId")
		if err != nil {
			return nil, err
		}
		var c Change[workout.Log]
		if err := e.unmarshal(&c); err != nil {
			return nil, err
		}
		if c.After == nil {
			return nil, fmt.Errorf("%w: %s without after snapshot", ErrInvalidPayload, e.Type)
		}
		return &WorkoutLogUpdated{EventID: e.ID, UserID: uid, SessionID: sessionID, Before: c.Before, After: c.After, Time: e.Time}, nil

	case TypePostCreated:
		postID, c, err := e.postChange()
		if err != nil {
			return nil, err
		}
		if c.After == nil {
			return nil, fmt.Errorf("%w: %s without after snapshot", ErrInvalidPayload, e.Type)
		}
		c.After.ID = postID
		return &PostCreated{EventID: e.ID, PostID: postID, Post: *c.After, Time: e.Time}, nil

	case TypePostUpdated:
		postID, c, err := e.postChange()
		if err != nil {
			return nil, err
		}
		if c.Before == nil || c.After == nil {
			return nil, fmt.Errorf("%w: %s needs both snapshots", ErrInvalidPayload, e.Type)
		}
		c.Before.ID, c.After.ID = postID, postID
		return &PostUpdated{EventID: e.ID, PostID: postID, Before: *c.Before, After: *c.After}, nil

	case TypePostDeleted:
		postID, c, err := e.postChange()
		if err != nil {
			return nil, err
		}
		if c.Before == nil {
			return nil, fmt.Errorf("%w: %s without before snapshot", ErrInvalidPayload, e.Type)
		}
		c.Before.ID = postID
		return &PostDeleted{EventID: e.ID, PostID: postID, Post: *c.Before}, nil

	case TypeCommentCreated, TypeCommentDeleted:
		postID, err := e.param("postId")
		if err != nil {
			return nil, err
		}
		delta := 1
		if e.Type == TypeCommentDeleted {
			delta = -1
		}
		return &CommentChanged{EventID: e.ID, PostID: postID, CommentID: e.Params["commentId"], Delta: delta}, nil
	}

	return nil, fmt.Errorf("%w: unsupported event type %q", ErrInvalidPayload, e.Type)
}

func (e Envelope) param(name string) (string, error) {
	v := strings.TrimSpace(e.Params[name])
	if v == "" {
		return "", fmt.Errorf("%w: %s missing param %q", ErrInvalidPayload, e.Type, name)
	}
	return v, nil
}

func (e Envelope) unmarshal(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s without data", ErrInvalidPayload, e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, e.Type, err)
	}
	return nil
}

func (e Envelope) postChange() (string, Change[post.Post], error) {
	var c Change[post.Post]
	postID, err := e.param("postId")
	if err != nil {
		return "", c, err
	}
	err = e.unmarshal(&c)
	return postID, c, err
}
