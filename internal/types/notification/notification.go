package notification

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gymBuddyFunctions/internal/achievement"
)

type Type string

const (
	TypeAchievementUnlocked Type = "achievementUnlocked"
	TypeVoteReward          Type = "voteReward"
	TypeRecordVerified      Type = "recordVerified"
	TypeRecordRejected      Type = "recordRejected"
	TypeRecordExpired       Type = "recordExpired"
)

const (
	EntityAchievement = "achievement"
	EntityPost        = "post"
)

// Notification is an in-app notification (users/{uid}/notifications/{id}). Documents are
// only ever created.
type Notification struct {
	ID string `json:"id" firestore:"-"`

	Type           Type     `json:"type" firestore:"type"`
	Title          string   `json:"title" firestore:"title"`
	TitleLocKey    string   `json:"titleLocKey,omitempty" firestore:"titleLocKey,omitempty"`
	Message        string   `json:"message" firestore:"message"`
	MessageLocKey  string   `json:"messageLocKey,omitempty" firestore:"messageLocKey,omitempty"`
	MessageLocArgs []string `json:"messageLocArgs,omitempty" firestore:"messageLocArgs,omitempty"`

	Timestamp time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	IsRead    bool      `json:"isRead" firestore:"isRead"`
	IconName  string    `json:"iconName" firestore:"iconName"`

	RelatedEntityID   string `json:"relatedEntityId" firestore:"relatedEntityId"`
	RelatedEntityType string `json:"relatedEntityType" firestore:"relatedEntityType"`
}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("gymbuddy/notifications"))

// DeterministicID derives a stable id from parts, so recreating the same
// notification is a no-op.
func DeterministicID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "/"))).String()
}

func AchievementUnlocked(a achievement.Achievement, at time.Time) *Notification {
	return &Notification{
		ID:                uuid.NewString(),
		Type:              TypeAchievementUnlocked,
		Title:             a.Name,
		TitleLocKey:       "notification_achievement_" + string(a.ID) + "_title",
		Message:           a.Description,
		MessageLocKey:     "notification_achievement_" + string(a.ID) + "_message",
		Timestamp:         at,
		IconName:          a.Icon,
		RelatedEntityID:   string(a.ID),
		RelatedEntityType: EntityAchievement,
	}
}

func VoteReward(postID, exerciseName string, xp int, at time.Time) *Notification {
	return &Notification{
		ID:                uuid.NewString(),
		Type:              TypeVoteReward,
		Title:             "Thanks for voting!",
		TitleLocKey:       "notification_vote_reward_title",
		Message:           "You earned " + strconv.Itoa(xp) + " XP for helping verify a record.",
		MessageLocKey:     "notification_vote_reward_message",
		MessageLocArgs:    []string{strconv.Itoa(xp), exerciseName},
		Timestamp:         at,
		IconName:          "how_to_vote",
		RelatedEntityID:   postID,
		RelatedEntityType: EntityPost,
	}
}

func RecordVerified(postID, exerciseName string, xp int, at time.Time) *Notification {
	n := recordOutcome(TypeRecordVerified, postID, exerciseName, at)
	n.Title = "Record verified!"
	n.Message = "The community verified your " + exerciseOrRecord(exerciseName) + ". You earned " + strconv.Itoa(xp) + " XP."
	n.MessageLocArgs = append(n.MessageLocArgs, strconv.Itoa(xp))
	n.IconName = "verified"
	return n
}

func RecordRejected(postID, exerciseName string, at time.Time) *Notification {
	n := recordOutcome(TypeRecordRejected, postID, exerciseName, at)
	n.Title = "Record not verified"
	n.Message = "The community did not verify your " + exerciseOrRecord(exerciseName) + "."
	n.IconName = "gpp_bad"
	return n
}

func RecordExpired(postID, exerciseName string, at time.Time) *Notification {
	n := recordOutcome(TypeRecordExpired, postID, exerciseName, at)
	n.Title = "Voting closed"
	n.Message = "Nobody voted on your " + exerciseOrRecord(exerciseName) + " before the deadline."
	n.IconName = "timer_off"
	return n
}

func recordOutcome(t Type, postID, exerciseName string, at time.Time) *Notification {
	key := "notification_" + string(t)
	return &Notification{
		ID:                DeterministicID(postID, string(t)),
		Type:              t,
		TitleLocKey:       key + "_title",
		MessageLocKey:     key + "_message",
		MessageLocArgs:    []string{exerciseName},
		Timestamp:         at,
		RelatedEntityID:   postID,
		RelatedEntityType: EntityPost,
	}
}

func exerciseOrRecord(name string) string {
	if name == "" {
		return "record"
	}
	return name + " record"
}
