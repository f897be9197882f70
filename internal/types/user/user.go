package user

import (
	"strings"
	"time"
)

// Profile is the users/{uid} document.
type Profile struct {
	UID               string  `json:"uid" firestore:"uid"`
	Email             *string `json:"email" firestore:"email"`
	DisplayName       *string `json:"displayName" firestore:"displayName"`
	ProfilePictureURL *string `json:"profilePictureUrl" firestore:"profilePictureUrl"`
	Username          *string `json:"username" firestore:"username"`

	Gender        *string    `json:"gender" firestore:"gender"`
	DateOfBirth   *time.Time `json:"dateOfBirth" firestore:"dateOfBirth"`
	HeightCm      *float64   `json:"heightCm" firestore:"heightCm"`
	WeightKg      *float64   `json:"weightKg" firestore:"weightKg"`
	FitnessGoal   *string    `json:"fitnessGoal" firestore:"fitnessGoal"`
	ActivityLevel *string    `json:"activityLevel" firestore:"activityLevel"`

	XP            int `json:"xp" firestore:"xp"`
	Level         int `json:"level" firestore:"level"`
	CurrentStreak int `json:"currentStreak" firestore:"currentStreak"`
	LongestStreak int `json:"longestStreak" firestore:"longestStreak"`

	LastWorkoutTimestamp                    *time.Time `json:"lastWorkoutTimestamp" firestore:"lastWorkoutTimestamp"`
	LastScheduledWorkoutCompletionTimestamp *time.Time `json:"lastScheduledWorkoutCompletionTimestamp" firestore:"lastScheduledWorkoutCompletionTimestamp"`
	LastScheduledWorkoutDayKey              *string    `json:"lastScheduledWorkoutDayKey" firestore:"lastScheduledWorkoutDayKey"`

	FollowersCount int      `json:"followersCount" firestore:"followersCount"`
	FollowingCount int      `json:"followingCount" firestore:"followingCount"`
	Following      []string `json:"following,omitempty" firestore:"following,omitempty"`

	AchievedRewardIDs    []string `json:"achievedRewardIds" firestore:"achievedRewardIds"`
	ProfileSetupComplete bool     `json:"profileSetupComplete" firestore:"profileSetupComplete"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// NewProfile builds the document written when an account is created. Gamification
// fields start at their zero values and the level at 1.
func NewProfile(req CreateProfileRequest, now time.Time) *Profile {
	p := &Profile{
		UID:               req.UID,
		Email:             optional(strings.ToLower(strings.TrimSpace(req.Email))),
		DisplayName:       optional(req.DisplayName),
		ProfilePictureURL: optional(req.PhotoURL),
		Username:          optional(req.Username),
		Level:             1,
		AchievedRewardIDs: []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Update lists the profile fields the event handlers write. Nil fields keep their stored
// value; AddAchievementIDs is merged into achievedRewardIds as a set union.
type Update struct {
	XP            *int
	Level         *int
	CurrentStreak *int
	LongestStreak *int

	LastWorkoutTimestamp                    *time.Time
	LastScheduledWorkoutCompletionTimestamp *time.Time
	LastScheduledWorkoutDayKey              *string

	FollowingCount *int

	AddAchievementIDs []string
}

func (u Update) IsEmpty() bool {
	return u.XP == nil && u.Level == nil && u.CurrentStreak == nil && u.LongestStreak == nil &&
		u.LastWorkoutTimestamp == nil && u.LastScheduledWorkoutCompletionTimestamp == nil &&
		u.LastScheduledWorkoutDayKey == nil && u.FollowingCount == nil && len(u.AddAchievementIDs) == 0
}

// Apply writes the update onto p in memory.
func (p *Profile) Apply(u Update, now time.Time) {
	if u.XP != nil {
		p.XP = *u.XP
	}
	if u.Level != nil {
		p.Level = *u.Level
	}
	if u.CurrentStreak != nil {
		p.CurrentStreak = *u.CurrentStreak
	}
	if u.LongestStreak != nil {
		p.LongestStreak = *u.LongestStreak
	}
	if u.LastWorkoutTimestamp != nil {
		t := *u.LastWorkoutTimestamp
		p.LastWorkoutTimestamp = &t
	}
	if u.LastScheduledWorkoutCompletionTimestamp != nil {
		t := *u.LastScheduledWorkoutCompletionTimestamp
		p.LastScheduledWorkoutCompletionTimestamp = &t
	}
	if u.LastScheduledWorkoutDayKey != nil {
		k := *u.LastScheduledWorkoutDayKey
		p.LastScheduledWorkoutDayKey = &k
	}
	if u.FollowingCount != nil {
		p.FollowingCount = *u.FollowingCount
	}
	for _, id := range u.AddAchievementIDs {
		if !p.HasAchievement(id) {
			p.AchievedRewardIDs = append(p.AchievedRewardIDs, id)
		}
	}
	p.UpdatedAt = now
}

func (p *Profile) HasAchievement(id string) bool {
	for _, got := range p.AchievedRewardIDs {
		if got == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Following = append([]string(nil), p.Following...)
	c.AchievedRewardIDs = append([]string(nil), p.AchievedRewardIDs...)
	return &c
}
