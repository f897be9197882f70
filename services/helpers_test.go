package services

import (
	"time"

	"gymBuddyFunctions/internal/store/memory"
	"gymBuddyFunctions/internal/types/user"
)

// 2024-01-01 was a Monday.
var testNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedProfile(st *memory.Store, uid string, mutate ...func(*user.Profile)) {
	p := user.NewProfile(user.CreateProfileRequest{UID: uid}, testNow)
	for _, m := range mutate {
		m(p)
	}
	st.PutProfile(p)
}

func ptr[T any](v T) *T { return &v }
