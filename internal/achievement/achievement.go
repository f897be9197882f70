package achievement

type ID string

const (
	EarlyBird      ID = "earlyBird"
	FirstWorkout   ID = "firstWorkout"
	PersonalRecord ID = "personalRecord"
)

// Achievement describes an unlockable reward and the copy shown when it is earned.
type Achievement struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var catalog = map[ID]Achievement{
	EarlyBird: {
		ID:          EarlyBird,
		Name:        "Profile Setup Complete!",
		Description: "You've successfully set up your profile. Welcome aboard!",
		Icon:        "auto_awesome",
	},
	FirstWorkout: {
		ID:          FirstWorkout,
		Name:        "First Workout Completed!",
		Description: "You've successfully completed your first workout. Great start!",
		Icon:        "fitness_center",
	},
	PersonalRecord: {
		ID:          PersonalRecord,
		Name:        "Personal Record Verified!",
		Description: "The community verified your record. Keep pushing!",
		Icon:        "emoji_events",
	},
}

func Lookup(id ID) (Achievement, bool) {
	a, ok := catalog[id]
	return a, ok
}

// MustLookup is for ids declared in this package.
func MustLookup(id ID) Achievement {
	a, ok := catalog[id]
	if !ok {
		panic("achievement: unknown id " + string(id))
	}
	return a
}

func (id ID) String() string { return string(id) }
