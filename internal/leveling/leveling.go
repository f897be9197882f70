// Package leveling implements the XP curve that maps accumulated experience to a level.
//
// Completing level N costs BaseXP + (N-1)*StepXP, so the cost grows linearly and the
// cumulative threshold grows quadratically.
package leveling

const (
	BaseXP = 200
	StepXP = 50
)

// XPToCompleteLevel returns the XP needed to go from the start of level to the start of level+1.
func XPToCompleteLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return BaseXP + (level-1)*StepXP
}

// CumulativeXPAtLevelStart returns the total XP a user holds on reaching level.
func CumulativeXPAtLevelStart(level int) int {
	total := 0
	for i := 1; i < level; i++ {
		total += XPToCompleteLevel(i)
	}
	return total
}

// ResolveLevel advances startingLevel while totalXP covers the next threshold.
//
// The walk starts at the stored level and only moves forward: a stored level is never
// demoted, even if the curve constants change later.
func ResolveLevel(totalXP, startingLevel int) int {
	level := startingLevel
	if level < 1 {
		level = 1
	}
	levelStart := CumulativeXPAtLevelStart(level)
	for totalXP >= levelStart+XPToCompleteLevel(level) {
		levelStart += XPToCompleteLevel(level)
		level++
	}
	return level
}

// LevelForXP derives a level from scratch.
func LevelForXP(totalXP int) int {
	return ResolveLevel(totalXP, 1)
}

// Progress describes where a user sits inside their current level.
type Progress struct {
	Level          int `json:"level"`
	XPIntoLevel    int `json:"xpIntoLevel"`
	XPForNextLevel int `json:"xpForNextLevel"`
}

// ProgressFor reports the progress of totalXP within level.
func ProgressFor(totalXP, level int) Progress {
	if level < 1 {
		level = 1
	}
	into := totalXP - CumulativeXPAtLevelStart(level)
	if into < 0 {
		into = 0
	}
	return Progress{
		Level:          level,
		XPIntoLevel:    into,
		XPForNextLevel: XPToCompleteLevel(level),
	}
}
