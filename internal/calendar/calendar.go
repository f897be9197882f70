package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DayKey is the three-letter weekday code used by routine schedules.
type DayKey string

const (
	Sunday    DayKey = "SUN"
	Monday    DayKey = "MON"
	Tuesday   DayKey = "TUE"
	Wednesday DayKey = "WED"
	Thursday  DayKey = "THU"
	Friday    DayKey = "FRI"
	Saturday  DayKey = "SAT"
)

var weekdayKeys = [7]DayKey{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// DayKeyOf returns the key of the UTC weekday the instant falls on.
func DayKeyOf(t time.Time) DayKey {
	return weekdayKeys[t.UTC().Weekday()]
}

// DayStart truncates t to 00:00:00 UTC of its calendar date.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDay returns the start of the UTC day following dayStart.
func NextDay(dayStart time.Time) time.Time {
	return dayStart.AddDate(0, 0, 1)
}

// ParseDayKey accepts any casing of a weekday key ("mon", "Mon", "MON").
func ParseDayKey(s string) (DayKey, error) {
	key := DayKey(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range weekdayKeys {
		if k == key {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown day key %q", s)
}

func (k DayKey) String() string { return string(k) }
