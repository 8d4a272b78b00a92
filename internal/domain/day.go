package domain

import (
	"strings"
	"time"
)

// Day is a weekday name as shown in the weekly grid
type Day string

const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
	Saturday  Day = "Saturday"
	Sunday    Day = "Sunday"
)

// Days lists the week in grid column order
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// dayAliases maps upper-cased header tokens to days
var dayAliases = map[string]Day{
	"MONDAY":    Monday,
	"MON":       Monday,
	"TUESDAY":   Tuesday,
	"TUE":       Tuesday,
	"WEDNESDAY": Wednesday,
	"WED":       Wednesday,
	"THURSDAY":  Thursday,
	"THU":       Thursday,
	"THURS":     Thursday,
	"FRIDAY":    Friday,
	"FRI":       Friday,
	"SATURDAY":  Saturday,
	"SAT":       Saturday,
	"SUNDAY":    Sunday,
	"SUN":       Sunday,
}

// LookupDay resolves a full day name or abbreviation, ignoring case and
// surrounding whitespace
func LookupDay(token string) (Day, bool) {
	d, ok := dayAliases[strings.ToUpper(strings.TrimSpace(token))]
	return d, ok
}

// ParseDay accepts only the exact full name of a day
func ParseDay(s string) (Day, bool) {
	for _, d := range Days {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// DayOf returns the weekday of a calendar date
func DayOf(t time.Time) Day {
	// time.Weekday counts from Sunday
	return Days[(int(t.Weekday())+6)%7]
}
