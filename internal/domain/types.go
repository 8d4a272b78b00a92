package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used in attendance keys
const DateLayout = "2006-01-02"

var (
	ErrInvalidKey    = errors.New("invalid key")
	ErrInvalidStatus = errors.New("status must be present or absent")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
)

// ClassEntry represents one scheduled class occurrence within a week
type ClassEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Day  Day    `json:"day"`
	Time string `json:"time"`
}

// Key returns the (day, time) identity of the entry
func (e ClassEntry) Key() ClassKey {
	return ClassKey{Day: e.Day, Time: e.Time}
}

// ClassKey identifies a weekly class slot
type ClassKey struct {
	Day  Day
	Time string
}

func (k ClassKey) String() string {
	return string(k.Day) + "-" + k.Time
}

func (k ClassKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ClassKey) UnmarshalText(b []byte) error {
	parsed, err := ParseClassKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseClassKey parses "{day}-{time}". Day names never contain a hyphen, so
// the first one separates the two parts.
func ParseClassKey(s string) (ClassKey, error) {
	day, slot, ok := strings.Cut(s, "-")
	if !ok {
		return ClassKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	d, ok := ParseDay(day)
	if !ok {
		return ClassKey{}, fmt.Errorf("%w: unknown day in %q", ErrInvalidKey, s)
	}
	return ClassKey{Day: d, Time: slot}, nil
}

// MarkKey identifies an attendance mark: one class on one calendar date
type MarkKey struct {
	Date  string
	Class ClassKey
}

func (k MarkKey) String() string {
	return k.Date + "_" + k.Class.String()
}

func (k MarkKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MarkKey) UnmarshalText(b []byte) error {
	parsed, err := ParseMarkKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseMarkKey parses "{date}_{day}-{time}", splitting at the first underscore
func ParseMarkKey(s string) (MarkKey, error) {
	date, class, ok := strings.Cut(s, "_")
	if !ok || date == "" {
		return MarkKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	ck, err := ParseClassKey(class)
	if err != nil {
		return MarkKey{}, err
	}
	return MarkKey{Date: date, Class: ck}, nil
}

// Status is the recorded outcome of one class occurrence
type Status string

const (
	Present Status = "present"
	Absent  Status = "absent"
)

// ParseStatus accepts "present" or "absent" in any case
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case Present:
		return Present, nil
	case Absent:
		return Absent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParseDate validates an ISO calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// ImportRecord logs one successful timetable import
type ImportRecord struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}
