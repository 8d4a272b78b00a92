package ledger

import (
	"github.com/pbaille/attend/internal/domain"
	"github.com/pbaille/attend/internal/timetable"
)

// Ledger records one present/absent mark per class per date. Marks are
// never pruned when their class leaves the timetable.
type Ledger struct {
	marks map[domain.MarkKey]domain.Status
}

// New creates a Ledger holding the given marks
func New(marks map[domain.MarkKey]domain.Status) *Ledger {
	l := &Ledger{marks: make(map[domain.MarkKey]domain.Status, len(marks))}
	for k, s := range marks {
		l.marks[k] = s
	}
	return l
}

// Mark records status for a class on a date, replacing any earlier mark
func (l *Ledger) Mark(class domain.ClassKey, date string, status domain.Status) domain.MarkKey {
	key := domain.MarkKey{Date: date, Class: class}
	l.marks[key] = status
	return key
}

// Get returns the mark stored under key
func (l *Ledger) Get(key domain.MarkKey) (domain.Status, bool) {
	s, ok := l.marks[key]
	return s, ok
}

// Clear removes every mark
func (l *Ledger) Clear() {
	l.marks = make(map[domain.MarkKey]domain.Status)
}

func (l *Ledger) Len() int {
	return len(l.marks)
}

// Clone returns an independent copy of the ledger
func (l *Ledger) Clone() *Ledger {
	return New(l.marks)
}

// Marks returns a copy of all marks
func (l *Ledger) Marks() map[domain.MarkKey]domain.Status {
	out := make(map[domain.MarkKey]domain.Status, len(l.marks))
	for k, s := range l.marks {
		out[k] = s
	}
	return out
}

// Slot is one class on a given date with its mark, if recorded
type Slot struct {
	Key    domain.ClassKey   `json:"key"`
	Class  domain.ClassEntry `json:"class"`
	Status domain.Status     `json:"status,omitempty"`
}

// Marked reports whether attendance was recorded for the slot
func (s Slot) Marked() bool {
	return s.Status != ""
}

// ForDate lists the classes scheduled on the weekday of date, in start-time
// order, each paired with its mark for that date
func (l *Ledger) ForDate(tt *timetable.Timetable, date string) ([]Slot, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	date = d.Format(domain.DateLayout)

	classes := tt.ForDay(domain.DayOf(d))
	slots := make([]Slot, 0, len(classes))
	for _, c := range classes {
		slots = append(slots, Slot{
			Key:    c.Key(),
			Class:  c,
			Status: l.marks[domain.MarkKey{Date: date, Class: c.Key()}],
		})
	}
	return slots, nil
}
