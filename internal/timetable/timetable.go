package timetable

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pbaille/attend/internal/domain"
	"github.com/pbaille/attend/internal/timeslot"
)

var (
	ErrNoDataRows   = errors.New("the file seems to be empty or has no data rows")
	ErrNoTimeColumn = errors.New("could not find a 'Time' column")
	ErrMissingField = errors.New("subject code, day, start time and end time are required")
	ErrUnknownDay   = errors.New("unknown day")
)

// subjectPattern splits "CS-101 Intro to CS (Lab)" into code and name,
// dropping a trailing parenthetical
var subjectPattern = regexp.MustCompile(`(?i)^([A-Z]{2,3}-\d{3})` + timeslot.SpaceClass +
	`+(.*?)(?:` + timeslot.SpaceClass + `+\(.*\))?$`)

// Timetable holds at most one class per (day, time) slot
type Timetable struct {
	entries map[domain.ClassKey]domain.ClassEntry
}

// New creates a Timetable from existing entries
func New(entries ...domain.ClassEntry) *Timetable {
	t := &Timetable{entries: make(map[domain.ClassKey]domain.ClassEntry, len(entries))}
	for _, e := range entries {
		t.entries[e.Key()] = e
	}
	return t
}

// Parse builds a timetable from spreadsheet rows. The first row is the
// header; it must name a time column, and day columns are picked up by name.
// Later rows and columns overwrite earlier ones that land on the same slot.
func Parse(rows [][]string) (map[domain.ClassKey]domain.ClassEntry, error) {
	if len(rows) < 2 {
		return nil, ErrNoDataRows
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToUpper(timeslot.TrimSpace(h))
	}

	timeCol := -1
	for i, h := range header {
		if h == "TIME" || h == "TIME SLOT" {
			timeCol = i
			break
		}
	}
	if timeCol == -1 {
		return nil, ErrNoTimeColumn
	}

	// Ordered by column index
	var dayCols []int
	colDay := make(map[int]domain.Day)
	for i, h := range header {
		if d, ok := domain.LookupDay(h); ok {
			dayCols = append(dayCols, i)
			colDay[i] = d
		}
	}

	entries := make(map[domain.ClassKey]domain.ClassEntry)
	for _, row := range rows[1:] {
		slot, ok := timeslot.Normalize(cell(row, timeCol))
		if !ok {
			continue
		}
		for _, col := range dayCols {
			text := timeslot.TrimSpace(cell(row, col))
			if text == "" {
				continue
			}
			code, name := splitSubject(text)
			e := domain.ClassEntry{Code: code, Name: name, Day: colDay[col], Time: slot}
			entries[e.Key()] = e
		}
	}

	return entries, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func splitSubject(text string) (code, name string) {
	m := subjectPattern.FindStringSubmatch(text)
	if m == nil {
		return text, ""
	}
	return strings.ToUpper(m[1]), timeslot.TrimSpace(m[2])
}

// Import replaces the whole timetable with the classes parsed from rows. The
// timetable is left untouched when the rows are rejected.
func (t *Timetable) Import(rows [][]string) (int, error) {
	entries, err := Parse(rows)
	if err != nil {
		return 0, err
	}
	t.entries = entries
	return len(entries), nil
}

// Upsert adds a manually entered class, replacing any class in the same
// slot. It returns the stored entry and the one it replaced, if any.
func (t *Timetable) Upsert(code, name string, day domain.Day, start, end string) (domain.ClassEntry, *domain.ClassEntry, error) {
	code = timeslot.TrimSpace(code)
	if code == "" || day == "" || start == "" || end == "" {
		return domain.ClassEntry{}, nil, ErrMissingField
	}
	if _, ok := domain.ParseDay(string(day)); !ok {
		return domain.ClassEntry{}, nil, fmt.Errorf("%w: %q", ErrUnknownDay, day)
	}

	e := domain.ClassEntry{
		Code: strings.ToUpper(code),
		Name: timeslot.TrimSpace(name),
		Day:  day,
		Time: start + "-" + end,
	}

	var replaced *domain.ClassEntry
	if prev, ok := t.entries[e.Key()]; ok {
		replaced = &prev
	}
	t.entries[e.Key()] = e
	return e, replaced, nil
}

// Get returns the class in a slot
func (t *Timetable) Get(key domain.ClassKey) (domain.ClassEntry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Remove deletes one class and reports whether it existed
func (t *Timetable) Remove(key domain.ClassKey) bool {
	if _, ok := t.entries[key]; !ok {
		return false
	}
	delete(t.entries, key)
	return true
}

// Clear removes every class
func (t *Timetable) Clear() {
	t.entries = make(map[domain.ClassKey]domain.ClassEntry)
}

func (t *Timetable) Len() int {
	return len(t.entries)
}

// Clone returns an independent copy of the timetable
func (t *Timetable) Clone() *Timetable {
	return &Timetable{entries: t.Snapshot()}
}

// Snapshot returns a copy of the keyed entries, for persistence
func (t *Timetable) Snapshot() map[domain.ClassKey]domain.ClassEntry {
	out := make(map[domain.ClassKey]domain.ClassEntry, len(t.entries))
	for k, e := range t.entries {
		out[k] = e
	}
	return out
}

// Entries returns every class ordered by weekday, then start time
func (t *Timetable) Entries() []domain.ClassEntry {
	out := make([]domain.ClassEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := dayIndex(out[i].Day), dayIndex(out[j].Day)
		if di != dj {
			return di < dj
		}
		if c := timeslot.Compare(out[i].Time, out[j].Time); c != 0 {
			return c < 0
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// ForDay returns the classes held on one weekday in start-time order
func (t *Timetable) ForDay(day domain.Day) []domain.ClassEntry {
	var out []domain.ClassEntry
	for _, e := range t.Entries() {
		if e.Day == day {
			out = append(out, e)
		}
	}
	return out
}

// TimeSlots returns the distinct class times in start-time order. These are
// the rows of the weekly grid.
func (t *Timetable) TimeSlots() []string {
	seen := make(map[string]bool)
	var slots []string
	for _, e := range t.entries {
		if e.Time == "" || seen[e.Time] {
			continue
		}
		seen[e.Time] = true
		slots = append(slots, e.Time)
	}
	// Map order is random; fix it before the stable sort so unreadable
	// slots come out the same way every time.
	sort.Strings(slots)
	timeslot.Sort(slots)
	return slots
}

// GridRow is one time slot of the weekly grid, with a cell per weekday
type GridRow struct {
	Time  string                           `json:"time"`
	Cells map[domain.Day]domain.ClassEntry `json:"cells"`
}

// Grid lays the timetable out as rows of time slots by weekday columns
func (t *Timetable) Grid() []GridRow {
	slots := t.TimeSlots()
	rows := make([]GridRow, 0, len(slots))
	for _, slot := range slots {
		row := GridRow{Time: slot, Cells: make(map[domain.Day]domain.ClassEntry)}
		for _, d := range domain.Days {
			if e, ok := t.entries[domain.ClassKey{Day: d, Time: slot}]; ok {
				row.Cells[d] = e
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func dayIndex(d domain.Day) int {
	for i, day := range domain.Days {
		if day == d {
			return i
		}
	}
	return len(domain.Days)
}
