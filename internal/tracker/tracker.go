package tracker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pbaille/attend/internal/domain"
	"github.com/pbaille/attend/internal/ledger"
	"github.com/pbaille/attend/internal/sheet"
	"github.com/pbaille/attend/internal/stats"
	"github.com/pbaille/attend/internal/timetable"
)

var (
	ErrOverwriteDeclined = errors.New("existing class kept")
	ErrClassNotFound     = errors.New("class not found")
)

// Persister saves and restores the three tracker records
type Persister interface {
	LoadTimetable() ([]domain.ClassEntry, error)
	SaveTimetable(map[domain.ClassKey]domain.ClassEntry) error
	LoadAttendance() (map[domain.MarkKey]domain.Status, error)
	SaveAttendance(map[domain.MarkKey]domain.Status) error
	LoadTarget() (int, error)
	SaveTarget(int) error
	Reset() error
	RecordImport(source string, entries int) (*domain.ImportRecord, error)
	ListImports(limit int) ([]domain.ImportRecord, error)
}

// Tracker owns the timetable, the attendance ledger and the target. Every
// mutation is saved before it becomes visible, so a failed save leaves the
// tracker as it was. It is not safe for concurrent use.
type Tracker struct {
	p         Persister
	timetable *timetable.Timetable
	ledger    *ledger.Ledger
	target    int
	validate  *validator.Validate
}

// Open loads the saved state
func Open(p Persister) (*Tracker, error) {
	entries, err := p.LoadTimetable()
	if err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	marks, err := p.LoadAttendance()
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	target, err := p.LoadTarget()
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}

	return &Tracker{
		p:         p,
		timetable: timetable.New(entries...),
		ledger:    ledger.New(marks),
		target:    target,
		validate:  validator.New(),
	}, nil
}

// commitTimetable saves next and makes it the current timetable. On error
// the current timetable is kept.
func (t *Tracker) commitTimetable(next *timetable.Timetable) error {
	if err := t.p.SaveTimetable(next.Snapshot()); err != nil {
		return fmt.Errorf("save timetable: %w", err)
	}
	t.timetable = next
	return nil
}

// commitLedger saves next and makes it the current ledger. On error the
// current ledger is kept.
func (t *Tracker) commitLedger(next *ledger.Ledger) error {
	if err := t.p.SaveAttendance(next.Marks()); err != nil {
		return fmt.Errorf("save attendance: %w", err)
	}
	t.ledger = next
	return nil
}

// Import replaces the timetable with rows read from a spreadsheet and logs
// the import under source. A failure to write the import log does not undo
// the import; the returned record then has no ID.
func (t *Tracker) Import(rows [][]string, source string) (*domain.ImportRecord, error) {
	next := timetable.New()
	n, err := next.Import(rows)
	if err != nil {
		return nil, err
	}
	if err := t.commitTimetable(next); err != nil {
		return nil, err
	}

	rec, err := t.p.RecordImport(source, n)
	if err != nil {
		slog.Warn("import log not written", "source", source, "error", err)
		return &domain.ImportRecord{Source: source, Entries: n, CreatedAt: time.Now().UTC()}, nil
	}
	return rec, nil
}

// ImportFile reads the first sheet of a spreadsheet file and imports it
func (t *Tracker) ImportFile(r io.Reader, filename string) (*domain.ImportRecord, error) {
	rows, err := sheet.Read(r, filename)
	if err != nil {
		return nil, err
	}
	return t.Import(rows, filename)
}

// ManualClass is a class entered by hand. Start and End are stored as
// given, without normalization.
type ManualClass struct {
	Code  string     `json:"code" validate:"required"`
	Name  string     `json:"name"`
	Day   domain.Day `json:"day" validate:"required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	Start string     `json:"start_time" validate:"required"`
	End   string     `json:"end_time" validate:"required"`
}

// Key is the slot the class would occupy
func (m ManualClass) Key() domain.ClassKey {
	return domain.ClassKey{Day: m.Day, Time: m.Start + "-" + m.End}
}

// Confirm decides whether an existing class may be overwritten
type Confirm func(existing domain.ClassEntry) bool

// Overwrite confirms every overwrite
func Overwrite(domain.ClassEntry) bool { return true }

// AddClass stores a manually entered class. When the slot is taken, confirm
// is asked first; declining leaves the timetable unchanged.
func (t *Tracker) AddClass(m ManualClass, confirm Confirm) (domain.ClassEntry, error) {
	if err := t.validate.Struct(m); err != nil {
		return domain.ClassEntry{}, fmt.Errorf("%w: %v", timetable.ErrMissingField, err)
	}

	if existing, ok := t.timetable.Get(m.Key()); ok {
		if confirm == nil || !confirm(existing) {
			return domain.ClassEntry{}, fmt.Errorf("%w: %s", ErrOverwriteDeclined, existing.Code)
		}
	}

	next := t.timetable.Clone()
	e, _, err := next.Upsert(m.Code, m.Name, m.Day, m.Start, m.End)
	if err != nil {
		return domain.ClassEntry{}, err
	}
	if err := t.commitTimetable(next); err != nil {
		return domain.ClassEntry{}, err
	}
	return e, nil
}

// RemoveClass deletes one class. Its attendance marks stay in the ledger.
// Removing a class that is not there is not an error.
func (t *Tracker) RemoveClass(key domain.ClassKey) (bool, error) {
	if _, ok := t.timetable.Get(key); !ok {
		return false, nil
	}
	next := t.timetable.Clone()
	next.Remove(key)
	if err := t.commitTimetable(next); err != nil {
		return false, err
	}
	return true, nil
}

// ClearTimetable removes every class
func (t *Tracker) ClearTimetable() error {
	return t.commitTimetable(timetable.New())
}

// Mark records attendance for a class on an ISO date
func (t *Tracker) Mark(class domain.ClassKey, date string, status domain.Status) (domain.MarkKey, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return domain.MarkKey{}, err
	}
	if status != domain.Present && status != domain.Absent {
		return domain.MarkKey{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	next := t.ledger.Clone()
	key := next.Mark(class, d.Format(domain.DateLayout), status)
	if err := t.commitLedger(next); err != nil {
		return domain.MarkKey{}, err
	}
	return key, nil
}

// SetTarget changes the attendance target. Any integer is accepted.
func (t *Tracker) SetTarget(target int) error {
	if err := t.p.SaveTarget(target); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	t.target = target
	return nil
}

// Reset deletes the timetable, every mark and the target
func (t *Tracker) Reset() error {
	if err := t.p.Reset(); err != nil {
		return err
	}
	t.timetable.Clear()
	t.ledger.Clear()
	target, err := t.p.LoadTarget()
	if err != nil {
		return fmt.Errorf("load target: %w", err)
	}
	t.target = target
	return nil
}

func (t *Tracker) Target() int {
	return t.target
}

// Classes returns every class ordered by day and start time
func (t *Tracker) Classes() []domain.ClassEntry {
	return t.timetable.Entries()
}

// Class looks up the class in one slot
func (t *Tracker) Class(key domain.ClassKey) (domain.ClassEntry, error) {
	e, ok := t.timetable.Get(key)
	if !ok {
		return domain.ClassEntry{}, fmt.Errorf("%w: %s", ErrClassNotFound, key)
	}
	return e, nil
}

// TimeSlots returns the rows of the weekly grid
func (t *Tracker) TimeSlots() []string {
	return t.timetable.TimeSlots()
}

func (t *Tracker) Grid() []timetable.GridRow {
	return t.timetable.Grid()
}

// Schedule lists the classes of a date with their marks
func (t *Tracker) Schedule(date string) ([]ledger.Slot, error) {
	return t.ledger.ForDate(t.timetable, date)
}

// Stats recomputes the dashboard from the current state
func (t *Tracker) Stats() stats.Report {
	return stats.Aggregate(t.timetable, t.ledger.Marks())
}

// Imports returns the most recent imports
func (t *Tracker) Imports(limit int) ([]domain.ImportRecord, error) {
	return t.p.ListImports(limit)
}
