package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/attend/internal/domain"
)

//go:embed schema.sql
var schema string

// Record keys. Each record is a whole blob replaced on every write.
const (
	KeyTimetable  = "timetable"
	KeyAttendance = "attendance"
	KeyTarget     = "attendance_target"
)

// DefaultTarget is the attendance target used until one is saved
const DefaultTarget = 75

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) put(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO records (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.put(key, string(data))
}

// LoadTimetable returns the saved timetable, empty if none was saved
func (s *Store) LoadTimetable() ([]domain.ClassEntry, error) {
	value, ok, err := s.get(KeyTimetable)
	if err != nil || !ok {
		return nil, err
	}

	var raw map[string]domain.ClassEntry
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, fmt.Errorf("decode timetable: %w", err)
	}

	entries := make([]domain.ClassEntry, 0, len(raw))
	for k, e := range raw {
		if _, ok := domain.ParseDay(string(e.Day)); !ok {
			slog.Warn("skipping stored class", "key", k, "reason", "unknown day")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SaveTimetable replaces the saved timetable
func (s *Store) SaveTimetable(entries map[domain.ClassKey]domain.ClassEntry) error {
	return s.putJSON(KeyTimetable, entries)
}

// LoadAttendance returns the saved attendance marks
func (s *Store) LoadAttendance() (map[domain.MarkKey]domain.Status, error) {
	marks := make(map[domain.MarkKey]domain.Status)
	value, ok, err := s.get(KeyAttendance)
	if err != nil || !ok {
		return marks, err
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, fmt.Errorf("decode attendance: %w", err)
	}

	for k, v := range raw {
		key, err := domain.ParseMarkKey(k)
		if err != nil {
			slog.Warn("skipping stored mark", "key", k, "error", err)
			continue
		}
		status, err := domain.ParseStatus(v)
		if err != nil {
			slog.Warn("skipping stored mark", "key", k, "error", err)
			continue
		}
		marks[key] = status
	}
	return marks, nil
}

// SaveAttendance replaces the saved attendance marks
func (s *Store) SaveAttendance(marks map[domain.MarkKey]domain.Status) error {
	return s.putJSON(KeyAttendance, marks)
}

// LoadTarget returns the saved target, DefaultTarget if none is saved or the
// saved value is not an integer
func (s *Store) LoadTarget() (int, error) {
	value, ok, err := s.get(KeyTarget)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultTarget, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring stored target", "value", value)
		return DefaultTarget, nil
	}
	return n, nil
}

// SaveTarget replaces the saved target
func (s *Store) SaveTarget(target int) error {
	return s.put(KeyTarget, strconv.Itoa(target))
}

// Reset deletes the timetable, attendance and target records
func (s *Store) Reset() error {
	_, err := s.db.Exec(
		"DELETE FROM records WHERE key IN (?, ?, ?)",
		KeyTimetable, KeyAttendance, KeyTarget,
	)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// RecordImport logs a successful timetable import
func (s *Store) RecordImport(source string, entries int) (*domain.ImportRecord, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.Exec(
		"INSERT INTO imports (id, source, entries, created_at) VALUES (?, ?, ?, ?)",
		id, source, entries, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert import: %w", err)
	}

	return &domain.ImportRecord{
		ID:        id,
		Source:    source,
		Entries:   entries,
		CreatedAt: now,
	}, nil
}

// ListImports returns the most recent imports first
func (s *Store) ListImports(limit int) ([]domain.ImportRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, source, entries, created_at FROM imports ORDER BY created_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var records []domain.ImportRecord
	for rows.Next() {
		var r domain.ImportRecord
		if err := rows.Scan(&r.ID, &r.Source, &r.Entries, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
