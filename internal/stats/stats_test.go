package stats

import (
	"reflect"
	"testing"

	"github.com/pbaille/attend/internal/domain"
	"github.com/pbaille/attend/internal/timetable"
)

func mark(t *testing.T, s string) domain.MarkKey {
	t.Helper()
	k, err := domain.ParseMarkKey(s)
	if err != nil {
		t.Fatalf("ParseMarkKey(%q): %v", s, err)
	}
	return k
}

func TestAggregate(t *testing.T) {
	tt := timetable.New(domain.ClassEntry{Code: "CS-101", Name: "Intro", Day: domain.Monday, Time: "09:00-10:00"})
	marks := map[domain.MarkKey]domain.Status{
		mark(t, "2024-01-01_Monday-09:00-10:00"): domain.Present,
		mark(t, "2024-01-02_Monday-09:00-10:00"): domain.Absent,
	}

	r := Aggregate(tt, marks)

	wantOverall := Overall{Total: 2, Present: 1, Absent: 1, Percentage: 50}
	if r.Overall != wantOverall {
		t.Errorf("Overall = %+v, want %+v", r.Overall, wantOverall)
	}
	wantSubjects := []SubjectStats{{Code: "CS-101", Name: "Intro", Total: 2, Present: 1, Percentage: "50.00"}}
	if !reflect.DeepEqual(r.Subjects, wantSubjects) {
		t.Errorf("Subjects = %+v, want %+v", r.Subjects, wantSubjects)
	}
	if got := r.Overall.Display(); got != "50.0%" {
		t.Errorf("Display = %q", got)
	}
}

func TestAggregateOrphansAndOrdering(t *testing.T) {
	tt := timetable.New(
		domain.ClassEntry{Code: "MA-110", Day: domain.Tuesday, Time: "10:00-11:00"},
		domain.ClassEntry{Code: "CS-101", Day: domain.Monday, Time: "09:00-10:00"},
		domain.ClassEntry{Code: "CS-101", Day: domain.Wednesday, Time: "09:00-10:00"},
	)
	marks := map[domain.MarkKey]domain.Status{
		mark(t, "2024-01-01_Monday-09:00-10:00"):    domain.Present,
		mark(t, "2024-01-03_Wednesday-09:00-10:00"): domain.Present,
		mark(t, "2024-01-08_Monday-09:00-10:00"):    domain.Absent,
		mark(t, "2024-01-02_Tuesday-10:00-11:00"):   domain.Absent,
		mark(t, "2024-01-05_Friday-08:00-09:00"):    domain.Present,
	}

	r := Aggregate(tt, marks)

	if r.Overall.Total != 5 || r.Overall.Present != 3 || r.Overall.Absent != 2 {
		t.Errorf("Overall = %+v", r.Overall)
	}
	want := []SubjectStats{
		{Code: "CS-101", Total: 3, Present: 2, Percentage: "66.67"},
		{Code: "MA-110", Total: 1, Present: 0, Percentage: "0.00"},
	}
	if !reflect.DeepEqual(r.Subjects, want) {
		t.Errorf("Subjects = %+v, want %+v", r.Subjects, want)
	}
	if !r.Subjects[1].BelowTarget(75) || r.Subjects[0].BelowTarget(60) {
		t.Error("BelowTarget misclassified subjects")
	}
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate(timetable.New(), nil)
	if r.Overall != (Overall{}) {
		t.Errorf("Overall = %+v, want zero", r.Overall)
	}
	if len(r.Subjects) != 0 {
		t.Errorf("Subjects = %+v, want none", r.Subjects)
	}
	if got := r.Overall.Display(); got != "N/A" {
		t.Errorf("Display = %q, want N/A", got)
	}
	if !r.BelowTarget(75) || r.BelowTarget(0) {
		t.Error("BelowTarget on empty report")
	}
}

func TestAggregateIdempotent(t *testing.T) {
	tt := timetable.New(
		domain.ClassEntry{Code: "CS-101", Name: "Intro", Day: domain.Monday, Time: "09:00-10:00"},
		domain.ClassEntry{Code: "CS-101", Name: "Intro Lab", Day: domain.Tuesday, Time: "09:00-10:00"},
	)
	marks := map[domain.MarkKey]domain.Status{
		mark(t, "2024-01-02_Tuesday-09:00-10:00"): domain.Present,
		mark(t, "2024-01-01_Monday-09:00-10:00"):  domain.Absent,
	}

	first := Aggregate(tt, marks)
	for i := 0; i < 20; i++ {
		if got := Aggregate(tt, marks); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d = %+v, want %+v", i, got, first)
		}
	}
	if first.Subjects[0].Name != "Intro" {
		t.Errorf("Name = %q, want the first mark's class name", first.Subjects[0].Name)
	}
}

func TestFixed2(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "0.00"},
		{50, "50.00"},
		{100, "100.00"},
		{200.0 / 3, "66.67"},
		{100.0 / 3, "33.33"},
		{0.125, "0.13"},
		{12.5, "12.50"},
		{1.005, "1.00"},
	}
	for _, tt := range tests {
		if got := fixed2(tt.v); got != tt.want {
			t.Errorf("fixed2(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
