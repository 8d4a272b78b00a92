package stats

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/pbaille/attend/internal/domain"
)

// Classes resolves a class key against the current timetable
type Classes interface {
	Get(key domain.ClassKey) (domain.ClassEntry, bool)
}

// Overall summarizes every recorded mark, linked to a class or not
type Overall struct {
	Total      int     `json:"total_classes"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Percentage float64 `json:"percentage"`
}

// Display renders the percentage for the dashboard, "N/A" before any marks
func (o Overall) Display() string {
	if o.Total == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(o.Percentage, 'f', 1, 64) + "%"
}

// SubjectStats summarizes the marks of one subject code
type SubjectStats struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Present    int    `json:"present"`
	Percentage string `json:"percentage"`
}

// BelowTarget reports whether the subject is under the target percentage
func (s SubjectStats) BelowTarget(target int) bool {
	if s.Total == 0 {
		return false
	}
	p, err := strconv.ParseFloat(s.Percentage, 64)
	if err != nil {
		return false
	}
	return p < float64(target)
}

// Report is the dashboard view: overall totals and one entry per subject,
// sorted by code
type Report struct {
	Overall  Overall        `json:"overall"`
	Subjects []SubjectStats `json:"subjects"`
}

// BelowTarget reports whether overall attendance is under the target
func (r Report) BelowTarget(target int) bool {
	return r.Overall.Percentage < float64(target)
}

// Aggregate derives attendance statistics from the marks and the timetable.
// Marks whose class is no longer in the timetable count toward the overall
// totals only.
func Aggregate(classes Classes, marks map[domain.MarkKey]domain.Status) Report {
	keys := make([]domain.MarkKey, 0, len(marks))
	for k := range marks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	var r Report
	bySubject := make(map[string]*SubjectStats)

	for _, k := range keys {
		status := marks[k]
		r.Overall.Total++
		switch status {
		case domain.Present:
			r.Overall.Present++
		case domain.Absent:
			r.Overall.Absent++
		}

		class, ok := classes.Get(k.Class)
		if !ok || class.Code == "" {
			continue
		}
		s, ok := bySubject[class.Code]
		if !ok {
			s = &SubjectStats{Code: class.Code, Name: class.Name}
			bySubject[class.Code] = s
		}
		s.Total++
		if status == domain.Present {
			s.Present++
		}
	}

	if r.Overall.Total > 0 {
		r.Overall.Percentage = float64(r.Overall.Present) / float64(r.Overall.Total) * 100
	}

	r.Subjects = make([]SubjectStats, 0, len(bySubject))
	for _, s := range bySubject {
		s.Percentage = "0.00"
		if s.Total > 0 {
			s.Percentage = fixed2(float64(s.Present) / float64(s.Total) * 100)
		}
		r.Subjects = append(r.Subjects, *s)
	}
	sort.Slice(r.Subjects, func(i, j int) bool {
		return r.Subjects[i].Code < r.Subjects[j].Code
	})

	return r
}

// fixed2 formats a non-negative value with two decimals, rounding ties on the
// exact binary value upward. %.2f would round them to even.
func fixed2(v float64) string {
	x := new(big.Float).SetPrec(256).SetFloat64(v)
	x.Mul(x, big.NewFloat(100))
	x.Add(x, big.NewFloat(0.5))
	n, _ := x.Int(nil)
	return fmt.Sprintf("%d.%02d", new(big.Int).Quo(n, big.NewInt(100)), new(big.Int).Rem(n, big.NewInt(100)).Int64())
}
