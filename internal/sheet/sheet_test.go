package sheet

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]string{
		"A1": "Time", "B1": "Monday", "C1": "Tuesday",
		"A2": "9:00-10:00 AM", "B2": "CS-101 Intro",
		"A3": "1:00-2:00 PM", "C3": "MA-110 Calculus",
	}
	for cell, value := range cells {
		if err := f.SetCellValue("Sheet1", cell, value); err != nil {
			t.Fatalf("SetCellValue(%s): %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	got, err := Read(buf, "timetable.xlsx")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := [][]string{
		{"Time", "Monday", "Tuesday"},
		{"9:00-10:00 AM", "CS-101 Intro"},
		{"1:00-2:00 PM", "", "MA-110 Calculus"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}
}

func TestReadCSV(t *testing.T) {
	input := "\xef\xbb\xbfTime,Monday,Wed\n\"9:00 - 10:00\",\"CS-101 Intro, Part 1\"\n10:00-11:00,,EE-210 Circuits\n"

	got, err := Read(strings.NewReader(input), "week.CSV")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := [][]string{
		{"Time", "Monday", "Wed"},
		{"9:00 - 10:00", "CS-101 Intro, Part 1"},
		{"10:00-11:00", "", "EE-210 Circuits"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}
}

func TestReadHTML(t *testing.T) {
	input := `<html><body>
<p>Semester 2</p>
<table>
  <thead><tr><th>Time</th><th>Monday</th></tr></thead>
  <tbody>
    <tr><td>9:00-10:00</td><td><b>CS-101</b>
        Intro<br>(Lab)</td></tr>
    <tr><td>10:00-11:00</td><td><table><tr><td>nested</td></tr></table></td></tr>
  </tbody>
</table>
<table><tr><td>second table</td></tr></table>
</body></html>`

	got, err := Read(strings.NewReader(input), "export.html")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := [][]string{
		{"Time", "Monday"},
		{"9:00-10:00", "CS-101 Intro (Lab)"},
		{"10:00-11:00", "nested"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %q, want %q", got, want)
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(strings.NewReader("<p>no table here</p>"), "x.htm"); !errors.Is(err, ErrNoSheet) {
		t.Errorf("html without table: %v", err)
	}
	if _, err := Read(strings.NewReader(""), "empty.csv"); !errors.Is(err, ErrEmptySheet) {
		t.Errorf("empty csv: %v", err)
	}
	if _, err := Read(strings.NewReader("not a zip"), "broken.xlsx"); err == nil {
		t.Error("broken xlsx: expected error")
	}
	big := bytes.Repeat([]byte("a"), maxSize+1)
	if _, err := Read(bytes.NewReader(big), "big.csv"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized file: %v", err)
	}
}
