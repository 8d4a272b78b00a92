// Package timeslot turns free-form spreadsheet time ranges into canonical
// "HH:MM-HH:MM" slots and orders slots by start time.
package timeslot

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// SpaceClass is a regexp character class matching the runes IsSpace accepts
const SpaceClass = `[\t\n\v\f\r\p{Zs}\x{2028}\x{2029}\x{FEFF}]`

// rangePattern finds "H:MM-H:MM" (hyphen or en-dash) anywhere in the text,
// with an optional meridiem that applies to both ends.
var rangePattern = regexp.MustCompile(`(?i)(\d{1,2}:\d{2})` + SpaceClass + `*[-–]` +
	SpaceClass + `*(\d{1,2}:\d{2})` + SpaceClass + `*(AM|PM)?`)

// unparsed is the hour and minute given to start times that cannot be read
const unparsed = 99

// Normalize converts spreadsheet time text to a slot string. It reports false
// for empty input. Text without a recognizable range comes back with its
// whitespace removed.
func Normalize(raw string) (string, bool) {
	s := TrimSpace(raw)
	if s == "" {
		return "", false
	}

	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return stripSpace(s), true
	}

	start, end, period := m[1], m[2], m[3]
	if period == "" {
		return start + "-" + end, true
	}
	return to24Hour(start, period) + "-" + to24Hour(end, period), true
}

func to24Hour(clock, period string) string {
	h, mm, _ := strings.Cut(clock, ":")
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(mm)

	switch strings.ToUpper(period) {
	case "PM":
		if hours < 12 {
			hours += 12
		}
	case "AM":
		if hours == 12 {
			hours = 0
		}
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// IsSpace reports whether r is blank in spreadsheet text: the Zs space
// separators, tab, line feed, vertical tab, form feed, carriage return, the
// line and paragraph separators and the byte order mark. Unlike
// unicode.IsSpace it accepts U+FEFF and rejects U+0085.
func IsSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\uFEFF':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// TrimSpace removes leading and trailing IsSpace runes
func TrimSpace(s string) string {
	return strings.TrimFunc(s, IsSpace)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Compare orders slots ascending by start time, the text before the first
// "-". Unreadable start times sort after every readable one and compare
// equal to each other.
func Compare(a, b string) int {
	ha, ma := startOf(a)
	hb, mb := startOf(b)
	switch {
	case ha < hb:
		return -1
	case ha > hb:
		return 1
	case ma < mb:
		return -1
	case ma > mb:
		return 1
	}
	return 0
}

// Sort orders slots in place with Compare, keeping equal slots in input order
func Sort(slots []string) {
	sort.SliceStable(slots, func(i, j int) bool {
		return Compare(slots[i], slots[j]) < 0
	})
}

func startOf(slot string) (int, int) {
	start, _, _ := strings.Cut(slot, "-")
	h, m, ok := strings.Cut(start, ":")
	if !ok {
		return unparsed, unparsed
	}
	hours, ok := leadingInt(h)
	if !ok {
		return unparsed, unparsed
	}
	// only the text up to a second colon counts as minutes
	m, _, _ = strings.Cut(m, ":")
	minutes, ok := leadingInt(m)
	if !ok {
		return unparsed, unparsed
	}
	return hours, minutes
}

// leadingInt reads an optionally signed integer prefix after leading
// whitespace and ignores whatever follows it. A prefix too long for an int
// saturates at the int range, so it still orders past every real hour.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, IsSpace)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	// digits only, so the sole possible error is ErrRange with n at MaxInt
	n, _ := strconv.Atoi(s[:end])
	if neg {
		n = -n
	}
	return n, true
}
