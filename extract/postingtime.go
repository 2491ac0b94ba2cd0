package extract

import (
	"strings"
	"time"
)

// Canonical is the storage format for normalized posting times.
const Canonical = "2006-01-02 15:04:05"

var (
	isoLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05-0700",
		"2006-01-02T15:04",
	}
	dashLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	slashLayouts = []string{
		"01/02/2006",
		"01/02/2006 15:04",
		"01/02/06",
		"01/02/06 15:04",
	}
	// Month-name forms; layouts without a year get the current year.
	monthLayouts = []struct {
		layout  string
		hasYear bool
	}{
		{"Jan 2", false},
		{"January 2", false},
		{"Jan 2, 2006", true},
		{"January 2, 2006", true},
		{"Jan 2, 2006 15:04", true},
		{"January 2, 2006 15:04", true},
		{"Jan 2 15:04", false},
		{"January 2 15:04", false},
	}
)

// NormalizePostingTime converts the many display formats sites use for a
// posting time into the canonical "2006-01-02 15:04:05" form. An empty
// input becomes "N/A". Trailing "+HH:MM" zone offsets are dropped before
// parsing. Month-name forms without a year assume the current year. A
// value that matches no known layout is returned unchanged.
func NormalizePostingTime(raw string) string {
	if raw == "" {
		return "N/A"
	}

	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "+"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}

	var layouts []string
	switch {
	case strings.Contains(s, "T"):
		layouts = isoLayouts
	case strings.Contains(s, "-") && strings.Contains(s, ":"):
		layouts = dashLayouts
	case strings.Contains(s, "/"):
		layouts = slashLayouts
	default:
		for _, m := range monthLayouts {
			if t, err := time.Parse(m.layout, s); err == nil {
				if !m.hasYear {
					t = t.AddDate(time.Now().Year(), 0, 0)
				}
				return t.Format(Canonical)
			}
		}
		return raw
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(Canonical)
		}
	}
	return raw
}

// ParseCanonical parses a normalized posting time back into a time.Time.
// The second return is false for "N/A" or anything not in canonical form.
func ParseCanonical(s string) (time.Time, bool) {
	t, err := time.Parse(Canonical, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
