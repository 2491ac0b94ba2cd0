// Package extract derives structured vehicle attributes (year, make, model)
// and normalized prices from free-text listing titles.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	yearRe     = regexp.MustCompile(`\b(19[7-9][0-9]|20[0-2][0-9])\b`)
	nonDigitRe = regexp.MustCompile(`[^\d]`)
)

// Year returns the first 4-digit year in [1970, 2029] found scanning the
// title left to right, or nil if none is present.
func Year(title string) *int {
	match := yearRe.FindString(title)
	if match == "" {
		return nil
	}
	y, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &y
}

// Make returns the canonical make whose keyword appears in the title,
// case-insensitively. The keyword list order decides ties, not position
// in the title; aliases (chevy, vw) normalize to the full name. Returns
// "" when no known make matches.
func Make(title string) string {
	titleLower := strings.ToLower(title)
	for _, m := range knownMakes {
		if strings.Contains(titleLower, m.keyword) {
			return m.canonical
		}
	}
	return ""
}

// Model returns the model for the given make found in the title. The
// per-make keyword list is checked in order and the first substring match
// wins, title-cased. When no keyword matches, the first whitespace token
// after the make's position in the title is used as a best-effort guess
// (only if longer than one character). Returns "" when make is "" or
// nothing can be extracted.
func Model(title, make string) string {
	if make == "" {
		return ""
	}

	titleLower := strings.ToLower(title)
	makeLower := strings.ToLower(make)

	if keywords, ok := knownModels[makeLower]; ok {
		for _, kw := range keywords {
			if strings.Contains(titleLower, kw) {
				return titleCase(kw)
			}
		}
	}

	// Fallback: guess from the text immediately following the make.
	makeIdx := strings.Index(titleLower, makeLower)
	if makeIdx < 0 {
		return ""
	}
	afterMake := strings.TrimSpace(titleLower[makeIdx+len(makeLower):])
	fields := strings.Fields(afterMake)
	if len(fields) == 0 {
		return ""
	}
	candidate := fields[0]
	if len(candidate) <= 1 {
		return ""
	}
	return titleCase(candidate)
}

// NormalizePrice strips every non-digit character from a price display
// string. It returns "" when nothing remains, which callers must treat as
// price-unknown, never as $0.
func NormalizePrice(raw string) string {
	return nonDigitRe.ReplaceAllString(raw, "")
}

// titleCase uppercases the first letter of every letter run and lowercases
// the rest, so "cr-v" -> "Cr-V", "4runner" -> "4Runner", "santa fe" ->
// "Santa Fe".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
