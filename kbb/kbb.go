// Package kbb builds Kelley Blue Book lookup URLs from listing titles.
package kbb

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	yearRe       = regexp.MustCompile(`\b(199[0-9]|20[0-2][0-9])\b`)
	modelNoiseRe = regexp.MustCompile(`(\$[\d,]+|\d{4}|\(|\))`)
)

// Make keywords in match priority order. Aliases map to the full name.
var makes = []string{
	"Toyota", "Honda", "Ford", "Chevrolet", "Chevy", "Nissan", "Hyundai",
	"Kia", "Mazda", "Subaru", "Volkswagen", "VW", "Jeep", "BMW",
	"Mercedes", "Lexus", "Acura", "Audi",
}

// LookupURL builds a cars-for-sale URL from the raw title. With a year,
// make and model it uses the structured path; with just year and make it
// drops the model segment; otherwise it falls back to a free-text search
// over the title with dollar signs and commas stripped. Returns "" for an
// empty title.
func LookupURL(title string) string {
	if strings.TrimSpace(title) == "" {
		return ""
	}

	year := yearRe.FindString(title)

	mk := ""
	titleLower := strings.ToLower(title)
	for _, candidate := range makes {
		if strings.Contains(titleLower, strings.ToLower(candidate)) {
			mk = candidate
			if strings.EqualFold(mk, "chevy") {
				mk = "Chevrolet"
			}
			if strings.EqualFold(mk, "vw") {
				mk = "Volkswagen"
			}
			break
		}
	}

	// Model guess: first token after the make, with prices, 4-digit
	// numbers and parens stripped.
	model := ""
	if mk != "" && strings.Contains(title, mk) {
		idx := strings.Index(titleLower, strings.ToLower(mk))
		afterMake := strings.TrimSpace(title[idx+len(mk):])
		cleaned := strings.TrimSpace(modelNoiseRe.ReplaceAllString(afterMake, ""))
		if fields := strings.Fields(cleaned); len(fields) > 0 {
			model = fields[0]
		}
	}

	if year != "" && mk != "" {
		if model != "" {
			return fmt.Sprintf("https://www.kbb.com/cars-for-sale/year-%s/make-%s/model-%s/",
				year, url.PathEscape(strings.ToLower(mk)), url.PathEscape(strings.ToLower(model)))
		}
		return fmt.Sprintf("https://www.kbb.com/cars-for-sale/year-%s/make-%s/",
			year, url.PathEscape(strings.ToLower(mk)))
	}

	search := strings.NewReplacer("$", "", ",", "").Replace(title)
	return "https://www.kbb.com/cars-for-sale/all?search=" + url.QueryEscape(search)
}
