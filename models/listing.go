package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RawRecord is an unprocessed listing as returned by a scraper handler.
// Absent fields are "" (or "N/A" for posting time), never an error.
type RawRecord struct {
	Title           string    `json:"title"`
	PriceText       string    `json:"price_text"`
	URL             string    `json:"url"`
	Location        string    `json:"location"`
	PostingTimeText string    `json:"posting_time_text"`
	ScrapedAt       time.Time `json:"scraped_at"`
}

// Listing is one scraped car ad. The URL is the natural unique identifier;
// a listing is created once on first sighting and never mutated afterwards
// (the KBB link backfill is the one exception).
type Listing struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	URL         string     `json:"url" db:"url"`
	Title       string     `json:"title" db:"title"`
	PriceRaw    string     `json:"price_raw" db:"price_raw"`
	Price       string     `json:"price" db:"price"` // normalized digit string, "" = unknown
	Location    string     `json:"location" db:"location"`
	PostingTime string     `json:"posting_time" db:"posting_time"`
	PostedAt    *time.Time `json:"posted_at" db:"posted_at"`
	ScrapedAt   time.Time  `json:"scraped_at" db:"scraped_at"`
	Year        *int       `json:"year" db:"year"`
	Make        string     `json:"make" db:"make"`
	Model       string     `json:"model" db:"model"`
	KBBUrl      string     `json:"kbb_url" db:"kbb_url"`
	AddedAt     time.Time  `json:"added_at" db:"added_at"`
}

// PriceValue parses the normalized price. An empty normalized price means
// the price is unknown, which is distinct from a $0 listing.
func (l *Listing) PriceValue() (float64, bool) {
	if l.Price == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(l.Price, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PostedAtOrEpoch is the sort key for newest-first ordering; listings with
// an unparseable posting time sort last.
func (l *Listing) PostedAtOrEpoch() time.Time {
	if l.PostedAt == nil {
		return time.Unix(0, 0).UTC()
	}
	return *l.PostedAt
}
