package models

import (
	"fmt"
	"strings"
	"time"
)

// MarketAggregate holds summary price statistics for one (make, model) pair.
// Rows only exist for pairs with at least MinSampleSize priced listings and
// are recomputed wholesale from the full corpus, never merged incrementally.
type MarketAggregate struct {
	Make        string    `json:"make" db:"make"`
	Model       string    `json:"model" db:"model"`
	YearFrom    *int      `json:"year_from" db:"year_from"`
	YearTo      *int      `json:"year_to" db:"year_to"`
	AvgPrice    float64   `json:"avg_price" db:"avg_price"`
	MedianPrice float64   `json:"median_price" db:"median_price"`
	MinPrice    float64   `json:"min_price" db:"min_price"`
	MaxPrice    float64   `json:"max_price" db:"max_price"`
	SampleSize  int       `json:"sample_size" db:"sample_size"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// MinSampleSize is the minimum number of priced listings a (make, model)
// group needs before an aggregate is materialized.
const MinSampleSize = 3

// Key returns the lowercase lookup key used to match listings to aggregates.
func (a *MarketAggregate) Key() string {
	return AggregateKey(a.Make, a.Model)
}

func AggregateKey(make, model string) string {
	return strings.ToLower(make + "_" + model)
}

// YearRange formats the observed year span for display, "N/A" when no
// listing in the group carried a year.
func (a *MarketAggregate) YearRange() string {
	if a.YearFrom == nil || a.YearTo == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d-%d", *a.YearFrom, *a.YearTo)
}

// Deal is the qualitative label comparing a listing price to its model's
// aggregate average.
type Deal string

const (
	DealGreat        Deal = "Great Deal"
	DealGood         Deal = "Good Deal"
	DealFair         Deal = "Fair Price"
	DealAboveMarket  Deal = "Above Market"
	DealUnknown      Deal = "Unknown"
	DealPriceUnknown Deal = "Price Unknown"
)

// CSSClass maps a classification to the style hook used by the web UI.
func (d Deal) CSSClass() string {
	switch d {
	case DealGreat:
		return "deal-great"
	case DealGood:
		return "deal-fair"
	case DealAboveMarket:
		return "deal-poor"
	default:
		return ""
	}
}
