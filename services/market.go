package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dealwatch/models"
	"dealwatch/storage"
)

// MarketEngine recomputes per-(make, model) price aggregates from the
// full listing corpus and classifies individual prices against them.
type MarketEngine struct {
	store storage.Store
}

func NewMarketEngine(store storage.Store) *MarketEngine {
	return &MarketEngine{store: store}
}

// ComputeAggregates groups listings by lowercase (make, model) and returns
// an aggregate for every group with at least models.MinSampleSize priced
// listings. Listings without make, model or a parseable price do not
// count toward any group.
func ComputeAggregates(listings []models.Listing, now time.Time) []models.MarketAggregate {
	type group struct {
		make   string
		model  string
		prices []float64
		years  []int
	}

	groups := make(map[string]*group)
	var order []string
	for _, l := range listings {
		if l.Make == "" || l.Model == "" {
			continue
		}
		price, ok := l.PriceValue()
		if !ok {
			continue
		}

		key := models.AggregateKey(l.Make, l.Model)
		g, exists := groups[key]
		if !exists {
			g = &group{make: l.Make, model: l.Model}
			groups[key] = g
			order = append(order, key)
		}
		g.prices = append(g.prices, price)
		if l.Year != nil {
			g.years = append(g.years, *l.Year)
		}
	}
	sort.Strings(order)

	var aggs []models.MarketAggregate
	for _, key := range order {
		g := groups[key]
		if len(g.prices) < models.MinSampleSize {
			continue
		}

		sort.Float64s(g.prices)
		sum := 0.0
		for _, p := range g.prices {
			sum += p
		}

		agg := models.MarketAggregate{
			Make:        g.make,
			Model:       g.model,
			AvgPrice:    sum / float64(len(g.prices)),
			MedianPrice: g.prices[len(g.prices)/2],
			MinPrice:    g.prices[0],
			MaxPrice:    g.prices[len(g.prices)-1],
			SampleSize:  len(g.prices),
			UpdatedAt:   now,
		}
		if len(g.years) > 0 {
			sort.Ints(g.years)
			from, to := g.years[0], g.years[len(g.years)-1]
			agg.YearFrom, agg.YearTo = &from, &to
		}
		aggs = append(aggs, agg)
	}
	return aggs
}

// Recompute loads the full corpus, recomputes every aggregate and upserts
// the results. Existing rows for groups that dropped below the sample
// threshold are left in place; they go stale rather than disappear.
func (e *MarketEngine) Recompute(ctx context.Context) (int, error) {
	listings, err := e.store.AllListings(ctx)
	if err != nil {
		return 0, fmt.Errorf("load listings: %w", err)
	}

	aggs := ComputeAggregates(listings, time.Now().UTC())
	for i := range aggs {
		if err := e.store.UpsertAggregate(ctx, &aggs[i]); err != nil {
			return 0, fmt.Errorf("upsert aggregate %s %s: %w", aggs[i].Make, aggs[i].Model, err)
		}
	}
	return len(aggs), nil
}

// Classify compares a listing price against its model's aggregate.
// Thresholds are relative to the aggregate average: below 85% is a great
// deal, below 95% good, up to 105% fair, anything above that is over
// market.
func Classify(price float64, priceKnown bool, agg *models.MarketAggregate) models.Deal {
	if agg == nil {
		return models.DealUnknown
	}
	if !priceKnown {
		return models.DealPriceUnknown
	}

	avg := agg.AvgPrice
	switch {
	case price < 0.85*avg:
		return models.DealGreat
	case price < 0.95*avg:
		return models.DealGood
	case price <= 1.05*avg:
		return models.DealFair
	default:
		return models.DealAboveMarket
	}
}

// ClassifyListing resolves the aggregate for the listing's make and model
// from the given set and classifies its price. Aggregates are matched by
// lowercase key.
func ClassifyListing(l *models.Listing, aggsByKey map[string]*models.MarketAggregate) models.Deal {
	if l.Make == "" || l.Model == "" {
		return models.DealUnknown
	}
	agg := aggsByKey[models.AggregateKey(l.Make, l.Model)]
	price, ok := l.PriceValue()
	return Classify(price, ok, agg)
}

// AggregateIndex builds the lookup map ClassifyListing consumes.
func AggregateIndex(aggs []models.MarketAggregate) map[string]*models.MarketAggregate {
	idx := make(map[string]*models.MarketAggregate, len(aggs))
	for i := range aggs {
		idx[aggs[i].Key()] = &aggs[i]
	}
	return idx
}
