package services

import (
	"context"
	"fmt"

	"dealwatch/models"
	"dealwatch/storage"
)

// PageSize is the number of listings per page in the read API.
const PageSize = 20

// ListingView is one listing prepared for display: formatted price, deal
// classification and the market average it was compared against.
type ListingView struct {
	models.Listing
	PriceDisplay string      `json:"price_display"`
	Deal         models.Deal `json:"deal"`
	DealClass    string      `json:"deal_class"`
	MarketAvg    string      `json:"market_avg"`
}

// AggregateView is one market aggregate prepared for display.
type AggregateView struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	YearRange   string `json:"year_range"`
	AvgPrice    string `json:"avg_price"`
	MedianPrice string `json:"median_price"`
	MinPrice    string `json:"min_price"`
	MaxPrice    string `json:"max_price"`
	SampleSize  int    `json:"sample_size"`
}

// Page is one page of classified listings.
type Page struct {
	Listings   []ListingView `json:"listings"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// QueryService serves the read side: paginated listings classified
// against current aggregates, plus aggregate summaries.
type QueryService struct {
	store storage.Store
}

func NewQueryService(store storage.Store) *QueryService {
	return &QueryService{store: store}
}

// GetPage returns the given 1-based page, newest listings first. Each
// listing is classified against the aggregates current at call time.
func (q *QueryService) GetPage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	listings, total, err := q.store.QueryListings(ctx, (page-1)*PageSize, PageSize)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}

	aggs, err := q.store.ListAggregates(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	idx := AggregateIndex(aggs)

	views := make([]ListingView, 0, len(listings))
	for i := range listings {
		views = append(views, buildListingView(&listings[i], idx))
	}

	totalPages := (total + PageSize - 1) / PageSize
	return &Page{
		Listings:   views,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// GetAggregates returns display views of the stored aggregates, filtered
// by case-insensitive substring on make and model.
func (q *QueryService) GetAggregates(ctx context.Context, makeFilter, modelFilter string) ([]AggregateView, error) {
	aggs, err := q.store.ListAggregates(ctx, makeFilter, modelFilter)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}

	views := make([]AggregateView, 0, len(aggs))
	for _, a := range aggs {
		views = append(views, AggregateView{
			Make:        a.Make,
			Model:       a.Model,
			YearRange:   a.YearRange(),
			AvgPrice:    formatPrice(a.AvgPrice),
			MedianPrice: formatPrice(a.MedianPrice),
			MinPrice:    formatPrice(a.MinPrice),
			MaxPrice:    formatPrice(a.MaxPrice),
			SampleSize:  a.SampleSize,
		})
	}
	return views, nil
}

// ClassifyURL classifies one stored listing by URL. Returns DealUnknown
// for URLs not in the store.
func (q *QueryService) ClassifyURL(ctx context.Context, url string) (models.Deal, error) {
	l, err := q.store.GetListingByURL(ctx, url)
	if err != nil {
		return models.DealUnknown, fmt.Errorf("get listing: %w", err)
	}
	if l == nil {
		return models.DealUnknown, nil
	}

	agg, err := q.store.GetAggregate(ctx, l.Make, l.Model)
	if err != nil {
		return models.DealUnknown, fmt.Errorf("get aggregate: %w", err)
	}
	price, ok := l.PriceValue()
	return Classify(price, ok, agg), nil
}

func buildListingView(l *models.Listing, idx map[string]*models.MarketAggregate) ListingView {
	deal := ClassifyListing(l, idx)

	v := ListingView{
		Listing:      *l,
		PriceDisplay: "N/A",
		Deal:         deal,
		DealClass:    deal.CSSClass(),
		MarketAvg:    "N/A",
	}
	if price, ok := l.PriceValue(); ok {
		v.PriceDisplay = formatPrice(price)
	}
	if l.Make != "" && l.Model != "" {
		if agg, ok := idx[models.AggregateKey(l.Make, l.Model)]; ok {
			v.MarketAvg = formatPrice(agg.AvgPrice)
		}
	}
	return v
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
