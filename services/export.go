package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"strconv"

	"dealwatch/models"
	"dealwatch/storage"
)

// Exporter snapshots the listing corpus and market aggregates to CSV and
// uploads them to S3-compatible storage for spreadsheet consumers.
type Exporter struct {
	store    storage.Store
	uploader *storage.SnapshotUploader
}

func NewExporter(store storage.Store, uploader *storage.SnapshotUploader) *Exporter {
	return &Exporter{store: store, uploader: uploader}
}

// Export writes both snapshots and returns the uploaded object keys.
func (e *Exporter) Export(ctx context.Context) ([]string, error) {
	listings, err := e.store.AllListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	aggs, err := e.store.ListAggregates(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}

	listingKey, err := e.uploader.UploadCSV(ctx, "listings", listingsCSV(listings))
	if err != nil {
		return nil, fmt.Errorf("upload listings snapshot: %w", err)
	}
	aggKey, err := e.uploader.UploadCSV(ctx, "market-aggregates", aggregatesCSV(aggs))
	if err != nil {
		return nil, fmt.Errorf("upload aggregates snapshot: %w", err)
	}

	log.Printf("[export] uploaded %d listings and %d aggregates", len(listings), len(aggs))
	return []string{listingKey, aggKey}, nil
}

func listingsCSV(listings []models.Listing) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"url", "title", "price", "location", "posting_time", "year", "make", "model", "kbb_url"})
	for _, l := range listings {
		year := ""
		if l.Year != nil {
			year = strconv.Itoa(*l.Year)
		}
		_ = w.Write([]string{
			l.URL, l.Title, l.Price, l.Location, l.PostingTime, year, l.Make, l.Model, l.KBBUrl,
		})
	}
	w.Flush()
	return &buf
}

func aggregatesCSV(aggs []models.MarketAggregate) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"make", "model", "year_range", "avg_price", "median_price", "min_price", "max_price", "sample_size"})
	for _, a := range aggs {
		_ = w.Write([]string{
			a.Make, a.Model, a.YearRange(),
			fmt.Sprintf("%.2f", a.AvgPrice), fmt.Sprintf("%.2f", a.MedianPrice),
			fmt.Sprintf("%.2f", a.MinPrice), fmt.Sprintf("%.2f", a.MaxPrice),
			strconv.Itoa(a.SampleSize),
		})
	}
	w.Flush()
	return &buf
}
