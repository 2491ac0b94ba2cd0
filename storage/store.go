// Package storage persists listings, market aggregates and ingest runs.
// Two backends exist: Postgres (pgx) for deployments and SQLite for
// single-host setups. Both satisfy Store.
package storage

import (
	"context"

	"github.com/google/uuid"

	"dealwatch/models"
)

// Store is the persistence surface the pipeline, query service and
// workers depend on. Lookups that find nothing return (nil, nil).
type Store interface {
	Migrate(ctx context.Context) error
	Close()

	// Listings
	AddListings(ctx context.Context, listings []models.Listing) (int, error)
	GetExistingURLs(ctx context.Context) (map[string]struct{}, error)
	QueryListings(ctx context.Context, offset, limit int) ([]models.Listing, int, error)
	AllListings(ctx context.Context) ([]models.Listing, error)
	GetListingByURL(ctx context.Context, url string) (*models.Listing, error)
	ListingsMissingKBB(ctx context.Context, limit int) ([]models.Listing, error)
	SetKBBUrl(ctx context.Context, id uuid.UUID, kbbURL string) error

	// Market aggregates
	UpsertAggregate(ctx context.Context, agg *models.MarketAggregate) error
	ListAggregates(ctx context.Context, makeFilter, modelFilter string) ([]models.MarketAggregate, error)
	GetAggregate(ctx context.Context, make, model string) (*models.MarketAggregate, error)

	// Ingest runs
	CreateRun(ctx context.Context, run *models.IngestRun) error
	UpdateRun(ctx context.Context, run *models.IngestRun) error
	RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error)
	AppendRunLog(ctx context.Context, entry *models.IngestLog) error
}
