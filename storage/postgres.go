package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealwatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS listings (
			id UUID PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			price_raw TEXT,
			price TEXT,
			location TEXT,
			posting_time TEXT,
			posted_at TIMESTAMPTZ,
			scraped_at TIMESTAMPTZ NOT NULL,
			year INT,
			make TEXT,
			model TEXT,
			kbb_url TEXT,
			added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_posted_at ON listings (posted_at DESC NULLS LAST)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_make_model ON listings (make, model)`,
		`CREATE TABLE IF NOT EXISTS market_aggregates (
			make TEXT NOT NULL,
			model TEXT NOT NULL,
			year_from INT,
			year_to INT,
			avg_price DOUBLE PRECISION NOT NULL,
			median_price DOUBLE PRECISION NOT NULL,
			min_price DOUBLE PRECISION NOT NULL,
			max_price DOUBLE PRECISION NOT NULL,
			sample_size INT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (make, model)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			found INT NOT NULL DEFAULT 0,
			admitted INT NOT NULL DEFAULT 0,
			rejected_duplicate INT NOT NULL DEFAULT 0,
			rejected_filtered INT NOT NULL DEFAULT 0,
			persisted INT NOT NULL DEFAULT 0,
			error_message TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_logs (
			id BIGSERIAL PRIMARY KEY,
			run_id BIGINT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// =============================================================================
// Listings
// =============================================================================

// AddListings inserts the batch in one transaction, skipping rows whose
// URL is already stored. Returns the number of rows actually inserted.
func (s *PostgresStore) AddListings(ctx context.Context, listings []models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO listings (
			id, url, title, price_raw, price, location, posting_time, posted_at,
			scraped_at, year, make, model, kbb_url, added_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (url) DO NOTHING`

	inserted := 0
	for _, l := range listings {
		tag, err := tx.Exec(ctx, query,
			l.ID, l.URL, l.Title, l.PriceRaw, l.Price, l.Location, l.PostingTime, l.PostedAt,
			l.ScrapedAt, l.Year, l.Make, l.Model, l.KBBUrl, l.AddedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert listing %s: %w", l.URL, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM listings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

const listingColumns = `id, url, title, price_raw, price, location, posting_time, posted_at,
	scraped_at, year, make, model, kbb_url, added_at`

func scanListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.URL, &l.Title, &l.PriceRaw, &l.Price, &l.Location, &l.PostingTime, &l.PostedAt,
		&l.ScrapedAt, &l.Year, &l.Make, &l.Model, &l.KBBUrl, &l.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// QueryListings returns one page ordered newest first (rows without a
// posting time sort last) plus the total row count.
func (s *PostgresStore) QueryListings(ctx context.Context, offset, limit int) ([]models.Listing, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	query := `
		SELECT ` + listingColumns + `
		FROM listings
		ORDER BY posted_at DESC NULLS LAST, added_at DESC
		OFFSET $1 LIMIT $2`

	rows, err := s.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, *l)
	}
	return listings, total, rows.Err()
}

func (s *PostgresStore) AllListings(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) GetListingByURL(ctx context.Context, url string) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE url = $1`

	l, err := scanListing(s.pool.QueryRow(ctx, query, url))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *PostgresStore) ListingsMissingKBB(ctx context.Context, limit int) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE (kbb_url IS NULL OR kbb_url = '') AND title <> ''
		ORDER BY added_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) SetKBBUrl(ctx context.Context, id uuid.UUID, kbbURL string) error {
	_, err := s.pool.Exec(ctx, `UPDATE listings SET kbb_url = $2 WHERE id = $1`, id, kbbURL)
	return err
}

// =============================================================================
// Market Aggregates
// =============================================================================

func (s *PostgresStore) UpsertAggregate(ctx context.Context, agg *models.MarketAggregate) error {
	query := `
		INSERT INTO market_aggregates (
			make, model, year_from, year_to, avg_price, median_price,
			min_price, max_price, sample_size, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (make, model) DO UPDATE SET
			year_from = EXCLUDED.year_from,
			year_to = EXCLUDED.year_to,
			avg_price = EXCLUDED.avg_price,
			median_price = EXCLUDED.median_price,
			min_price = EXCLUDED.min_price,
			max_price = EXCLUDED.max_price,
			sample_size = EXCLUDED.sample_size,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		agg.Make, agg.Model, agg.YearFrom, agg.YearTo, agg.AvgPrice, agg.MedianPrice,
		agg.MinPrice, agg.MaxPrice, agg.SampleSize, agg.UpdatedAt,
	)
	return err
}

func scanAggregate(row pgx.Row) (*models.MarketAggregate, error) {
	var a models.MarketAggregate
	err := row.Scan(
		&a.Make, &a.Model, &a.YearFrom, &a.YearTo, &a.AvgPrice, &a.MedianPrice,
		&a.MinPrice, &a.MaxPrice, &a.SampleSize, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const aggregateColumns = `make, model, year_from, year_to, avg_price, median_price,
	min_price, max_price, sample_size, updated_at`

// ListAggregates filters by case-insensitive substring on make and model.
// Empty filters match everything.
func (s *PostgresStore) ListAggregates(ctx context.Context, makeFilter, modelFilter string) ([]models.MarketAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM market_aggregates
		WHERE make ILIKE $1 AND model ILIKE $2
		ORDER BY make, model`

	rows, err := s.pool.Query(ctx, query,
		"%"+makeFilter+"%", "%"+modelFilter+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggs []models.MarketAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, *a)
	}
	return aggs, rows.Err()
}

func (s *PostgresStore) GetAggregate(ctx context.Context, mk, model string) (*models.MarketAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM market_aggregates
		WHERE LOWER(make) = $1 AND LOWER(model) = $2`

	a, err := scanAggregate(s.pool.QueryRow(ctx, query,
		strings.ToLower(mk), strings.ToLower(model),
	))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// =============================================================================
// Ingest Runs
// =============================================================================

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.IngestRun) error {
	query := `
		INSERT INTO ingest_runs (source, started_at, status, found, admitted, rejected_duplicate, rejected_filtered, persisted, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		run.Source, run.StartedAt, run.Status, run.Found, run.Admitted, run.RejectedDuplicate, run.RejectedFiltered, run.Persisted, run.ErrorMessage,
	).Scan(&run.ID)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.IngestRun) error {
	query := `
		UPDATE ingest_runs SET
			finished_at = $2, status = $3, found = $4, admitted = $5,
			rejected_duplicate = $6, rejected_filtered = $7, persisted = $8, error_message = $9
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.Found, run.Admitted,
		run.RejectedDuplicate, run.RejectedFiltered, run.Persisted, run.ErrorMessage,
	)
	return err
}

func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	query := `
		SELECT id, source, started_at, finished_at, status, found, admitted,
			rejected_duplicate, rejected_filtered, persisted, error_message
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.IngestRun
	for rows.Next() {
		var r models.IngestRun
		if err := rows.Scan(
			&r.ID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Found, &r.Admitted,
			&r.RejectedDuplicate, &r.RejectedFiltered, &r.Persisted, &r.ErrorMessage,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) AppendRunLog(ctx context.Context, entry *models.IngestLog) error {
	query := `
		INSERT INTO ingest_logs (run_id, timestamp, level, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		entry.RunID, entry.Timestamp, entry.Level, entry.Message,
	).Scan(&entry.ID)
}
