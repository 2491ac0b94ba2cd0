package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"dealwatch/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		price_raw TEXT,
		price TEXT,
		location TEXT,
		posting_time TEXT,
		posted_at DATETIME,
		scraped_at DATETIME NOT NULL,
		year INTEGER,
		make TEXT,
		model TEXT,
		kbb_url TEXT,
		added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_listings_posted_at ON listings (posted_at DESC);
	CREATE INDEX IF NOT EXISTS idx_listings_make_model ON listings (make, model);

	CREATE TABLE IF NOT EXISTS market_aggregates (
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year_from INTEGER,
		year_to INTEGER,
		avg_price REAL NOT NULL,
		median_price REAL NOT NULL,
		min_price REAL NOT NULL,
		max_price REAL NOT NULL,
		sample_size INTEGER NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (make, model)
	);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id INTEGER PRIMARY KEY,
		source TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		found INTEGER NOT NULL DEFAULT 0,
		admitted INTEGER NOT NULL DEFAULT 0,
		rejected_duplicate INTEGER NOT NULL DEFAULT 0,
		rejected_filtered INTEGER NOT NULL DEFAULT 0,
		persisted INTEGER NOT NULL DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS ingest_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL
	);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// =============================================================================
// Listings
// =============================================================================

func (s *SQLiteStore) AddListings(ctx context.Context, listings []models.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (
			id, url, title, price_raw, price, location, posting_time, posted_at,
			scraped_at, year, make, model, kbb_url, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, l := range listings {
		res, err := stmt.ExecContext(ctx,
			l.ID.String(), l.URL, l.Title, l.PriceRaw, l.Price, l.Location, l.PostingTime, l.PostedAt,
			l.ScrapedAt, l.Year, l.Make, l.Model, l.KBBUrl, l.AddedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("insert listing %s: %w", l.URL, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStore) GetExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM listings`)
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

type sqlRow interface {
	Scan(dest ...any) error
}

func scanSQLiteListing(row sqlRow) (*models.Listing, error) {
	var l models.Listing
	var id string
	err := row.Scan(
		&id, &l.URL, &l.Title, &l.PriceRaw, &l.Price, &l.Location, &l.PostingTime, &l.PostedAt,
		&l.ScrapedAt, &l.Year, &l.Make, &l.Model, &l.KBBUrl, &l.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	l.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse listing id %q: %w", id, err)
	}
	return &l, nil
}

func (s *SQLiteStore) QueryListings(ctx context.Context, offset, limit int) ([]models.Listing, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	query := `
		SELECT ` + listingColumns + `
		FROM listings
		ORDER BY posted_at IS NULL, posted_at DESC, added_at DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, *l)
	}
	return listings, total, rows.Err()
}

func (s *SQLiteStore) AllListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+listingColumns+` FROM listings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) GetListingByURL(ctx context.Context, url string) (*models.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE url = ?`, url)
	l, err := scanSQLiteListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *SQLiteStore) ListingsMissingKBB(ctx context.Context, limit int) ([]models.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE (kbb_url IS NULL OR kbb_url = '') AND title <> ''
		ORDER BY added_at
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanSQLiteListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) SetKBBUrl(ctx context.Context, id uuid.UUID, kbbURL string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE listings SET kbb_url = ? WHERE id = ?`, kbbURL, id.String())
	return err
}

// =============================================================================
// Market Aggregates
// =============================================================================

func (s *SQLiteStore) UpsertAggregate(ctx context.Context, agg *models.MarketAggregate) error {
	query := `
		INSERT INTO market_aggregates (
			make, model, year_from, year_to, avg_price, median_price,
			min_price, max_price, sample_size, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (make, model) DO UPDATE SET
			year_from = excluded.year_from,
			year_to = excluded.year_to,
			avg_price = excluded.avg_price,
			median_price = excluded.median_price,
			min_price = excluded.min_price,
			max_price = excluded.max_price,
			sample_size = excluded.sample_size,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		agg.Make, agg.Model, agg.YearFrom, agg.YearTo, agg.AvgPrice, agg.MedianPrice,
		agg.MinPrice, agg.MaxPrice, agg.SampleSize, agg.UpdatedAt,
	)
	return err
}

func scanSQLiteAggregate(row sqlRow) (*models.MarketAggregate, error) {
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

func (s *SQLiteStore) ListAggregates(ctx context.Context, makeFilter, modelFilter string) ([]models.MarketAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM market_aggregates
		WHERE LOWER(make) LIKE ? AND LOWER(model) LIKE ?
		ORDER BY make, model`

	rows, err := s.db.QueryContext(ctx, query,
		"%"+strings.ToLower(makeFilter)+"%", "%"+strings.ToLower(modelFilter)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aggs []models.MarketAggregate
	for rows.Next() {
		a, err := scanSQLiteAggregate(rows)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, *a)
	}
	return aggs, rows.Err()
}

func (s *SQLiteStore) GetAggregate(ctx context.Context, mk, model string) (*models.MarketAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM market_aggregates
		WHERE LOWER(make) = ? AND LOWER(model) = ?`

	row := s.db.QueryRowContext(ctx, query, strings.ToLower(mk), strings.ToLower(model))
	a, err := scanSQLiteAggregate(row)
	if err == sql.ErrNoRows {
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

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.IngestRun) error {
	query := `
		INSERT INTO ingest_runs (source, started_at, status, found, admitted, rejected_duplicate, rejected_filtered, persisted, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		run.Source, run.StartedAt, run.Status, run.Found, run.Admitted, run.RejectedDuplicate, run.RejectedFiltered, run.Persisted, run.ErrorMessage,
	)
	if err != nil {
		return err
	}
	run.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *models.IngestRun) error {
	query := `
		UPDATE ingest_runs SET
			finished_at = ?, status = ?, found = ?, admitted = ?,
			rejected_duplicate = ?, rejected_filtered = ?, persisted = ?, error_message = ?
		WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query,
		run.FinishedAt, run.Status, run.Found, run.Admitted,
		run.RejectedDuplicate, run.RejectedFiltered, run.Persisted, run.ErrorMessage,
		run.ID,
	)
	return err
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	query := `
		SELECT id, source, started_at, finished_at, status, found, admitted,
			rejected_duplicate, rejected_filtered, persisted, error_message
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
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

func (s *SQLiteStore) AppendRunLog(ctx context.Context, entry *models.IngestLog) error {
	query := `
		INSERT INTO ingest_logs (run_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		entry.RunID, entry.Timestamp, entry.Level, entry.Message,
	)
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}
