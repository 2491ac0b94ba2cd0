package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"dealwatch/extract"
	"dealwatch/kbb"
	"dealwatch/models"
	"dealwatch/storage"
)

// Source produces raw records for one search, typically a scraper handler.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// ErrRunInProgress is returned when a pipeline trigger overlaps a run
// that is still executing.
var ErrRunInProgress = errors.New("ingest run already in progress")

// Pipeline drives one ingest cycle: fetch raw records, admit them through
// the dedup/keyword filter, extract vehicle attributes, persist the batch
// and recompute market aggregates. Runs are serialized; an overlapping
// trigger is skipped, not queued.
type Pipeline struct {
	store   storage.Store
	sources []Source
	market  *MarketEngine

	filterKeywords []string

	mu sync.Mutex
}

func NewPipeline(store storage.Store, market *MarketEngine, sources []Source, filterKeywords []string) *Pipeline {
	return &Pipeline{
		store:          store,
		sources:        sources,
		market:         market,
		filterKeywords: filterKeywords,
	}
}

// Run executes one cycle across all sources, or returns ErrRunInProgress
// when a previous cycle has not finished.
func (p *Pipeline) Run(ctx context.Context) (*models.IngestResult, error) {
	if !p.mu.TryLock() {
		log.Printf("[ingest] run already in progress, skipping trigger")
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()

	total := &models.IngestResult{}
	for _, src := range p.sources {
		res, err := p.ingestSource(ctx, src)
		if err != nil {
			log.Printf("[ingest] source %s failed: %v", src.Name(), err)
			continue
		}
		total.Admitted += res.Admitted
		total.RejectedDuplicate += res.RejectedDuplicate
		total.RejectedFiltered += res.RejectedFiltered
		total.Persisted += res.Persisted
	}

	// Aggregates are recomputed once per cycle over the whole corpus,
	// even when no new listings landed, so a cycle after a failed
	// recompute still repairs stale aggregates. On failure the previous
	// aggregates stay in place.
	if n, err := p.market.Recompute(ctx); err != nil {
		log.Printf("[ingest] aggregate recompute failed, keeping stale aggregates: %v", err)
	} else {
		log.Printf("[ingest] recomputed %d market aggregates", n)
	}

	return total, nil
}

func (p *Pipeline) ingestSource(ctx context.Context, src Source) (*models.IngestResult, error) {
	now := time.Now().UTC()
	run := &models.IngestRun{
		Source:    src.Name(),
		StartedAt: now,
		Status:    models.RunStatusRunning,
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	p.runLog(ctx, run.ID, "info", fmt.Sprintf("starting ingest for %s", src.Name()))

	res, err := p.runSource(ctx, src, run)
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = err.Error()
		p.runLog(ctx, run.ID, "error", err.Error())
	} else {
		run.Status = models.RunStatusCompleted
		p.runLog(ctx, run.ID, "info", fmt.Sprintf(
			"found=%d admitted=%d dup=%d filtered=%d persisted=%d",
			run.Found, run.Admitted, run.RejectedDuplicate, run.RejectedFiltered, run.Persisted))
	}
	if uerr := p.store.UpdateRun(ctx, run); uerr != nil {
		log.Printf("[ingest] update run %d: %v", run.ID, uerr)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[ingest] source=%s found=%d admitted=%d dup=%d filtered=%d persisted=%d",
		src.Name(), run.Found, run.Admitted, run.RejectedDuplicate, run.RejectedFiltered, run.Persisted)
	return res, nil
}

// runLog appends a line to the run's persisted log. Failures are logged
// and otherwise ignored so the ledger never blocks an ingest.
func (p *Pipeline) runLog(ctx context.Context, runID int64, level, message string) {
	entry := &models.IngestLog{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
	}
	if err := p.store.AppendRunLog(ctx, entry); err != nil {
		log.Printf("[ingest] append run log: %v", err)
	}
}

func (p *Pipeline) runSource(ctx context.Context, src Source, run *models.IngestRun) (*models.IngestResult, error) {
	raws, err := src.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	run.Found = len(raws)

	existing, err := p.store.GetExistingURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing urls: %w", err)
	}

	filter := NewDedupFilter(existing, p.filterKeywords)

	var staged []models.Listing
	res := &models.IngestResult{}
	for i := range raws {
		raw := &raws[i]
		switch filter.Admit(raw) {
		case RejectDuplicate:
			res.RejectedDuplicate++
			continue
		case RejectFiltered:
			res.RejectedFiltered++
			continue
		}
		res.Admitted++
		staged = append(staged, buildListing(raw))
	}

	// Newest first, so page one of the UI matches insertion order.
	sort.Slice(staged, func(i, j int) bool {
		return staged[i].PostedAtOrEpoch().After(staged[j].PostedAtOrEpoch())
	})

	persisted, err := p.store.AddListings(ctx, staged)
	if err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	res.Persisted = persisted

	run.Admitted = res.Admitted
	run.RejectedDuplicate = res.RejectedDuplicate
	run.RejectedFiltered = res.RejectedFiltered
	run.Persisted = res.Persisted
	return res, nil
}

// buildListing turns an admitted raw record into a listing: normalized
// price and posting time, extracted year/make/model and the KBB link.
func buildListing(raw *models.RawRecord) models.Listing {
	now := time.Now().UTC()
	scrapedAt := raw.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}

	mk := extract.Make(raw.Title)
	model := extract.Model(raw.Title, mk)

	l := models.Listing{
		ID:          uuid.New(),
		URL:         raw.URL,
		Title:       raw.Title,
		PriceRaw:    raw.PriceText,
		Price:       extract.NormalizePrice(raw.PriceText),
		Location:    raw.Location,
		PostingTime: extract.NormalizePostingTime(raw.PostingTimeText),
		ScrapedAt:   scrapedAt,
		Year:        extract.Year(raw.Title),
		Make:        mk,
		Model:       model,
		KBBUrl:      kbb.LookupURL(raw.Title),
		AddedAt:     now,
	}

	if t, ok := extract.ParseCanonical(l.PostingTime); ok {
		l.PostedAt = &t
	}
	return l
}
