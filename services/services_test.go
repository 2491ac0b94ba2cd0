package services

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"dealwatch/models"
)

// memStore is an in-memory Store used by the pipeline and query tests.
type memStore struct {
	listings []models.Listing
	aggs     map[string]models.MarketAggregate
	runs     []models.IngestRun
	logs     []models.IngestLog
	upserts  int
}

func newMemStore() *memStore {
	return &memStore{aggs: make(map[string]models.MarketAggregate)}
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close()                            {}

func (m *memStore) AddListings(ctx context.Context, listings []models.Listing) (int, error) {
	existing, _ := m.GetExistingURLs(ctx)
	inserted := 0
	for _, l := range listings {
		if _, dup := existing[l.URL]; dup {
			continue
		}
		existing[l.URL] = struct{}{}
		m.listings = append(m.listings, l)
		inserted++
	}
	return inserted, nil
}

func (m *memStore) GetExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	urls := make(map[string]struct{}, len(m.listings))
	for _, l := range m.listings {
		urls[l.URL] = struct{}{}
	}
	return urls, nil
}

func (m *memStore) QueryListings(ctx context.Context, offset, limit int) ([]models.Listing, int, error) {
	sorted := make([]models.Listing, len(m.listings))
	copy(sorted, m.listings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PostedAtOrEpoch().After(sorted[j].PostedAtOrEpoch())
	})
	total := len(sorted)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return sorted[offset:end], total, nil
}

func (m *memStore) AllListings(ctx context.Context) ([]models.Listing, error) {
	out := make([]models.Listing, len(m.listings))
	copy(out, m.listings)
	return out, nil
}

func (m *memStore) GetListingByURL(ctx context.Context, url string) (*models.Listing, error) {
	for i := range m.listings {
		if m.listings[i].URL == url {
			l := m.listings[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListingsMissingKBB(ctx context.Context, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range m.listings {
		if l.KBBUrl == "" && l.Title != "" {
			out = append(out, l)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) SetKBBUrl(ctx context.Context, id uuid.UUID, kbbURL string) error {
	for i := range m.listings {
		if m.listings[i].ID == id {
			m.listings[i].KBBUrl = kbbURL
		}
	}
	return nil
}

func (m *memStore) UpsertAggregate(ctx context.Context, agg *models.MarketAggregate) error {
	m.aggs[agg.Key()] = *agg
	m.upserts++
	return nil
}

func (m *memStore) ListAggregates(ctx context.Context, makeFilter, modelFilter string) ([]models.MarketAggregate, error) {
	var out []models.MarketAggregate
	for _, a := range m.aggs {
		if strings.Contains(strings.ToLower(a.Make), strings.ToLower(makeFilter)) &&
			strings.Contains(strings.ToLower(a.Model), strings.ToLower(modelFilter)) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Make != out[j].Make {
			return out[i].Make < out[j].Make
		}
		return out[i].Model < out[j].Model
	})
	return out, nil
}

func (m *memStore) GetAggregate(ctx context.Context, mk, model string) (*models.MarketAggregate, error) {
	a, ok := m.aggs[models.AggregateKey(mk, model)]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) CreateRun(ctx context.Context, run *models.IngestRun) error {
	run.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) UpdateRun(ctx context.Context, run *models.IngestRun) error {
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = *run
		}
	}
	return nil
}

func (m *memStore) AppendRunLog(ctx context.Context, entry *models.IngestLog) error {
	entry.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memStore) RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	n := len(m.runs)
	var out []models.IngestRun
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// staticSource feeds a fixed batch of raw records to the pipeline.
type staticSource struct {
	name string
	raws []models.RawRecord
}

func (s *staticSource) Name() string { return s.name }
func (s *staticSource) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	return s.raws, nil
}

func priced(url, title, price string) models.RawRecord {
	return models.RawRecord{
		Title:           title,
		PriceText:       price,
		URL:             url,
		PostingTimeText: "2024-03-01 10:00:00",
	}
}

func TestDedupFilter(t *testing.T) {
	existing := map[string]struct{}{"https://x/seen": {}}
	f := NewDedupFilter(existing, []string{"salvage", "parts"})

	cases := []struct {
		rec  models.RawRecord
		want RejectReason
	}{
		{models.RawRecord{URL: "https://x/new", Title: "2015 Toyota Camry"}, RejectNone},
		{models.RawRecord{URL: "https://x/seen", Title: "2015 Toyota Camry"}, RejectDuplicate},
		// Admitted above, so the same URL in-batch is now a duplicate.
		{models.RawRecord{URL: "https://x/new", Title: "2015 Toyota Camry"}, RejectDuplicate},
		{models.RawRecord{URL: "https://x/a", Title: "2012 Civic SALVAGE title"}, RejectFiltered},
		{models.RawRecord{URL: "", Title: "2012 Civic"}, RejectFiltered},
	}
	for i, c := range cases {
		if got := f.Admit(&c.rec); got != c.want {
			t.Errorf("case %d: Admit = %v, want %v", i, got, c.want)
		}
	}
}

func TestComputeAggregatesThreshold(t *testing.T) {
	now := time.Now().UTC()
	mk := func(url, price string) models.Listing {
		return models.Listing{URL: url, Make: "Toyota", Model: "Camry", Price: price}
	}

	two := []models.Listing{mk("u1", "10000"), mk("u2", "12000")}
	if got := ComputeAggregates(two, now); len(got) != 0 {
		t.Fatalf("expected no aggregate below sample threshold, got %d", len(got))
	}

	three := append(two, mk("u3", "14000"))
	aggs := ComputeAggregates(three, now)
	if len(aggs) != 1 {
		t.Fatalf("expected one aggregate, got %d", len(aggs))
	}
	a := aggs[0]
	if a.SampleSize != 3 {
		t.Errorf("sample size = %d, want 3", a.SampleSize)
	}
	if a.AvgPrice != 12000 {
		t.Errorf("avg = %v, want 12000", a.AvgPrice)
	}
	if a.MedianPrice != 12000 {
		t.Errorf("median = %v, want 12000", a.MedianPrice)
	}
	if a.MinPrice != 10000 || a.MaxPrice != 14000 {
		t.Errorf("min/max = %v/%v, want 10000/14000", a.MinPrice, a.MaxPrice)
	}
}

// Even-length groups use the upper median.
func TestComputeAggregatesUpperMedian(t *testing.T) {
	var listings []models.Listing
	for i, p := range []string{"16000", "10000", "14000", "12000"} {
		listings = append(listings, models.Listing{
			URL: string(rune('a' + i)), Make: "Honda", Model: "Civic", Price: p,
		})
	}
	aggs := ComputeAggregates(listings, time.Now().UTC())
	if len(aggs) != 1 {
		t.Fatalf("expected one aggregate, got %d", len(aggs))
	}
	if aggs[0].MedianPrice != 14000 {
		t.Errorf("median = %v, want upper median 14000", aggs[0].MedianPrice)
	}
}

func TestComputeAggregatesSkipsUnpriced(t *testing.T) {
	listings := []models.Listing{
		{URL: "a", Make: "Toyota", Model: "Camry", Price: "10000", Year: intPtr(2010)},
		{URL: "b", Make: "Toyota", Model: "Camry", Price: ""},
		{URL: "c", Make: "Toyota", Model: "Camry", Price: "12000", Year: intPtr(2018)},
		{URL: "d", Make: "Toyota", Model: "Camry", Price: "14000"},
		{URL: "e", Make: "", Model: "", Price: "9000"},
	}
	aggs := ComputeAggregates(listings, time.Now().UTC())
	if len(aggs) != 1 {
		t.Fatalf("expected one aggregate, got %d", len(aggs))
	}
	a := aggs[0]
	if a.SampleSize != 3 {
		t.Errorf("sample size = %d, want 3 (unpriced rows excluded)", a.SampleSize)
	}
	if a.YearRange() != "2010-2018" {
		t.Errorf("year range = %q, want 2010-2018", a.YearRange())
	}
}

func TestClassifyBoundaries(t *testing.T) {
	agg := &models.MarketAggregate{AvgPrice: 10000}
	cases := []struct {
		price float64
		want  models.Deal
	}{
		{0, models.DealGreat},
		{8499, models.DealGreat},
		{8500, models.DealGood},
		{9499, models.DealGood},
		{9500, models.DealFair},
		{10500, models.DealFair},
		{10501, models.DealAboveMarket},
	}
	for _, c := range cases {
		if got := Classify(c.price, true, agg); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.price, got, c.want)
		}
	}

	if got := Classify(9000, true, nil); got != models.DealUnknown {
		t.Errorf("nil aggregate: got %v, want %v", got, models.DealUnknown)
	}
	if got := Classify(0, false, agg); got != models.DealPriceUnknown {
		t.Errorf("unknown price: got %v, want %v", got, models.DealPriceUnknown)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	store := newMemStore()
	src := &staticSource{name: "test", raws: []models.RawRecord{
		priced("https://x/1", "2014 Toyota Camry LE", "$9,000"),
		priced("https://x/2", "2015 Toyota Camry SE", "$10,000"),
		priced("https://x/3", "2013 Toyota Camry", "$10,000"),
		priced("https://x/4", "2012 Toyota Camry salvage title", "$4,000"),
		priced("https://x/1", "2014 Toyota Camry LE dup", "$9,000"),
	}}

	p := NewPipeline(store, NewMarketEngine(store), []Source{src}, []string{"salvage"})
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Admitted != 3 || res.Persisted != 3 {
		t.Errorf("admitted/persisted = %d/%d, want 3/3", res.Admitted, res.Persisted)
	}
	if res.RejectedDuplicate != 1 || res.RejectedFiltered != 1 {
		t.Errorf("dup/filtered = %d/%d, want 1/1", res.RejectedDuplicate, res.RejectedFiltered)
	}

	agg, err := store.GetAggregate(context.Background(), "Toyota", "Camry")
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	if agg == nil {
		t.Fatal("expected aggregate after recompute")
	}
	wantAvg := (9000.0 + 10000.0 + 10000.0) / 3.0
	if diff := agg.AvgPrice - wantAvg; diff > 0.01 || diff < -0.01 {
		t.Errorf("avg = %v, want %v", agg.AvgPrice, wantAvg)
	}

	// A fresh sighting well under the average classifies as a great deal.
	if got := Classify(8000, true, agg); got != models.DealGreat {
		t.Errorf("Classify(8000) = %v, want %v", got, models.DealGreat)
	}

	runs, _ := store.RecentRuns(context.Background(), 5)
	if len(runs) != 1 {
		t.Fatalf("expected 1 run record, got %d", len(runs))
	}
	if runs[0].Status != models.RunStatusCompleted {
		t.Errorf("run status = %v, want completed", runs[0].Status)
	}
	if runs[0].Found != 5 || runs[0].Persisted != 3 {
		t.Errorf("run found/persisted = %d/%d, want 5/3", runs[0].Found, runs[0].Persisted)
	}
}

// Re-running over the same source adds nothing: every URL is now known.
func TestPipelineIdempotentRerun(t *testing.T) {
	store := newMemStore()
	src := &staticSource{name: "test", raws: []models.RawRecord{
		priced("https://x/1", "2014 Toyota Camry", "$9,000"),
		priced("https://x/2", "2015 Toyota Camry", "$10,000"),
		priced("https://x/3", "2013 Toyota Camry", "$11,000"),
	}}
	p := NewPipeline(store, NewMarketEngine(store), []Source{src}, nil)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Persisted != 0 || res.RejectedDuplicate != 3 {
		t.Errorf("second run persisted/dup = %d/%d, want 0/3", res.Persisted, res.RejectedDuplicate)
	}
	if len(store.listings) != 3 {
		t.Errorf("store has %d listings, want 3", len(store.listings))
	}
	// Aggregates are recomputed every cycle, even with nothing persisted.
	if store.upserts != 2 {
		t.Errorf("aggregate upserts = %d, want 2", store.upserts)
	}
}

func TestQueryServicePagination(t *testing.T) {
	store := newMemStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 45; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		store.listings = append(store.listings, models.Listing{
			ID:       uuid.New(),
			URL:      uuid.NewString(),
			Title:    "2015 Toyota Camry",
			Price:    "10000",
			Make:     "Toyota",
			Model:    "Camry",
			PostedAt: &ts,
		})
	}

	q := NewQueryService(store)
	page, err := q.GetPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if len(page.Listings) != PageSize {
		t.Errorf("page 1 size = %d, want %d", len(page.Listings), PageSize)
	}
	if page.Total != 45 || page.TotalPages != 3 {
		t.Errorf("total/pages = %d/%d, want 45/3", page.Total, page.TotalPages)
	}

	last, err := q.GetPage(context.Background(), 3)
	if err != nil {
		t.Fatalf("get last page: %v", err)
	}
	if len(last.Listings) != 5 {
		t.Errorf("page 3 size = %d, want 5", len(last.Listings))
	}

	// Newest first within a page.
	first := page.Listings[0].PostedAtOrEpoch()
	second := page.Listings[1].PostedAtOrEpoch()
	if first.Before(second) {
		t.Error("expected newest-first ordering")
	}
}

func TestQueryServiceClassifiedViews(t *testing.T) {
	store := newMemStore()
	store.aggs[models.AggregateKey("Toyota", "Camry")] = models.MarketAggregate{
		Make: "Toyota", Model: "Camry", AvgPrice: 10000, MedianPrice: 10000,
		MinPrice: 8000, MaxPrice: 12000, SampleSize: 3,
	}
	store.listings = append(store.listings,
		models.Listing{ID: uuid.New(), URL: "u1", Title: "2014 Toyota Camry", Price: "8000", Make: "Toyota", Model: "Camry"},
		models.Listing{ID: uuid.New(), URL: "u2", Title: "Honda thing", Price: "5000", Make: "Honda", Model: "Civic"},
		models.Listing{ID: uuid.New(), URL: "u3", Title: "2014 Toyota Camry no price", Price: "", Make: "Toyota", Model: "Camry"},
	)

	q := NewQueryService(store)
	page, err := q.GetPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("get page: %v", err)
	}

	byURL := make(map[string]ListingView)
	for _, v := range page.Listings {
		byURL[v.URL] = v
	}

	if v := byURL["u1"]; v.Deal != models.DealGreat {
		t.Errorf("u1 deal = %v, want %v", v.Deal, models.DealGreat)
	}
	if v := byURL["u1"]; v.PriceDisplay != "$8000.00" || v.MarketAvg != "$10000.00" {
		t.Errorf("u1 display = %q avg %q", v.PriceDisplay, v.MarketAvg)
	}
	if v := byURL["u2"]; v.Deal != models.DealUnknown {
		t.Errorf("u2 deal = %v, want %v (no aggregate)", v.Deal, models.DealUnknown)
	}
	if v := byURL["u3"]; v.Deal != models.DealPriceUnknown || v.PriceDisplay != "N/A" {
		t.Errorf("u3 deal/display = %v/%q", v.Deal, v.PriceDisplay)
	}
}

func intPtr(v int) *int { return &v }
