package workers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"dealwatch/models"
	"dealwatch/storage"
)

type fakeStore struct {
	storage.Store
	missing []models.Listing
	updates map[uuid.UUID]string
}

func (f *fakeStore) ListingsMissingKBB(ctx context.Context, limit int) ([]models.Listing, error) {
	if len(f.missing) > limit {
		return f.missing[:limit], nil
	}
	return f.missing, nil
}

func (f *fakeStore) SetKBBUrl(ctx context.Context, id uuid.UUID, kbbURL string) error {
	f.updates[id] = kbbURL
	return nil
}

func TestKBBLinkWorkerProcessBatch(t *testing.T) {
	withTitle := models.Listing{ID: uuid.New(), URL: "u1", Title: "2015 Toyota Camry LE", Make: "Toyota", Model: "Camry"}
	noExtraction := models.Listing{ID: uuid.New(), URL: "u2", Title: "runs great, cheap"}

	store := &fakeStore{
		missing: []models.Listing{withTitle, noExtraction},
		updates: make(map[uuid.UUID]string),
	}

	w := NewKBBLinkWorker(store)
	w.processBatch(context.Background(), 10)

	got, ok := store.updates[withTitle.ID]
	if !ok {
		t.Fatal("expected a KBB link for the extracted listing")
	}
	want := "https://www.kbb.com/cars-for-sale/year-2015/make-toyota/model-camry/"
	if got != want {
		t.Errorf("link = %q, want %q", got, want)
	}

	// Title-only listings still get a search fallback link.
	if _, ok := store.updates[noExtraction.ID]; !ok {
		t.Error("expected a fallback link for the unextracted listing")
	}
}

func TestKBBLinkWorkerParksBlankTitles(t *testing.T) {
	blank := models.Listing{ID: uuid.New(), URL: "u3", Title: "   "}

	store := &fakeStore{
		missing: []models.Listing{blank},
		updates: make(map[uuid.UUID]string),
	}

	w := NewKBBLinkWorker(store)
	w.processBatch(context.Background(), 10)

	// A listing with no usable title must still be written so the next
	// batch does not fetch it again.
	if got := store.updates[blank.ID]; got != "N/A" {
		t.Errorf("kbb_url = %q, want %q", got, "N/A")
	}
}
