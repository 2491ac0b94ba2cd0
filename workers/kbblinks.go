// Package workers hosts background loops that run alongside the ingest
// schedule.
package workers

import (
	"context"
	"log"
	"time"

	"dealwatch/kbb"
	"dealwatch/storage"
)

// KBBLinkWorker backfills Kelley Blue Book links for listings stored
// before the link builder could run, or whose build was skipped. It works
// in batches on an interval and can be triggered early after an ingest
// cycle lands new rows.
type KBBLinkWorker struct {
	store     storage.Store
	triggerCh chan struct{}
}

func NewKBBLinkWorker(store storage.Store) *KBBLinkWorker {
	return &KBBLinkWorker{
		store:     store,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate batch. Coalesces if one is already queued.
func (w *KBBLinkWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the backfill loop.
func (w *KBBLinkWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("KBB link worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *KBBLinkWorker) processBatch(ctx context.Context, batchSize int) {
	listings, err := w.store.ListingsMissingKBB(ctx, batchSize)
	if err != nil {
		log.Printf("KBB link worker: query error: %v", err)
		return
	}
	if len(listings) == 0 {
		return
	}

	updated := 0
	for i := range listings {
		l := &listings[i]

		url := kbb.LookupURL(l.Title)
		if url == "" {
			// Blank title, nothing to look up. Park it so the batch
			// query stops returning it every cycle.
			url = "N/A"
		}
		if err := w.store.SetKBBUrl(ctx, l.ID, url); err != nil {
			log.Printf("KBB link worker: update %s: %v", l.URL, err)
			continue
		}
		updated++
	}

	log.Printf("KBB link worker: backfilled %d of %d listings", updated, len(listings))
}
