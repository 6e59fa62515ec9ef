package workers

import (
	"context"
	"log"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/models"
	"github.com/KeldrickD/deal-genie-sub000/storage"
)

// LeadSink is anywhere unsynced leads get pushed: the Supabase REST
// store or the direct Postgres store, both of which satisfy it.
type LeadSink interface {
	UpsertLeads(ctx context.Context, leads []models.Lead) error
}

// SyncWorker drains unsynced leads from the local store into the backend
// on an interval, with a Trigger channel for immediate pushes after an
// acquisition completes.
type SyncWorker struct {
	store   *storage.SQLiteStore
	sink    LeadSink
	trigger chan struct{}
}

func NewSyncWorker(store *storage.SQLiteStore, sink LeadSink) *SyncWorker {
	return &SyncWorker{
		store:   store,
		sink:    sink,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate sync pass. Non-blocking; a pending
// trigger is enough.
func (w *SyncWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run loops until ctx is done, syncing every interval or on demand.
func (w *SyncWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.trigger:
		}

		if err := w.syncOnce(ctx, batchSize); err != nil {
			log.Printf("sync: pass failed: %v", err)
		}
	}
}

func (w *SyncWorker) syncOnce(ctx context.Context, batchSize int) error {
	for {
		leads, fingerprints, err := w.store.GetUnsyncedLeads(batchSize)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			return nil
		}

		if err := w.sink.UpsertLeads(ctx, leads); err != nil {
			return err
		}
		if err := w.store.MarkLeadsSynced(fingerprints); err != nil {
			return err
		}

		log.Printf("sync: pushed %d leads", len(leads))
		if len(leads) < batchSize {
			return nil
		}
	}
}
