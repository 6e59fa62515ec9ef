package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/config"
	"github.com/KeldrickD/deal-genie-sub000/httputil"
	"github.com/KeldrickD/deal-genie-sub000/models"
	"github.com/KeldrickD/deal-genie-sub000/pipeline"
)

type fakeStore struct {
	upsertErr error
	upserts   int
	created   []models.AcquisitionRun
	updated   []models.AcquisitionRun
}

func (f *fakeStore) UpsertLead(lead *models.Lead) (bool, error) {
	f.upserts++
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	return true, nil
}

func (f *fakeStore) CreateRun(run *models.AcquisitionRun) (int64, error) {
	f.created = append(f.created, *run)
	return 7, nil
}

func (f *fakeStore) UpdateRun(run *models.AcquisitionRun) error {
	f.updated = append(f.updated, *run)
	return nil
}

func (f *fakeStore) Log(runID *int64, level models.LogLevel, message, searchID string) {}

type fakeRecorder struct {
	created []models.AcquisitionRun
	updated []models.AcquisitionRun
}

func (f *fakeRecorder) CreateRun(ctx context.Context, run *models.AcquisitionRun) error {
	run.ID = 99
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeRecorder) UpdateRun(ctx context.Context, run *models.AcquisitionRun) error {
	f.updated = append(f.updated, *run)
	return nil
}

type fakeTrigger struct {
	fired int
}

func (f *fakeTrigger) Trigger() { f.fired++ }

// newTestService points the pipeline at a server that answers nothing,
// so every run degrades to the deterministic fallback in one attempt.
func newTestService(t *testing.T, store LocalStore) *AcquisitionService {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	pipe := pipeline.New(config.PipelineConfig{
		BaseURL:        server.URL,
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
		MaxRetries:     1,
		RatePerSec:     1000,
		RateBurst:      1000,
	}, httputil.NewClients(5*time.Second))
	return NewAcquisitionService(pipe, store)
}

func TestRunSearch_MirrorsRunToBackend(t *testing.T) {
	store := &fakeStore{}
	recorder := &fakeRecorder{}
	trigger := &fakeTrigger{}
	service := newTestService(t, store)
	service.SetRunRecorder(recorder)
	service.SetSyncWorker(trigger)

	err := service.RunSearch(context.Background(), &config.SearchConfig{
		ID: "austin-distressed", City: "Austin", State: "TX",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(recorder.created) != 1 || len(recorder.updated) != 1 {
		t.Fatalf("expected 1 backend create and update, got %d/%d",
			len(recorder.created), len(recorder.updated))
	}
	if recorder.created[0].Status != models.RunStatusRunning {
		t.Fatalf("backend create status = %q", recorder.created[0].Status)
	}
	final := recorder.updated[0]
	if final.ID != 99 {
		t.Fatalf("backend run ID not preserved, got %d", final.ID)
	}
	if final.Status != models.RunStatusDegraded {
		t.Fatalf("expected degraded status, got %q", final.Status)
	}
	if final.Strategy != "mock" {
		t.Fatalf("expected mock strategy, got %q", final.Strategy)
	}
	if final.LeadsKept == 0 || final.LeadsKept != store.upserts {
		t.Fatalf("leads kept %d, upserts %d", final.LeadsKept, store.upserts)
	}
	if len(store.updated) != 1 || store.updated[0].ID != 7 {
		t.Fatalf("local run record not updated with its own ID")
	}
	if trigger.fired != 1 {
		t.Fatalf("sync trigger fired %d times", trigger.fired)
	}
}

func TestRunSearch_AllStoreErrorsFailTheRun(t *testing.T) {
	store := &fakeStore{upsertErr: errors.New("disk full")}
	service := newTestService(t, store)

	err := service.RunSearch(context.Background(), &config.SearchConfig{
		ID: "austin-distressed", City: "Austin", State: "TX",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(store.updated) != 1 {
		t.Fatalf("expected 1 run update, got %d", len(store.updated))
	}
	final := store.updated[0]
	if final.Status != models.RunStatusFailed {
		t.Fatalf("expected failed status, got %q", final.Status)
	}
	if final.ErrorsCount != final.LeadsKept || final.ErrorsCount == 0 {
		t.Fatalf("errors %d, kept %d", final.ErrorsCount, final.LeadsKept)
	}
}

func TestRunSearch_NoRecorderStillRuns(t *testing.T) {
	store := &fakeStore{}
	service := newTestService(t, store)

	err := service.RunSearch(context.Background(), &config.SearchConfig{
		ID: "austin-distressed", City: "Austin", State: "TX",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(store.created) != 1 || len(store.updated) != 1 {
		t.Fatalf("expected local run lifecycle, got %d/%d",
			len(store.created), len(store.updated))
	}
}
