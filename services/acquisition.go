package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/KeldrickD/deal-genie-sub000/config"
	"github.com/KeldrickD/deal-genie-sub000/models"
	"github.com/KeldrickD/deal-genie-sub000/pipeline"
)

// LocalStore is the operational store the service writes through: lead
// upserts, run records, and run logs. storage.SQLiteStore satisfies it.
type LocalStore interface {
	UpsertLead(lead *models.Lead) (bool, error)
	CreateRun(run *models.AcquisitionRun) (int64, error)
	UpdateRun(run *models.AcquisitionRun) error
	Log(runID *int64, level models.LogLevel, message, searchID string)
}

// RunRecorder mirrors run records into the backend database, where the
// dashboard reads run history. storage.PostgresStore satisfies it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.AcquisitionRun) error
	UpdateRun(ctx context.Context, run *models.AcquisitionRun) error
}

// Triggerable lets the service kick a background worker after a run.
type Triggerable interface {
	Trigger()
}

// AcquisitionService runs the pipeline for saved searches and persists
// what comes back, with run records for observability.
type AcquisitionService struct {
	pipe  *pipeline.Pipeline
	store LocalStore
	runs  RunRecorder
	sync  Triggerable
}

func NewAcquisitionService(pipe *pipeline.Pipeline, store LocalStore) *AcquisitionService {
	return &AcquisitionService{pipe: pipe, store: store}
}

// SetSyncWorker registers the sync worker to trigger after each run.
func (s *AcquisitionService) SetSyncWorker(w Triggerable) {
	s.sync = w
}

// SetRunRecorder registers a backend mirror for run records.
func (s *AcquisitionService) SetRunRecorder(r RunRecorder) {
	s.runs = r
}

// RunSearch executes one saved search end to end.
func (s *AcquisitionService) RunSearch(ctx context.Context, search *config.SearchConfig) error {
	run := &models.AcquisitionRun{
		SearchID:  search.ID,
		City:      search.City,
		State:     search.State,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}

	runID, err := s.store.CreateRun(run)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	run.ID = runID

	// Run records are mirrored best-effort; a backend outage must not
	// block acquisition.
	var mirror *models.AcquisitionRun
	if s.runs != nil {
		m := *run
		m.ID = 0
		if err := s.runs.CreateRun(ctx, &m); err != nil {
			log.Printf("Warning: backend run record failed: %v", err)
		} else {
			mirror = &m
		}
	}

	s.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Starting acquisition for %s, %s", search.City, search.State), search.ID)

	result := s.pipe.Acquire(ctx, pipeline.Request{
		City:        search.City,
		State:       search.State,
		Keywords:    search.Keywords,
		ListingType: models.ListingType(search.ListingType),
		MaxRetries:  search.MaxRetries,
	})

	newCount := 0
	for i := range result.Leads {
		isNew, err := s.store.UpsertLead(&result.Leads[i])
		if err != nil {
			s.log(run.ID, models.LogLevelError,
				fmt.Sprintf("Store error for %s: %v", result.Leads[i].Address, err), search.ID)
			run.ErrorsCount++
			continue
		}
		if isNew {
			newCount++
		}
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Strategy = result.Strategy
	run.Attempts = result.Attempts
	run.LeadsFound = result.Found
	run.LeadsKept = len(result.Leads)
	run.RowsDiscarded = result.Discarded

	run.Status = models.RunStatusCompleted
	if result.Degraded {
		run.Status = models.RunStatusDegraded
	}
	if len(result.Leads) > 0 && run.ErrorsCount == len(result.Leads) {
		// Acquisition produced leads but not one of them could be stored.
		run.Status = models.RunStatusFailed
	}
	if err := s.store.UpdateRun(run); err != nil {
		log.Printf("Warning: failed to update run %d: %v", run.ID, err)
	}
	if mirror != nil {
		backendID := mirror.ID
		*mirror = *run
		mirror.ID = backendID
		if err := s.runs.UpdateRun(ctx, mirror); err != nil {
			log.Printf("Warning: failed to update backend run %d: %v", mirror.ID, err)
		}
	}

	s.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed via %s: %d leads (%d new, %d discarded, degraded=%v)",
			result.Strategy, len(result.Leads), newCount, result.Discarded, result.Degraded), search.ID)

	if s.sync != nil && len(result.Leads) > 0 {
		s.sync.Trigger()
	}
	return nil
}

// RunAll runs every configured search sequentially.
func (s *AcquisitionService) RunAll(ctx context.Context, searches map[string]*config.SearchConfig) {
	for id, search := range searches {
		if err := s.RunSearch(ctx, search); err != nil {
			log.Printf("Error running search %s: %v", id, err)
		}
	}
}

func (s *AcquisitionService) log(runID int64, level models.LogLevel, message, searchID string) {
	log.Printf("[%s] %s: %s", level, searchID, message)
	s.store.Log(&runID, level, message, searchID)
}
