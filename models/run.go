package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusDegraded  RunStatus = "degraded"
	RunStatusFailed    RunStatus = "failed"
)

// AcquisitionRun records one pipeline invocation for a search.
type AcquisitionRun struct {
	ID            int64      `json:"id" db:"id"`
	SearchID      string     `json:"search_id" db:"search_id"`
	City          string     `json:"city" db:"city"`
	State         string     `json:"state" db:"state"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	Strategy      string     `json:"strategy" db:"strategy"`
	Attempts      int        `json:"attempts" db:"attempts"`
	LeadsFound    int        `json:"leads_found" db:"leads_found"`
	LeadsKept     int        `json:"leads_kept" db:"leads_kept"`
	RowsDiscarded int        `json:"rows_discarded" db:"rows_discarded"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type RunLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
	SearchID  string    `json:"search_id" db:"search_id"`
}
