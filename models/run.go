package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IngestRun is the persisted record of one pipeline execution.
type IngestRun struct {
	ID                int64      `json:"id" db:"id"`
	Source            string     `json:"source" db:"source"`
	StartedAt         time.Time  `json:"started_at" db:"started_at"`
	FinishedAt        *time.Time `json:"finished_at" db:"finished_at"`
	Status            RunStatus  `json:"status" db:"status"`
	Found             int        `json:"found" db:"found"`
	Admitted          int        `json:"admitted" db:"admitted"`
	RejectedDuplicate int        `json:"rejected_duplicate" db:"rejected_duplicate"`
	RejectedFiltered  int        `json:"rejected_filtered" db:"rejected_filtered"`
	Persisted         int        `json:"persisted" db:"persisted"`
	ErrorMessage      string     `json:"error_message" db:"error_message"`
}

// IngestLog is one persisted log line tied to an ingest run.
type IngestLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     int64     `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     string    `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
}

// IngestResult contains the counters returned by one pipeline run.
type IngestResult struct {
	Admitted          int `json:"admitted"`
	RejectedDuplicate int `json:"rejected_duplicate"`
	RejectedFiltered  int `json:"rejected_filtered"`
	Persisted         int `json:"persisted"`
}
