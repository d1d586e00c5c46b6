package model

import "time"

// RunStatus represents the final state of a pipeline run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run summarizes one pipeline invocation for the run log.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Status     RunStatus  `json:"status"`
	Watermark  *time.Time `json:"watermark,omitempty"`
	Ingested   int        `json:"ingested"`
	Appended   int        `json:"appended"`
	Total      int        `json:"total"`
	Unmatched  int        `json:"unmatched"`
	NoZone     int        `json:"no_zone"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}
