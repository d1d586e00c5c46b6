// Package store persists the historical case batch and the run log.
package store

import (
	"context"

	"github.com/red-atencion/outreach-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the classification pipeline.
type Store interface {
	// Load returns the stored batch in its saved order.
	Load(ctx context.Context) ([]model.CaseRecord, error)
	// Save overwrites the whole batch in one transaction.
	Save(ctx context.Context, batch []model.CaseRecord) error

	// Run log
	RecordRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultRunLimit = 100
