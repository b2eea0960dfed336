// Package store persists the refresh run history.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vin-dashboard/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Trigger model.Trigger   `json:"trigger,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for refresh runs.
type Store interface {
	CreateRun(ctx context.Context, trigger model.Trigger) (*model.Run, error)
	// FinishRun moves a run to a terminal status and records its result.
	FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

func checkTerminal(status model.RunStatus) error {
	if status != model.RunStatusComplete && status != model.RunStatusFailed {
		return eris.Errorf("store: %q is not a terminal status", status)
	}
	return nil
}
