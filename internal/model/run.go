package model

import "time"

// RunStatus represents the current state of a dashboard refresh.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Trigger identifies what started a refresh.
type Trigger string

const (
	TriggerCLI  Trigger = "cli"
	TriggerHTTP Trigger = "http"
)

// Run is one recorded refresh of the dashboard snapshot.
type Run struct {
	ID        string     `json:"id"`
	Trigger   Trigger    `json:"trigger"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the outcome of a finished refresh.
type RunResult struct {
	TotalVINs   int64     `json:"total_vins"`
	Location    string    `json:"location,omitempty"`
	Bytes       int       `json:"bytes,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	Stage       string    `json:"stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	Retryable   bool      `json:"retryable,omitempty"`
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status == RunStatusComplete || r.Status == RunStatusFailed
}
