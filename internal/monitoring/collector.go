// Package monitoring watches refresh run history and alerts when refreshes
// keep failing or the published snapshot goes stale.
package monitoring

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/store"
)

// scanLimit caps how many recent runs one collection reads.
const scanLimit = 1000

// MetricsSnapshot holds a point-in-time view of refresh health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// FailedStages counts failed runs in the window by stage.
	FailedStages map[string]int `json:"failed_stages,omitempty"`

	// LastSuccessAt is the creation time of the newest complete run, at any age.
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastTotalVINs int64      `json:"last_total_vins"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the run history query the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers refresh metrics from run history.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of refresh metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Runs arrive newest first.
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			break
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
			if r.Result != nil && r.Result.Stage != "" {
				if snap.FailedStages == nil {
					snap.FailedStages = make(map[string]int)
				}
				snap.FailedStages[r.Result.Stage]++
			}
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}
	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}

	last, err := c.runs.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete, Limit: 1})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrap(err, "monitoring: last successful run")
	}
	if len(last) > 0 {
		at := last[0].CreatedAt.UTC()
		snap.LastSuccessAt = &at
		if last[0].Result != nil {
			snap.LastTotalVINs = last[0].Result.TotalVINs
		}
	}

	return snap, nil
}
