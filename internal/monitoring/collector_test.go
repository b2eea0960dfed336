package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vin-dashboard/internal/model"
)

var collectedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func run(status model.RunStatus, age time.Duration, result *model.RunResult) model.Run {
	created := collectedAt.Add(-age)
	return model.Run{
		ID:        string(status) + "-" + age.String(),
		Trigger:   model.TriggerHTTP,
		Status:    status,
		Result:    result,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func newTestCollector(runs RunLister) *Collector {
	c := NewCollector(runs)
	c.now = func() time.Time { return collectedAt }
	return c
}

func TestCollector_Collect(t *testing.T) {
	runs := &mockRuns{runs: []model.Run{
		run(model.RunStatusRunning, time.Minute, nil),
		run(model.RunStatusFailed, time.Hour, &model.RunResult{Stage: "query", Error: "boom"}),
		run(model.RunStatusComplete, 2*time.Hour, &model.RunResult{TotalVINs: 18250}),
		run(model.RunStatusFailed, 3*time.Hour, &model.RunResult{Stage: "publish", Error: "403"}),
		run(model.RunStatusFailed, 4*time.Hour, &model.RunResult{Stage: "query", Error: "boom"}),
		run(model.RunStatusComplete, 30*time.Hour, &model.RunResult{TotalVINs: 18000}),
	}}

	snap, err := newTestCollector(runs).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsComplete)
	assert.Equal(t, 3, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 0.75, snap.FailRate, 0.0001)
	assert.Equal(t, map[string]int{"query": 2, "publish": 1}, snap.FailedStages)
	require.NotNil(t, snap.LastSuccessAt)
	assert.Equal(t, collectedAt.Add(-2*time.Hour), *snap.LastSuccessAt)
	assert.Equal(t, int64(18250), snap.LastTotalVINs)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, collectedAt, snap.CollectedAt)
}

func TestCollector_LastSuccessOutsideWindow(t *testing.T) {
	runs := &mockRuns{runs: []model.Run{
		run(model.RunStatusFailed, time.Hour, &model.RunResult{Stage: "query"}),
		run(model.RunStatusComplete, 48*time.Hour, &model.RunResult{TotalVINs: 100}),
	}}

	snap, err := newTestCollector(runs).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 0, snap.RunsComplete)
	assert.InDelta(t, 1.0, snap.FailRate, 0.0001)
	require.NotNil(t, snap.LastSuccessAt)
	assert.Equal(t, collectedAt.Add(-48*time.Hour), *snap.LastSuccessAt)
}

func TestCollector_NoRuns(t *testing.T) {
	snap, err := newTestCollector(&mockRuns{}).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Nil(t, snap.LastSuccessAt)
	assert.Nil(t, snap.FailedStages)
}

func TestCollector_ListError(t *testing.T) {
	_, err := newTestCollector(&mockRuns{err: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: list runs")
}
