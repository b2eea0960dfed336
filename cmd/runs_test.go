package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/vin-dashboard/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:      "abc12345-6789-0000-0000-000000000000",
			Trigger: model.TriggerHTTP,
			Status:  model.RunStatusComplete,
			Result: &model.RunResult{
				TotalVINs:  18250,
				Location:   "gs://dash/dashboard_data.json",
				DurationMs: 1840,
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:      "def12345-6789-0000-0000-000000000000",
			Trigger: model.TriggerCLI,
			Status:  model.RunStatusFailed,
			Result: &model.RunResult{
				Stage:      "query",
				Error:      "refresh: query: report: query summary: permission denied",
				DurationMs: 12,
			},
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour),
		},
		{
			ID:        "short",
			Trigger:   model.TriggerCLI,
			Status:    model.RunStatusRunning,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "TRIGGER")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "18,250")
	assert.Contains(t, output, "1.84s")
	assert.Contains(t, output, "gs://dash/dashboard_data.json")
	assert.Contains(t, output, "query: refresh: query")
	assert.Contains(t, output, "...")
	assert.Contains(t, output, "short")
	assert.Contains(t, output, "2026-03-01 12:00")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "abc", truncateID("abc"))
}
