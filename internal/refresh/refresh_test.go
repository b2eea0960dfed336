package refresh

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/publish"
	"github.com/sells-group/vin-dashboard/internal/report"
	"github.com/sells-group/vin-dashboard/internal/resilience"
	"github.com/sells-group/vin-dashboard/internal/store"
)

var builtAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeBuilder struct {
	doc *report.Document
	err error
}

func (f *fakeBuilder) Build(context.Context) (*report.Document, error) {
	return f.doc, f.err
}

type fakePublisher struct {
	published []any
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, doc any) (*publish.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, doc)
	return &publish.Receipt{Location: "gs://dash/dashboard_data.json", Bytes: 2048, PublishedAt: builtAt}, nil
}

func goodDoc() *report.Document {
	return &report.Document{
		ExceptionSummary: []model.ExceptionRow{
			{Status: "MISSING_VAUTO", Priority: 1, VehicleCount: 1000, Percentage: 80},
			{Status: "RECONCILED", Priority: 4, VehicleCount: 250, Percentage: 20},
		},
		LastUpdated: builtAt,
		GeneratedBy: "vin-dashboard",
	}
}

func newRunStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestRun_Success(t *testing.T) {
	runs := newRunStore(t)
	pub := &fakePublisher{}
	r := NewRunner(&fakeBuilder{doc: goodDoc()}, pub, runs)

	out, err := r.Run(context.Background(), model.TriggerHTTP)
	require.NoError(t, err)
	require.Len(t, pub.published, 1)

	assert.Equal(t, int64(1250), out.TotalVINs)
	assert.Equal(t, "gs://dash/dashboard_data.json", out.Receipt.Location)
	assert.Equal(t,
		"VIN Exception Dashboard refreshed at 2026-03-01T12:00:00Z with 1,250 vehicles tracked",
		out.Message())

	run, err := runs.GetRun(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, model.TriggerHTTP, run.Trigger)
	require.NotNil(t, run.Result)
	assert.Equal(t, int64(1250), run.Result.TotalVINs)
	assert.Equal(t, 2048, run.Result.Bytes)
}

func TestRun_QueryFailurePublishesNothing(t *testing.T) {
	runs := newRunStore(t)
	pub := &fakePublisher{}
	r := NewRunner(&fakeBuilder{err: eris.New("report: query summary: permission denied")}, pub, runs)

	_, err := r.Run(context.Background(), model.TriggerCLI)
	require.Error(t, err)
	assert.Empty(t, pub.published)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageQuery, se.Stage)
	assert.Contains(t, err.Error(), "permission denied")

	latest, err := runs.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, latest.Status)
	assert.Equal(t, "query", latest.Result.Stage)
	assert.False(t, latest.Result.Retryable)
}

func TestRun_TransientFailureIsFlagged(t *testing.T) {
	runs := newRunStore(t)
	transient := resilience.NewTransientError(errors.New("backend unavailable"), 503)
	r := NewRunner(&fakeBuilder{doc: goodDoc()}, &fakePublisher{err: transient}, runs)

	_, err := r.Run(context.Background(), model.TriggerHTTP)
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StagePublish, se.Stage)

	latest, err := runs.LatestRun(context.Background())
	require.NoError(t, err)
	assert.True(t, latest.Result.Retryable)
}

func TestRun_ShapeFailures(t *testing.T) {
	bad := goodDoc()
	bad.ExceptionSummary[1].VehicleCount = -5

	tests := []struct {
		name    string
		builder *fakeBuilder
	}{
		{"invalid document", &fakeBuilder{doc: bad}},
		{"empty aggregate", &fakeBuilder{err: eris.Wrap(report.ErrShape, "expected 1 row, got 0")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			_, err := NewRunner(tt.builder, pub, nil).Run(context.Background(), model.TriggerCLI)
			require.Error(t, err)

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StageShape, se.Stage)
			assert.Empty(t, pub.published)
		})
	}
}

type brokenStore struct {
	store.Store
}

func (brokenStore) CreateRun(context.Context, model.Trigger) (*model.Run, error) {
	return nil, errors.New("database is locked")
}

func TestRun_HistoryFailureDoesNotFailRefresh(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRunner(&fakeBuilder{doc: goodDoc()}, pub, brokenStore{})

	out, err := r.Run(context.Background(), model.TriggerCLI)
	require.NoError(t, err)
	assert.Empty(t, out.RunID)
	assert.Len(t, pub.published, 1)
}

func TestStageError(t *testing.T) {
	inner := errors.New("bucket not found")
	err := &StageError{Stage: StagePublish, Err: inner}
	assert.Equal(t, "refresh: publish: bucket not found", err.Error())
	assert.True(t, errors.Is(err, inner))
}
