// Package refresh runs one end-to-end dashboard refresh: build the report,
// check its shape, publish it and record the run.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/publish"
	"github.com/sells-group/vin-dashboard/internal/report"
	"github.com/sells-group/vin-dashboard/internal/resilience"
	"github.com/sells-group/vin-dashboard/internal/store"
)

// Stage names the step at which a refresh failed.
type Stage string

const (
	StageQuery   Stage = "query"
	StageShape   Stage = "shape"
	StagePublish Stage = "publish"
)

// StageError is a refresh failure tagged with the step that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return "refresh: " + string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// Builder produces a report document.
type Builder interface {
	Build(ctx context.Context) (*report.Document, error)
}

// Publisher writes a document to the sink.
type Publisher interface {
	Publish(ctx context.Context, doc any) (*publish.Receipt, error)
}

// Outcome is a successful refresh.
type Outcome struct {
	RunID        string
	TotalVINs    int64
	SourceCounts map[string]int64
	LastUpdated  time.Time
	Receipt      publish.Receipt
	Duration     time.Duration
}

var printer = message.NewPrinter(language.English)

// Message renders the operator-facing success line.
func (o *Outcome) Message() string {
	return printer.Sprintf("VIN Exception Dashboard refreshed at %s with %d vehicles tracked",
		o.LastUpdated.UTC().Format(time.RFC3339), o.TotalVINs)
}

// Runner performs refreshes. It never retries; a failed refresh leaves the
// previous snapshot in place.
type Runner struct {
	builder   Builder
	publisher Publisher
	runs      store.Store
}

// NewRunner creates a Runner. runs may be nil to skip run history.
func NewRunner(builder Builder, publisher Publisher, runs store.Store) *Runner {
	return &Runner{builder: builder, publisher: publisher, runs: runs}
}

// Run executes one refresh.
func (r *Runner) Run(ctx context.Context, trigger model.Trigger) (*Outcome, error) {
	log := zap.L().With(zap.String("component", "refresh"), zap.String("trigger", string(trigger)))
	start := time.Now()

	runID := r.startRun(ctx, trigger, log)
	if runID != "" {
		log = log.With(zap.String("run_id", runID))
	}

	out, err := r.run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		var se *StageError
		stage := ""
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		retryable := resilience.IsTransient(err)
		log.Error("refresh failed",
			zap.String("stage", stage),
			zap.Bool("retryable", retryable),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		r.finishRun(runID, model.RunStatusFailed, &model.RunResult{
			DurationMs: elapsed.Milliseconds(),
			Stage:      stage,
			Error:      err.Error(),
			Retryable:  retryable,
		}, log)
		return nil, err
	}

	out.RunID = runID
	out.Duration = elapsed
	log.Info("refresh complete",
		zap.Int64("total_vins", out.TotalVINs),
		zap.String("location", out.Receipt.Location),
		zap.Duration("elapsed", elapsed),
	)
	r.finishRun(runID, model.RunStatusComplete, &model.RunResult{
		TotalVINs:   out.TotalVINs,
		Location:    out.Receipt.Location,
		Bytes:       out.Receipt.Bytes,
		LastUpdated: out.LastUpdated,
		DurationMs:  elapsed.Milliseconds(),
	}, log)
	return out, nil
}

func (r *Runner) run(ctx context.Context) (*Outcome, error) {
	doc, err := r.builder.Build(ctx)
	if err != nil {
		if eris.Is(err, report.ErrShape) {
			return nil, &StageError{Stage: StageShape, Err: err}
		}
		return nil, &StageError{Stage: StageQuery, Err: err}
	}
	if err := doc.Validate(); err != nil {
		return nil, &StageError{Stage: StageShape, Err: err}
	}

	receipt, err := r.publisher.Publish(ctx, doc)
	if err != nil {
		return nil, &StageError{Stage: StagePublish, Err: err}
	}

	counts := make(map[string]int64, len(doc.Summary.Sources))
	for _, sc := range doc.Summary.Sources {
		counts[sc.Source] = sc.Count
	}
	return &Outcome{
		TotalVINs:    doc.TotalVINs(),
		SourceCounts: counts,
		LastUpdated:  doc.LastUpdated,
		Receipt:      *receipt,
	}, nil
}

// History writes are best effort and never fail the refresh.
func (r *Runner) startRun(ctx context.Context, trigger model.Trigger, log *zap.Logger) string {
	if r.runs == nil {
		return ""
	}
	run, err := r.runs.CreateRun(ctx, trigger)
	if err != nil {
		log.Warn("failed to record run start", zap.Error(err))
		return ""
	}
	return run.ID
}

func (r *Runner) finishRun(runID string, status model.RunStatus, result *model.RunResult, log *zap.Logger) {
	if r.runs == nil || runID == "" {
		return
	}
	// The refresh context may already be canceled; the record should still land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.runs.FinishRun(ctx, runID, status, result); err != nil {
		log.Warn("failed to record run result", zap.Error(err))
	}
}
