package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vin-dashboard/internal/publish"
	"github.com/sells-group/vin-dashboard/internal/refresh"
	"github.com/sells-group/vin-dashboard/internal/report"
	"github.com/sells-group/vin-dashboard/internal/source"
	"github.com/sells-group/vin-dashboard/internal/store"
)

func initQuerier(ctx context.Context) (source.Querier, error) {
	switch cfg.Source.Driver {
	case "postgres":
		return source.NewPostgres(ctx, cfg.Source.DatabaseURL)
	case "sqlite":
		return source.NewSQLite(cfg.Source.DatabaseURL)
	case "bigquery":
		return source.NewBigQuery(ctx, cfg.Source.Project)
	default:
		return nil, eris.Errorf("unsupported source driver: %s", cfg.Source.Driver)
	}
}

// initSink returns the configured sink; a non-empty output forces a local file.
func initSink(ctx context.Context, output string) (publish.Sink, error) {
	if output != "" {
		return publish.NewFileSink(output), nil
	}
	switch cfg.Sink.Driver {
	case "file":
		return publish.NewFileSink(cfg.Sink.Path), nil
	case "gcs":
		return publish.NewGCSSink(ctx, cfg.Sink.Bucket)
	default:
		return nil, eris.Errorf("unsupported sink driver: %s", cfg.Sink.Driver)
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "vin-dashboard.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initLayout(preset string) (report.Layout, error) {
	rc := cfg.Report
	if preset != "" {
		rc.Preset = preset
	}
	return report.LayoutFromConfig(cfg.Source.Table, rc)
}

// refreshEnv holds everything one refresh needs.
type refreshEnv struct {
	Runner    *refresh.Runner
	Store     store.Store
	Layout    report.Layout
	querier   source.Querier
	publisher *publish.Publisher
}

// Close releases resources in reverse order of creation.
func (e *refreshEnv) Close() {
	if e.publisher != nil {
		_ = e.publisher.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
	if e.querier != nil {
		_ = e.querier.Close()
	}
}

// initRefresh wires querier, aggregator, sink and run history. A run store
// that cannot be opened is logged and skipped.
func initRefresh(ctx context.Context, output, preset string) (*refreshEnv, error) {
	layout, err := initLayout(preset)
	if err != nil {
		return nil, err
	}

	env := &refreshEnv{Layout: layout}

	env.querier, err = initQuerier(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init source")
	}

	agg, err := report.NewAggregator(env.querier, layout,
		report.WithConcurrency(cfg.Report.MaxConcurrentQueries))
	if err != nil {
		env.Close()
		return nil, err
	}

	sink, err := initSink(ctx, output)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init sink")
	}
	opts := []publish.PublisherOption{publish.WithCacheControl(cfg.Sink.CacheControl)}
	if cfg.Sink.Key != "" {
		opts = append(opts, publish.WithKey(cfg.Sink.Key))
	}
	env.publisher = publish.NewPublisher(sink, opts...)

	st, err := initStore(ctx)
	if err == nil {
		if err = st.Migrate(ctx); err != nil {
			_ = st.Close()
		} else {
			env.Store = st
		}
	}
	if err != nil {
		zap.L().Warn("run history disabled", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	env.Runner = refresh.NewRunner(agg, env.publisher, env.Store)
	return env, nil
}
