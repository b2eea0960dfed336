// Package report builds the VIN exception dashboard document from aggregate
// queries over the reconciliation table.
package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/source"
)

// Aggregator runs one query per enabled section and assembles the results.
type Aggregator struct {
	q           source.Querier
	layout      Layout
	sql         queries
	concurrency int
	now         func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithConcurrency caps the number of section queries in flight. Zero or less
// means unlimited.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithClock overrides the clock used for lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator validates the layout against the querier's dialect.
func NewAggregator(q source.Querier, layout Layout, opts ...Option) (*Aggregator, error) {
	if q == nil {
		return nil, eris.New("report: querier is required")
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	table, err := q.Dialect().Table(layout.Table)
	if err != nil {
		return nil, eris.Wrap(err, "report: table")
	}

	a := &Aggregator{
		q:      q,
		layout: layout,
		now:    time.Now,
	}
	a.sql = queries{d: q.Dialect(), table: table, l: &a.layout}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Layout returns the layout the aggregator was built with.
func (a *Aggregator) Layout() Layout { return a.layout }

// Build runs every section query and returns the assembled document. Any
// failing section fails the whole build; partial documents are never returned.
func (a *Aggregator) Build(ctx context.Context) (*Document, error) {
	log := zap.L().With(zap.String("component", "report.aggregator"))
	start := time.Now()

	l := &a.layout
	doc := &Document{
		GeneratedBy:      l.GeneratedBy,
		sections:         l.Sections,
		combinationLimit: l.CombinationLimit,
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	run := func(section Section, sql string, fn func(*source.Result) error) {
		g.Go(func() error {
			res, err := a.q.Query(gctx, sql)
			if err != nil {
				return eris.Wrapf(err, "report: query %s", section)
			}
			if err := fn(res); err != nil {
				return eris.Wrapf(err, "report: read %s", section)
			}
			log.Debug("section complete", zap.String("section", string(section)), zap.Int("rows", len(res.Rows)))
			return nil
		})
	}

	if l.Has(SectionExceptionSummary) {
		run(SectionExceptionSummary, a.sql.exceptionSummary(), func(r *source.Result) (err error) {
			doc.ExceptionSummary, err = readExceptionSummary(r)
			return err
		})
	}
	if l.Has(SectionSummary) {
		run(SectionSummary, a.sql.summary(), func(r *source.Result) (err error) {
			doc.Summary, err = readSummary(r, l.Sources)
			return err
		})
	}
	if l.Has(SectionCombinationMatrix) {
		run(SectionCombinationMatrix, a.sql.combinationMatrix(), func(r *source.Result) (err error) {
			doc.CombinationMatrix, err = readCombinations(r, l.Sources)
			return err
		})
	}
	if l.Has(SectionMakeDistribution) {
		run(SectionMakeDistribution, a.sql.makeDistribution(), func(r *source.Result) (err error) {
			doc.MakeDistribution, err = readMakes(r)
			return err
		})
	}
	if l.Has(SectionFinancial) {
		run(SectionFinancial, a.sql.financial(), func(r *source.Result) (err error) {
			doc.Financial, err = readFinancial(r)
			return err
		})
	}
	if l.Has(SectionAging) {
		run(SectionAging, a.sql.aging(), func(r *source.Result) (err error) {
			doc.Aging, err = readAging(r)
			return err
		})
	}
	if len(l.Risks) > 0 && (l.Has(SectionImpact) || l.Has(SectionRisks)) {
		run(SectionRisks, a.sql.risks(), func(r *source.Result) (err error) {
			doc.Risks, err = readRisks(r, l.Risks)
			return err
		})
	}
	if l.Has(SectionCriticalVINs) {
		run(SectionCriticalVINs, a.sql.criticalVINs(), func(r *source.Result) (err error) {
			doc.CriticalVINs, err = readCriticalVINs(r)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if l.Has(SectionSources) {
		doc.Sources = l.Labels()
	}
	doc.LastUpdated = a.now().UTC().Truncate(time.Second)

	log.Info("report built",
		zap.Int64("total_vins", doc.TotalVINs()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return doc, nil
}

// singleRow returns the only row of a single-row aggregate.
func singleRow(r *source.Result, width int) ([]any, error) {
	if len(r.Rows) != 1 {
		return nil, eris.Wrapf(ErrShape, "expected 1 row, got %d", len(r.Rows))
	}
	return fixedWidth(r.Rows[0], width)
}

func fixedWidth(row []any, width int) ([]any, error) {
	if len(row) != width {
		return nil, eris.Wrapf(ErrShape, "expected %d columns, got %d", width, len(row))
	}
	return row, nil
}

func readExceptionSummary(r *source.Result) ([]model.ExceptionRow, error) {
	out := make([]model.ExceptionRow, 0, len(r.Rows))
	for _, raw := range r.Rows {
		row, err := fixedWidth(raw, 4)
		if err != nil {
			return nil, err
		}
		e := model.ExceptionRow{Status: source.String(row[0])}
		if e.Priority, err = source.Int(row[1]); err != nil {
			return nil, err
		}
		if e.VehicleCount, err = source.Int(row[2]); err != nil {
			return nil, err
		}
		if e.Percentage, err = source.Float(row[3]); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func readSummary(r *source.Result, sources []Source) (model.Summary, error) {
	row, err := singleRow(r, len(sources)+1)
	if err != nil {
		return model.Summary{}, err
	}
	s := model.Summary{Sources: make([]model.SourceCount, len(sources))}
	if s.TotalVINs, err = source.Int(row[0]); err != nil {
		return model.Summary{}, err
	}
	for i, src := range sources {
		n, err := source.Int(row[i+1])
		if err != nil {
			return model.Summary{}, err
		}
		s.Sources[i] = model.SourceCount{Source: src.Name, Count: n}
	}
	return s, nil
}

func readCombinations(r *source.Result, sources []Source) ([]model.CombinationRow, error) {
	out := make([]model.CombinationRow, 0, len(r.Rows))
	for _, raw := range r.Rows {
		row, err := fixedWidth(raw, len(sources)+1)
		if err != nil {
			return nil, err
		}
		c := model.CombinationRow{Flags: make([]model.FlagValue, len(sources))}
		for i, src := range sources {
			v, err := source.Int(row[i])
			if err != nil {
				return nil, err
			}
			c.Flags[i] = model.FlagValue{Column: src.Column, Value: v}
		}
		if c.VehicleCount, err = source.Int(row[len(sources)]); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func readMakes(r *source.Result) ([]model.MakeRow, error) {
	out := make([]model.MakeRow, 0, len(r.Rows))
	for _, raw := range r.Rows {
		row, err := fixedWidth(raw, 3)
		if err != nil {
			return nil, err
		}
		m := model.MakeRow{Make: source.String(row[0])}
		if m.TotalVehicles, err = source.Int(row[1]); err != nil {
			return nil, err
		}
		if m.HighPriorityExceptions, err = source.Int(row[2]); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func readFinancial(r *source.Result) (model.Financial, error) {
	row, err := singleRow(r, 3)
	if err != nil {
		return model.Financial{}, err
	}
	var f model.Financial
	if f.AvgPrice, err = source.Float(row[0]); err != nil {
		return model.Financial{}, err
	}
	if f.MarketedValue, err = source.Float(row[1]); err != nil {
		return model.Financial{}, err
	}
	if f.AvgAgeDays, err = source.Float(row[2]); err != nil {
		return model.Financial{}, err
	}
	return f, nil
}

func readAging(r *source.Result) ([]model.AgingBucket, error) {
	out := make([]model.AgingBucket, 0, len(r.Rows))
	for _, raw := range r.Rows {
		row, err := fixedWidth(raw, 3)
		if err != nil {
			return nil, err
		}
		b := model.AgingBucket{AgeBucket: source.String(row[0])}
		if b.VehicleCount, err = source.Int(row[1]); err != nil {
			return nil, err
		}
		if b.AvgPrice, err = source.Float(row[2]); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func readRisks(r *source.Result, risks []Risk) ([]model.RiskMetric, error) {
	row, err := singleRow(r, len(risks))
	if err != nil {
		return nil, err
	}
	out := make([]model.RiskMetric, len(risks))
	for i, risk := range risks {
		n, err := source.Int(row[i])
		if err != nil {
			return nil, err
		}
		out[i] = model.RiskMetric{
			Name:     risk.Name,
			CountKey: risk.countKey(),
			ValueKey: risk.valueKey(),
			Count:    n,
			Value:    float64(n) * risk.UnitValue,
		}
	}
	return out, nil
}

func readCriticalVINs(r *source.Result) ([]model.CriticalVIN, error) {
	out := make([]model.CriticalVIN, 0, len(r.Rows))
	for _, raw := range r.Rows {
		row, err := fixedWidth(raw, 5)
		if err != nil {
			return nil, err
		}
		v := model.CriticalVIN{
			VIN:    source.String(row[0]),
			Make:   source.String(row[1]),
			Model:  source.String(row[2]),
			Status: source.String(row[4]),
		}
		if v.Year, err = source.NullableInt(row[3]); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
