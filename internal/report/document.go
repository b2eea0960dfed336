package report

import (
	"time"

	"github.com/sells-group/vin-dashboard/internal/model"
)

const (
	keyLastUpdated = "lastUpdated"
	keyGeneratedBy = "generated_by"
)

// Document is one complete dashboard snapshot. Only the sections enabled in
// the layout it was built from are emitted.
type Document struct {
	ExceptionSummary  []model.ExceptionRow
	Summary           model.Summary
	CombinationMatrix []model.CombinationRow
	MakeDistribution  []model.MakeRow
	Financial         model.Financial
	Aging             []model.AgingBucket
	Risks             []model.RiskMetric
	CriticalVINs      []model.CriticalVIN
	LastUpdated       time.Time
	GeneratedBy       string
	Sources           []string

	sections         []Section
	combinationLimit int
}

func (d *Document) has(s Section) bool {
	for _, x := range d.sections {
		if x == s {
			return true
		}
	}
	return false
}

// hasTotal reports whether the document carries a section that counts every VIN.
func (d *Document) hasTotal() bool {
	return d.has(SectionSummary) || d.has(SectionExceptionSummary)
}

// TotalVINs returns summary.total_vins, falling back to the sum of the
// exception summary when the summary section is disabled.
func (d *Document) TotalVINs() int64 {
	if d.has(SectionSummary) {
		return d.Summary.TotalVINs
	}
	var n int64
	for _, r := range d.ExceptionSummary {
		n += r.VehicleCount
	}
	return n
}

// Risk returns the named risk metric.
func (d *Document) Risk(name string) (model.RiskMetric, bool) {
	for _, r := range d.Risks {
		if r.Name == name {
			return r, true
		}
	}
	return model.RiskMetric{}, false
}

// Fields lays the document out as ordered top-level keys.
func (d *Document) Fields() model.Fields {
	var f model.Fields
	add := func(key string, v any) { f = append(f, model.Field{Key: key, Value: v}) }

	if d.has(SectionExceptionSummary) {
		add(string(SectionExceptionSummary), nonNil(d.ExceptionSummary))
	}
	if d.has(SectionSummary) {
		add(string(SectionSummary), d.Summary)
	}
	if d.has(SectionCombinationMatrix) {
		add(string(SectionCombinationMatrix), nonNil(d.CombinationMatrix))
	}
	if d.has(SectionMakeDistribution) {
		add(string(SectionMakeDistribution), nonNil(d.MakeDistribution))
	}
	if d.has(SectionFinancial) {
		add(string(SectionFinancial), d.Financial)
	}
	if d.has(SectionAging) {
		add(string(SectionAging), nonNil(d.Aging))
	}
	if d.has(SectionImpact) {
		add(string(SectionImpact), model.Impact(d.Risks))
	}
	if d.has(SectionRisks) {
		for _, r := range d.Risks {
			add(r.Name, r)
		}
	}
	if d.has(SectionCriticalVINs) {
		add(string(SectionCriticalVINs), nonNil(d.CriticalVINs))
	}
	add(keyLastUpdated, d.LastUpdated.UTC().Format(time.RFC3339))
	add(keyGeneratedBy, d.GeneratedBy)
	if d.has(SectionSources) {
		add(string(SectionSources), nonNil(d.Sources))
	}
	return f
}

// MarshalJSON emits the enabled sections in their canonical order.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.Fields().MarshalJSON()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
