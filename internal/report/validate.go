package report

import (
	"math"

	"github.com/rotisserie/eris"
)

// percentSlack is the rounding allowance per exception_summary row; each
// percentage is rounded to two places.
const percentSlack = 0.005

// ErrShape marks a result that violates the document invariants. A shape
// failure is never published.
var ErrShape = eris.New("report: data shape")

// Validate checks the cross-section invariants of a built document.
func (d *Document) Validate() error {
	total := d.TotalVINs()
	if total < 0 {
		return eris.Wrapf(ErrShape, "negative total %d", total)
	}

	var sum int64
	for _, r := range d.ExceptionSummary {
		if r.VehicleCount < 0 {
			return eris.Wrapf(ErrShape, "negative count for status %q", r.Status)
		}
		sum += r.VehicleCount
	}
	if err := d.validatePercentages(); err != nil {
		return err
	}
	if d.has(SectionSummary) && d.has(SectionExceptionSummary) && sum != d.Summary.TotalVINs {
		return eris.Wrapf(ErrShape, "exception summary covers %d vehicles, summary reports %d", sum, d.Summary.TotalVINs)
	}

	for _, sc := range d.Summary.Sources {
		if sc.Count < 0 || sc.Count > d.Summary.TotalVINs {
			return eris.Wrapf(ErrShape, "%s count %d outside [0, %d]", sc.Source, sc.Count, d.Summary.TotalVINs)
		}
	}

	if err := d.validateCombinations(total); err != nil {
		return err
	}

	for _, m := range d.MakeDistribution {
		if m.TotalVehicles < 0 || m.HighPriorityExceptions < 0 || m.HighPriorityExceptions > m.TotalVehicles {
			return eris.Wrapf(ErrShape, "make %q has inconsistent counts", m.Make)
		}
	}
	for _, b := range d.Aging {
		if b.VehicleCount < 0 {
			return eris.Wrapf(ErrShape, "negative count for age bucket %q", b.AgeBucket)
		}
	}
	for _, r := range d.Risks {
		if r.Count < 0 || r.Value < 0 {
			return eris.Wrapf(ErrShape, "risk %s is negative", r.Name)
		}
	}
	return nil
}

// validatePercentages checks that exception_summary percentages sum to 100
// within 0.1, widened by the per-row rounding allowance for long summaries.
func (d *Document) validatePercentages() error {
	if len(d.ExceptionSummary) == 0 {
		return nil
	}
	var pct float64
	for _, r := range d.ExceptionSummary {
		pct += r.Percentage
	}
	tolerance := math.Max(0.1, percentSlack*float64(len(d.ExceptionSummary)))
	if math.Abs(pct-100) > tolerance {
		return eris.Wrapf(ErrShape, "exception percentages sum to %.2f, want 100 ± %.2f", pct, tolerance)
	}
	return nil
}

// validateCombinations bounds each row by the total only when a section
// that reports the total is enabled.
func (d *Document) validateCombinations(total int64) error {
	if !d.has(SectionCombinationMatrix) {
		return nil
	}
	if d.combinationLimit > 0 && len(d.CombinationMatrix) > d.combinationLimit {
		return eris.Wrapf(ErrShape, "combination matrix has %d rows, cap is %d", len(d.CombinationMatrix), d.combinationLimit)
	}
	seen := make(map[string]bool, len(d.CombinationMatrix))
	for i, row := range d.CombinationMatrix {
		key := row.Key()
		if seen[key] {
			return eris.Wrapf(ErrShape, "duplicate combination %s", key)
		}
		seen[key] = true
		if row.VehicleCount < 0 || (d.hasTotal() && row.VehicleCount > total) {
			return eris.Wrapf(ErrShape, "combination %s count %d outside [0, %d]", key, row.VehicleCount, total)
		}
		if i > 0 && row.VehicleCount > d.CombinationMatrix[i-1].VehicleCount {
			return eris.Wrapf(ErrShape, "combination matrix is not ordered by vehicle_count")
		}
	}
	return nil
}
