package model

import "strconv"

// ExceptionRow is one (status, priority) group of exception_summary.
type ExceptionRow struct {
	Status       string  `json:"EXCEPTION_STATUS"`
	Priority     int64   `json:"PRIORITY"`
	VehicleCount int64   `json:"vehicle_count"`
	Percentage   float64 `json:"percentage"`
}

// SourceCount is the number of VINs flagged present in one source system.
type SourceCount struct {
	Source string
	Count  int64
}

// Summary holds the total VIN count and per-source indicator counts.
type Summary struct {
	TotalVINs int64
	Sources   []SourceCount
}

// MarshalJSON emits total_vins followed by <source>_count in tracked order.
func (s Summary) MarshalJSON() ([]byte, error) {
	fields := make(Fields, 0, len(s.Sources)+1)
	fields = append(fields, Field{Key: "total_vins", Value: s.TotalVINs})
	for _, sc := range s.Sources {
		fields = append(fields, Field{Key: sc.Source + "_count", Value: sc.Count})
	}
	return fields.MarshalJSON()
}

// Count returns the indicator count for the named source.
func (s Summary) Count(source string) (int64, bool) {
	for _, sc := range s.Sources {
		if sc.Source == source {
			return sc.Count, true
		}
	}
	return 0, false
}

// FlagValue is one indicator column value within a combination row.
type FlagValue struct {
	Column string
	Value  int64
}

// CombinationRow is one distinct flag combination and its vehicle count.
type CombinationRow struct {
	Flags        []FlagValue
	VehicleCount int64
}

// MarshalJSON emits the flag columns in tracked order followed by vehicle_count.
func (c CombinationRow) MarshalJSON() ([]byte, error) {
	fields := make(Fields, 0, len(c.Flags)+1)
	for _, f := range c.Flags {
		fields = append(fields, Field{Key: f.Column, Value: f.Value})
	}
	fields = append(fields, Field{Key: "vehicle_count", Value: c.VehicleCount})
	return fields.MarshalJSON()
}

// Key returns the flag tuple as a comparable string.
func (c CombinationRow) Key() string {
	b := make([]byte, 0, len(c.Flags)*2)
	for i, f := range c.Flags {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, f.Value, 10)
	}
	return string(b)
}

// MakeRow is one make in make_distribution.
type MakeRow struct {
	Make                   string `json:"make"`
	TotalVehicles          int64  `json:"total_vehicles"`
	HighPriorityExceptions int64  `json:"high_priority_exceptions"`
}

// Financial holds price and age aggregates over priced vehicles.
type Financial struct {
	AvgPrice      float64 `json:"avg_price"`
	MarketedValue float64 `json:"marketed_value"`
	AvgAgeDays    float64 `json:"avg_age_days"`
}

// AgingBucket is one age range in the aging distribution.
type AgingBucket struct {
	AgeBucket    string  `json:"age_bucket"`
	VehicleCount int64   `json:"vehicle_count"`
	AvgPrice     float64 `json:"avg_price"`
}

// RiskMetric is a two-flag exception count with its estimated dollar exposure.
type RiskMetric struct {
	Name     string  `json:"-"`
	CountKey string  `json:"-"`
	ValueKey string  `json:"-"`
	Count    int64   `json:"count"`
	Value    float64 `json:"value"`
}

// Impact renders risks as the flat object used by the four-source dashboard.
func Impact(risks []RiskMetric) Fields {
	fields := make(Fields, 0, len(risks)*2)
	for _, r := range risks {
		fields = append(fields,
			Field{Key: r.CountKey, Value: r.Count},
			Field{Key: r.ValueKey, Value: r.Value},
		)
	}
	return fields
}

// CriticalVIN is a sampled record at the most critical priority.
type CriticalVIN struct {
	VIN    string `json:"vin"`
	Make   string `json:"make"`
	Model  string `json:"model"`
	Year   *int64 `json:"year"`
	Status string `json:"EXCEPTION_STATUS"`
}
