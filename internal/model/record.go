package model

// SourceRecord is one tracked VIN in the reconciliation table. Flags maps a
// source system name to its presence indicator (1 present, 0 absent).
type SourceRecord struct {
	VIN      string           `csv:"vin" json:"vin"`
	Status   string           `csv:"status" json:"status"`
	Priority int64            `csv:"priority" json:"priority"`
	Make     *string          `csv:"make" json:"make,omitempty"`
	Model    *string          `csv:"model" json:"model,omitempty"`
	Year     *int64           `csv:"year" json:"year,omitempty"`
	Price    *float64         `csv:"price" json:"price,omitempty"`
	Age      *int64           `csv:"age" json:"age,omitempty"`
	Flags    map[string]int64 `csv:"-" json:"flags"`
}

// Present reports whether the record is flagged in the named source.
func (r SourceRecord) Present(source string) bool {
	return r.Flags[source] == 1
}
