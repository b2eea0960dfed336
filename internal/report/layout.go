package report

import (
	"regexp"
	"slices"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vin-dashboard/internal/config"
	"github.com/sells-group/vin-dashboard/internal/model"
)

// Section names a top-level key group of the report document.
type Section string

const (
	SectionExceptionSummary  Section = "exception_summary"
	SectionSummary           Section = "summary"
	SectionCombinationMatrix Section = "combination_matrix"
	SectionMakeDistribution  Section = "make_distribution"
	SectionFinancial         Section = "financial"
	SectionAging             Section = "aging"
	SectionImpact            Section = "impact"
	// SectionRisks emits one top-level key per configured risk.
	SectionRisks        Section = "risks"
	SectionCriticalVINs Section = "critical_vins"
	SectionSources      Section = "sources"
)

var knownSections = []Section{
	SectionExceptionSummary,
	SectionSummary,
	SectionCombinationMatrix,
	SectionMakeDistribution,
	SectionFinancial,
	SectionAging,
	SectionImpact,
	SectionRisks,
	SectionCriticalVINs,
	SectionSources,
}

// Preset names.
const (
	PresetFourSource = "four-source"
	PresetFiveSource = "five-source"
)

// Source is a tracked source system and its 0/1 indicator column.
type Source struct {
	Name   string
	Label  string
	Column string
}

// Risk counts rows present in one source and absent from another, valued at
// UnitValue dollars per vehicle.
type Risk struct {
	Name      string
	Present   string
	Absent    string
	UnitValue float64
	CountKey  string
	ValueKey  string
}

// Columns names the descriptive columns of the source table.
type Columns struct {
	VIN      string
	Status   string
	Priority string
	Make     string
	Model    string
	Year     string
	Price    string
	Age      string
}

// Layout declares everything the Aggregator computes.
type Layout struct {
	Table            string
	GeneratedBy      string
	Sources          []Source
	Primary          string
	Marketed         []string
	Risks            []Risk
	Sections         []Section
	Columns          Columns
	CombinationLimit int
	MakeLimit        int
	CriticalLimit    int
	HighPriorities   []int
	CriticalPriority int
	AgeBounds        []int
}

func defaultColumns() Columns {
	return Columns{
		VIN:      "vin",
		Status:   "EXCEPTION_STATUS",
		Priority: "PRIORITY",
		Make:     "makename",
		Model:    "modelname",
		Year:     "year",
		Price:    "vauto_price",
		Age:      "vauto_age",
	}
}

func fourSources() []Source {
	return []Source{
		{Name: "cdk", Label: "CDK", Column: "CDK_FLAG"},
		{Name: "vauto", Label: "vAuto", Column: "VAUTO_FLAG"},
		{Name: "lojack", Label: "LoJack", Column: "LOJACK_FLAG"},
		{Name: "oem", Label: "OEM", Column: "OEM_FLAG"},
	}
}

// FourSource is the dealer-management/marketing/tracking/OEM layout.
func FourSource() Layout {
	return Layout{
		GeneratedBy: "vin-dashboard",
		Sources:     fourSources(),
		Primary:     "cdk",
		Marketed:    []string{"cdk", "vauto"},
		Risks: []Risk{
			{Name: "not_marketed", Present: "cdk", Absent: "vauto", UnitValue: 35000},
			{Name: "no_tracking", Present: "cdk", Absent: "lojack", UnitValue: 45000},
			{Name: "oem", Present: "oem", Absent: "cdk", UnitValue: 40000,
				CountKey: "oem_not_received", ValueKey: "oem_value_at_risk"},
		},
		Sections: []Section{
			SectionExceptionSummary,
			SectionSummary,
			SectionCombinationMatrix,
			SectionMakeDistribution,
			SectionFinancial,
			SectionAging,
			SectionImpact,
			SectionCriticalVINs,
		},
		Columns:          defaultColumns(),
		CombinationLimit: 15,
		MakeLimit:        10,
		CriticalLimit:    20,
		HighPriorities:   []int{1, 2},
		CriticalPriority: 1,
		AgeBounds:        []int{30, 60, 90},
	}
}

// FiveSource adds floorplan financing and publishes each risk as its own section.
func FiveSource() Layout {
	l := FourSource()
	l.Sources = append(fourSources(), Source{Name: "floorplan", Label: "Floorplan", Column: "FLOORPLAN_FLAG"})
	l.Risks = []Risk{
		{Name: "not_marketed", Present: "cdk", Absent: "vauto", UnitValue: 35000},
		{Name: "no_tracking", Present: "cdk", Absent: "lojack", UnitValue: 45000},
		{Name: "oem_risk", Present: "oem", Absent: "cdk", UnitValue: 40000},
		{Name: "floorplan_risk", Present: "floorplan", Absent: "cdk", UnitValue: 40000},
	}
	l.Sections = []Section{
		SectionExceptionSummary,
		SectionSummary,
		SectionCombinationMatrix,
		SectionRisks,
		SectionCriticalVINs,
		SectionSources,
	}
	l.CombinationLimit = 20
	l.CriticalLimit = 25
	return l
}

// Preset returns the named base layout.
func Preset(name string) (Layout, error) {
	switch name {
	case "", PresetFourSource:
		return FourSource(), nil
	case PresetFiveSource:
		return FiveSource(), nil
	default:
		return Layout{}, eris.Errorf("report: unknown preset %q", name)
	}
}

// LayoutFromConfig starts from the configured preset and applies every
// non-zero override, then validates the result.
func LayoutFromConfig(table string, rc config.ReportConfig) (Layout, error) {
	l, err := Preset(rc.Preset)
	if err != nil {
		return Layout{}, err
	}
	l.Table = table

	if rc.GeneratedBy != "" {
		l.GeneratedBy = rc.GeneratedBy
	}
	if len(rc.Sources) > 0 {
		l.Sources = make([]Source, len(rc.Sources))
		for i, s := range rc.Sources {
			l.Sources[i] = Source{Name: s.Name, Label: s.Label, Column: s.Column}
		}
	}
	if rc.Primary != "" {
		l.Primary = rc.Primary
	}
	if len(rc.Marketed) > 0 {
		l.Marketed = rc.Marketed
	}
	if len(rc.Risks) > 0 {
		l.Risks = make([]Risk, len(rc.Risks))
		for i, r := range rc.Risks {
			l.Risks[i] = Risk{
				Name:      r.Name,
				Present:   r.Present,
				Absent:    r.Absent,
				UnitValue: r.UnitValue,
				CountKey:  r.CountKey,
				ValueKey:  r.ValueKey,
			}
		}
	}
	if len(rc.Sections) > 0 {
		l.Sections = make([]Section, len(rc.Sections))
		for i, s := range rc.Sections {
			l.Sections[i] = Section(s)
		}
	}
	overrideString(&l.Columns.VIN, rc.Columns.VIN)
	overrideString(&l.Columns.Status, rc.Columns.Status)
	overrideString(&l.Columns.Priority, rc.Columns.Priority)
	overrideString(&l.Columns.Make, rc.Columns.Make)
	overrideString(&l.Columns.Model, rc.Columns.Model)
	overrideString(&l.Columns.Year, rc.Columns.Year)
	overrideString(&l.Columns.Price, rc.Columns.Price)
	overrideString(&l.Columns.Age, rc.Columns.Age)
	if rc.CombinationLimit > 0 {
		l.CombinationLimit = rc.CombinationLimit
	}
	if rc.MakeLimit > 0 {
		l.MakeLimit = rc.MakeLimit
	}
	if rc.CriticalLimit > 0 {
		l.CriticalLimit = rc.CriticalLimit
	}
	if len(rc.HighPriorities) > 0 {
		l.HighPriorities = rc.HighPriorities
	}
	if rc.CriticalPriority > 0 {
		l.CriticalPriority = rc.CriticalPriority
	}
	if len(rc.AgeBounds) > 0 {
		l.AgeBounds = rc.AgeBounds
	}

	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects layouts that would produce malformed or ambiguous SQL.
// Column names are interpolated into queries, so they must be plain identifiers.
func (l *Layout) Validate() error {
	if l.Table == "" {
		return eris.New("report: layout: table is required")
	}
	if len(l.Sources) == 0 {
		return eris.New("report: layout: at least one source is required")
	}

	names := make(map[string]bool, len(l.Sources))
	cols := make(map[string]bool, len(l.Sources))
	for _, s := range l.Sources {
		if !identPattern.MatchString(s.Name) {
			return eris.Errorf("report: layout: invalid source name %q", s.Name)
		}
		if !identPattern.MatchString(s.Column) {
			return eris.Errorf("report: layout: invalid column %q for source %s", s.Column, s.Name)
		}
		if names[s.Name] {
			return eris.Errorf("report: layout: duplicate source %s", s.Name)
		}
		if cols[s.Column] {
			return eris.Errorf("report: layout: duplicate indicator column %s", s.Column)
		}
		names[s.Name] = true
		cols[s.Column] = true
	}

	for _, c := range []string{
		l.Columns.VIN, l.Columns.Status, l.Columns.Priority, l.Columns.Make,
		l.Columns.Model, l.Columns.Year, l.Columns.Price, l.Columns.Age,
	} {
		if !identPattern.MatchString(c) {
			return eris.Errorf("report: layout: invalid column %q", c)
		}
	}

	seen := make(map[Section]bool, len(l.Sections))
	for _, s := range l.Sections {
		if !slices.Contains(knownSections, s) {
			return eris.Errorf("report: layout: unknown section %q", s)
		}
		if seen[s] {
			return eris.Errorf("report: layout: duplicate section %q", s)
		}
		seen[s] = true
	}

	if l.Has(SectionMakeDistribution) && !names[l.Primary] {
		return eris.Errorf("report: layout: primary source %q is not tracked", l.Primary)
	}
	if l.Has(SectionFinancial) {
		if len(l.Marketed) == 0 {
			return eris.New("report: layout: financial needs at least one marketed source")
		}
		for _, m := range l.Marketed {
			if !names[m] {
				return eris.Errorf("report: layout: marketed source %q is not tracked", m)
			}
		}
	}

	riskNames := make(map[string]bool, len(l.Risks))
	for _, r := range l.Risks {
		if !identPattern.MatchString(r.Name) {
			return eris.Errorf("report: layout: invalid risk name %q", r.Name)
		}
		if riskNames[r.Name] {
			return eris.Errorf("report: layout: duplicate risk %s", r.Name)
		}
		riskNames[r.Name] = true
		if !names[r.Present] || !names[r.Absent] {
			return eris.Errorf("report: layout: risk %s references an untracked source", r.Name)
		}
		if r.Present == r.Absent {
			return eris.Errorf("report: layout: risk %s uses %s as both present and absent", r.Name, r.Present)
		}
		if r.UnitValue < 0 {
			return eris.Errorf("report: layout: risk %s has a negative unit value", r.Name)
		}
		if l.Has(SectionRisks) && (seen[Section(r.Name)] || isReservedKey(r.Name)) {
			return eris.Errorf("report: layout: risk name %s collides with a document key", r.Name)
		}
	}

	if l.Has(SectionCombinationMatrix) && l.CombinationLimit <= 0 {
		return eris.New("report: layout: combination_limit must be > 0")
	}
	if l.Has(SectionMakeDistribution) && l.MakeLimit <= 0 {
		return eris.New("report: layout: make_limit must be > 0")
	}
	if l.Has(SectionCriticalVINs) && l.CriticalLimit <= 0 {
		return eris.New("report: layout: critical_limit must be > 0")
	}
	if l.Has(SectionMakeDistribution) && len(l.HighPriorities) == 0 {
		return eris.New("report: layout: high_priorities must not be empty")
	}
	if l.Has(SectionAging) {
		if len(l.AgeBounds) == 0 {
			return eris.New("report: layout: age_bounds must not be empty")
		}
		prev := -1
		for _, b := range l.AgeBounds {
			if b <= prev {
				return eris.New("report: layout: age_bounds must be positive and strictly increasing")
			}
			prev = b
		}
	}
	return nil
}

func isReservedKey(name string) bool {
	switch name {
	case keyLastUpdated, keyGeneratedBy:
		return true
	}
	return slices.Contains(knownSections, Section(name))
}

// Has reports whether the section is enabled.
func (l *Layout) Has(s Section) bool {
	return slices.Contains(l.Sections, s)
}

func (l *Layout) source(name string) Source {
	for _, s := range l.Sources {
		if s.Name == name {
			return s
		}
	}
	return Source{}
}

// Labels returns the display names of the tracked sources.
func (l *Layout) Labels() []string {
	out := make([]string, len(l.Sources))
	for i, s := range l.Sources {
		out[i] = s.Label
		if out[i] == "" {
			out[i] = s.Name
		}
	}
	return out
}

func (r Risk) countKey() string {
	if r.CountKey != "" {
		return r.CountKey
	}
	return r.Name + "_count"
}

func (r Risk) valueKey() string {
	if r.ValueKey != "" {
		return r.ValueKey
	}
	return r.Name + "_value"
}

// ageBuckets returns the bucket labels for the configured bounds,
// e.g. [30 60 90] -> 0-30, 31-60, 61-90, 90+ days.
func (l *Layout) ageBuckets() []string {
	labels := make([]string, 0, len(l.AgeBounds)+1)
	lo := 0
	for _, b := range l.AgeBounds {
		labels = append(labels, strconv.Itoa(lo)+"-"+strconv.Itoa(b)+" days")
		lo = b + 1
	}
	last := l.AgeBounds[len(l.AgeBounds)-1]
	return append(labels, strconv.Itoa(last)+"+ days")
}

// LoadColumns lists the table columns written by the CSV loader.
func (l *Layout) LoadColumns() []string {
	cols := []string{
		l.Columns.VIN, l.Columns.Status, l.Columns.Priority, l.Columns.Make,
		l.Columns.Model, l.Columns.Year, l.Columns.Price, l.Columns.Age,
	}
	for _, s := range l.Sources {
		cols = append(cols, s.Column)
	}
	return cols
}

// LoadRow maps a record onto LoadColumns. A flag may be keyed by source name
// or by indicator column; a missing flag loads as NULL.
func (l *Layout) LoadRow(rec model.SourceRecord) []any {
	row := []any{rec.VIN, rec.Status, rec.Priority, deref(rec.Make), deref(rec.Model),
		deref(rec.Year), deref(rec.Price), deref(rec.Age)}
	for _, s := range l.Sources {
		v, ok := rec.Flags[s.Name]
		if !ok {
			v, ok = rec.Flags[s.Column]
		}
		if ok {
			row = append(row, v)
		} else {
			row = append(row, nil)
		}
	}
	return row
}

func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
