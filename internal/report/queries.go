package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/vin-dashboard/internal/source"
)

// queries renders the section statements for one dialect and table. Every
// identifier it interpolates has passed Layout.Validate.
type queries struct {
	d     source.Dialect
	table string
	l     *Layout
}

func (q queries) col(name string) string { return q.d.Ident(name) }

func (q queries) flag(source string) string { return q.col(q.l.source(source).Column) }

func (q queries) present(source string) string { return q.flag(source) + " = 1" }

func (q queries) absent(source string) string { return "COALESCE(" + q.flag(source) + ", 0) = 0" }

func (q queries) unknown(column string) string {
	return "COALESCE(" + q.col(column) + ", 'Unknown')"
}

func countWhen(cond string) string {
	return "COALESCE(SUM(CASE WHEN " + cond + " THEN 1 ELSE 0 END), 0)"
}

func intList(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// exceptionSummary: status, priority, vehicle_count, percentage.
func (q queries) exceptionSummary() string {
	c := q.l.Columns
	status := q.unknown(c.Status)
	priority := "COALESCE(" + q.col(c.Priority) + ", 0)"
	return fmt.Sprintf(`SELECT %[1]s AS exception_status,
	%[2]s AS priority,
	COUNT(*) AS vehicle_count,
	%[3]s AS percentage
FROM %[4]s
GROUP BY %[1]s, %[2]s
ORDER BY priority, vehicle_count DESC, exception_status`,
		status, priority, q.d.Round("COUNT(*) * 100.0 / SUM(COUNT(*)) OVER ()", 2), q.table)
}

// summary: total_vins then one count per tracked source.
func (q queries) summary() string {
	cols := []string{"COUNT(*) AS total_vins"}
	for _, s := range q.l.Sources {
		cols = append(cols, countWhen(q.present(s.Name))+" AS "+s.Name+"_count")
	}
	return fmt.Sprintf("SELECT %s\nFROM %s", strings.Join(cols, ",\n\t"), q.table)
}

// combinationMatrix: one flag per tracked source then vehicle_count.
func (q queries) combinationMatrix() string {
	flags := make([]string, len(q.l.Sources))
	order := []string{"vehicle_count DESC"}
	for i, s := range q.l.Sources {
		flags[i] = "COALESCE(" + q.col(s.Column) + ", 0)"
		order = append(order, flags[i]+" DESC")
	}
	return fmt.Sprintf(`SELECT %s,
	COUNT(*) AS vehicle_count
FROM %s
GROUP BY %s
ORDER BY %s
LIMIT %d`,
		strings.Join(flags, ", "), q.table, strings.Join(flags, ", "),
		strings.Join(order, ", "), q.l.CombinationLimit)
}

// makeDistribution: make, total_vehicles, high_priority_exceptions.
func (q queries) makeDistribution() string {
	makeExpr := q.unknown(q.l.Columns.Make)
	high := countWhen(q.col(q.l.Columns.Priority) + " IN (" + intList(q.l.HighPriorities) + ")")
	return fmt.Sprintf(`SELECT %[1]s AS make_name,
	COUNT(*) AS total_vehicles,
	%[2]s AS high_priority_exceptions
FROM %[3]s
WHERE %[4]s
GROUP BY %[1]s
ORDER BY total_vehicles DESC, make_name
LIMIT %[5]d`,
		makeExpr, high, q.table, q.present(q.l.Primary), q.l.MakeLimit)
}

// financial: avg_price, marketed_value, avg_age_days over priced rows.
func (q queries) financial() string {
	price := q.col(q.l.Columns.Price)
	marketed := make([]string, len(q.l.Marketed))
	for i, m := range q.l.Marketed {
		marketed[i] = q.present(m)
	}
	return fmt.Sprintf(`SELECT %s AS avg_price,
	%s AS marketed_value,
	%s AS avg_age_days
FROM %s
WHERE %s > 0`,
		q.d.Round("COALESCE(AVG("+price+"), 0)", 0),
		q.d.Round("COALESCE(SUM(CASE WHEN "+strings.Join(marketed, " AND ")+" THEN "+price+" ELSE 0 END), 0)", 0),
		q.d.Round("COALESCE(AVG("+q.col(q.l.Columns.Age)+"), 0)", 1),
		q.table, price)
}

// aging: age_bucket, vehicle_count, avg_price, ordered by youngest bucket.
func (q queries) aging() string {
	age := q.col(q.l.Columns.Age)
	price := q.col(q.l.Columns.Price)
	labels := q.l.ageBuckets()

	var b strings.Builder
	b.WriteString("CASE")
	for i, bound := range q.l.AgeBounds {
		fmt.Fprintf(&b, " WHEN %s <= %d THEN '%s'", age, bound, labels[i])
	}
	fmt.Fprintf(&b, " ELSE '%s' END", labels[len(labels)-1])
	bucket := b.String()

	return fmt.Sprintf(`SELECT %[1]s AS age_bucket,
	COUNT(*) AS vehicle_count,
	%[2]s AS avg_price
FROM %[3]s
WHERE %[4]s IS NOT NULL AND %[5]s > 0
GROUP BY %[1]s
ORDER BY MIN(%[4]s)`,
		bucket, q.d.Round("AVG("+price+")", 0), q.table, age, price)
}

// risks: one count per configured risk, in layout order.
func (q queries) risks() string {
	cols := make([]string, len(q.l.Risks))
	for i, r := range q.l.Risks {
		cols[i] = countWhen(q.present(r.Present)+" AND "+q.absent(r.Absent)) + " AS " + r.Name
	}
	return fmt.Sprintf("SELECT %s\nFROM %s", strings.Join(cols, ",\n\t"), q.table)
}

// criticalVINs: vin, make, model, year, status.
func (q queries) criticalVINs() string {
	c := q.l.Columns
	return fmt.Sprintf(`SELECT %s AS vin,
	%s AS make_name,
	%s AS model_name,
	%s AS model_year,
	%s AS exception_status
FROM %s
WHERE %s = %d
ORDER BY %s
LIMIT %d`,
		q.col(c.VIN), q.unknown(c.Make), q.unknown(c.Model), q.col(c.Year),
		q.unknown(c.Status), q.table, q.col(c.Priority), q.l.CriticalPriority,
		q.col(c.VIN), q.l.CriticalLimit)
}
