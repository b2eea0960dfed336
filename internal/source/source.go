// Package source runs read-only aggregate SQL against the reconciliation
// table. Drivers return rows as plain values; callers coerce them with Int,
// Float and String.
package source

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vin-dashboard/internal/db"
)

// Result is a fully buffered result set.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Querier executes a SQL statement in the engine's dialect.
type Querier interface {
	Query(ctx context.Context, sql string) (*Result, error)
	Dialect() Dialect
	Close() error
}

// Loader bulk-inserts rows into a table. Only engines that support writes
// from this tool implement it.
type Loader interface {
	Load(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Dialect captures the SQL differences between engines.
type Dialect interface {
	Name() string
	// Table renders a validated table reference.
	Table(name string) (string, error)
	// Ident quotes a column name that has already been validated.
	Ident(name string) string
	// Round rounds expr to places decimals and yields a floating point value.
	Round(expr string, places int) string
}

var (
	tablePattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	bqTablePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+){0,2}$`)
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Table(name string) (string, error) {
	if !tablePattern.MatchString(name) {
		return "", eris.Errorf("source: invalid table name %q", name)
	}
	return db.SanitizeTable(name), nil
}

func (postgresDialect) Ident(name string) string { return pgx.Identifier{name}.Sanitize() }

// ROUND(x, n) only exists for numeric in Postgres.
func (postgresDialect) Round(expr string, places int) string {
	return fmt.Sprintf("ROUND(CAST(%s AS numeric), %d)::float8", expr, places)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Table(name string) (string, error) {
	if !tablePattern.MatchString(name) {
		return "", eris.Errorf("source: invalid table name %q", name)
	}
	return db.SanitizeTable(name), nil
}

func (sqliteDialect) Ident(name string) string { return pgx.Identifier{name}.Sanitize() }

func (sqliteDialect) Round(expr string, places int) string {
	return fmt.Sprintf("ROUND(%s, %d)", expr, places)
}

type bigqueryDialect struct{}

func (bigqueryDialect) Name() string { return "bigquery" }

func (bigqueryDialect) Table(name string) (string, error) {
	if !bqTablePattern.MatchString(name) {
		return "", eris.Errorf("source: invalid table name %q", name)
	}
	return "`" + name + "`", nil
}

func (bigqueryDialect) Ident(name string) string { return "`" + name + "`" }

func (bigqueryDialect) Round(expr string, places int) string {
	return fmt.Sprintf("ROUND(%s, %d)", expr, places)
}

// Postgres, SQLite and BigQuery dialects.
var (
	PostgresDialect Dialect = postgresDialect{}
	SQLiteDialect   Dialect = sqliteDialect{}
	BigQueryDialect Dialect = bigqueryDialect{}
)
