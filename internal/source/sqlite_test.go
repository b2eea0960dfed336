package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	_, err = s.DB().Exec(`CREATE TABLE vin_exception_report (
		vin TEXT PRIMARY KEY,
		makename TEXT,
		vauto_price REAL,
		CDK_FLAG INTEGER
	)`)
	require.NoError(t, err)
	return s
}

func TestSQLite_LoadAndQuery(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.Load(ctx, "vin_exception_report",
		[]string{"vin", "makename", "vauto_price", "CDK_FLAG"},
		[][]any{
			{"VIN1", "Ford", 30000.0, 1},
			{"VIN2", nil, 45000.0, 0},
		})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err := s.Query(ctx, `SELECT vin, makename, vauto_price, CDK_FLAG FROM vin_exception_report ORDER BY vin`)
	require.NoError(t, err)
	assert.Equal(t, []string{"vin", "makename", "vauto_price", "CDK_FLAG"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "VIN1", res.Rows[0][0])
	assert.Equal(t, "Ford", res.Rows[0][1])
	assert.Nil(t, res.Rows[1][1])

	price, err := Float(res.Rows[1][2])
	require.NoError(t, err)
	assert.InDelta(t, 45000, price, 0.001)

	flag, err := Int(res.Rows[0][3])
	require.NoError(t, err)
	assert.Equal(t, int64(1), flag)
}

func TestSQLite_LoadRollsBackOnError(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "vin_exception_report", []string{"vin"}, [][]any{{"DUP"}, {"DUP"}})
	require.Error(t, err)

	res, err := s.Query(ctx, `SELECT COUNT(*) FROM vin_exception_report`)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Rows[0][0])
}

func TestSQLite_LoadEmpty(t *testing.T) {
	s := newTestSQLite(t)
	n, err := s.Load(context.Background(), "vin_exception_report", []string{"vin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLite_QueryError(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.Query(context.Background(), `SELECT OEM_FLAG FROM vin_exception_report`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: query")
}

func TestSQLite_WindowPercentage(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.Load(ctx, "vin_exception_report", []string{"vin", "CDK_FLAG"},
		[][]any{{"A", 1}, {"B", 1}, {"C", 0}})
	require.NoError(t, err)

	q := `SELECT CDK_FLAG, ` + SQLiteDialect.Round("COUNT(*) * 100.0 / SUM(COUNT(*)) OVER ()", 2) +
		` AS pct FROM vin_exception_report GROUP BY CDK_FLAG ORDER BY CDK_FLAG`
	res, err := s.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	pct0, err := Float(res.Rows[0][1])
	require.NoError(t, err)
	pct1, err := Float(res.Rows[1][1])
	require.NoError(t, err)
	assert.InDelta(t, 33.33, pct0, 0.001)
	assert.InDelta(t, 66.67, pct1, 0.001)
}
