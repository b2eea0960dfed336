package source

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat(t *testing.T) {
	var numeric pgtype.Numeric
	require.NoError(t, numeric.Scan("35421.50"))

	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float64", 12.5, 12.5},
		{"float32", float32(2.5), 2.5},
		{"int64", int64(7), 7},
		{"int32", int32(-3), -3},
		{"bool", true, 1},
		{"numeric", numeric, 35421.5},
		{"null numeric", pgtype.Numeric{}, 0},
		{"rat", big.NewRat(3, 2), 1.5},
		{"bytes", []byte("41.25"), 41.25},
		{"string", " 100 ", 100},
		{"empty string", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Float(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

type decimalString string

func (d decimalString) String() string { return string(d) }

func TestFloat_StringFallback(t *testing.T) {
	got, err := Float(decimalString("19999.99"))
	require.NoError(t, err)
	assert.InDelta(t, 19999.99, got, 0.0001)

	_, err = Float(decimalString("n/a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not numeric")
}

func TestInt(t *testing.T) {
	n, err := Int(int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = Int(float64(60))
	require.NoError(t, err)
	assert.Equal(t, int64(60), n)

	n, err = Int(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = Int(big.NewRat(2100000, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2100000), n)

	_, err = Int(1.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an integer")
}

func TestNullableInt(t *testing.T) {
	n, err := NullableInt(nil)
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = NullableInt(int32(2021))
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(2021), *n)
}

func TestString(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "CDK_ONLY", String("CDK_ONLY"))
	assert.Equal(t, "raw", String([]byte("raw")))
	assert.Equal(t, "2021", String(int64(2021)))
}
