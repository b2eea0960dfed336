package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecords(t *testing.T) {
	data := `vin,status,priority,make,model,year,price,age,cdk,vauto
1FTEW1EP5JFA00001,CDK_ONLY,1,Ford,F-150,2018,35000,45,1,0
5YJ3E1EA7KF000002,ALL_SOURCES,3,,,,,,1,1
`
	recs, err := ReadRecords(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "1FTEW1EP5JFA00001", first.VIN)
	assert.Equal(t, "CDK_ONLY", first.Status)
	assert.Equal(t, int64(1), first.Priority)
	require.NotNil(t, first.Make)
	assert.Equal(t, "Ford", *first.Make)
	require.NotNil(t, first.Year)
	assert.Equal(t, int64(2018), *first.Year)
	require.NotNil(t, first.Price)
	assert.InDelta(t, 35000, *first.Price, 0.001)
	assert.True(t, first.Present("cdk"))
	assert.False(t, first.Present("vauto"))

	second := recs[1]
	assert.Nil(t, second.Make)
	assert.Nil(t, second.Year)
	assert.Nil(t, second.Price)
	assert.Nil(t, second.Age)
	assert.True(t, second.Present("vauto"))
}

func TestReadRecords_Empty(t *testing.T) {
	recs, err := ReadRecords(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadRecords_BadFlag(t *testing.T) {
	data := "vin,status,priority,cdk\nVIN1,CDK_ONLY,1,yes\n"
	_, err := ReadRecords(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag cdk must be 0 or 1")
}

func TestReadRecords_MissingVIN(t *testing.T) {
	data := "vin,status,priority\n,CDK_ONLY,1\n"
	_, err := ReadRecords(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no vin")
}
