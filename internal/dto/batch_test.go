package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerReadingUnmarshalObject(t *testing.T) {
	var r ScannerReading
	require.NoError(t, json.Unmarshal([]byte(`{"value":"A","valid":true}`), &r))
	assert.True(t, r.Present)
	require.NotNil(t, r.Value)
	assert.Equal(t, "A", *r.Value)
	require.NotNil(t, r.Valid)
	assert.True(t, *r.Valid)
}

func TestScannerReadingUnmarshalObjectNullValue(t *testing.T) {
	var r ScannerReading
	require.NoError(t, json.Unmarshal([]byte(`{"value":null,"valid":false}`), &r))
	assert.True(t, r.Present)
	assert.Nil(t, r.Value)
	require.NotNil(t, r.Valid)
	assert.False(t, *r.Valid)
}

func TestScannerReadingUnmarshalBareString(t *testing.T) {
	var r ScannerReading
	require.NoError(t, json.Unmarshal([]byte(`"C"`), &r))
	assert.True(t, r.Present)
	require.NotNil(t, r.Value)
	assert.Equal(t, "C", *r.Value)
	assert.Nil(t, r.Valid)
}

func TestScannerReadingUnmarshalBareNumber(t *testing.T) {
	var r ScannerReading
	require.NoError(t, json.Unmarshal([]byte(`42`), &r))
	assert.True(t, r.Present)
	require.NotNil(t, r.Value)
	assert.Equal(t, "42", *r.Value)
}

func TestScannerReadingUnmarshalNull(t *testing.T) {
	r := ScannerReading{Present: true}
	require.NoError(t, json.Unmarshal([]byte(`null`), &r))
	assert.False(t, r.Present)
	assert.Nil(t, r.Value)
	assert.Nil(t, r.Valid)
}

func TestScannerReadingUnmarshalRejectsArray(t *testing.T) {
	var r ScannerReading
	assert.Error(t, json.Unmarshal([]byte(`["A"]`), &r))
}

func TestScannerReadingMarshalRoundTrip(t *testing.T) {
	valid := false
	value := "B"
	cases := []ScannerReading{
		{},
		{Present: true, Value: &value},
		{Present: true, Value: &value, Valid: &valid},
		{Present: true, Valid: &valid},
	}
	for _, in := range cases {
		raw, err := json.Marshal(in)
		require.NoError(t, err)
		var out ScannerReading
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, in, out)
	}
}

func TestRawItemAbsentFieldStaysAbsent(t *testing.T) {
	var item RawItem
	require.NoError(t, json.Unmarshal([]byte(`{"item_id":1,"scanner_1":"A"}`), &item))
	assert.True(t, item.Reading(1).Present)
	assert.False(t, item.Reading(2).Present)
	assert.False(t, item.Reading(3).Present)
	assert.False(t, item.Reading(9).Present)
}
