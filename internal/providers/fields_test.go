package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFields = FieldVariants{
	"period": {"period", "refPeriod", "ref_period"},
	"value":  {"value", "val"},
}

func TestExtractRowsUnwrapsEnvelopes(t *testing.T) {
	payload := map[string]any{
		"data": []any{
			map[string]any{"period": "2025-07", "value": 1.0},
			"not a row",
			map[string]any{"period": "2025-08", "value": 2.0},
		},
	}

	rows, err := ExtractRows(payload, "records", "data")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// A bare list needs no wrapper key at all.
	rows, err = ExtractRows([]any{map[string]any{"value": 3.0}}, "data")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = ExtractRows(map[string]any{"unexpected": []any{}}, "data")
	assert.Error(t, err)

	_, err = ExtractRows("scalar", "data")
	assert.Error(t, err)
}

func TestFieldStringResolvesVariants(t *testing.T) {
	tests := []struct {
		row  map[string]any
		want string
		ok   bool
	}{
		{map[string]any{"period": "2025-07"}, "2025-07", true},
		{map[string]any{"refPeriod": " 2025-07 "}, "2025-07", true},
		{map[string]any{"REF_PERIOD": "2025-07"}, "2025-07", true}, // case-insensitive
		{map[string]any{"period": json.Number("202507")}, "202507", true},
		{map[string]any{"period": ""}, "", false},
		{map[string]any{"month": "2025-07"}, "", false},
	}
	for _, tt := range tests {
		got, ok := testFields.FieldString(tt.row, "period")
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}

func TestFieldFloatCoercesTypes(t *testing.T) {
	tests := []struct {
		row  map[string]any
		want float64
		ok   bool
	}{
		{map[string]any{"value": 5.2}, 5.2, true},
		{map[string]any{"val": json.Number("5.08")}, 5.08, true},
		{map[string]any{"value": "4.9"}, 4.9, true},
		{map[string]any{"value": 7}, 7.0, true},
		{map[string]any{"value": "n/a"}, 0, false},
		{map[string]any{}, 0, false},
	}
	for _, tt := range tests {
		got, ok := testFields.FieldFloat(tt.row, "value")
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}
