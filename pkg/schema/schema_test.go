package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericModifier(t *testing.T) {
	tests := []struct {
		precision, scale int
	}{
		{10, 2},
		{38, 0},
		{5, 5},
		{1000, 999},
	}

	for _, tt := range tests {
		c := Column{Type: TypeNumeric, Modifier: NumericModifier(tt.precision, tt.scale)}
		assert.Equal(t, tt.scale, c.NumericScale())
		assert.Equal(t, tt.precision, c.NumericPrecision())
	}

	assert.Equal(t, 0, Column{Type: TypeNumeric, Modifier: NoModifier}.NumericScale())
	assert.Equal(t, int32(3), TimestampModifier(3))
}

func TestParseTypeFamily(t *testing.T) {
	tests := []struct {
		name     string
		expected TypeFamily
		ok       bool
	}{
		{"text", TypeText, true},
		{"VARCHAR", TypeText, true},
		{" integer ", TypeInt32, true},
		{"bigint", TypeInt64, true},
		{"double precision", TypeFloat64, true},
		{"numeric", TypeNumeric, true},
		{"jsonb", TypeJSON, true},
		{"point", TypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTypeFamily(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTableArity(t *testing.T) {
	tbl := Table{Columns: []Column{
		{Name: "a", Type: TypeText},
		{Name: "b", Type: TypeText, Dropped: true},
		{Name: "c", Type: TypeInt32},
	}}
	assert.Equal(t, 3, tbl.Arity())
	assert.Equal(t, 2, tbl.Live())
}

func TestParserFunc(t *testing.T) {
	var p ValueParser = ParserFunc(func(text string) (any, error) { return len(text), nil })
	v, err := p.Parse("four")
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	assert.Equal(t, "timestamp", TypeTimestamp.String())
}
