package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/format"
)

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := ParseOptions(map[string]string{"format": "csv"})
	require.NoError(t, err)

	assert.Equal(t, format.CSV, opts.Format)
	assert.Equal(t, byte('"'), opts.CSVQuote)
	assert.Equal(t, byte(','), opts.CSVDelimiter)
	assert.False(t, opts.HasCSVNull)
	assert.False(t, opts.CSVIgnoreHeader)
	assert.True(t, opts.CSVTrimWhitespace)
	assert.Empty(t, opts.Warnings)
}

func TestParseOptions_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]string
	}{
		{"missing format", map[string]string{}},
		{"empty format", map[string]string{"format": ""}},
		{"unknown format", map[string]string{"format": "parquet"}},
		{"long quote", map[string]string{"format": "csv", "csv_quote": "''"}},
		{"empty delimiter", map[string]string{"format": "csv", "csv_delimiter": ""}},
		{"multibyte delimiter", map[string]string{"format": "csv", "csv_delimiter": "§"}},
		{"quote equals delimiter", map[string]string{"format": "csv", "csv_quote": ",", "csv_delimiter": ","}},
		{"bad boolean", map[string]string{"format": "csv", "csv_ignore_header": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestParseOptions_Aliases(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		"format": "avro",
		"schema": `{"type":"record","name":"r","fields":[]}`,
	})
	require.NoError(t, err)
	assert.Contains(t, opts.AvroSchema, `"record"`)
	require.Len(t, opts.Warnings, 1)
	assert.Contains(t, opts.Warnings[0], "deprecated")

	// The current key wins over its alias.
	opts, err = ParseOptions(map[string]string{
		"format":        "csv",
		"csv_delimeter": ";",
		"csv_delimiter": "|",
	})
	require.NoError(t, err)
	assert.Equal(t, byte('|'), opts.CSVDelimiter)
}

func TestParseOptions_Warnings(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		"format":                "text",
		"csv_null":              "NULL",
		"avro_schema":           "{}",
		"k_topic":               "orders",
		"kerberos_keytab":       "/etc/krb5.keytab",
		"unexpected":            "1",
		"csv_ignore_header":     "yes",
		"k_automatic_offsets":   "true",
		"k_initial_offset":      "0",
		"k_security_protocol":   "SSL",
		"kerberos_service_name": "kafka",
	})
	require.NoError(t, err)
	assert.Equal(t, format.Text, opts.Format)
	assert.Equal(t, []string{
		`option "avro_schema" ignored for format text`,
		`unrecognized option "unexpected"`,
		`option "csv_null" ignored for format text`,
		`option "csv_ignore_header" ignored for format text`,
	}, opts.Warnings)

	core, logs := observer.New(zap.WarnLevel)
	opts.LogWarnings(zap.New(core))
	assert.Equal(t, 4, logs.Len())
}

func TestParseOptions_CSVKeysIgnoredOutsideCSV(t *testing.T) {
	opts, err := ParseOptions(map[string]string{
		"format":            "avro",
		"csv_quote":         "''",
		"csv_delimiter":     "",
		"csv_ignore_header": "sometimes",
	})
	require.NoError(t, err)
	assert.Equal(t, byte('"'), opts.CSVQuote)
	assert.Equal(t, byte(','), opts.CSVDelimiter)
	assert.False(t, opts.CSVIgnoreHeader)
	assert.Equal(t, []string{
		`option "csv_quote" ignored for format avro`,
		`option "csv_delimiter" ignored for format avro`,
		`option "csv_ignore_header" ignored for format avro`,
	}, opts.Warnings)
}

func TestParseOptions_Booleans(t *testing.T) {
	for _, v := range []string{"true", "ON", "Yes", "1", "t"} {
		opts, err := ParseOptions(map[string]string{"format": "csv", "csv_ignore_header": v})
		require.NoError(t, err, v)
		assert.True(t, opts.CSVIgnoreHeader, v)
	}
	for _, v := range []string{"false", "off", "NO", "0", "F"} {
		opts, err := ParseOptions(map[string]string{"format": "csv", "csv_attribute_trim_whitespace": v})
		require.NoError(t, err, v)
		assert.False(t, opts.CSVTrimWhitespace, v)
	}
}
