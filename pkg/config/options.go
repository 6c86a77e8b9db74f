package config

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/format"
	"github.com/ajitpratap0/krow/pkg/valueparser"
)

// Option keys understood by the decoder.
const (
	KeyFormat            = "format"
	KeyAvroSchema        = "avro_schema"
	KeyCSVQuote          = "csv_quote"
	KeyCSVDelimiter      = "csv_delimiter"
	KeyCSVNull           = "csv_null"
	KeyCSVIgnoreHeader   = "csv_ignore_header"
	KeyCSVTrimWhitespace = "csv_attribute_trim_whitespace"
)

// deprecated maps historical option names to their current key.
var deprecated = map[string]string{
	"schema":        KeyAvroSchema,
	"csv_delimeter": KeyCSVDelimiter,
}

// sourceKeys belong to the message source and are accepted without effect.
var sourceKeys = map[string]struct{}{
	"k_brokers":           {},
	"k_topic":             {},
	"k_consumer_group":    {},
	"k_initial_offset":    {},
	"k_automatic_offsets": {},
	"k_seg_batch":         {},
	"k_timeout_ms":        {},
	"k_security_protocol": {},
}

const sourceKeyPrefixKerberos = "kerberos_"

var csvKeys = []string{KeyCSVQuote, KeyCSVDelimiter, KeyCSVNull, KeyCSVIgnoreHeader, KeyCSVTrimWhitespace}

// Options is the validated decode option set.
type Options struct {
	Format     format.Format
	AvroSchema string

	CSVQuote          byte
	CSVDelimiter      byte
	CSVNull           string
	HasCSVNull        bool
	CSVIgnoreHeader   bool
	CSVTrimWhitespace bool

	// Warnings lists ignored, unknown or deprecated keys in a stable order.
	Warnings []string
}

// DefaultOptions returns the option set for f with every optional key unset.
func DefaultOptions(f format.Format) *Options {
	return &Options{
		Format:            f,
		CSVQuote:          '"',
		CSVDelimiter:      ',',
		CSVTrimWhitespace: true,
	}
}

// ParseOptions validates a string-keyed option set. Unknown keys never fail;
// they are collected in Options.Warnings.
func ParseOptions(raw map[string]string) (*Options, error) {
	values := make(map[string]string, len(raw))
	var warnings []string

	for _, k := range sortedKeys(raw) {
		v := raw[k]
		if current, ok := deprecated[k]; ok {
			warnings = append(warnings, fmt.Sprintf("option %q is deprecated, use %q", k, current))
			if _, set := raw[current]; set {
				continue
			}
			values[current] = v
			continue
		}
		values[k] = v
	}

	name, ok := values[KeyFormat]
	if !ok || name == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "format is required")
	}
	f := format.Resolve(name)
	if f == format.Invalid {
		return nil, errors.New(errors.ErrorTypeConfig, "unknown format").
			WithDetail("format", name)
	}

	opts := DefaultOptions(f)

	for _, k := range sortedKeys(values) {
		v := values[k]
		switch k {
		case KeyFormat:
		case KeyAvroSchema:
			if f != format.Avro {
				warnings = append(warnings, fmt.Sprintf("option %q ignored for format %s", k, f))
				continue
			}
			opts.AvroSchema = v
		case KeyCSVQuote, KeyCSVDelimiter, KeyCSVNull, KeyCSVIgnoreHeader, KeyCSVTrimWhitespace:
			// Reported as ignored below.
			if f != format.CSV {
				continue
			}
			if err := opts.setCSV(k, v); err != nil {
				return nil, err
			}
		default:
			if isSourceKey(k) {
				continue
			}
			warnings = append(warnings, fmt.Sprintf("unrecognized option %q", k))
		}
	}

	if f != format.CSV {
		for _, k := range csvKeys {
			if _, ok := values[k]; ok {
				warnings = append(warnings, fmt.Sprintf("option %q ignored for format %s", k, f))
			}
		}
	} else if opts.CSVQuote == opts.CSVDelimiter {
		return nil, errors.New(errors.ErrorTypeConfig, "csv_quote and csv_delimiter must differ").
			WithDetail("value", string(opts.CSVQuote))
	}

	opts.Warnings = warnings
	return opts, nil
}

func (o *Options) setCSV(k, v string) error {
	switch k {
	case KeyCSVQuote, KeyCSVDelimiter:
		if len(v) != 1 {
			return errors.Newf(errors.ErrorTypeConfig, "%s must be a single one-byte character", k).
				WithDetail("value", v)
		}
		if k == KeyCSVQuote {
			o.CSVQuote = v[0]
		} else {
			o.CSVDelimiter = v[0]
		}
	case KeyCSVNull:
		o.CSVNull = v
		o.HasCSVNull = true
	case KeyCSVIgnoreHeader, KeyCSVTrimWhitespace:
		b, err := valueparser.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid boolean option").
				WithDetail("option", k)
		}
		if k == KeyCSVIgnoreHeader {
			o.CSVIgnoreHeader = b
		} else {
			o.CSVTrimWhitespace = b
		}
	}
	return nil
}

// LogWarnings reports every collected warning on l.
func (o *Options) LogWarnings(l *zap.Logger) {
	for _, w := range o.Warnings {
		l.Warn(w, zap.String("format", o.Format.String()))
	}
}

func isSourceKey(k string) bool {
	if _, ok := sourceKeys[k]; ok {
		return true
	}
	return strings.HasPrefix(k, sourceKeyPrefixKerberos)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
