// Package valueparser provides the default text-to-native converters bound to
// columns when the caller does not inject its own.
package valueparser

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/krow/pkg/schema"
)

// Layouts of the canonical text produced by the decoders.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05.999999"
	TimestampLayout = "2006-01-02 15:04:05.999999"
)

// Interval is the native value of an interval column.
type Interval struct {
	Months       int32
	Days         int32
	Microseconds int64
}

func (iv Interval) String() string {
	return fmt.Sprintf("@ %d month %d day %d microsecond", iv.Months, iv.Days, iv.Microseconds)
}

// For returns the default parser for the column's type family.
func For(t schema.TypeFamily) schema.ValueParser {
	switch t {
	case schema.TypeInt32:
		return schema.ParserFunc(parseInt32)
	case schema.TypeInt64:
		return schema.ParserFunc(parseInt64)
	case schema.TypeFloat32:
		return schema.ParserFunc(parseFloat32)
	case schema.TypeFloat64:
		return schema.ParserFunc(parseFloat64)
	case schema.TypeBool:
		return schema.ParserFunc(parseBool)
	case schema.TypeBytes:
		return schema.ParserFunc(parseBytes)
	case schema.TypeNumeric:
		return schema.ParserFunc(parseNumeric)
	case schema.TypeDate:
		return schema.ParserFunc(parseDate)
	case schema.TypeTime:
		return schema.ParserFunc(parseTime)
	case schema.TypeTimestamp:
		return schema.ParserFunc(parseTimestamp)
	case schema.TypeInterval:
		return schema.ParserFunc(parseInterval)
	case schema.TypeUUID:
		return schema.ParserFunc(parseUUID)
	case schema.TypeJSON:
		return schema.ParserFunc(parseJSON)
	default:
		return schema.ParserFunc(parseText)
	}
}

// Bind fills in the default parser of every column that has none.
func Bind(cols []schema.Column) []schema.Column {
	out := make([]schema.Column, len(cols))
	for i, c := range cols {
		if c.Parser == nil && !c.Dropped {
			c.Parser = For(c.Type)
		}
		out[i] = c
	}
	return out
}

func parseText(s string) (any, error) { return s, nil }

func parseInt32(s string) (any, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return nil, err
	}
	return int32(v), nil
}

func parseInt64(s string) (any, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func parseFloat32(s string) (any, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return nil, err
	}
	return float32(v), nil
}

func parseFloat64(s string) (any, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseBool(s string) (any, error) {
	return ParseBool(strings.TrimSpace(s))
}

// ParseBool accepts the SQL spellings of a boolean, case-insensitively.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "on", "yes", "1", "t", "y":
		return true, nil
	case "false", "off", "no", "0", "f", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// parseBytes accepts the \x hex form; any other text is taken as raw bytes.
func parseBytes(s string) (any, error) {
	if strings.HasPrefix(s, `\x`) {
		return hex.DecodeString(s[2:])
	}
	return []byte(s), nil
}

func parseNumeric(s string) (any, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

func parseDate(s string) (any, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// parseTime returns the offset since midnight.
func parseTime(s string) (any, error) {
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return nil, err
	}
	return t.Sub(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)), nil
}

func parseTimestamp(s string) (any, error) {
	return time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), time.UTC)
}

func parseUUID(s string) (any, error) {
	return uuid.Parse(strings.TrimSpace(s))
}

func parseJSON(s string) (any, error) {
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("invalid json")
	}
	return json.RawMessage(s), nil
}

// parseInterval reads the "@ N month N day N millisecond" form emitted for
// Avro durations. Units may appear in any order and be omitted.
func parseInterval(s string) (any, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(s), "@"))
	if len(fields)%2 != 0 || len(fields) == 0 {
		return nil, fmt.Errorf("invalid interval %q", s)
	}

	var iv Interval
	for i := 0; i < len(fields); i += 2 {
		n, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", s, err)
		}
		switch strings.TrimSuffix(strings.ToLower(fields[i+1]), "s") {
		case "year":
			iv.Months += int32(n * 12)
		case "mon", "month":
			iv.Months += int32(n)
		case "day":
			iv.Days += int32(n)
		case "hour":
			iv.Microseconds += n * int64(time.Hour/time.Microsecond)
		case "min", "minute":
			iv.Microseconds += n * int64(time.Minute/time.Microsecond)
		case "sec", "second":
			iv.Microseconds += n * int64(time.Second/time.Microsecond)
		case "millisecond":
			iv.Microseconds += n * 1000
		case "microsecond":
			iv.Microseconds += n
		default:
			return nil, fmt.Errorf("invalid interval unit %q", fields[i+1])
		}
	}
	return iv, nil
}
