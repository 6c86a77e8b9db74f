// Package schema describes the target row shape handed to the decoder: an
// ordered list of columns with their type family, type modifier, dropped
// flag and the caller-supplied value parser that turns canonical text into
// the column's native value.
package schema

import (
	"fmt"
	"strings"
)

// TypeFamily is the native type family of a column.
type TypeFamily int

const (
	// TypeUnknown is any type the decoder has no special handling for.
	// Avro decodes it from a string.
	TypeUnknown TypeFamily = iota
	TypeText
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeBytes
	TypeNumeric
	TypeDate
	TypeTime
	TypeTimestamp
	TypeInterval
	TypeUUID
	TypeJSON
)

var familyNames = map[TypeFamily]string{
	TypeUnknown:   "unknown",
	TypeText:      "text",
	TypeInt32:     "int4",
	TypeInt64:     "int8",
	TypeFloat32:   "float4",
	TypeFloat64:   "float8",
	TypeBool:      "bool",
	TypeBytes:     "bytea",
	TypeNumeric:   "numeric",
	TypeDate:      "date",
	TypeTime:      "time",
	TypeTimestamp: "timestamp",
	TypeInterval:  "interval",
	TypeUUID:      "uuid",
	TypeJSON:      "json",
}

var familyAliases = map[string]TypeFamily{
	"text":              TypeText,
	"varchar":           TypeText,
	"character varying": TypeText,
	"char":              TypeText,
	"character":         TypeText,
	"bpchar":            TypeText,
	"string":            TypeText,
	"int4":              TypeInt32,
	"int":               TypeInt32,
	"integer":           TypeInt32,
	"int8":              TypeInt64,
	"bigint":            TypeInt64,
	"float4":            TypeFloat32,
	"real":              TypeFloat32,
	"float8":            TypeFloat64,
	"double precision":  TypeFloat64,
	"double":            TypeFloat64,
	"bool":              TypeBool,
	"boolean":           TypeBool,
	"bytea":             TypeBytes,
	"bytes":             TypeBytes,
	"numeric":           TypeNumeric,
	"decimal":           TypeNumeric,
	"date":              TypeDate,
	"time":              TypeTime,
	"timestamp":         TypeTimestamp,
	"interval":          TypeInterval,
	"uuid":              TypeUUID,
	"json":              TypeJSON,
	"jsonb":             TypeJSON,
}

func (t TypeFamily) String() string {
	if n, ok := familyNames[t]; ok {
		return n
	}
	return fmt.Sprintf("TypeFamily(%d)", int(t))
}

// ParseTypeFamily maps a SQL type name to its family. Unrecognized names map
// to TypeUnknown with ok=false.
func ParseTypeFamily(name string) (TypeFamily, bool) {
	t, ok := familyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return TypeUnknown, false
	}
	return t, true
}

// NoModifier marks a column declared without a type modifier.
const NoModifier int32 = -1

// varHeaderSize is added to numeric modifiers by the SQL catalog encoding.
const varHeaderSize = 4

// NumericModifier encodes NUMERIC(precision, scale) the way the SQL catalog
// stores it.
func NumericModifier(precision, scale int) int32 {
	return int32((precision<<16)|(scale&0xffff)) + varHeaderSize
}

// TimestampModifier encodes TIMESTAMP(precision).
func TimestampModifier(precision int) int32 {
	return int32(precision)
}

// ValueParser converts canonical text into a column's native value.
type ValueParser interface {
	Parse(text string) (any, error)
}

// ParserFunc adapts a function to ValueParser.
type ParserFunc func(text string) (any, error)

// Parse calls f(text).
func (f ParserFunc) Parse(text string) (any, error) { return f(text) }

// Column is one attribute of the target row.
type Column struct {
	Name     string
	Type     TypeFamily
	Modifier int32
	Dropped  bool
	Parser   ValueParser
}

// NumericScale returns the scale encoded in a numeric column's modifier, or
// 0 when the column has no modifier.
func (c Column) NumericScale() int {
	if c.Modifier < varHeaderSize {
		return 0
	}
	return int(uint32(c.Modifier-varHeaderSize) & 0xffff)
}

// NumericPrecision returns the precision encoded in a numeric modifier, or 0.
func (c Column) NumericPrecision() int {
	if c.Modifier < varHeaderSize {
		return 0
	}
	return int(uint32(c.Modifier-varHeaderSize) >> 16)
}

// Table is the ordered column list of a decode target.
type Table struct {
	Name    string
	Columns []Column
}

// Arity is the number of row slots, dropped columns included.
func (t Table) Arity() int { return len(t.Columns) }

// Live returns the number of non-dropped columns.
func (t Table) Live() int {
	n := 0
	for _, c := range t.Columns {
		if !c.Dropped {
			n++
		}
	}
	return n
}
