// Package format resolves the payload format named in configuration.
package format

import "strings"

// Format is the closed set of payload formats the decoder understands.
type Format int

const (
	// Invalid is returned for names that match no known format.
	Invalid Format = iota
	// Avro is the Avro object container format.
	Avro
	// CSV is delimited text.
	CSV
	// Text is a raw single-value payload.
	Text
)

var names = map[Format]string{
	Avro: "avro",
	CSV:  "csv",
	Text: "text",
}

// String returns the canonical lower-case name of f.
func (f Format) String() string {
	if n, ok := names[f]; ok {
		return n
	}
	return "invalid"
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	_, ok := names[f]
	return ok
}

// Resolve matches name case-insensitively against the known formats.
// Surrounding whitespace is not trimmed.
func Resolve(name string) Format {
	for f, n := range names {
		if strings.EqualFold(name, n) {
			return f
		}
	}
	return Invalid
}

// All returns the known formats in declaration order.
func All() []Format {
	return []Format{Avro, CSV, Text}
}
