// Package errors provides examples of structured error handling in krow.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/krow/pkg/errors"
)

// Example demonstrates basic error creation with decode context.
func Example() {
	err := errors.New(errors.ErrorTypeSchemaMismatch, "wire type does not match the column").
		WithDetail("format", "avro").
		WithDetail("attribute", 2).
		WithDetail("expected", "int").
		WithDetail("actual", "string")

	fmt.Println(err.Error())

	// Output:
	// schema_mismatch: wire type does not match the column [actual=string attribute=2 expected=int format=avro]
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeParse, "truncated container block").
		WithDetail("format", "avro")

	if errors.IsParse(err) {
		fmt.Println("This is a parse error")
	}
	fmt.Println(err)

	// Output:
	// This is a parse error
	// parse: truncated container block [format=avro]: unexpected EOF
}

// ExampleIsType demonstrates checking error types through wrapping.
func ExampleIsType() {
	convErr := errors.New(errors.ErrorTypeConversion, "value rejected by parser")
	wrapped := errors.Wrap(convErr, errors.ErrorTypeInternal, "scan aborted")

	fmt.Printf("Is conversion error: %v\n", errors.IsConversion(convErr))
	fmt.Printf("Wrapped error is internal: %v\n", errors.IsType(wrapped, errors.ErrorTypeInternal))
	fmt.Printf("Wrapped error is conversion: %v\n", errors.IsConversion(wrapped))

	// Output:
	// Is conversion error: true
	// Wrapped error is internal: true
	// Wrapped error is conversion: false
}

// ExampleIsRetryable shows that only message source failures are retryable.
func ExampleIsRetryable() {
	sourceErr := errors.New(errors.ErrorTypeTimeout, "fetch deadline exceeded")
	decodeErr := errors.New(errors.ErrorTypeParse, "bad container magic")

	fmt.Println(errors.IsRetryable(sourceErr))
	fmt.Println(errors.IsRetryable(decodeErr))

	// Output:
	// true
	// false
}

// ExampleTypeOf shows classification of foreign errors.
func ExampleTypeOf() {
	fmt.Println(errors.TypeOf(errors.New(errors.ErrorTypeConfig, "format is required")))
	fmt.Println(errors.TypeOf(io.EOF))

	// Output:
	// config
	// internal
}
