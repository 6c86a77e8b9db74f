// Package sink delivers decoded rows to their destination.
package sink

import (
	"context"

	"github.com/ajitpratap0/krow/pkg/decode"
)

// Record is one decoded row with the coordinates of the message it came
// from.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Row       decode.Row
}

// Sink receives decoded rows in source order.
type Sink interface {
	Write(ctx context.Context, records []Record) error
	Close(ctx context.Context) error
}
