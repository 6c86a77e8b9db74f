// Package source supplies raw payloads to the decoder. A Source is opaque to
// the decoding engine: it only hands out byte buffers with their coordinates.
package source

import (
	"context"
	"time"
)

// Message is one raw payload and where it came from.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Source fetches batches of messages. An empty batch with a nil error means
// the source is drained for now.
type Source interface {
	Fetch(ctx context.Context) ([]Message, error)
	Close() error
}
