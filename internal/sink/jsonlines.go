package sink

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/pool"
	"github.com/ajitpratap0/krow/pkg/schema"
	"github.com/ajitpratap0/krow/pkg/valueparser"
)

// JSONLines writes one JSON object per row. Dropped columns are omitted and
// nulls are written as JSON null.
type JSONLines struct {
	w   *bufio.Writer
	c   io.Closer
	enc *json.Encoder
	// names of the live columns, by slot; empty for dropped slots.
	names []string
	types []schema.TypeFamily
}

type jsonLine struct {
	Topic     string         `json:"topic"`
	Partition int32          `json:"partition"`
	Offset    int64          `json:"offset"`
	Values    map[string]any `json:"values"`
}

// NewJSONLines writes to w. If w is also an io.Closer it is closed by Close.
func NewJSONLines(w io.Writer, cols []schema.Column) *JSONLines {
	bw := bufio.NewWriter(w)
	s := &JSONLines{
		w:     bw,
		enc:   json.NewEncoder(bw),
		names: make([]string, len(cols)),
		types: make([]schema.TypeFamily, len(cols)),
	}
	if c, ok := w.(io.Closer); ok {
		s.c = c
	}
	for i, c := range cols {
		if !c.Dropped {
			s.names[i] = c.Name
			s.types[i] = c.Type
		}
	}
	return s
}

func (s *JSONLines) Write(ctx context.Context, records []Record) error {
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := jsonLine{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Values:    pool.MapPool.Get(),
		}
		for i, name := range s.names {
			if name == "" {
				continue
			}
			if r.Row.Nulls[i] {
				line.Values[name] = nil
				continue
			}
			line.Values[name] = jsonValue(s.types[i], r.Row.Values[i])
		}
		err := s.enc.Encode(line)
		pool.MapPool.Put(line.Values)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode row").
				WithDetail("topic", r.Topic).
				WithDetail("offset", r.Offset)
		}
	}
	return nil
}

// jsonValue maps native values without a natural JSON form to text.
func jsonValue(t schema.TypeFamily, v any) any {
	switch x := v.(type) {
	case time.Time:
		if t == schema.TypeDate {
			return x.Format(valueparser.DateLayout)
		}
		return x.Format(valueparser.TimestampLayout)
	case time.Duration:
		return time.Time{}.Add(x).Format(valueparser.TimeLayout)
	case valueparser.Interval:
		return x.String()
	case decimal.Decimal:
		return json.Number(x.String())
	default:
		return v
	}
}

func (s *JSONLines) Close(ctx context.Context) error {
	if err := s.w.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output")
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
