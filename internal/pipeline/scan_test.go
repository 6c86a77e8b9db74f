package pipeline

import (
	"context"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/internal/sink"
	"github.com/ajitpratap0/krow/pkg/config"
	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/format"
	"github.com/ajitpratap0/krow/pkg/metrics"
	"github.com/ajitpratap0/krow/pkg/schema"
	"github.com/ajitpratap0/krow/pkg/source"
	"github.com/ajitpratap0/krow/pkg/testutil"
	"github.com/ajitpratap0/krow/pkg/valueparser"
)

type fakeSource struct {
	batches [][]source.Message
	err     error
	fetches int
}

func (f *fakeSource) Fetch(ctx context.Context) ([]source.Message, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeSource) Close() error { return nil }

type memorySink struct {
	records []sink.Record
	writes  int
}

func (m *memorySink) Write(ctx context.Context, records []sink.Record) error {
	m.writes++
	m.records = append(m.records, records...)
	return nil
}

func (m *memorySink) Close(ctx context.Context) error { return nil }

func msg(offset int64, value string) source.Message {
	return source.Message{Topic: "t", Partition: 0, Offset: offset, Value: []byte(value)}
}

func columns() []schema.Column {
	return valueparser.Bind([]schema.Column{
		{Name: "id", Type: schema.TypeInt32, Modifier: schema.NoModifier},
		{Name: "name", Type: schema.TypeText, Modifier: schema.NoModifier},
	})
}

func testConfig(src source.Source, out sink.Sink) (ScanConfig, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	return ScanConfig{
		Columns: columns(),
		Options: config.DefaultOptions(format.CSV),
		Source:  src,
		Sink:    out,
		Metrics: metrics.New(nil),
		Tracer:  tp.Tracer("test"),
	}, rec
}

func TestScan(t *testing.T) {
	src := &fakeSource{batches: [][]source.Message{
		{msg(0, "1,a\n2,b\n"), msg(1, "")},
		{msg(2, "3,c")},
	}}
	out := &memorySink{}
	cfg, rec := testConfig(src, out)

	stats, err := Scan(testutil.TestContext(t), cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, int64(3), stats.Payloads)
	assert.Equal(t, int64(3), stats.Rows)
	assert.Equal(t, 3, src.fetches)
	assert.Equal(t, 2, out.writes)

	require.Len(t, out.records, 3)
	assert.Equal(t, int32(1), out.records[0].Row.Values[0])
	assert.Equal(t, int64(2), out.records[2].Offset)
	assert.Equal(t, "c", out.records[2].Row.Values[1])

	assert.Equal(t, 3.0, promtestutil.ToFloat64(cfg.Metrics.Payloads.WithLabelValues("csv")))
	assert.Equal(t, 3.0, promtestutil.ToFloat64(cfg.Metrics.Rows.WithLabelValues("csv")))

	// One span per payload plus the scan span.
	spans := rec.Ended()
	require.Len(t, spans, 4)
	root := spans[len(spans)-1]
	assert.Equal(t, "krow.scan", root.Name())
	var scanID string
	for _, kv := range root.Attributes() {
		if kv.Key == "krow.scan_id" {
			scanID = kv.Value.AsString()
		}
	}
	assert.NotEmpty(t, scanID)
}

func TestScanForwardsRowsBeforeFailure(t *testing.T) {
	src := &fakeSource{batches: [][]source.Message{
		{msg(0, "1,a\n"), msg(1, "2,b\nx,c\n"), msg(2, "4,d\n")},
	}}
	out := &memorySink{}
	cfg, _ := testConfig(src, out)

	stats, err := Scan(testutil.TestContext(t), cfg, testutil.TestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsConversion(err))

	require.Len(t, out.records, 2)
	assert.Equal(t, int64(1), out.records[1].Offset)
	assert.Equal(t, int64(2), stats.Payloads)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(cfg.Metrics.Errors.WithLabelValues("csv", "conversion")))
}

func TestScanMaxBatches(t *testing.T) {
	src := &fakeSource{batches: [][]source.Message{{msg(0, "1,a")}, {msg(1, "2,b")}}}
	out := &memorySink{}
	cfg, _ := testConfig(src, out)
	cfg.MaxBatches = 1

	stats, err := Scan(testutil.TestContext(t), cfg, testutil.TestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Batches)
	assert.Len(t, out.records, 1)
}

func TestScanErrors(t *testing.T) {
	t.Run("prepare", func(t *testing.T) {
		cfg, _ := testConfig(&fakeSource{}, &memorySink{})
		cfg.Options = config.DefaultOptions(format.Text)
		_, err := Scan(testutil.TestContext(t), cfg, testutil.TestLogger(t))
		assert.True(t, errors.IsUnsupportedSchema(err))
	})

	t.Run("source", func(t *testing.T) {
		cfg, _ := testConfig(&fakeSource{err: assert.AnError}, &memorySink{})
		_, err := Scan(testutil.TestContext(t), cfg, testutil.TestLogger(t))
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cfg, _ := testConfig(&fakeSource{}, &memorySink{})
		_, err := Scan(ctx, cfg, testutil.TestLogger(t))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := Scan(testutil.TestContext(t), ScanConfig{}, zap.NewNop())
		assert.True(t, errors.IsConfiguration(err))
	})
}
