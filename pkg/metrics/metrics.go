// Package metrics exposes Prometheus collectors for the decode pipeline.
//
// # Basic Usage
//
//	m := metrics.New(prometheus.DefaultRegisterer)
//
//	timer := metrics.NewTimer()
//	rows, err := plan.Decode(payload)
//	m.ObservePayload("avro", len(payload), len(rows), timer.Stop(), err)
//
// Every collector is labelled by payload format. Decode failures are
// additionally labelled by error type so that parse errors can be told
// apart from schema mismatches on a dashboard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/krow/pkg/errors"
)

const namespace = "krow"

// DecodeMetrics holds the collectors recorded for every decoded payload.
type DecodeMetrics struct {
	Payloads     *prometheus.CounterVec
	Rows         *prometheus.CounterVec
	PayloadBytes *prometheus.CounterVec
	Errors       *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
}

// New registers the decode collectors with reg. A nil reg leaves them
// unregistered, which tests use to avoid clashing on the default registry.
func New(reg prometheus.Registerer) *DecodeMetrics {
	f := promauto.With(reg)
	return &DecodeMetrics{
		Payloads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payloads_total",
				Help:      "Total number of payloads handed to the decoder",
			},
			[]string{"format"},
		),
		Rows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of rows produced by the decoder",
			},
			[]string{"format"},
		),
		PayloadBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payload_bytes_total",
				Help:      "Total payload bytes handed to the decoder",
			},
			[]string{"format"},
		),
		Errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Total number of payloads that failed to decode",
			},
			[]string{"format", "type"},
		),
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decode_seconds",
				Help:      "Time spent decoding one payload",
				Buckets: []float64{
					1e-6, // 1μs - empty and text payloads
					1e-5,
					1e-4,
					1e-3, // 1ms - typical container
					1e-2,
					1e-1,
					1, // 1s - very large compressed blocks
				},
			},
			[]string{"format"},
		),
	}
}

// ObservePayload records one Decode call. Rows decoded before a failure
// still count.
func (m *DecodeMetrics) ObservePayload(format string, size, rows int, took time.Duration, err error) {
	m.Payloads.WithLabelValues(format).Inc()
	m.PayloadBytes.WithLabelValues(format).Add(float64(size))
	m.Rows.WithLabelValues(format).Add(float64(rows))
	m.Latency.WithLabelValues(format).Observe(took.Seconds())
	if err != nil {
		m.Errors.WithLabelValues(format, string(errors.TypeOf(err))).Inc()
	}
}

// Timer measures the duration of one operation.
type Timer struct {
	start time.Time
}

// NewTimer starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since NewTimer. It may be called more than
// once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
