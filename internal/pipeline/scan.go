// Package pipeline runs a decode scan: messages are fetched from a source,
// decoded with one plan and forwarded to a sink.
//
// # Basic Usage
//
//	stats, err := pipeline.Scan(ctx, pipeline.ScanConfig{
//	    Columns: table.Columns,
//	    Options: opts,
//	    Source:  src,
//	    Sink:    out,
//	    Metrics: metrics.New(prometheus.DefaultRegisterer),
//	}, logger)
//
// A scan owns exactly one decode plan and releases it on every exit path.
// It ends when the source returns an empty batch, the context is done, or a
// payload fails to decode. Rows decoded from a payload before its failing
// record are still delivered.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/internal/sink"
	"github.com/ajitpratap0/krow/pkg/config"
	"github.com/ajitpratap0/krow/pkg/decode"
	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/logger"
	"github.com/ajitpratap0/krow/pkg/metrics"
	"github.com/ajitpratap0/krow/pkg/observability"
	"github.com/ajitpratap0/krow/pkg/schema"
	"github.com/ajitpratap0/krow/pkg/source"
)

// ScanConfig contains the collaborators of one scan.
type ScanConfig struct {
	Columns []schema.Column
	Options *config.Options
	Source  source.Source
	Sink    sink.Sink
	// Metrics is optional.
	Metrics *metrics.DecodeMetrics
	// Tracer defaults to the global krow tracer.
	Tracer trace.Tracer
	// MaxBatches stops the scan after that many fetches. Zero means no limit.
	MaxBatches int
}

// Stats summarises a scan.
type Stats struct {
	Batches  int
	Payloads int64
	Rows     int64
	Bytes    int64
	Duration time.Duration
}

// Scan decodes every message the source yields.
func Scan(ctx context.Context, cfg ScanConfig, log *zap.Logger) (*Stats, error) {
	if cfg.Source == nil || cfg.Sink == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "scan requires a source and a sink")
	}
	scanID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.ScanIDKey, scanID)
	if log == nil {
		log = logger.WithContext(ctx)
	} else {
		log = log.With(zap.String("scan_id", scanID))
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}

	plan, err := decode.Prepare(cfg.Columns, cfg.Options, decode.Config{Logger: log})
	if err != nil {
		return nil, err
	}
	defer plan.Release()

	format := plan.Format().String()
	ctx, span := tracer.Start(ctx, "krow.scan", trace.WithAttributes(
		attribute.String("krow.scan_id", scanID),
		attribute.String("krow.format", format),
		attribute.Int("krow.columns", len(cfg.Columns)),
	))

	stats := &Stats{}
	start := time.Now()
	err = scan(ctx, cfg, plan, tracer, log, stats)
	stats.Duration = time.Since(start)
	observability.EndSpan(span, err)

	log.Info("scan finished",
		zap.String("format", format),
		zap.Int("batches", stats.Batches),
		zap.Int64("payloads", stats.Payloads),
		zap.Int64("rows", stats.Rows),
		zap.Int64("bytes", stats.Bytes),
		zap.Duration("duration", stats.Duration),
		zap.Error(err))
	return stats, err
}

func scan(ctx context.Context, cfg ScanConfig, plan *decode.Plan, tracer trace.Tracer, log *zap.Logger, stats *Stats) error {
	format := plan.Format().String()

	for cfg.MaxBatches == 0 || stats.Batches < cfg.MaxBatches {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := cfg.Source.Fetch(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		stats.Batches++

		var out []sink.Record
		for _, msg := range batch {
			rows, derr := decodeMessage(ctx, plan, tracer, cfg.Metrics, format, msg)
			stats.Payloads++
			stats.Bytes += int64(len(msg.Value))
			stats.Rows += int64(len(rows))

			for _, r := range rows {
				out = append(out, sink.Record{
					Topic:     msg.Topic,
					Partition: msg.Partition,
					Offset:    msg.Offset,
					Row:       r,
				})
			}
			if derr != nil {
				log.Error("payload failed to decode",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Int("rows_before_failure", len(rows)),
					zap.Error(derr))
				if werr := cfg.Sink.Write(ctx, out); werr != nil {
					log.Warn("failed to deliver rows decoded before the failure", zap.Error(werr))
				}
				return derr
			}
		}

		if err := cfg.Sink.Write(ctx, out); err != nil {
			return err
		}
		log.Debug("batch delivered",
			zap.Int("messages", len(batch)),
			zap.Int("rows", len(out)))
	}
	return nil
}

func decodeMessage(ctx context.Context, plan *decode.Plan, tracer trace.Tracer, m *metrics.DecodeMetrics, format string, msg source.Message) ([]decode.Row, error) {
	_, span := tracer.Start(ctx, "krow.decode", trace.WithAttributes(
		observability.MessageAttributes(msg.Topic, msg.Partition, msg.Offset, len(msg.Value))...,
	))

	timer := metrics.NewTimer()
	rows, err := plan.Decode(msg.Value)
	took := timer.Stop()

	span.SetAttributes(attribute.Int("krow.rows", len(rows)))
	observability.EndSpan(span, err)
	if m != nil {
		m.ObservePayload(format, len(msg.Value), len(rows), took, err)
	}
	return rows, err
}
