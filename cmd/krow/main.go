package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/internal/pipeline"
	"github.com/ajitpratap0/krow/internal/sink"
	"github.com/ajitpratap0/krow/pkg/compression"
	"github.com/ajitpratap0/krow/pkg/config"
	"github.com/ajitpratap0/krow/pkg/format"
	"github.com/ajitpratap0/krow/pkg/logger"
	"github.com/ajitpratap0/krow/pkg/metrics"
	"github.com/ajitpratap0/krow/pkg/observability"
	"github.com/ajitpratap0/krow/pkg/schema"
	"github.com/ajitpratap0/krow/pkg/source"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "krow",
		Short: "krow - decode Kafka payloads into typed rows",
		Long: `krow decodes Avro container, CSV and raw text payloads into rows shaped
by a declared table schema, reading from Kafka partitions or local files.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("krow v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "formats",
		Short: "List payload formats and Avro container codecs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Payload formats:")
			for _, f := range format.All() {
				fmt.Printf("  - %s\n", f)
			}
			fmt.Println("\nAvro container codecs:")
			for _, c := range compression.Supported() {
				fmt.Printf("  - %s\n", c)
			}
		},
	})

	root.AddCommand(decodeCmd(), consumeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func decodeCmd() *cobra.Command {
	var tableFile, logLevel string
	var options []string

	cmd := &cobra.Command{
		Use:   "decode [file...]",
		Short: "Decode payload files and print rows as JSON lines",
		Long: `Decode one payload per file ("-" or no argument reads stdin) and write
the rows to stdout as JSON lines.

Example:
  krow decode --table orders.yaml -o format=csv -o csv_null=NULL orders.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console", OutputPaths: []string{"stderr"}}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			table, err := config.LoadTable(tableFile)
			if err != nil {
				return err
			}
			cols, err := table.Schema()
			if err != nil {
				return err
			}
			opts, err := parseOptionFlags(options)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"-"}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := sink.NewJSONLines(cmd.OutOrStdout(), cols)
			_, err = pipeline.Scan(ctx, pipeline.ScanConfig{
				Columns: cols,
				Options: opts,
				Source:  source.NewFileSource(args...),
				Sink:    out,
			}, logger.Get())
			if cerr := out.Close(ctx); err == nil {
				err = cerr
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&tableFile, "table", "t", "", "Path to the table schema YAML file (required)")
	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Format option as key=value; repeatable")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func parseOptionFlags(flags []string) (*config.Options, error) {
	raw := make(map[string]string, len(flags))
	for _, kv := range flags {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("option %q is not key=value", kv)
		}
		raw[k] = v
	}
	return config.ParseOptions(raw)
}

func consumeCmd() *cobra.Command {
	var jobFile, metricsAddr, traceExporter string
	var maxBatches int

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Run a scan described by a job file",
		Long: `Run a bounded scan: read the configured Kafka partitions (or files) up to
their current end, decode every payload and deliver the rows to the sink.

Example:
  krow consume --config job.yaml --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := config.LoadJob(jobFile)
			if err != nil {
				return err
			}
			if traceExporter != "" {
				job.Tracing.Exporter = traceExporter
			}
			if metricsAddr != "" {
				job.Metrics.Addr = metricsAddr
			}
			if err := job.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJob(ctx, job, maxBatches)
		},
	}

	cmd.Flags().StringVarP(&jobFile, "config", "c", "", "Path to the job YAML file (required)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&traceExporter, "trace", "", "Trace exporter (none, stdout)")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "Stop after this many fetches (0 = until the end)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runJob(ctx context.Context, job *config.Job, maxBatches int) error {
	if err := logger.Init(job.Logging); err != nil {
		return err
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	shutdown, err := observability.InitTracing(job.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	cols, err := job.Table.Schema()
	if err != nil {
		return err
	}
	opts, err := config.ParseOptions(job.Options)
	if err != nil {
		return err
	}

	var m *metrics.DecodeMetrics
	if job.Metrics.Addr != "" {
		m = metrics.New(prometheus.DefaultRegisterer)
		srv := serveMetrics(job.Metrics.Addr, log)
		defer func() { _ = srv.Close() }()
	}

	src, err := openSource(job, log)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := openSink(ctx, job, cols, log)
	if err != nil {
		return err
	}

	stats, err := pipeline.Scan(ctx, pipeline.ScanConfig{
		Columns:    cols,
		Options:    opts,
		Source:     src,
		Sink:       out,
		Metrics:    m,
		MaxBatches: maxBatches,
	}, log.With(zap.String("table", job.Table.Name)))
	if cerr := out.Close(ctx); err == nil {
		err = cerr
	}

	if ks, ok := src.(*source.KafkaSource); ok {
		for p, off := range ks.NextOffsets() {
			log.Info("next offset",
				zap.String("topic", job.Source.Kafka.Topic),
				zap.Int32("partition", p),
				zap.Int64("offset", off))
		}
	}
	if stats != nil {
		log.Info("scan summary",
			zap.Int64("payloads", stats.Payloads),
			zap.Int64("rows", stats.Rows),
			zap.Duration("duration", stats.Duration))
	}
	return err
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func openSource(job *config.Job, log *zap.Logger) (source.Source, error) {
	switch job.Source.Kind {
	case config.SourceKafka:
		return source.NewKafkaSource(job.Source.Kafka, log)
	default:
		return source.NewFileSource(job.Source.Files...), nil
	}
}

func openSink(ctx context.Context, job *config.Job, cols []schema.Column, log *zap.Logger) (sink.Sink, error) {
	switch job.Sink.Kind {
	case config.SinkPostgres:
		return sink.NewPostgres(ctx, sink.PostgresConfig{DSN: job.Sink.DSN, Table: job.Sink.Table}, cols, log)
	default:
		if job.Sink.Path == "" || job.Sink.Path == "-" {
			return sink.NewJSONLines(os.Stdout, cols), nil
		}
		f, err := os.Create(job.Sink.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", job.Sink.Path, err)
		}
		return sink.NewJSONLines(f, cols), nil
	}
}
