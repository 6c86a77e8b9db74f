package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/krow/pkg/errors"
	"github.com/ajitpratap0/krow/pkg/logger"
	"github.com/ajitpratap0/krow/pkg/observability"
	"github.com/ajitpratap0/krow/pkg/schema"
	"github.com/ajitpratap0/krow/pkg/source"
	"github.com/ajitpratap0/krow/pkg/valueparser"
)

// EnvPrefix prefixes environment overrides, e.g. KROW_SOURCE_KAFKA_TOPIC.
const EnvPrefix = "KROW"

// Source kinds.
const (
	SourceKafka = "kafka"
	SourceFile  = "file"
)

// Sink kinds.
const (
	SinkJSON     = "json"
	SinkPostgres = "postgres"
)

// Job is a complete scan definition for the CLI.
type Job struct {
	Source  SourceConfig                `mapstructure:"source" yaml:"source"`
	Table   TableConfig                 `mapstructure:"table" yaml:"table"`
	Options map[string]string           `mapstructure:"options" yaml:"options"`
	Sink    SinkConfig                  `mapstructure:"sink" yaml:"sink"`
	Logging logger.Config               `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig               `mapstructure:"metrics" yaml:"metrics"`
	Tracing observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// SourceConfig selects where payloads come from.
type SourceConfig struct {
	Kind  string             `mapstructure:"kind" yaml:"kind"`
	Kafka source.KafkaConfig `mapstructure:"kafka" yaml:"kafka"`
	Files []string           `mapstructure:"files" yaml:"files"`
}

// TableConfig is the target row schema.
type TableConfig struct {
	Name    string         `mapstructure:"name" yaml:"name"`
	Columns []ColumnConfig `mapstructure:"columns" yaml:"columns"`
}

// ColumnConfig declares one column. Precision and Scale build the type
// modifier for numeric and timestamp columns; Modifier sets it verbatim.
type ColumnConfig struct {
	Name      string `mapstructure:"name" yaml:"name"`
	Type      string `mapstructure:"type" yaml:"type"`
	Precision *int   `mapstructure:"precision" yaml:"precision"`
	Scale     int    `mapstructure:"scale" yaml:"scale"`
	Modifier  *int32 `mapstructure:"modifier" yaml:"modifier"`
	Dropped   bool   `mapstructure:"dropped" yaml:"dropped"`
}

// SinkConfig selects where decoded rows go.
type SinkConfig struct {
	Kind  string `mapstructure:"kind" yaml:"kind"`
	Path  string `mapstructure:"path" yaml:"path"` // json: file path, "-" for stdout
	DSN   string `mapstructure:"dsn" yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

func setJobDefaults(v *viper.Viper) {
	kafka := source.DefaultKafkaConfig()
	v.SetDefault("source.kind", SourceKafka)
	v.SetDefault("source.kafka.start_offset", kafka.StartOffset)
	v.SetDefault("source.kafka.batch_size", kafka.BatchSize)
	v.SetDefault("source.kafka.timeout", kafka.Timeout)
	v.SetDefault("source.kafka.client_id", kafka.ClientID)
	v.SetDefault("sink.kind", SinkJSON)
	v.SetDefault("sink.path", "-")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
	tracing := observability.DefaultTracingConfig()
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.exporter", tracing.Exporter)
	v.SetDefault("tracing.sampling_rate", tracing.SamplingRate)
}

// LoadJob reads a job file. Every key can be overridden from the
// environment with the KROW_ prefix and dots replaced by underscores.
func LoadJob(path string) (*Job, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setJobDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "read job config").
			WithDetail("path", path)
	}

	var job Job
	if err := v.Unmarshal(&job); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "unmarshal job config").
			WithDetail("path", path)
	}
	return &job, nil
}

// Validate checks required fields.
func (j *Job) Validate() error {
	switch j.Source.Kind {
	case SourceKafka:
		if err := j.Source.Kafka.Validate(); err != nil {
			return err
		}
	case SourceFile:
		if len(j.Source.Files) == 0 {
			return errors.New(errors.ErrorTypeConfig, "file source requires at least one path")
		}
	default:
		return errors.New(errors.ErrorTypeConfig, "unknown source kind").
			WithDetail("kind", j.Source.Kind)
	}

	if len(j.Table.Columns) == 0 {
		return errors.New(errors.ErrorTypeConfig, "table has no columns")
	}
	if _, ok := j.Options[KeyFormat]; !ok {
		return errors.New(errors.ErrorTypeConfig, "options.format is required")
	}

	switch j.Sink.Kind {
	case SinkJSON:
	case SinkPostgres:
		if j.Sink.DSN == "" || j.Sink.Table == "" {
			return errors.New(errors.ErrorTypeConfig, "postgres sink requires dsn and table")
		}
	default:
		return errors.New(errors.ErrorTypeConfig, "unknown sink kind").
			WithDetail("kind", j.Sink.Kind)
	}
	return nil
}

// Column converts the declaration to a schema column with its default
// value parser bound.
func (c ColumnConfig) Column() (schema.Column, error) {
	if c.Name == "" {
		return schema.Column{}, errors.New(errors.ErrorTypeConfig, "column name is required")
	}
	family, _ := schema.ParseTypeFamily(c.Type)

	col := schema.Column{
		Name:     c.Name,
		Type:     family,
		Modifier: schema.NoModifier,
		Dropped:  c.Dropped,
	}
	switch {
	case c.Modifier != nil:
		col.Modifier = *c.Modifier
	case c.Precision != nil && family == schema.TypeNumeric:
		if c.Scale < 0 || c.Scale > *c.Precision {
			return schema.Column{}, errors.New(errors.ErrorTypeConfig, "numeric scale out of range").
				WithDetail("column", c.Name)
		}
		col.Modifier = schema.NumericModifier(*c.Precision, c.Scale)
	case c.Precision != nil && family == schema.TypeTimestamp:
		col.Modifier = schema.TimestampModifier(*c.Precision)
	}
	if !col.Dropped {
		col.Parser = valueparser.For(family)
	}
	return col, nil
}

// Schema returns the table's columns in declaration order.
func (t TableConfig) Schema() ([]schema.Column, error) {
	cols := make([]schema.Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		col, err := c.Column()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, nil
}
