package source

import (
	"context"
	"crypto/tls"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/krow/pkg/errors"
)

// Start offsets accepted in KafkaConfig.StartOffset besides a number.
const (
	OffsetOldest = "oldest"
	OffsetNewest = "newest"
)

// KafkaConfig contains Kafka-specific configuration
type KafkaConfig struct {
	Brokers     []string      `mapstructure:"brokers" yaml:"brokers"`
	Topic       string        `mapstructure:"topic" yaml:"topic"`
	Partitions  []int32       `mapstructure:"partitions" yaml:"partitions"` // empty means all
	StartOffset string        `mapstructure:"start_offset" yaml:"start_offset"`
	BatchSize   int           `mapstructure:"batch_size" yaml:"batch_size"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ClientID    string        `mapstructure:"client_id" yaml:"client_id"`

	SecurityProtocol      string `mapstructure:"security_protocol" yaml:"security_protocol"` // PLAINTEXT, SSL, SASL_SSL
	SASLMechanism         string `mapstructure:"sasl_mechanism" yaml:"sasl_mechanism"`
	SASLUsername          string `mapstructure:"sasl_username" yaml:"sasl_username"`
	SASLPassword          string `mapstructure:"sasl_password" yaml:"sasl_password"`
	TLSInsecureSkipVerify bool   `mapstructure:"tls_insecure_skip_verify" yaml:"tls_insecure_skip_verify"`
}

// DefaultKafkaConfig returns the defaults applied to unset fields.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		StartOffset: OffsetOldest,
		BatchSize:   1000,
		Timeout:     10 * time.Second,
		ClientID:    "krow",
	}
}

// Validate checks required fields.
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New(errors.ErrorTypeConfig, "kafka brokers are required")
	}
	if c.Topic == "" {
		return errors.New(errors.ErrorTypeConfig, "kafka topic is required")
	}
	if c.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "kafka batch_size must be positive")
	}
	if _, _, err := parseStartOffset(c.StartOffset); err != nil {
		return err
	}
	switch strings.ToUpper(c.SASLMechanism) {
	case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		return errors.New(errors.ErrorTypeConfig, "unsupported sasl mechanism").
			WithDetail("mechanism", c.SASLMechanism)
	}
	return nil
}

// parseStartOffset returns either a sarama sentinel (named=true) or an
// explicit offset.
func parseStartOffset(s string) (int64, bool, error) {
	switch strings.ToLower(s) {
	case "", OffsetOldest:
		return sarama.OffsetOldest, true, nil
	case OffsetNewest:
		return sarama.OffsetNewest, true, nil
	}
	off, err := strconv.ParseInt(s, 10, 64)
	if err != nil || off < 0 {
		return 0, false, errors.New(errors.ErrorTypeConfig, "invalid kafka start_offset").
			WithDetail("start_offset", s)
	}
	return off, false, nil
}

// buildSaramaConfig builds Sarama configuration from KafkaConfig
func buildSaramaConfig(c KafkaConfig) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = c.ClientID
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	if c.Timeout > 0 {
		config.Net.DialTimeout = c.Timeout
		config.Net.ReadTimeout = c.Timeout
	}

	// Security settings
	if c.SecurityProtocol == "SASL_SSL" || c.SecurityProtocol == "SSL" {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: c.TLSInsecureSkipVerify, //nolint:gosec // opt-in for test clusters
		}
	}

	if c.SASLMechanism != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = c.SASLUsername
		config.Net.SASL.Password = c.SASLPassword

		switch strings.ToUpper(c.SASLMechanism) {
		case "PLAIN":
			config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case "SCRAM-SHA-256":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "SCRAM-SHA-512":
			config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		}
	}

	return config
}

// offsetLookup is the part of sarama.Client used to bound a read.
type offsetLookup interface {
	Partitions(topic string) ([]int32, error)
	GetOffset(topic string, partition int32, time int64) (int64, error)
}

// partitionOpener is the part of sarama.Consumer used to read a partition.
type partitionOpener interface {
	ConsumePartition(topic string, partition int32, offset int64) (sarama.PartitionConsumer, error)
	Close() error
}

// KafkaSource reads each partition from its start offset up to the
// high-water mark observed when Fetch begins, at most BatchSize messages per
// partition per Fetch. Offsets are tracked in memory only.
type KafkaSource struct {
	config   KafkaConfig
	logger   *zap.Logger
	client   sarama.Client
	offsets  offsetLookup
	consumer partitionOpener

	next map[int32]int64
}

// NewKafkaSource connects to the brokers in cfg.
func NewKafkaSource(cfg KafkaConfig, logger *zap.Logger) (*KafkaSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(cfg.Brokers, buildSaramaConfig(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Kafka client").
			WithDetail("brokers", strings.Join(cfg.Brokers, ","))
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create Kafka consumer")
	}

	s := newKafkaSource(cfg, logger, client, consumer)
	s.client = client

	logger.Info("connected to Kafka",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return s, nil
}

func newKafkaSource(cfg KafkaConfig, logger *zap.Logger, offsets offsetLookup, consumer partitionOpener) *KafkaSource {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultKafkaConfig().BatchSize
	}
	return &KafkaSource{
		config:   cfg,
		logger:   logger,
		offsets:  offsets,
		consumer: consumer,
		next:     make(map[int32]int64),
	}
}

// Fetch reads the next bounded batch from every configured partition.
func (s *KafkaSource) Fetch(ctx context.Context) ([]Message, error) {
	partitions, err := s.partitions()
	if err != nil {
		return nil, err
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	var out []Message
	for _, p := range partitions {
		msgs, err := s.fetchPartition(ctx, p)
		out = append(out, msgs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// NextOffsets returns the offset each partition will resume from.
func (s *KafkaSource) NextOffsets() map[int32]int64 {
	out := make(map[int32]int64, len(s.next))
	for p, o := range s.next {
		out[p] = o
	}
	return out
}

func (s *KafkaSource) partitions() ([]int32, error) {
	if len(s.config.Partitions) > 0 {
		return s.config.Partitions, nil
	}
	ps, err := s.offsets.Partitions(s.config.Topic)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to list partitions").
			WithDetail("topic", s.config.Topic)
	}
	sorted := append([]int32(nil), ps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted, nil
}

func (s *KafkaSource) startOffset(p int32) (int64, error) {
	if off, ok := s.next[p]; ok {
		return off, nil
	}
	off, named, err := parseStartOffset(s.config.StartOffset)
	if err != nil {
		return 0, err
	}
	if !named {
		return off, nil
	}
	resolved, err := s.offsets.GetOffset(s.config.Topic, p, off)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConnection, "failed to resolve start offset").
			WithDetail("partition", p)
	}
	return resolved, nil
}

func (s *KafkaSource) fetchPartition(ctx context.Context, p int32) ([]Message, error) {
	start, err := s.startOffset(p)
	if err != nil {
		return nil, err
	}
	hwm, err := s.offsets.GetOffset(s.config.Topic, p, sarama.OffsetNewest)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read high-water mark").
			WithDetail("partition", p)
	}

	end := hwm
	if limit := start + int64(s.config.BatchSize); limit < end {
		end = limit
	}
	if start >= end {
		s.next[p] = start
		return nil, nil
	}

	pc, err := s.consumer.ConsumePartition(s.config.Topic, p, start)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to consume partition").
			WithDetail("partition", p).
			WithDetail("offset", start)
	}
	defer func() {
		if cerr := pc.Close(); cerr != nil {
			s.logger.Warn("failed to close partition consumer", zap.Int32("partition", p), zap.Error(cerr))
		}
	}()

	msgs := make([]Message, 0, end-start)
	next := start
	messages, errs := pc.Messages(), pc.Errors()
	for next < end {
		select {
		case m, ok := <-messages:
			if !ok {
				s.next[p] = next
				return msgs, nil
			}
			msgs = append(msgs, Message{
				Topic:     m.Topic,
				Partition: m.Partition,
				Offset:    m.Offset,
				Key:       m.Key,
				Value:     m.Value,
				Timestamp: m.Timestamp,
			})
			next = m.Offset + 1
		case cerr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.next[p] = next
			return msgs, errors.Wrap(cerr.Err, errors.ErrorTypeConnection, "partition read failed").
				WithDetail("partition", p)
		case <-ctx.Done():
			s.next[p] = next
			if ctx.Err() != context.DeadlineExceeded {
				return msgs, ctx.Err()
			}
			// Offsets held by control records are never delivered.
			s.logger.Debug("partition read stopped at deadline",
				zap.Int32("partition", p),
				zap.Int64("next_offset", next),
				zap.Int64("end_offset", end))
			return msgs, nil
		}
	}
	s.next[p] = next
	return msgs, nil
}

// Close releases the consumer and client.
func (s *KafkaSource) Close() error {
	var first error
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			first = err
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
