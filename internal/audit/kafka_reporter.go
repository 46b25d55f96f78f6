package audit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaReporterConfig configures the kafka audit sink.
type KafkaReporterConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	FlushEvery   time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	TLS          bool
}

// KafkaReporter ships audit records to a kafka topic. Writes are async and
// batched; the writer buffers internally and flushes on BatchSize or
// FlushEvery, whichever comes first.
type KafkaReporter struct {
	writer *kafka.Writer
}

// NewKafkaReporter creates a kafka-backed reporter.
func NewKafkaReporter(cfg KafkaReporterConfig) (*KafkaReporter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 2 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	tr := &kafka.Transport{
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.TLS {
		tr.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Transport:              tr,
		AllowAutoTopicCreation: false,
		Async:                  true,
		BatchTimeout:           cfg.FlushEvery,
		BatchSize:              cfg.BatchSize,
		WriteTimeout:           cfg.WriteTimeout,
	}

	return &KafkaReporter{writer: writer}, nil
}

func (r *KafkaReporter) Report(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kafka: marshal audit record: %w", err)
	}

	// Key by domain so one domain's records land on one partition and
	// keep their relative order.
	var key []byte
	if rec.Domain != "" {
		key = []byte(rec.Domain)
	}

	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: payload,
		Time:  rec.Timestamp,
	})
}

// Close flushes buffered messages and releases the writer.
func (r *KafkaReporter) Close() error {
	return r.writer.Close()
}
