// Package kafka publishes confirmed plans to the shop-floor message bus as
// CloudEvents in binary content mode.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/example/gmpsched/internal/core/production"
	"github.com/example/gmpsched/internal/ports/secondary"
)

// Event attributes.
const (
	SpecVersion   = "1.0"
	EventType     = "com.gmpsched.plan.confirmed"
	DefaultSource = "/gmpsched/scheduler"
	DefaultTopic  = "gmpsched.plans.confirmed"
	ContentType   = "application/json"
)

// Config configures the exporter.
type Config struct {
	Brokers      []string
	Topic        string
	Source       string
	BatchTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Exporter implements secondary.PlanExporter over Kafka.
type Exporter struct {
	writer messageWriter
	topic  string
	source string
	now    func() time.Time
	newID  func() string
}

// NewExporter creates an exporter writing to the configured brokers.
func NewExporter(cfg Config) *Exporter {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newExporter(w, cfg)
}

func newExporter(w messageWriter, cfg Config) *Exporter {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	return &Exporter{
		writer: w,
		topic:  cfg.Topic,
		source: cfg.Source,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Export implements secondary.PlanExporter. Messages are keyed by session so
// successive plans of one session keep their order on a partition.
func (e *Exporter) Export(ctx context.Context, doc production.PlanDocument) error {
	data, err := production.EncodePlanDocument(doc)
	if err != nil {
		return fmt.Errorf("failed to encode plan document: %w", err)
	}

	now := e.now().UTC()
	msg := kafka.Message{
		Key:   []byte(doc.SessionID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "ce-specversion", Value: []byte(SpecVersion)},
			{Key: "ce-type", Value: []byte(EventType)},
			{Key: "ce-source", Value: []byte(e.source)},
			{Key: "ce-id", Value: []byte(e.newID())},
			{Key: "ce-time", Value: []byte(now.Format(time.RFC3339))},
			{Key: "ce-subject", Value: []byte(doc.Plan.ID())},
			{Key: "content-type", Value: []byte(ContentType)},
			{Key: "ce-gmpschemaversion", Value: []byte(production.SchemaVersion)},
		},
		Time: now,
	}
	if doc.SessionID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "ce-gmpsessionid", Value: []byte(doc.SessionID)})
	}

	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish plan to topic %s: %w", e.topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (e *Exporter) Close() error {
	return e.writer.Close()
}

var _ secondary.PlanExporter = (*Exporter)(nil)
