package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

// KafkaJournal publishes transport entries to a Kafka topic as JSON,
// keyed by collection so entries for one collection stay ordered within
// a partition.
type KafkaJournal struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaJournal creates a journal writing to the configured topic.
func NewKafkaJournal(cfg multiverse.KafkaJournalConfig, log *zap.Logger) (*KafkaJournal, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
	}

	return &KafkaJournal{writer: writer, log: log}, nil
}

// Record publishes one entry.
func (j *KafkaJournal) Record(ctx context.Context, entry *multiverse.TransportEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.Collection),
		Value: data,
		Headers: []kafka.Header{
			{Key: "stream", Value: []byte(entry.Stream)},
			{Key: "from", Value: []byte(entry.From)},
			{Key: "to", Value: []byte(entry.To)},
		},
	}
	if err := j.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish journal entry: %w", err)
	}
	j.log.Debug("journal entry published",
		zap.String("stream", entry.Stream),
		zap.String("collection", entry.Collection),
		zap.Int("count", entry.Count))
	return nil
}

// Close flushes and closes the underlying writer.
func (j *KafkaJournal) Close() error {
	return j.writer.Close()
}

// New builds a journal from configuration. A "none" or empty type yields
// a nil journal, which the engine treats as journaling disabled.
func New(cfg multiverse.JournalConfig, log *zap.Logger) (multiverse.Journal, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryJournal(), nil
	case "kafka":
		return NewKafkaJournal(cfg.Kafka, log)
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", cfg.Type)
	}
}
