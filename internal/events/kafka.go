package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"hotel-receptionist/internal/hotel"

	"github.com/segmentio/kafka-go"
)

// Envelope is the wire shape of an audit event.
type Envelope struct {
	Type       string           `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Entry      hotel.MessageLog `json:"entry"`
}

// KafkaPublisher writes audit entries to a Kafka topic, keyed by channel.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaPublisher returns a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
		logger: logger.With("component", "kafka_publisher", "topic", topic),
	}
}

// Publish sends entry synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, entry hotel.MessageLog) error {
	msg, err := encode(entry)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(entry hotel.MessageLog) (kafka.Message, error) {
	body, err := json.Marshal(Envelope{
		Type:       "message_log." + string(entry.Channel),
		OccurredAt: entry.CreatedAt,
		Entry:      entry,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode audit event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(entry.Channel),
		Value: body,
		Time:  entry.CreatedAt,
	}, nil
}
