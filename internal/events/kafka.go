package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of kafka.Writer the producer relies on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer forwards ticket events to a Kafka topic. It is best-effort:
// write failures are logged and never reach the publisher.
type KafkaProducer struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaProducer creates a producer. With no brokers or topic it is a no-op.
func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return &KafkaProducer{logger: logger}
	}
	return &KafkaProducer{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether a topic is configured.
func (p *KafkaProducer) Enabled() bool {
	return p != nil && p.writer != nil
}

// Handle is an EventHandler; the ticket id keys the message so a ticket's
// events stay ordered within one partition.
func (p *KafkaProducer) Handle(ctx context.Context, event Event) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("kafka: marshal ticket event", zap.Error(err))
		return nil
	}
	msg := kafka.Message{Key: []byte(event.TicketID), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("kafka: write ticket event",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}

// Register subscribes the producer to every ticket change.
func (p *KafkaProducer) Register(d Dispatcher) func() {
	if !p.Enabled() {
		return func() {}
	}
	return SubscribeAll(d, ChangeTypes, p.Handle)
}

// Close closes the writer.
func (p *KafkaProducer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092" into a slice.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
