package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"messaging-service/internal/observability"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events asynchronously to one topic.
type KafkaPublisher struct {
	w   messageWriter
	log zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
	p := &KafkaPublisher{log: log}
	w.Completion = func(messages []kafka.Message, err error) {
		if err != nil {
			observability.IncKafkaPublishError()
			p.log.Error().Err(err).Int("count", len(messages)).Msg("kafka write failed")
		}
	}
	p.w = w
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("type", ev.Type).Msg("encode event")
		return
	}
	msg := kafka.Message{
		Key:   []byte(ev.Key),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if traceID := observability.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "trace_id", Value: []byte(traceID)})
	}
	// the request context may be cancelled before the async batch flushes
	if err := p.w.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		observability.IncKafkaPublishError()
		p.log.Error().Err(err).Str("type", ev.Type).Msg("kafka publish failed")
	}
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
