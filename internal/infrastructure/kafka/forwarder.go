package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/kitchenledger/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/Zhima-Mochi/kitchenledger/internal/observability/logctx"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// Writer is the slice of *kafka.Writer the forwarder uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// keyed events expose the id used as the Kafka message key so every event of
// one order (or inventory item) lands on the same partition.
type keyed interface {
	AggregateID() string
}

// Forwarder relays committed domain events from the outbox bus to Kafka,
// one topic per event name: "<prefix>.<event name>".
type Forwarder struct {
	w      Writer
	prefix string
	log    observability.Logger
}

func NewForwarder(w Writer, topicPrefix string, tel observability.Observability) *Forwarder {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Forwarder{
		w:      w,
		prefix: topicPrefix,
		log:    tel.Logger().With(observability.F("component", "kafka_forwarder")),
	}
}

// NewWriter builds a kafka-go writer that picks the topic per message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Subscribe registers the forwarder for each event name on the bus.
func (f *Forwarder) Subscribe(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, f.Handle)
	}
}

func (f *Forwarder) Topic(eventName string) string {
	if f.prefix == "" {
		return eventName
	}
	return f.prefix + "." + eventName
}

// Handle is a domoutbox.Handler.
func (f *Forwarder) Handle(ctx context.Context, e domoutbox.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka forwarder: encode %s: %w", e.EventName(), err)
	}

	msg := kafka.Message{
		Topic: f.Topic(e.EventName()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.EventName())},
		},
	}
	if k, ok := e.(keyed); ok {
		msg.Key = []byte(k.AggregateID())
	}
	carrier := headerCarrier{msg: &msg}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	logger := logctx.FromOr(ctx, f.log).With(
		observability.F("topic", msg.Topic),
		observability.F("key", string(msg.Key)),
	)
	if err := f.w.WriteMessages(ctx, msg); err != nil {
		logger.Error("kafka_publish_failed", observability.F("error", err))
		return fmt.Errorf("kafka forwarder: write %s: %w", msg.Topic, err)
	}
	logger.Debug("kafka_published")
	return nil
}

func (f *Forwarder) Close() error {
	return f.w.Close()
}

// headerCarrier lets the OpenTelemetry propagator write W3C trace headers
// into Kafka message headers.
type headerCarrier struct{ msg *kafka.Message }

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
