package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/domain"
)

// Envelope wraps every event on the wire. Delivery is at-least-once and
// unordered; event_id lets consumers dedupe.
type Envelope struct {
	EventID    string           `json:"event_id"`
	Type       domain.EventType `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    json.RawMessage  `json:"payload"`
}

type Kafka struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafka(writer *kafka.Writer, log zerolog.Logger) *Kafka {
	return &Kafka{writer: writer, log: log}
}

// Publish writes one event keyed by order id. Failures surface as
// DeliveryFailure; the bus never swallows them.
func (b *Kafka) Publish(ctx context.Context, t domain.EventType, orderID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return &domain.DeliveryFailure{Target: "bus", Err: err}
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return &domain.DeliveryFailure{Target: "bus", Err: err}
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: body,
		Time:  env.OccurredAt,
	}); err != nil {
		return &domain.DeliveryFailure{Target: "bus", Err: err}
	}
	b.log.Debug().Str("action", "event_published").
		Str("event_type", string(t)).Str("order_id", orderID).Send()
	return nil
}

func (b *Kafka) Close() error { return b.writer.Close() }
