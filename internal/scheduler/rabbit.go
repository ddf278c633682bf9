package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"orderflow/internal/connections/rabbitmq"
)

// TimeoutMessage is what lands on the timeout queue once the wait expires.
type TimeoutMessage struct {
	OrderID  string    `json:"order_id"`
	Deadline time.Time `json:"deadline"`
}

// Publisher is the slice of the AMQP client Schedule needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, expiration string) error
}

// Rabbit schedules timeout triggers with the broker itself: each message is
// published into the consumerless wait queue with a per-message TTL, and
// the broker dead-letters it into the timeout queue when the TTL expires.
// Nothing cancels a timer; an already-resolved instance absorbs the trigger
// as a no-op.
type Rabbit struct {
	mq  Publisher
	log zerolog.Logger
}

func NewRabbit(mq Publisher, log zerolog.Logger) *Rabbit {
	return &Rabbit{mq: mq, log: log}
}

func (s *Rabbit) Schedule(ctx context.Context, orderID string, fireIn time.Duration) error {
	body, err := json.Marshal(TimeoutMessage{
		OrderID:  orderID,
		Deadline: time.Now().UTC().Add(fireIn),
	})
	if err != nil {
		return err
	}
	expiration := strconv.FormatInt(fireIn.Milliseconds(), 10)
	headers := amqp.Table{"x-source": "orderflow"}
	// Default exchange routes directly to the wait queue by name.
	if err := s.mq.Publish(ctx, "", rabbitmq.WaitQueue, body, headers, expiration); err != nil {
		return err
	}
	s.log.Debug().Str("action", "timeout_scheduled").
		Str("order_id", orderID).Dur("fire_in", fireIn).Send()
	return nil
}
