package subscriber

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"orderflow/internal/connections/rabbitmq"
)

// Subscriber drains the notification queues and tails the event topic,
// logging every delivery. It is the observable end of the outbound
// channels: in a deployment the restaurant's and user's real integrations
// would consume these instead.
type Subscriber struct {
	mq     *rabbitmq.Client
	events *kafka.Reader // nil disables the event tail
	log    zerolog.Logger
}

func New(mq *rabbitmq.Client, events *kafka.Reader, log zerolog.Logger) *Subscriber {
	return &Subscriber{mq: mq, events: events, log: log}
}

func (s *Subscriber) Run(ctx context.Context) error {
	queues := []string{rabbitmq.RestaurantQueue, rabbitmq.UserQueue}
	channels := make([]*amqp.Channel, 0, len(queues))
	done := make(chan struct{}, len(queues)+1)
	drains := len(queues)

	for _, q := range queues {
		consumer := "subscriber-" + q
		ch, msgs, err := s.mq.Consume(q, consumer, 10)
		if err != nil {
			return err
		}
		channels = append(channels, ch)

		go func(queue string) {
			defer func() { done <- struct{}{} }()
			for d := range msgs {
				s.log.Info().Str("action", "notification_received").
					Str("queue", queue).
					Str("routing_key", d.RoutingKey).
					RawJSON("payload", d.Body).Send()
				_ = d.Ack(false)
			}
		}(q)
	}

	if s.events != nil {
		drains++
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				m, err := s.events.ReadMessage(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						s.log.Error().Err(err).Str("action", "event_tail_failed").Send()
					}
					return
				}
				s.log.Info().Str("action", "event_received").
					Str("order_id", string(m.Key)).
					RawJSON("envelope", m.Value).Send()
			}
		}()
	}

	<-ctx.Done()
	s.log.Info().Str("action", "graceful_shutdown").Send()
	for i, ch := range channels {
		_ = ch.Cancel("subscriber-"+queues[i], false)
		_ = ch.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	for i := 0; i < drains; i++ {
		<-done
	}
	return nil
}
