package timeout

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"orderflow/internal/connections/rabbitmq"
	"orderflow/internal/metrics"
	"orderflow/internal/scheduler"
)

// Handler is the slice of the engine the timeout trigger needs.
type Handler interface {
	OnTimeout(ctx context.Context, orderID string) error
}

type Worker struct {
	mq       *rabbitmq.Client
	h        Handler
	m        *metrics.Workflow
	log      zerolog.Logger
	Prefetch int
}

func NewWorker(mq *rabbitmq.Client, h Handler, m *metrics.Workflow, log zerolog.Logger) *Worker {
	return &Worker{mq: mq, h: h, m: m, log: log, Prefetch: 1}
}

// Run consumes the timeout queue until ctx is canceled. Acks follow the
// outcome: success acks, transient errors requeue, poison messages go to
// the dead-letter queue.
func (w *Worker) Run(ctx context.Context) error {
	ch, msgs, err := w.mq.Consume(rabbitmq.TimeoutQueue, "timeout-worker", w.Prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range msgs {
			w.processOne(ctx, d)
		}
	}()

	<-ctx.Done()
	w.log.Info().Str("action", "graceful_shutdown").Send()
	_ = ch.Cancel("timeout-worker", false)
	<-done
	return nil
}

func (w *Worker) processOne(ctx context.Context, d amqp.Delivery) {
	var msg scheduler.TimeoutMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.OrderID == "" {
		// unparseable trigger, nothing to retry
		_ = d.Nack(false, false)
		return
	}

	if err := w.h.OnTimeout(ctx, msg.OrderID); err != nil {
		w.log.Error().Err(err).Str("action", "timeout_failed").
			Str("order_id", msg.OrderID).Send()
		time.Sleep(time.Second)
		_ = d.Nack(false, true)
		return
	}
	w.m.Timeouts.Inc()
	_ = d.Ack(false)
}
