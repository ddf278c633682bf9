package workflow

import (
	"context"

	"github.com/rs/zerolog"

	"orderflow/internal/domain"
	"orderflow/internal/notifier"
)

// Resolver turns a decision into the terminal transition: one conditional
// status write, then the status event and the user notification. Losing
// the conditional write skips every side effect.
type Resolver struct {
	orders   OrderStore
	bus      EventBus
	notifier Notifier
	log      zerolog.Logger
}

func NewResolver(orders OrderStore, bus EventBus, n Notifier, log zerolog.Logger) *Resolver {
	return &Resolver{orders: orders, bus: bus, notifier: n, log: log}
}

func (r *Resolver) Resolve(ctx context.Context, orderID string, d domain.Decision) error {
	status := d.TerminalStatus()

	won, err := r.orders.CompareAndSetStatus(ctx, orderID, domain.StatusPlaced, status)
	if err != nil {
		return err
	}
	if !won {
		// The other trigger committed first.
		r.log.Debug().Str("action", "resolution_lost_race").
			Str("order_id", orderID).Str("attempted_status", string(status)).Send()
		return nil
	}

	if err := r.bus.Publish(ctx, domain.StatusEvent(status), orderID, domain.OrderStatusPayload{
		OrderID: orderID,
		Status:  status,
	}); err != nil {
		return err
	}
	if err := r.notifier.Send(ctx, notifier.ChannelUser, notifier.UserMessage{
		OrderID: orderID,
		Status:  string(status),
		Message: userMessage(status),
	}); err != nil {
		return err
	}

	r.log.Info().Str("action", "order_resolved").
		Str("order_id", orderID).Str("status", string(status)).Send()
	return nil
}

func userMessage(s domain.Status) string {
	switch s {
	case domain.StatusAccepted:
		return "confirmed"
	case domain.StatusRejected:
		return "declined"
	default:
		return "expired"
	}
}
