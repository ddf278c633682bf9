package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"orderflow/internal/domain"
	"orderflow/internal/idempotency"
	"orderflow/internal/notifier"
)

// decisionPath is the callback route the restaurant's system posts its
// decision to, carrying the continuation token from the notification.
const decisionPath = "/decisions"

// NotificationStep delivers the restaurant notification embedding the
// continuation token and records the delivery with a restaurant_notified
// event. The whole step runs under the idempotency guard: a redelivered
// trigger for the same order and attempt replays the recorded result
// instead of re-sending.
type NotificationStep struct {
	notifier Notifier
	bus      EventBus
	guard    idempotency.Guard
	log      zerolog.Logger
}

func NewNotificationStep(n Notifier, bus EventBus, guard idempotency.Guard, log zerolog.Logger) *NotificationStep {
	return &NotificationStep{notifier: n, bus: bus, guard: guard, log: log}
}

func (s *NotificationStep) Notify(ctx context.Context, orderID, restaurantName, token string, attempt int) error {
	key := fmt.Sprintf("notify:%s#%d", orderID, attempt)
	_, replayed, err := s.guard.RunOnce(ctx, key, func(ctx context.Context) ([]byte, error) {
		msg := notifier.RestaurantMessage{
			OrderID:           orderID,
			RestaurantName:    restaurantName,
			ContinuationToken: token,
			DecisionPath:      decisionPath,
		}
		if err := s.notifier.Send(ctx, notifier.RestaurantChannel(restaurantName), msg); err != nil {
			return nil, err
		}
		if err := s.bus.Publish(ctx, domain.EventRestaurantNotified, orderID, domain.RestaurantNotifiedPayload{
			OrderID:        orderID,
			RestaurantName: restaurantName,
		}); err != nil {
			// Notification went out but the event did not: partial failure.
			// Nothing is recorded, so the caller's dead-letter path can
			// reprocess; the callback route is token-guarded, so a repeated
			// restaurant notification cannot double-resolve anything.
			return nil, err
		}
		return []byte(`{"notified":true}`), nil
	})
	if err != nil {
		return err
	}
	if replayed {
		s.log.Debug().Str("action", "notification_replayed").
			Str("order_id", orderID).Int("attempt", attempt).Send()
		return nil
	}
	s.log.Info().Str("action", "restaurant_notified").
		Str("order_id", orderID).Str("restaurant", restaurantName).Int("attempt", attempt).Send()
	return nil
}
