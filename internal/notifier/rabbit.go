package notifier

import (
	"context"
	"encoding/json"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"orderflow/internal/connections/rabbitmq"
	"orderflow/internal/domain"
)

// ChannelUser is the routing key for order status messages to the placer.
const ChannelUser = "user.orders"

// RestaurantChannel derives a routing key from the restaurant name.
func RestaurantChannel(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	return "restaurant." + slug
}

// RestaurantMessage asks the restaurant to decide on an order. The token
// and decision path tell its system how to call back.
type RestaurantMessage struct {
	OrderID           string `json:"order_id"`
	RestaurantName    string `json:"restaurant_name"`
	ContinuationToken string `json:"continuation_token"`
	DecisionPath      string `json:"decision_path"`
}

// UserMessage tells the placer how the order resolved.
type UserMessage struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Rabbit struct {
	mq  *rabbitmq.Client
	log zerolog.Logger
}

func NewRabbit(mq *rabbitmq.Client, log zerolog.Logger) *Rabbit {
	return &Rabbit{mq: mq, log: log}
}

// Send publishes one message to the named channel. At-least-once with no
// delivery confirmation surfaced beyond the broker ack.
func (n *Rabbit) Send(ctx context.Context, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.DeliveryFailure{Target: channel, Err: err}
	}
	headers := amqp.Table{"x-source": "orderflow"}
	if err := n.mq.Publish(ctx, rabbitmq.NotificationsExchange, channel, body, headers, ""); err != nil {
		return &domain.DeliveryFailure{Target: channel, Err: err}
	}
	n.log.Debug().Str("action", "notification_sent").Str("channel", channel).Send()
	return nil
}
