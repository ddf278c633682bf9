package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"orderflow/internal/config"
)

// Exchange and queue names shared by publishers and consumers.
const (
	NotificationsExchange = "notifications" // topic, key = channel name
	WorkflowDLX           = "workflow.dlx"

	// WaitQueue has no consumers; messages sit there until their per-message
	// TTL expires and the broker dead-letters them into the timeout queue.
	WaitQueue    = "workflow.wait.q"
	TimeoutQueue = "workflow.timeout.q"
	DeadQueue    = "workflow.dead.q"

	RestaurantQueue = "notifications.restaurant.q"
	UserQueue       = "notifications.user.q"

	timeoutKey = "timeout"
	deadKey    = "dead"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation // publisher confirms
	mu   sync.Mutex               // serializes Publish while waiting for acks
}

func Dial(cfg config.RabbitMQ) (*Client, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VHost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareTopology sets up every exchange and queue the workflow needs.
// Declarations are idempotent, so each service declares on startup.
func (c *Client) DeclareTopology() error {
	if err := c.ch.ExchangeDeclare(NotificationsExchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.ExchangeDeclare(WorkflowDLX, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(WaitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    WorkflowDLX,
		"x-dead-letter-routing-key": timeoutKey,
	}); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(TimeoutQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    WorkflowDLX,
		"x-dead-letter-routing-key": deadKey,
	}); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(DeadQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(TimeoutQueue, timeoutKey, WorkflowDLX, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(DeadQueue, deadKey, WorkflowDLX, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(RestaurantQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(UserQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := c.ch.QueueBind(RestaurantQueue, "restaurant.*", NotificationsExchange, false, nil); err != nil {
		return err
	}
	return c.ch.QueueBind(UserQueue, "user.*", NotificationsExchange, false, nil)
}

// Publish sends a persistent message and waits for the broker ack.
// expiration is a per-message TTL in milliseconds ("" for none).
func (c *Client) Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, expiration string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.PublishWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Expiration:   expiration,
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume opens a dedicated channel with manual acks and the given prefetch.
func (c *Client) Consume(queue, consumer string, prefetch int) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	msgs, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return ch, msgs, nil
}
