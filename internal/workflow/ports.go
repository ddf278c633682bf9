package workflow

import (
	"context"
	"time"

	"orderflow/internal/domain"
)

// OrderStore is the durable order record. CompareAndSetStatus is the only
// write that may move an order out of PLACED, and it is the arbitration
// point for the resolve/timeout race.
type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	GetStatus(ctx context.Context, orderID string) (domain.Status, error)
	CompareAndSetStatus(ctx context.Context, orderID string, expected, next domain.Status) (bool, error)
}

// InstanceStore persists the per-order state machine.
type InstanceStore interface {
	Create(ctx context.Context, inst *domain.WorkflowInstance) error
	FindByToken(ctx context.Context, token string) (*domain.WorkflowInstance, error)
	FindByOrderID(ctx context.Context, orderID string) (*domain.WorkflowInstance, error)
	SwapState(ctx context.Context, orderID string, from, to domain.WorkflowState) (bool, error)
	BumpAttempt(ctx context.Context, orderID string) (int, error)
}

// EventBus publishes typed domain events, at-least-once and unordered.
type EventBus interface {
	Publish(ctx context.Context, t domain.EventType, orderID string, payload any) error
}

// Notifier delivers messages to restaurant and user channels,
// at-least-once, no delivery confirmation beyond the send itself.
type Notifier interface {
	Send(ctx context.Context, channel string, payload any) error
}

// TimeoutScheduler arranges for OnTimeout to fire once after fireIn.
// Implementations may let the trigger fire harmlessly after the instance
// has resolved instead of canceling it.
type TimeoutScheduler interface {
	Schedule(ctx context.Context, orderID string, fireIn time.Duration) error
}
