package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orderflow/internal/domain"
)

type EngineConfig struct {
	// Wait bounds how long an instance stays suspended waiting for the
	// restaurant before the timeout trigger resolves it.
	Wait time.Duration
	// MaxDecisionRetries bounds notification redeliveries after reported
	// technical failures; once exhausted the order folds into TIMED_OUT.
	MaxDecisionRetries int
}

func (c *EngineConfig) applyDefaults() {
	if c.Wait <= 0 {
		c.Wait = 600 * time.Second
	}
	if c.MaxDecisionRetries <= 0 {
		c.MaxDecisionRetries = 3
	}
}

// Engine owns the lifecycle of one WorkflowInstance per order, from
// placement to exactly one terminal status. It is not a long-lived thread:
// every instance suspends after Start and resumes on one of two external
// triggers, Resolve or OnTimeout, which may arrive concurrently.
type Engine struct {
	orders    OrderStore
	instances InstanceStore
	bus       EventBus
	step      *NotificationStep
	resolver  *Resolver
	timer     TimeoutScheduler
	cfg       EngineConfig
	log       zerolog.Logger
}

func NewEngine(orders OrderStore, instances InstanceStore, bus EventBus,
	step *NotificationStep, resolver *Resolver, timer TimeoutScheduler,
	cfg EngineConfig, log zerolog.Logger) *Engine {

	cfg.applyDefaults()
	return &Engine{
		orders:    orders,
		instances: instances,
		bus:       bus,
		step:      step,
		resolver:  resolver,
		timer:     timer,
		cfg:       cfg,
		log:       log,
	}
}

// Start persists the placed order, publishes order_placed, creates the
// suspended instance and fires the restaurant notification step. It returns
// as soon as the notification is on its way; the placer never blocks on the
// restaurant's decision. A retried or redelivered Start for an order that
// already exists re-drives whichever steps have not completed yet.
func (e *Engine) Start(ctx context.Context, orderID, restaurantName string) error {
	order, err := domain.NewOrder(orderID, restaurantName)
	if err != nil {
		return err
	}
	if err := e.orders.Create(ctx, order); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			return e.resume(ctx, orderID, conflict)
		}
		return err
	}
	if err := e.bus.Publish(ctx, domain.EventOrderPlaced, order.ID, domain.OrderPlacedPayload{
		OrderID:        order.ID,
		RestaurantName: order.RestaurantName,
	}); err != nil {
		return err
	}

	inst := domain.NewWorkflowInstance(order.ID, uuid.NewString(), time.Now().UTC().Add(e.cfg.Wait))
	if err := e.instances.Create(ctx, inst); err != nil {
		return err
	}
	if err := e.suspend(ctx, order, inst); err != nil {
		return err
	}

	e.log.Info().Str("action", "workflow_started").
		Str("order_id", order.ID).Str("restaurant", order.RestaurantName).
		Time("deadline", inst.Deadline).Send()
	return nil
}

// suspend arms the timeout timer and fires the notification step. Both are
// safe to repeat: a duplicate timer lands on a resolved instance as a
// no-op, and the step replays from the idempotency guard.
func (e *Engine) suspend(ctx context.Context, order *domain.Order, inst *domain.WorkflowInstance) error {
	fireIn := time.Until(inst.Deadline)
	if fireIn < 0 {
		fireIn = 0
	}
	if err := e.timer.Schedule(ctx, order.ID, fireIn); err != nil {
		return err
	}
	return e.step.Notify(ctx, order.ID, order.RestaurantName, inst.ContinuationToken, inst.Attempt)
}

// resume re-drives Start for an order that already exists. A crash or a
// transient broker error can leave the order without an instance, or the
// instance without an armed timer; repeating the remaining steps closes
// that gap so no order stays PLACED with nothing able to resolve it. The
// caller still sees ConflictError, since the order row predates this call.
func (e *Engine) resume(ctx context.Context, orderID string, conflict *domain.ConflictError) error {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != domain.StatusPlaced {
		return conflict
	}

	inst, err := e.instances.FindByOrderID(ctx, orderID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		if err := e.bus.Publish(ctx, domain.EventOrderPlaced, order.ID, domain.OrderPlacedPayload{
			OrderID:        order.ID,
			RestaurantName: order.RestaurantName,
		}); err != nil {
			return err
		}
		inst = domain.NewWorkflowInstance(order.ID, uuid.NewString(), time.Now().UTC().Add(e.cfg.Wait))
		if err := e.instances.Create(ctx, inst); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if inst.State != domain.StateAwaitingResponse {
		return conflict
	}

	if err := e.suspend(ctx, order, inst); err != nil {
		return err
	}
	e.log.Info().Str("action", "workflow_resumed").
		Str("order_id", order.ID).Time("deadline", inst.Deadline).Send()
	return conflict
}

// Resolve applies the restaurant's answer for the given continuation token.
// Unknown tokens and tokens whose instance already left
// AWAITING_RESTAURANT_RESPONSE get StaleTokenError with zero mutation, so
// repeated calls for the same token are safe.
func (e *Engine) Resolve(ctx context.Context, token string, d domain.Decision) error {
	inst, err := e.instances.FindByToken(ctx, token)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return &domain.StaleTokenError{Token: token}
	}
	if err != nil {
		return err
	}
	if inst.State != domain.StateAwaitingResponse {
		return &domain.StaleTokenError{Token: token}
	}

	if failure, ok := d.Failure(); ok {
		return e.retryOrExpire(ctx, inst, failure)
	}
	return e.complete(ctx, inst, d)
}

// OnTimeout fires when the deadline elapses. If the instance already
// resolved this is a no-op; the timer is never canceled, it just lands
// here harmlessly.
func (e *Engine) OnTimeout(ctx context.Context, orderID string) error {
	inst, err := e.instances.FindByOrderID(ctx, orderID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		e.log.Warn().Str("action", "timeout_for_unknown_instance").Str("order_id", orderID).Send()
		return nil
	}
	if err != nil {
		return err
	}

	switch inst.State {
	case domain.StateCompleted:
		return nil
	case domain.StateResolving:
		return e.repairStalled(ctx, orderID)
	}
	return e.complete(ctx, inst, domain.TimeoutDecision())
}

// repairStalled handles a timeout that finds the instance mid-resolution.
// Usually the racing resolve is about to finish; if it crashed between its
// state swap and the status write, the timeout drives the order home so no
// instance is left non-terminal forever.
func (e *Engine) repairStalled(ctx context.Context, orderID string) error {
	status, err := e.orders.GetStatus(ctx, orderID)
	if err != nil {
		return err
	}
	if status.Terminal() {
		// resolution committed, only the bookkeeping swap is missing
		_, err := e.instances.SwapState(ctx, orderID, domain.StateResolving, domain.StateCompleted)
		return err
	}
	// The conditional status write arbitrates against any still-running
	// resolve; whichever commits first wins and the other is a no-op.
	if err := e.resolver.Resolve(ctx, orderID, domain.TimeoutDecision()); err != nil {
		return err
	}
	_, err = e.instances.SwapState(ctx, orderID, domain.StateResolving, domain.StateCompleted)
	return err
}

// complete drives AWAITING -> RESOLVING -> COMPLETED. The first swap
// invalidates the continuation token; the resolver's conditional status
// write gates every side effect.
func (e *Engine) complete(ctx context.Context, inst *domain.WorkflowInstance, d domain.Decision) error {
	won, err := e.instances.SwapState(ctx, inst.OrderID, domain.StateAwaitingResponse, domain.StateResolving)
	if err != nil {
		return err
	}
	if !won {
		// The other trigger got here first.
		if d.TimedOut() {
			return nil
		}
		return &domain.StaleTokenError{Token: inst.ContinuationToken}
	}

	if err := e.resolver.Resolve(ctx, inst.OrderID, d); err != nil {
		return err
	}
	// The swap can lose only to repairStalled finishing for us.
	_, err = e.instances.SwapState(ctx, inst.OrderID, domain.StateResolving, domain.StateCompleted)
	return err
}

// retryOrExpire handles a reported technical failure: the restaurant's
// system broke before rendering a decision, so the notification step is
// redelivered under a fresh idempotency key. Exhausted retries fold into
// the timeout outcome, because no decision was ever obtained.
func (e *Engine) retryOrExpire(ctx context.Context, inst *domain.WorkflowInstance, failure *domain.TechnicalFailure) error {
	if inst.Attempt+1 >= e.cfg.MaxDecisionRetries {
		e.log.Warn().Str("action", "decision_retries_exhausted").
			Str("order_id", inst.OrderID).Str("code", failure.Code).
			Int("attempts", inst.Attempt+1).Send()
		return e.complete(ctx, inst, domain.TimeoutDecision())
	}

	attempt, err := e.instances.BumpAttempt(ctx, inst.OrderID)
	if err != nil {
		return err
	}
	order, err := e.orders.Get(ctx, inst.OrderID)
	if err != nil {
		return err
	}
	e.log.Warn().Str("action", "technical_failure_retry").
		Str("order_id", inst.OrderID).Str("code", failure.Code).
		Str("cause", failure.Cause).Int("attempt", attempt).Send()
	return e.step.Notify(ctx, order.ID, order.RestaurantName, inst.ContinuationToken, attempt)
}
