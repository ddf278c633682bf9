package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInstanceNotFound = errors.New("workflow instance not found")
)

// ConflictError: Start was called for an order id that already exists.
// Either a caller bug (surfaced as 409) or a benign redelivery (absorbed
// by the caller once it sees an instance is already running).
type ConflictError struct {
	OrderID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s already exists", e.OrderID)
}

// StaleTokenError: a resolve call presented an unknown token, or one whose
// instance already left AWAITING_RESTAURANT_RESPONSE. No state was mutated.
type StaleTokenError struct {
	Token string
}

func (e *StaleTokenError) Error() string {
	return fmt.Sprintf("continuation token %s is unknown or no longer active", e.Token)
}

// DeliveryFailure: a Notifier or Event Bus call failed. It always
// propagates to the caller's dead-letter path; a missing event would
// break downstream consumers.
type DeliveryFailure struct {
	Target string // "bus" or the notification channel
	Err    error
}

func (e *DeliveryFailure) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Target, e.Err)
}

func (e *DeliveryFailure) Unwrap() error { return e.Err }
