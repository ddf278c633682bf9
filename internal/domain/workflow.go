package domain

import "time"

// WorkflowState drives which transitions are legal for an instance.
// The only ways out of AWAITING_RESTAURANT_RESPONSE are a valid resolve
// call or the deadline elapsing; exactly one of them wins.
type WorkflowState string

const (
	StateAwaitingResponse WorkflowState = "AWAITING_RESTAURANT_RESPONSE"
	StateResolving        WorkflowState = "RESOLVING"
	StateCompleted        WorkflowState = "COMPLETED"
)

// WorkflowInstance is the per-order state machine record, 1:1 with Order.
type WorkflowInstance struct {
	OrderID string
	State   WorkflowState

	// ContinuationToken correlates the restaurant's eventual response back
	// to this instance. Minted on entry into AWAITING_RESTAURANT_RESPONSE,
	// no longer accepted once the instance leaves that state.
	ContinuationToken string

	// Deadline is entry time plus the configured wait bound; the timeout
	// trigger resolves the instance if nothing else did by then.
	Deadline time.Time

	// Attempt counts notification deliveries. It starts at 0 and is bumped
	// only when the restaurant reports a technical failure and the step is
	// deliberately re-delivered.
	Attempt int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewWorkflowInstance(orderID, token string, deadline time.Time) *WorkflowInstance {
	now := time.Now().UTC()
	return &WorkflowInstance{
		OrderID:           orderID,
		State:             StateAwaitingResponse,
		ContinuationToken: token,
		Deadline:          deadline,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
