package workflow

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/domain"
	"orderflow/internal/idempotency"
	"orderflow/internal/notifier"
)

func newTestStep() (*NotificationStep, *recordBus, *recordNotifier) {
	b := newRecordBus()
	n := newRecordNotifier()
	step := NewNotificationStep(n, b, idempotency.NewMemoryGuard(), zerolog.Nop())
	return step, b, n
}

func TestNotifyIsIdempotentPerAttempt(t *testing.T) {
	step, b, n := newTestStep()
	ctx := context.Background()

	require.NoError(t, step.Notify(ctx, "O1", "Fangtasia", "tok-1", 0))
	require.NoError(t, step.Notify(ctx, "O1", "Fangtasia", "tok-1", 0))

	assert.Len(t, n.toChannel("restaurant.fangtasia"), 1)
	assert.Len(t, b.ofType(domain.EventRestaurantNotified), 1)
}

func TestNotifyNewAttemptDeliversAgain(t *testing.T) {
	step, b, n := newTestStep()
	ctx := context.Background()

	require.NoError(t, step.Notify(ctx, "O1", "Fangtasia", "tok-1", 0))
	require.NoError(t, step.Notify(ctx, "O1", "Fangtasia", "tok-1", 1))

	assert.Len(t, n.toChannel("restaurant.fangtasia"), 2)
	assert.Len(t, b.ofType(domain.EventRestaurantNotified), 2)
}

func TestNotifyEmbedsContinuationToken(t *testing.T) {
	step, _, n := newTestStep()

	require.NoError(t, step.Notify(context.Background(), "O1", "Fangtasia", "tok-1", 0))

	sends := n.toChannel("restaurant.fangtasia")
	require.Len(t, sends, 1)
	msg := sends[0].Payload.(notifier.RestaurantMessage)
	assert.Equal(t, "tok-1", msg.ContinuationToken)
	assert.Equal(t, "/decisions", msg.DecisionPath)
}

func TestNotifySendFailurePropagates(t *testing.T) {
	step, b, n := newTestStep()
	n.failOn["restaurant.fangtasia"] = &domain.DeliveryFailure{Target: "restaurant.fangtasia", Err: assert.AnError}

	err := step.Notify(context.Background(), "O1", "Fangtasia", "tok-1", 0)
	var df *domain.DeliveryFailure
	require.ErrorAs(t, err, &df)
	assert.Empty(t, b.ofType(domain.EventRestaurantNotified))

	// a failed run records nothing, so the retry executes for real
	delete(n.failOn, "restaurant.fangtasia")
	require.NoError(t, step.Notify(context.Background(), "O1", "Fangtasia", "tok-1", 0))
	assert.Len(t, n.toChannel("restaurant.fangtasia"), 1)
}

func TestNotifyPublishFailureIsPartial(t *testing.T) {
	step, b, n := newTestStep()
	b.failOn[domain.EventRestaurantNotified] = &domain.DeliveryFailure{Target: "bus", Err: assert.AnError}

	err := step.Notify(context.Background(), "O1", "Fangtasia", "tok-1", 0)
	var df *domain.DeliveryFailure
	require.ErrorAs(t, err, &df)
	// the send happened before the publish failed
	assert.Len(t, n.toChannel("restaurant.fangtasia"), 1)

	// reprocessing re-runs the whole step; a duplicate send is acceptable,
	// the event must eventually go out
	delete(b.failOn, domain.EventRestaurantNotified)
	require.NoError(t, step.Notify(context.Background(), "O1", "Fangtasia", "tok-1", 0))
	assert.Len(t, b.ofType(domain.EventRestaurantNotified), 1)
	assert.Len(t, n.toChannel("restaurant.fangtasia"), 2)
}
