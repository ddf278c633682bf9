package idempotency

import (
	"context"
	"errors"
)

// ErrInProgress is returned when another caller holds the key and has not
// recorded a result yet. Queue-driven callers requeue and retry later.
var ErrInProgress = errors.New("operation already in progress")

// Guard executes a keyed operation at most once within a retention window.
// The first caller runs fn and records its result; later callers with the
// same key get the recorded result back (replayed=true) without side
// effects. If fn fails nothing is recorded and the key is released.
type Guard interface {
	RunOnce(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) (result []byte, replayed bool, err error)
}
