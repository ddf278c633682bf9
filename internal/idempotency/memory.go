package idempotency

import (
	"context"
	"sync"
)

// MemoryGuard is a process-local Guard used in tests and single-node runs.
type MemoryGuard struct {
	mu       sync.Mutex
	results  map[string][]byte
	inflight map[string]bool
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		results:  make(map[string][]byte),
		inflight: make(map[string]bool),
	}
}

func (g *MemoryGuard) RunOnce(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	g.mu.Lock()
	if res, ok := g.results[key]; ok {
		g.mu.Unlock()
		return res, true, nil
	}
	if g.inflight[key] {
		g.mu.Unlock()
		return nil, false, ErrInProgress
	}
	g.inflight[key] = true
	g.mu.Unlock()

	result, err := fn(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, key)
	if err != nil {
		return nil, false, err
	}
	g.results[key] = result
	return result, false, nil
}
