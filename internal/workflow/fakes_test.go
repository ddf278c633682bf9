package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"orderflow/internal/domain"
	"orderflow/internal/idempotency"
)

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*domain.Order)}
}

func (s *memOrders) Create(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return &domain.ConflictError{OrderID: o.ID}
	}
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *memOrders) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memOrders) GetStatus(_ context.Context, id string) (domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return "", domain.ErrOrderNotFound
	}
	return o.Status, nil
}

func (s *memOrders) CompareAndSetStatus(_ context.Context, id string, expected, next domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != expected {
		return false, nil
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

type memInstances struct {
	mu        sync.Mutex
	instances map[string]*domain.WorkflowInstance // by order id
}

func newMemInstances() *memInstances {
	return &memInstances{instances: make(map[string]*domain.WorkflowInstance)}
}

func (s *memInstances) Create(_ context.Context, inst *domain.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[inst.OrderID]; ok {
		return &domain.ConflictError{OrderID: inst.OrderID}
	}
	cp := *inst
	s.instances[inst.OrderID] = &cp
	return nil
}

func (s *memInstances) FindByToken(_ context.Context, token string) (*domain.WorkflowInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ContinuationToken == token {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, domain.ErrInstanceNotFound
}

func (s *memInstances) FindByOrderID(_ context.Context, orderID string) (*domain.WorkflowInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[orderID]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	cp := *inst
	return &cp, nil
}

func (s *memInstances) SwapState(_ context.Context, orderID string, from, to domain.WorkflowState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[orderID]
	if !ok {
		return false, domain.ErrInstanceNotFound
	}
	if inst.State != from {
		return false, nil
	}
	inst.State = to
	return true, nil
}

func (s *memInstances) BumpAttempt(_ context.Context, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[orderID]
	if !ok {
		return 0, domain.ErrInstanceNotFound
	}
	inst.Attempt++
	return inst.Attempt, nil
}

// setState puts an instance into an arbitrary state for tests.
func (s *memInstances) setState(orderID string, state domain.WorkflowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[orderID].State = state
}

func (s *memInstances) token(orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances[orderID].ContinuationToken
}

type publishedEvent struct {
	Type    domain.EventType
	OrderID string
	Payload any
}

type recordBus struct {
	mu     sync.Mutex
	events []publishedEvent
	failOn map[domain.EventType]error
}

func newRecordBus() *recordBus {
	return &recordBus{failOn: make(map[domain.EventType]error)}
}

func (b *recordBus) Publish(_ context.Context, t domain.EventType, orderID string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failOn[t]; ok {
		return err
	}
	b.events = append(b.events, publishedEvent{Type: t, OrderID: orderID, Payload: payload})
	return nil
}

func (b *recordBus) ofType(t domain.EventType) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type sentMessage struct {
	Channel string
	Payload any
}

type recordNotifier struct {
	mu     sync.Mutex
	sends  []sentMessage
	failOn map[string]error
}

func newRecordNotifier() *recordNotifier {
	return &recordNotifier{failOn: make(map[string]error)}
}

func (n *recordNotifier) Send(_ context.Context, channel string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failOn[channel]; ok {
		return err
	}
	n.sends = append(n.sends, sentMessage{Channel: channel, Payload: payload})
	return nil
}

func (n *recordNotifier) toChannel(channel string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, s := range n.sends {
		if s.Channel == channel {
			out = append(out, s)
		}
	}
	return out
}

type manualTimer struct {
	mu        sync.Mutex
	scheduled []string
	failNext  error
}

func (t *manualTimer) Schedule(_ context.Context, orderID string, _ time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failNext != nil {
		err := t.failNext
		t.failNext = nil
		return err
	}
	t.scheduled = append(t.scheduled, orderID)
	return nil
}

type testRig struct {
	engine    *Engine
	orders    *memOrders
	instances *memInstances
	bus       *recordBus
	notifier  *recordNotifier
	timer     *manualTimer
}

func newTestRig(cfg EngineConfig) *testRig {
	orders := newMemOrders()
	instances := newMemInstances()
	b := newRecordBus()
	n := newRecordNotifier()
	timer := &manualTimer{}
	log := zerolog.Nop()

	step := NewNotificationStep(n, b, idempotency.NewMemoryGuard(), log)
	resolver := NewResolver(orders, b, n, log)
	engine := NewEngine(orders, instances, b, step, resolver, timer, cfg, log)

	return &testRig{
		engine:    engine,
		orders:    orders,
		instances: instances,
		bus:       b,
		notifier:  n,
		timer:     timer,
	}
}
