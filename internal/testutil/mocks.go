package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/mucyo/paypack-orders/internal/domain/errors"
	"github.com/mucyo/paypack-orders/internal/domain/order"
	"github.com/mucyo/paypack-orders/internal/paypack"
)

// --- Order Repository Mock ---

// MockOrderRepository is a mock implementation of order.Repository. The
// in-memory default behavior mirrors the conditional-update semantics of the
// postgres repository, so race-loser paths can be exercised without a
// database.
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order
	byRef  map[string]uuid.UUID
	events map[uuid.UUID][]*order.Event

	CreateFunc           func(ctx context.Context, o *order.Order) error
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	GetByPaypackRefFunc  func(ctx context.Context, ref string) (*order.Order, error)
	AttachRefFunc        func(ctx context.Context, id uuid.UUID, ref string) (*order.Order, error)
	UpdateStatusFromFunc func(ctx context.Context, id uuid.UUID, expected, next order.Status) (*order.Order, error)
	ListFunc             func(ctx context.Context, filter order.ListFilter) ([]*order.Order, error)
	AddEventFunc         func(ctx context.Context, event *order.Event) error
	GetEventsFunc        func(ctx context.Context, orderID uuid.UUID) ([]*order.Event, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[uuid.UUID]*order.Order),
		byRef:  make(map[string]uuid.UUID),
		events: make(map[uuid.UUID][]*order.Event),
	}
}

// AddOrder pre-populates the mock with an order.
func (m *MockOrderRepository) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	if o.PaypackRef != nil {
		m.byRef[*o.PaypackRef] = o.ID
	}
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepository) GetByPaypackRef(ctx context.Context, ref string) (*order.Order, error) {
	if m.GetByPaypackRefFunc != nil {
		return m.GetByPaypackRefFunc(ctx, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[ref]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	cp := *m.orders[id]
	return &cp, nil
}

func (m *MockOrderRepository) AttachRef(ctx context.Context, id uuid.UUID, ref string) (*order.Order, error) {
	if m.AttachRefFunc != nil {
		return m.AttachRefFunc(ctx, id, ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	if _, taken := m.byRef[ref]; taken {
		return nil, domainErrors.ErrDuplicatePaypackRef
	}
	if o.Status != order.StatusPending || o.PaypackRef != nil {
		return nil, domainErrors.ErrInvalidStateTransition
	}
	o.PaypackRef = &ref
	o.Status = order.StatusProcessing
	o.UpdatedAt = time.Now()
	m.byRef[ref] = id
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected, next order.Status) (*order.Order, error) {
	if m.UpdateStatusFromFunc != nil {
		return m.UpdateStatusFromFunc(ctx, id, expected, next)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domainErrors.ErrOrderNotFound
	}
	if o.Status != expected {
		return nil, domainErrors.ErrInvalidStateTransition
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	if next == order.StatusCompleted || next == order.StatusFailed {
		completedAt := time.Now()
		o.CompletedAt = &completedAt
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepository) List(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		cp := *o
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockOrderRepository) AddEvent(ctx context.Context, event *order.Event) error {
	if m.AddEventFunc != nil {
		return m.AddEventFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.OrderID] = append(m.events[event.OrderID], event)
	return nil
}

func (m *MockOrderRepository) GetEvents(ctx context.Context, orderID uuid.UUID) ([]*order.Event, error) {
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(ctx, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[orderID], nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Paypack Gateway Mock ---

// MockGateway is a mock implementation of paypack.Gateway.
type MockGateway struct {
	mu    sync.Mutex
	calls int

	CashinFunc func(ctx context.Context, req paypack.CashinRequest) (*paypack.CashinResult, error)
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) Cashin(ctx context.Context, req paypack.CashinRequest) (*paypack.CashinResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.CashinFunc != nil {
		return m.CashinFunc(ctx, req)
	}
	return &paypack.CashinResult{Ref: uuid.New().String(), Status: "pending", Provider: "mtn"}, nil
}

// CashinCalls reports how many times Cashin was invoked.
func (m *MockGateway) CashinCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
