package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for order persistence.
//
// Status-mutating methods are conditional writes: they succeed only when the
// stored status still matches the expected one, so concurrent mutations of the
// same order cannot both win.
type Repository interface {
	// Create creates a new order
	Create(ctx context.Context, o *Order) error

	// GetByID retrieves an order by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// GetByPaypackRef retrieves an order by its gateway reference
	GetByPaypackRef(ctx context.Context, ref string) (*Order, error)

	// AttachRef atomically assigns the gateway reference and moves the order
	// from PENDING to PROCESSING. Returns ErrInvalidStateTransition when the
	// order is no longer PENDING.
	AttachRef(ctx context.Context, id uuid.UUID, ref string) (*Order, error)

	// UpdateStatusFrom atomically transitions the order from the expected
	// status to the new one. Returns ErrInvalidStateTransition when the stored
	// status no longer matches expected.
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, expected, next Status) (*Order, error)

	// List lists orders with filters
	List(ctx context.Context, filter ListFilter) ([]*Order, error)

	// AddEvent adds an order event for audit trail
	AddEvent(ctx context.Context, event *Event) error

	// GetEvents retrieves events for an order
	GetEvents(ctx context.Context, orderID uuid.UUID) ([]*Event, error)
}

// ListFilter defines filters for listing orders
type ListFilter struct {
	Status    *Status
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Event represents an event in the order lifecycle
type Event struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	EventType string
	EventData map[string]any
	CreatedAt time.Time
}
