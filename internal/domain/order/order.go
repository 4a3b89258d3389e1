package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mucyo/paypack-orders/internal/domain/errors"
)

// Status represents the order status in the payment state machine
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// minPhoneLength is the shortest customer phone accepted at the domain level.
// Full format validation belongs to the transport layer.
const minPhoneLength = 10

// Order represents a customer order paid through Paypack mobile money.
type Order struct {
	ID            uuid.UUID
	Amount        int64 // RWF, no minor unit
	CustomerPhone string
	Status        Status
	PaypackRef    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// New creates a new order in the PENDING state with no gateway reference.
func New(amount int64, customerPhone string) (*Order, error) {
	if amount <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if len(customerPhone) < minPhoneLength {
		return nil, errors.NewValidationError("customer_phone", "must be at least 10 characters")
	}

	now := time.Now()
	return &Order{
		ID:            uuid.New(),
		Amount:        amount,
		CustomerPhone: customerPhone,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransitionTo checks if the order can transition to the given status
func (o *Order) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPending: {
			StatusProcessing,
		},
		StatusProcessing: {
			StatusCompleted,
			StatusFailed,
		},
		StatusCompleted: {}, // Terminal state
		StatusFailed:    {}, // Terminal state
	}

	allowedTransitions, exists := transitions[o.Status]
	if !exists {
		return false
	}

	for _, allowed := range allowedTransitions {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the order to a new status
func (o *Order) TransitionTo(newStatus Status) error {
	if !o.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(o.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	o.Status = newStatus
	o.UpdatedAt = time.Now()

	if newStatus == StatusCompleted || newStatus == StatusFailed {
		now := time.Now()
		o.CompletedAt = &now
	}

	return nil
}

// MarkProcessing assigns the gateway reference and moves the order to
// PROCESSING. The reference is set exactly once, at this transition.
func (o *Order) MarkProcessing(paypackRef string) error {
	if paypackRef == "" {
		return errors.NewValidationError("paypack_ref", "cannot be empty")
	}
	if o.PaypackRef != nil {
		return errors.NewDomainError(
			"ref_already_assigned",
			"order already has a paypack reference",
			errors.ErrInvalidStateTransition,
		)
	}
	if err := o.TransitionTo(StatusProcessing); err != nil {
		return err
	}
	o.PaypackRef = &paypackRef
	return nil
}

// MarkCompleted transitions the order to completed status
func (o *Order) MarkCompleted() error {
	return o.TransitionTo(StatusCompleted)
}

// MarkFailed transitions the order to failed status
func (o *Order) MarkFailed() error {
	return o.TransitionTo(StatusFailed)
}

// IsTerminal checks if the order is in a terminal state
func (o *Order) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusFailed
}

// StatusFromWebhook maps a provider-reported transaction status to a target
// order status. The second return is false when the reported status is not a
// final one, in which case the event must be ignored.
func StatusFromWebhook(reported string) (Status, bool) {
	switch strings.ToLower(reported) {
	case "successful":
		return StatusCompleted, true
	case "failed":
		return StatusFailed, true
	default:
		return "", false
	}
}
