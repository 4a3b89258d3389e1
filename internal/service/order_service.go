package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainErrors "github.com/mucyo/paypack-orders/internal/domain/errors"
	"github.com/mucyo/paypack-orders/internal/domain/order"
	"github.com/mucyo/paypack-orders/internal/paypack"
)

// confirmationMessage is returned to the client once a cash-in is initiated.
const confirmationMessage = "Payment initiated. Please check your phone to approve."

// TransactionManager runs a function inside a database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderService owns the order payment lifecycle: creation, payment
// initiation, and webhook reconciliation.
type OrderService struct {
	orderRepo order.Repository
	gateway   paypack.Gateway
	txManager TransactionManager
	logger    zerolog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo order.Repository,
	gateway paypack.Gateway,
	txManager TransactionManager,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		gateway:   gateway,
		txManager: txManager,
		logger:    logger,
	}
}

// CreateOrder stores a new order in the PENDING state. No payment side
// effects happen here.
func (s *OrderService) CreateOrder(ctx context.Context, amount int64, customerPhone string) (*order.Order, error) {
	o, err := order.New(amount, customerPhone)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Create(txCtx, o); err != nil {
			return err
		}
		return s.orderRepo.AddEvent(txCtx, &order.Event{
			ID: uuid.New(), OrderID: o.ID, EventType: "order.created",
			EventData: map[string]any{
				"amount": o.Amount,
				"status": string(o.Status),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("order_id", o.ID.String()).Int64("amount", o.Amount).Msg("Order created")
	return o, nil
}

// InitiatePaymentResult holds the outcome of a payment initiation.
type InitiatePaymentResult struct {
	Message string
	Order   *order.Order
}

// InitiatePayment starts a cash-in for a PENDING order.
//
// The status guard runs before the gateway is contacted, so an order that is
// already processing or settled can never trigger a second collection. The
// gateway reference is persisted together with the PROCESSING transition in
// one conditional update: status never shows PROCESSING without a ref, and an
// assigned ref is never dropped.
func (s *OrderService) InitiatePayment(ctx context.Context, orderID uuid.UUID) (*InitiatePaymentResult, error) {
	o, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status != order.StatusPending {
		return nil, invalidStateError(o.Status)
	}

	result, err := s.gateway.Cashin(ctx, paypack.CashinRequest{
		Amount:      o.Amount,
		PhoneNumber: o.CustomerPhone,
	})
	if err != nil {
		// Order untouched, still PENDING and retryable.
		return nil, fmt.Errorf("initiate cashin: %w", err)
	}

	var updated *order.Order
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err = s.orderRepo.AttachRef(txCtx, o.ID, result.Ref)
		if err != nil {
			return err
		}
		return s.orderRepo.AddEvent(txCtx, &order.Event{
			ID: uuid.New(), OrderID: o.ID, EventType: "payment.initiated",
			EventData: map[string]any{
				"paypack_ref": result.Ref,
				"provider":    result.Provider,
			},
		})
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidStateTransition) {
			// Lost the race to a concurrent initiation or webhook.
			s.logger.Warn().
				Str("order_id", o.ID.String()).
				Str("paypack_ref", result.Ref).
				Msg("Cash-in reference obtained but order left PENDING state concurrently")
			if current, getErr := s.orderRepo.GetByID(ctx, o.ID); getErr == nil {
				return nil, invalidStateError(current.Status)
			}
			return nil, invalidStateError(order.StatusProcessing)
		}
		return nil, err
	}

	s.logger.Info().
		Str("order_id", updated.ID.String()).
		Str("paypack_ref", result.Ref).
		Msg("Payment initiated")

	return &InitiatePaymentResult{Message: confirmationMessage, Order: updated}, nil
}

// ReconcileResult holds the outcome of a webhook reconciliation.
type ReconcileResult struct {
	Order *order.Order
	// Applied is true when this event caused a status transition; false for
	// ignored non-final statuses and already-settled orders.
	Applied bool
}

// ReconcileWebhook applies a provider-reported payment outcome to the order
// correlated by ref.
//
// Unknown references surface ErrUnknownReference, which callers treat as an
// ignorable event rather than a failure. Non-final reported statuses leave
// the order unchanged. A terminal transition is applied only when the order
// is still PROCESSING; redelivered events for settled orders are no-ops.
func (s *OrderService) ReconcileWebhook(ctx context.Context, ref, reportedStatus string) (*ReconcileResult, error) {
	o, err := s.orderRepo.GetByPaypackRef(ctx, ref)
	if err != nil {
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnknownReference, ref)
		}
		return nil, err
	}

	target, final := order.StatusFromWebhook(reportedStatus)
	if !final {
		s.logger.Info().
			Str("order_id", o.ID.String()).
			Str("reported_status", reportedStatus).
			Msg("Ignoring webhook with non-final status")
		return &ReconcileResult{Order: o}, nil
	}

	if o.IsTerminal() {
		// Redelivered or late event, already settled.
		return &ReconcileResult{Order: o}, nil
	}

	var updated *order.Order
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err = s.orderRepo.UpdateStatusFrom(txCtx, o.ID, order.StatusProcessing, target)
		if err != nil {
			return err
		}
		return s.orderRepo.AddEvent(txCtx, &order.Event{
			ID: uuid.New(), OrderID: o.ID, EventType: "order." + strings.ToLower(string(target)),
			EventData: map[string]any{
				"paypack_ref":     ref,
				"reported_status": reportedStatus,
			},
		})
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrInvalidStateTransition) {
			// Another delivery won the race; re-read and report the settled
			// order without mutating it further.
			current, getErr := s.orderRepo.GetByID(ctx, o.ID)
			if getErr != nil {
				return nil, getErr
			}
			if current.IsTerminal() {
				return &ReconcileResult{Order: current}, nil
			}
			return nil, invalidStateError(current.Status)
		}
		return nil, err
	}

	s.logger.Info().
		Str("order_id", updated.ID.String()).
		Str("status", string(updated.Status)).
		Msg("Order status updated from webhook")

	return &ReconcileResult{Order: updated, Applied: true}, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.orderRepo.GetByID(ctx, orderID)
}

// ListOrders lists orders with filters.
func (s *OrderService) ListOrders(ctx context.Context, filter order.ListFilter) ([]*order.Order, error) {
	return s.orderRepo.List(ctx, filter)
}

func invalidStateError(current order.Status) error {
	return domainErrors.NewDomainError(
		"invalid_state",
		fmt.Sprintf("order cannot be paid, current status: %s", current),
		domainErrors.ErrInvalidStateTransition,
	)
}
