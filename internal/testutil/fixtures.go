package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/mucyo/paypack-orders/internal/domain/order"
)

func NewTestOrder(amount int64, phone string) *order.Order {
	now := time.Now()
	return &order.Order{
		ID:            uuid.New(),
		Amount:        amount,
		CustomerPhone: phone,
		Status:        order.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewProcessingOrder returns an order with a cash-in already initiated.
func NewProcessingOrder(amount int64, phone, ref string) *order.Order {
	o := NewTestOrder(amount, phone)
	o.Status = order.StatusProcessing
	o.PaypackRef = &ref
	return o
}

func NewCompletedOrder(amount int64, phone, ref string) *order.Order {
	o := NewProcessingOrder(amount, phone, ref)
	o.Status = order.StatusCompleted
	completedAt := time.Now()
	o.CompletedAt = &completedAt
	return o
}

func NewFailedOrder(amount int64, phone, ref string) *order.Order {
	o := NewProcessingOrder(amount, phone, ref)
	o.Status = order.StatusFailed
	completedAt := time.Now()
	o.CompletedAt = &completedAt
	return o
}

func StringPtr(s string) *string {
	return &s
}
