package controller

import (
	"time"

	"github.com/mucyo/paypack-orders/internal/domain/order"
)

// --- Request DTOs ---

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	CustomerPhone string `json:"customer_phone" validate:"required,min=10"`
}

// WebhookPayload is the event body Paypack posts on transaction updates.
type WebhookPayload struct {
	EventKind string      `json:"event_kind"`
	Data      WebhookData `json:"data"`
}

// WebhookData carries the transaction fields used for reconciliation.
type WebhookData struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

// --- Response DTOs ---

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID            string     `json:"id"`
	Amount        int64      `json:"amount"`
	CustomerPhone string     `json:"customer_phone"`
	Status        string     `json:"status"`
	PaypackRef    *string    `json:"paypack_ref,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// MessageOrderResponse wraps an order with a human-readable message, used by
// the create and pay endpoints.
type MessageOrderResponse struct {
	Message string         `json:"message"`
	Order   *OrderResponse `json:"order"`
}

// OrderEventResponse represents an audit trail entry.
type OrderEventResponse struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AckResponse acknowledges a webhook delivery.
type AckResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromOrder converts a domain order to API response.
func FromOrder(o *order.Order) *OrderResponse {
	return &OrderResponse{
		ID:            o.ID.String(),
		Amount:        o.Amount,
		CustomerPhone: o.CustomerPhone,
		Status:        string(o.Status),
		PaypackRef:    o.PaypackRef,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CompletedAt:   o.CompletedAt,
	}
}

// FromEvent converts a domain order event to API response.
func FromEvent(e *order.Event) *OrderEventResponse {
	return &OrderEventResponse{
		ID:        e.ID.String(),
		OrderID:   e.OrderID.String(),
		EventType: e.EventType,
		EventData: e.EventData,
		CreatedAt: e.CreatedAt,
	}
}
