package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	domainErrors "github.com/mucyo/paypack-orders/internal/domain/errors"
	"github.com/mucyo/paypack-orders/internal/domain/order"
	"github.com/mucyo/paypack-orders/internal/infrastructure/observability"
	"github.com/mucyo/paypack-orders/internal/service"
)

// OrderController handles order-related HTTP requests.
type OrderController struct {
	orderService *service.OrderService
	orderRepo    order.Repository
	metrics      *observability.Metrics
}

// NewOrderController creates a new OrderController.
func NewOrderController(
	orderService *service.OrderService,
	orderRepo order.Repository,
	metrics *observability.Metrics,
) *OrderController {
	return &OrderController{
		orderService: orderService,
		orderRepo:    orderRepo,
		metrics:      metrics,
	}
}

// Create handles POST /orders
func (h *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	o, err := h.orderService.CreateOrder(r.Context(), req.Amount, req.CustomerPhone)
	if err != nil {
		writeError(w, err)
		return
	}

	h.metrics.OrdersTotal.WithLabelValues(string(o.Status)).Inc()
	writeJSON(w, http.StatusCreated, MessageOrderResponse{
		Message: "Order created",
		Order:   FromOrder(o),
	})
}

// Pay handles POST /orders/{id}/pay
func (h *OrderController) Pay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	res, err := h.orderService.InitiatePayment(r.Context(), id)
	if err != nil {
		// Payment initiation treats an unknown order as a bad request, not a
		// missing resource.
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "order not found", Code: "not_found"})
			return
		}
		writeError(w, err)
		return
	}

	h.metrics.OrderTransitions.WithLabelValues(
		string(order.StatusPending), string(order.StatusProcessing)).Inc()
	writeJSON(w, http.StatusOK, MessageOrderResponse{
		Message: res.Message,
		Order:   FromOrder(res.Order),
	})
}

// Get handles GET /orders/{id}
func (h *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	o, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromOrder(o))
}

// List handles GET /orders
func (h *OrderController) List(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := order.Status(s)
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	filter.SortBy = r.URL.Query().Get("sort_by")
	filter.SortOrder = r.URL.Query().Get("sort_order")

	orders, err := h.orderService.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, FromOrder(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEvents handles GET /orders/{id}/events
func (h *OrderController) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid order id", Code: "invalid_id"})
		return
	}

	if _, err := h.orderService.GetOrder(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	events, err := h.orderRepo.GetEvents(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*OrderEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, FromEvent(e))
	}
	writeJSON(w, http.StatusOK, resp)
}
