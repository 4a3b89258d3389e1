package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domainErrors "github.com/mucyo/paypack-orders/internal/domain/errors"
	"github.com/mucyo/paypack-orders/internal/infrastructure/observability"
	redisinfra "github.com/mucyo/paypack-orders/internal/infrastructure/redis"
	"github.com/mucyo/paypack-orders/internal/paypack"
	"github.com/mucyo/paypack-orders/internal/service"
)

// maxWebhookBody caps how much of a webhook request is read before
// signature verification.
const maxWebhookBody = 1 << 20

// WebhookController handles Paypack transaction event deliveries.
type WebhookController struct {
	orderService  *service.OrderService
	replayCache   *redisinfra.ReplayCache
	webhookSecret string
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(
	orderService *service.OrderService,
	replayCache *redisinfra.ReplayCache,
	webhookSecret string,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *WebhookController {
	return &WebhookController{
		orderService:  orderService,
		replayCache:   replayCache,
		webhookSecret: webhookSecret,
		metrics:       metrics,
		logger:        logger,
	}
}

// HandlePaypackEvent handles POST /webhooks/paypack.
//
// The signature is verified over the raw request bytes before any parsing;
// an unverifiable delivery is rejected with 401 and no detail. Verified
// events are always acknowledged with 200, including unknown references and
// non-final statuses, so the provider stops retrying deliveries we will
// never act on.
func (h *WebhookController) HandlePaypackEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unreadable body", Code: "invalid_payload"})
		return
	}

	signature := r.Header.Get("X-Paypack-Signature")
	if signature == "" {
		signature = r.Header.Get("X-Signature")
	}
	if !paypack.VerifySignature(signature, raw, h.webhookSecret) {
		h.metrics.WebhookEventsTotal.WithLabelValues("unauthorized").Inc()
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed payload", Code: "invalid_payload"})
		return
	}
	if payload.Data.Ref == "" {
		h.metrics.WebhookEventsTotal.WithLabelValues("malformed").Inc()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing transaction ref", Code: "invalid_payload"})
		return
	}

	ref := payload.Data.Ref
	status := payload.Data.Status

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("paypack.ref", ref),
		attribute.String("paypack.status", status),
	)

	if h.replayCache.Seen(r.Context(), ref, status) {
		h.metrics.WebhookEventsTotal.WithLabelValues("replay").Inc()
		writeJSON(w, http.StatusOK, AckResponse{Message: "Webhook received."})
		return
	}

	res, err := h.orderService.ReconcileWebhook(r.Context(), ref, status)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnknownReference) {
			// Not our transaction; acknowledge so the provider stops
			// retrying.
			h.logger.Warn().
				Str("paypack_ref", ref).
				Str("event_kind", payload.EventKind).
				Msg("Webhook for unknown transaction reference ignored")
			h.metrics.WebhookEventsTotal.WithLabelValues("unknown_ref").Inc()
			writeJSON(w, http.StatusOK, AckResponse{Message: "Webhook received."})
			return
		}
		writeError(w, err)
		return
	}

	if res.Applied {
		h.metrics.WebhookEventsTotal.WithLabelValues("applied").Inc()
		h.metrics.OrderTransitions.WithLabelValues(
			"PROCESSING", string(res.Order.Status)).Inc()
	} else {
		h.metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
	}

	// Cache terminal deliveries so redelivered events short-circuit before
	// the database. Reconciliation stays idempotent without it.
	if res.Order.IsTerminal() {
		if err := h.replayCache.MarkSeen(r.Context(), ref, status); err != nil {
			h.logger.Debug().Err(err).Str("paypack_ref", ref).Msg("Failed to cache webhook delivery")
		}
	}

	writeJSON(w, http.StatusOK, AckResponse{Message: "Webhook received."})
}
