package controller

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mucyo/paypack-orders/internal/domain/order"
	"github.com/mucyo/paypack-orders/internal/infrastructure/observability"
	redisinfra "github.com/mucyo/paypack-orders/internal/infrastructure/redis"
	"github.com/mucyo/paypack-orders/internal/service"
	"github.com/mucyo/paypack-orders/internal/testutil"
)

const testWebhookSecret = "whsec-test"

func newWebhookTestHandler(orderRepo *testutil.MockOrderRepository) *WebhookController {
	svc := service.NewOrderService(orderRepo, testutil.NewMockGateway(), testutil.NewMockTransactionManager(), zerolog.Nop())
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())

	// Unreachable Redis: the replay cache degrades to a miss and every
	// delivery takes the repository path.
	cache := redisinfra.NewReplayCache(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), 0)

	return NewWebhookController(svc, cache, testWebhookSecret, metrics, zerolog.Nop())
}

func signBody(t *testing.T, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, ref, status string) []byte {
	t.Helper()
	body, err := json.Marshal(WebhookPayload{
		EventKind: "transaction:processed",
		Data:      WebhookData{Ref: ref, Status: status},
	})
	require.NoError(t, err)
	return body
}

func postWebhook(h *WebhookController, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paypack", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Paypack-Signature", signature)
	}
	rec := httptest.NewRecorder()
	h.HandlePaypackEvent(rec, req)
	return rec
}

func TestWebhook_SuccessfulPayment(t *testing.T) {
	orderRepo := testutil.NewMockOrderRepository()
	h := newWebhookTestHandler(orderRepo)

	o := testutil.NewProcessingOrder(2500, "0781234567", "txn-1")
	orderRepo.AddOrder(o)

	body := webhookBody(t, "txn-1", "successful")
	rec := postWebhook(h, body, signBody(t, body))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := orderRepo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, stored.Status)
}

func TestWebhook_FailedPayment(t *testing.T) {
	orderRepo := testutil.NewMockOrderRepository()
	h := newWebhookTestHandler(orderRepo)

	o := testutil.NewProcessingOrder(2500, "0781234567", "txn-1")
	orderRepo.AddOrder(o)

	body := webhookBody(t, "txn-1", "failed")
	rec := postWebhook(h, body, signBody(t, body))

	require.Equal(t, http.StatusOK, rec.Code)

	stored, _ := orderRepo.GetByID(context.Background(), o.ID)
	assert.Equal(t, order.StatusFailed, stored.Status)
}

func TestWebhook_BadSignature(t *testing.T) {
	orderRepo := testutil.NewMockOrderRepository()
	h := newWebhookTestHandler(orderRepo)

	o := testutil.NewProcessingOrder(2500, "0781234567", "txn-1")
	orderRepo.AddOrder(o)

	body := webhookBody(t, "txn-1", "successful")
	rec := postWebhook(h, body, "bm90LXRoZS1yaWdodC1zaWduYXR1cmU=")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stored, _ := orderRepo.GetByID(context.Background(), o.ID)
	assert.Equal(t, order.StatusProcessing, stored.Status, "unverified delivery must not touch the order")
}

func TestWebhook_MissingSignature(t *testing.T) {
	h := newWebhookTestHandler(testutil.NewMockOrderRepository())

	body := webhookBody(t, "txn-1", "successful")
	rec := postWebhook(h, body, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_TamperedBody(t *testing.T) {
	orderRepo := testutil.NewMockOrderRepository()
	h := newWebhookTestHandler(orderRepo)

	o := testutil.NewProcessingOrder(2500, "0781234567", "txn-1")
	orderRepo.AddOrder(o)

	body := webhookBody(t, "txn-1", "successful")
	signature := signBody(t, body)
	tampered := bytes.Replace(body, []byte("successful"), []byte("failed"), 1)
	rec := postWebhook(h, tampered, signature)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stored, _ := orderRepo.GetByID(context.Background(), o.ID)
	assert.Equal(t, order.StatusProcessing, stored.Status)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	h := newWebhookTestHandler(testutil.NewMockOrderRepository())

	body := []byte("{not json")
	rec := postWebhook(h, body, signBody(t, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_MissingRef(t *testing.T) {
	h := newWebhookTestHandler(testutil.NewMockOrderRepository())

	body := webhookBody(t, "", "successful")
	rec := postWebhook(h, body, signBody(t, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_UnknownRef_Acknowledged(t *testing.T) {
	h := newWebhookTestHandler(testutil.NewMockOrderRepository())

	body := webhookBody(t, "txn-unknown", "successful")
	rec := postWebhook(h, body, signBody(t, body))

	assert.Equal(t, http.StatusOK, rec.Code, "unknown refs are acknowledged, not failed")
}

func TestWebhook_NonFinalStatus_Ignored(t *testing.T) {
	orderRepo := testutil.NewMockOrderRepository()
	h := newWebhookTestHandler(orderRepo)

	o := testutil.NewProcessingOrder(2500, "0781234567", "txn-1")
	orderRepo.AddOrder(o)

	body := webhookBody(t, "txn-1", "pending")
	rec := postWebhook(h, body, signBody(t, body))

	assert.Equal(t, http.StatusOK, rec.Code)

	stored, _ := orderRepo.GetByID(context.Background(), o.ID)
	assert.Equal(t, order.StatusProcessing, stored.Status)
}

func TestWebhook_Redelivery_NoOp(t *testing.T) {
	orderRepo := testutil.NewMockOrderRepository()
	h := newWebhookTestHandler(orderRepo)

	o := testutil.NewProcessingOrder(2500, "0781234567", "txn-1")
	orderRepo.AddOrder(o)

	body := webhookBody(t, "txn-1", "successful")
	signature := signBody(t, body)

	rec := postWebhook(h, body, signature)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postWebhook(h, body, signature)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, _ := orderRepo.GetByID(context.Background(), o.ID)
	assert.Equal(t, order.StatusCompleted, stored.Status)

	events, _ := orderRepo.GetEvents(context.Background(), o.ID)
	assert.Len(t, events, 1, "redelivery must not append a second transition event")
}
