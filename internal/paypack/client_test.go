package paypack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mucyo/paypack-orders/internal/config"
	domainErrors "github.com/mucyo/paypack-orders/internal/domain/errors"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(config.PaypackConfig{
		BaseURL:               baseURL,
		ClientID:              "client-id",
		ClientSecret:          "client-secret",
		RequestTimeout:        5 * time.Second,
		MaxRetries:            1,
		RetryDelay:            time.Millisecond,
		CircuitBreakerTimeout: time.Second,
	}, zerolog.Nop(), nil)
}

func paypackStub(t *testing.T, cashin http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var authCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/agents/authorize", func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "client-id", creds["client_id"])
		json.NewEncoder(w).Encode(map[string]any{
			"access":  "test-token",
			"expires": time.Now().Add(time.Hour).Unix(),
		})
	})
	mux.HandleFunc("/transactions/cashin", cashin)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &authCalls
}

func TestClient_Cashin_Success(t *testing.T) {
	srv, authCalls := paypackStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(500), body["amount"])
		assert.Equal(t, "0788000000", body["number"])

		json.NewEncoder(w).Encode(map[string]any{
			"ref":      "abc123",
			"status":   "pending",
			"provider": "mtn",
		})
	})

	c := newTestClient(t, srv.URL)
	result, err := c.Cashin(context.Background(), CashinRequest{Amount: 500, PhoneNumber: "0788000000"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", result.Ref)
	assert.Equal(t, "pending", result.Status)
	assert.Equal(t, int64(1), authCalls.Load())
}

func TestClient_Cashin_TokenCached(t *testing.T) {
	srv, authCalls := paypackStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ref": "ref-1", "status": "pending"})
	})

	c := newTestClient(t, srv.URL)
	ctx := context.Background()
	_, err := c.Cashin(ctx, CashinRequest{Amount: 100, PhoneNumber: "0788000000"})
	require.NoError(t, err)
	_, err = c.Cashin(ctx, CashinRequest{Amount: 200, PhoneNumber: "0788000000"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), authCalls.Load())
}

func TestClient_Cashin_ServerError(t *testing.T) {
	srv, _ := paypackStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Cashin(context.Background(), CashinRequest{Amount: 500, PhoneNumber: "0788000000"})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)
}

func TestClient_Cashin_Rejected(t *testing.T) {
	srv, _ := paypackStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid number"}`))
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Cashin(context.Background(), CashinRequest{Amount: 500, PhoneNumber: "bad"})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayRejected)
}

func TestClient_Cashin_MissingRef(t *testing.T) {
	srv, _ := paypackStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	})

	c := newTestClient(t, srv.URL)
	_, err := c.Cashin(context.Background(), CashinRequest{Amount: 500, PhoneNumber: "0788000000"})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayRejected)
}

func TestClient_Cashin_ConnectionRefused(t *testing.T) {
	srv, _ := paypackStub(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Cashin(context.Background(), CashinRequest{Amount: 500, PhoneNumber: "0788000000"})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)
}
