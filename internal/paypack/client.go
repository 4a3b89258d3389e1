package paypack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/mucyo/paypack-orders/internal/config"
	domainErrors "github.com/mucyo/paypack-orders/internal/domain/errors"
	"github.com/mucyo/paypack-orders/internal/infrastructure/observability"
	"github.com/mucyo/paypack-orders/pkg/retry"
)

// tokenSlack renews the agent token slightly before the server-side expiry.
const tokenSlack = 30 * time.Second

// Client is an HTTP Gateway implementation against the Paypack API.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	timeout      time.Duration
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[*CashinResult]
	retryCfg     retry.Config
	logger       zerolog.Logger
	metrics      *observability.Metrics

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Paypack client from configuration. The metrics argument
// may be nil.
func NewClient(cfg config.PaypackConfig, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	c := &Client{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      cfg.RequestTimeout,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		retryCfg: retry.Config{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     5 * time.Second,
			OnRetry: func(attempt uint, err error) {
				logger.Warn().Uint("attempt", attempt).Err(err).Msg("Retrying Paypack request")
			},
		},
		logger:  logger,
		metrics: metrics,
	}

	threshold := cfg.CircuitBreakerThreshold
	if threshold == 0 {
		threshold = 10
	}
	c.breaker = gobreaker.NewCircuitBreaker[*CashinResult](gobreaker.Settings{
		Name:        "paypack",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			}
		},
	})

	return c
}

// Cashin initiates a cash-in through Paypack. The call is bounded by the
// configured request timeout; transport-level failures are retried with
// backoff inside that bound.
func (c *Client) Cashin(ctx context.Context, req CashinRequest) (*CashinResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.breaker.Execute(func() (*CashinResult, error) {
		return retry.DoWithResult(ctx, c.retryCfg, func() (*CashinResult, error) {
			return c.doCashin(ctx, req)
		})
	})
	c.observe("cashin", start, err)
	if err != nil {
		return nil, c.classify(err)
	}
	return result, nil
}

func (c *Client) doCashin(ctx context.Context, req CashinRequest) (*CashinResult, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"amount": req.Amount,
		"number": req.PhoneNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cashin request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/cashin", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build cashin request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cashin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token invalidated server-side; force re-auth on the next attempt.
		c.invalidateToken()
		return nil, fmt.Errorf("cashin unauthorized: %w", domainErrors.ErrGatewayUnavailable)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("cashin server error (%d): %w", resp.StatusCode, domainErrors.ErrGatewayUnavailable)
	}
	if resp.StatusCode >= 400 {
		// The gateway rejected the request; repeating it cannot help.
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, retry.Unrecoverable(fmt.Errorf("cashin rejected (%d): %s: %w", resp.StatusCode, payload, domainErrors.ErrGatewayRejected))
	}

	var out struct {
		Ref      string `json:"ref"`
		Status   string `json:"status"`
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode cashin response: %w", err)
	}
	if out.Ref == "" {
		return nil, fmt.Errorf("cashin response missing ref: %w", domainErrors.ErrGatewayRejected)
	}

	return &CashinResult{Ref: out.Ref, Status: out.Status, Provider: out.Provider}, nil
}

// token returns a valid agent access token, authorizing against Paypack when
// the cached one is absent or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.accessToken, nil
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshal auth request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/agents/authorize", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth failed (%d): %w", resp.StatusCode, domainErrors.ErrGatewayUnavailable)
	}

	var out struct {
		Access  string `json:"access"`
		Expires int64  `json:"expires"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if out.Access == "" {
		return "", fmt.Errorf("auth response missing access token: %w", domainErrors.ErrGatewayUnavailable)
	}

	c.accessToken = out.Access
	if out.Expires > 0 {
		c.tokenExpiry = time.Unix(out.Expires, 0)
	} else {
		c.tokenExpiry = time.Now().Add(10 * time.Minute)
	}
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// classify maps transport-level failures onto the domain gateway errors.
func (c *Client) classify(err error) error {
	switch {
	case errors.Is(err, domainErrors.ErrGatewayRejected),
		errors.Is(err, domainErrors.ErrGatewayUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domainErrors.ErrGatewayTimeout, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: circuit open", domainErrors.ErrGatewayUnavailable)
	default:
		return fmt.Errorf("%w: %v", domainErrors.ErrGatewayUnavailable, err)
	}
}

func (c *Client) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.GatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
	c.metrics.GatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
