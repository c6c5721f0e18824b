package rollback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultRetryAttempts = 3
	defaultBackoffBase   = 1000 * time.Millisecond
	defaultBackoffCap    = 10000 * time.Millisecond

	// maxResponseBytes bounds how much of a provider response is read.
	maxResponseBytes = 1 << 20
)

// Config holds client settings. BaseURL and APIKey are required; zero
// values elsewhere fall back to the documented defaults.
type Config struct {
	// BaseURL is the provider origin, e.g. "https://flags.example.com".
	BaseURL string
	// APIKey is the bearer credential issued by the provider.
	APIKey string
	// Timeout is the absolute budget for one exchange (default 5s).
	Timeout time.Duration
	// RetryAttempts caps ExecuteWithRetry (default 3).
	RetryAttempts int
	// BackoffBase is the first retry delay (default 1s). The n-th delay is
	// min(BackoffBase * 2^(n-1), BackoffCap).
	BackoffBase time.Duration
	// BackoffCap bounds any single delay (default 10s).
	BackoffCap time.Duration
	// HTTPClient overrides the underlying client (its Timeout is ignored;
	// the per-request context enforces Config.Timeout).
	HTTPClient *http.Client
	// Logger receives debug-level request/attempt logs. Disabled when unset.
	Logger *zerolog.Logger
}

// Client sends rollback requests to a single provider.
type Client struct {
	baseURL       string
	apiKey        string
	timeout       time.Duration
	retryAttempts int
	backoffBase   time.Duration
	backoffCap    time.Duration
	httpClient    *http.Client
	log           zerolog.Logger
}

// New validates cfg and returns a ready client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rollback.New: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("rollback.New: invalid BaseURL: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("rollback.New: APIKey is required")
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		timeout:       cfg.Timeout,
		retryAttempts: cfg.RetryAttempts,
		backoffBase:   cfg.BackoffBase,
		backoffCap:    cfg.BackoffCap,
		httpClient:    cfg.HTTPClient,
		log:           zerolog.Nop(),
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.retryAttempts <= 0 {
		c.retryAttempts = defaultRetryAttempts
	}
	if c.backoffBase <= 0 {
		c.backoffBase = defaultBackoffBase
	}
	if c.backoffCap <= 0 {
		c.backoffCap = defaultBackoffCap
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}

	return c, nil
}

// Execute sends one rollback request and returns the validated response.
// A structurally valid success:false body is returned without error; the
// caller inspects Response.Success. Failures are classified as
// *TimeoutError, *TransportError, or *SchemaError.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req.Source == "" {
		req.Source = Source
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rollback.Execute: marshal request: %w", err)
	}

	endpoint := c.baseURL + WebhookPath
	requestID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rollback.Execute: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)

	c.log.Debug().
		Str("flag_key", req.FlagKey).
		Bool("enabled", req.Enabled).
		Str("request_id", requestID).
		Msg("sending rollback request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{URL: endpoint, Err: err}
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, &TimeoutError{URL: endpoint, Err: err}
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{URL: endpoint, Err: err}
		}
		return nil, &TransportError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Status: resp.StatusCode, Body: string(raw)}
	}

	return parseResponse(raw)
}

// parseResponse enforces presence and types of the four required response
// fields before handing the body back to the caller.
func parseResponse(raw []byte) (*Response, error) {
	var probe struct {
		Success          *bool          `json:"success"`
		FlagKey          *string        `json:"flag_key"`
		PreviousState    *bool          `json:"previous_state"`
		NewState         *bool          `json:"new_state"`
		Error            string         `json:"error"`
		ProviderMetadata map[string]any `json:"provider_metadata"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &SchemaError{Reason: "body is not a valid JSON object", Err: err}
	}

	switch {
	case probe.Success == nil:
		return nil, &SchemaError{Reason: "missing required field 'success'"}
	case probe.FlagKey == nil:
		return nil, &SchemaError{Reason: "missing required field 'flag_key'"}
	case probe.PreviousState == nil:
		return nil, &SchemaError{Reason: "missing required field 'previous_state'"}
	case probe.NewState == nil:
		return nil, &SchemaError{Reason: "missing required field 'new_state'"}
	}

	return &Response{
		Success:          *probe.Success,
		FlagKey:          *probe.FlagKey,
		PreviousState:    *probe.PreviousState,
		NewState:         *probe.NewState,
		Error:            probe.Error,
		ProviderMetadata: probe.ProviderMetadata,
	}, nil
}

// ExecuteWithRetry retries Execute on timeout, transport, and schema
// failures. A structurally valid success:false response is a deterministic
// business outcome and is returned immediately, never retried. The backoff
// sleep is cancelable through ctx.
func (c *Client) ExecuteWithRetry(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		resp, err := c.Execute(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		c.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.retryAttempts).
			Msg("rollback attempt failed")

		if attempt == c.retryAttempts {
			break
		}

		delay := c.backoffDelay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &RetryExhaustedError{Attempts: attempt, Last: ctx.Err()}
		}
	}

	return nil, &RetryExhaustedError{Attempts: c.retryAttempts, Last: lastErr}
}

// backoffDelay returns min(base * 2^(attempt-1), cap).
func (c *Client) backoffDelay(attempt int) time.Duration {
	d := c.backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.backoffCap {
			return c.backoffCap
		}
	}
	if d > c.backoffCap {
		return c.backoffCap
	}
	return d
}
