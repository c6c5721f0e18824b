package rollback_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathcanary/rollback-go/pkg/rollback"
)

func validRequest() *rollback.Request {
	return &rollback.Request{
		FlagKey:         "new-checkout-flow",
		Enabled:         false,
		IncidentID:      "test-123",
		IncidentMessage: "checkout conversion dropped 40%",
		Source:          rollback.Source,
	}
}

func newClient(t *testing.T, baseURL string, mutate func(*rollback.Config)) *rollback.Client {
	t.Helper()

	cfg := rollback.Config{
		BaseURL: baseURL,
		APIKey:  "pc_testkey_0123456789abcdef",
		Timeout: 2 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := rollback.New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURLAndAPIKey(t *testing.T) {
	t.Parallel()

	_, err := rollback.New(rollback.Config{APIKey: "k"})
	assert.Error(t, err)

	_, err = rollback.New(rollback.Config{BaseURL: "http://localhost:8080"})
	assert.Error(t, err)
}

func TestExecute_Success(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRequestID, gotContentType string
	var gotReq rollback.Request

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(rollback.HeaderRequestID)
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		require.Equal(t, rollback.WebhookPath, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"flag_key":       gotReq.FlagKey,
			"previous_state": true,
			"new_state":      false,
			"provider_metadata": map[string]any{
				"environment": "production",
			},
		})
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, nil)

	resp, err := c.Execute(context.Background(), validRequest())

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "new-checkout-flow", resp.FlagKey)
	assert.True(t, resp.PreviousState)
	assert.False(t, resp.NewState)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "production", resp.ProviderMetadata["environment"])

	assert.Equal(t, "Bearer pc_testkey_0123456789abcdef", gotAuth)
	assert.NotEmpty(t, gotRequestID, "correlation header must be set")
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, rollback.Source, gotReq.Source)
}

func TestExecute_DefaultsSourceWhenEmpty(t *testing.T) {
	t.Parallel()

	var gotReq rollback.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true, "flag_key": gotReq.FlagKey, "previous_state": false, "new_state": false,
		})
	}))
	defer ts.Close()

	req := validRequest()
	req.Source = ""

	_, err := newClient(t, ts.URL, nil).Execute(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, rollback.Source, gotReq.Source)
}

func TestExecute_BusinessFailure_ReturnedWithoutError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":        false,
			"flag_key":       "does-not-exist",
			"previous_state": false,
			"new_state":      false,
			"error":          "Feature flag 'does-not-exist' not found for customer acme",
		})
	}))
	defer ts.Close()

	resp, err := newClient(t, ts.URL, nil).Execute(context.Background(), validRequest())

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "does-not-exist")
}

func TestExecute_NonOKStatus_TransportError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"success":false,"error":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL, nil).Execute(context.Background(), validRequest())

	var transportErr *rollback.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusUnauthorized, transportErr.Status)
	assert.Contains(t, transportErr.Body, "Invalid API key")
}

func TestExecute_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing success", body: `{"flag_key":"f","previous_state":false,"new_state":false}`},
		{name: "missing flag_key", body: `{"success":true,"previous_state":false,"new_state":false}`},
		{name: "missing previous_state", body: `{"success":true,"flag_key":"f","new_state":false}`},
		{name: "missing new_state", body: `{"success":true,"flag_key":"f","previous_state":false}`},
		{name: "success wrong type", body: `{"success":"true","flag_key":"f","previous_state":false,"new_state":false}`},
		{name: "not an object", body: `[1,2,3]`},
		{name: "not JSON", body: `<html>oops</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := newClient(t, ts.URL, nil).Execute(context.Background(), validRequest())

			var schemaErr *rollback.SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestExecute_Timeout(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, func(cfg *rollback.Config) {
		cfg.Timeout = 30 * time.Millisecond
	})

	_, err := c.Execute(context.Background(), validRequest())

	var timeoutErr *rollback.TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestExecuteWithRetry_TransientThenSuccess(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) <= 2 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true, "flag_key": "new-checkout-flow", "previous_state": true, "new_state": false,
		})
	}))
	defer ts.Close()

	base := 50 * time.Millisecond
	c := newClient(t, ts.URL, func(cfg *rollback.Config) {
		cfg.RetryAttempts = 3
		cfg.BackoffBase = base
	})

	start := time.Now()
	resp, err := c.ExecuteWithRetry(context.Background(), validRequest())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int32(3), attempts.Load())
	// Two backoff sleeps: base*1 + base*2.
	assert.GreaterOrEqual(t, elapsed, 3*base)
}

func TestExecuteWithRetry_BusinessFailureNotRetried(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false, "flag_key": "does-not-exist", "previous_state": false, "new_state": false,
			"error": "Feature flag 'does-not-exist' not found for customer acme",
		})
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, func(cfg *rollback.Config) {
		cfg.RetryAttempts = 3
		cfg.BackoffBase = 10 * time.Millisecond
	})

	resp, err := c.ExecuteWithRetry(context.Background(), validRequest())

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, int32(1), attempts.Load(), "deterministic business failures must not be retried")
}

func TestExecuteWithRetry_Exhausted(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, func(cfg *rollback.Config) {
		cfg.RetryAttempts = 2
		cfg.BackoffBase = 5 * time.Millisecond
	})

	_, err := c.ExecuteWithRetry(context.Background(), validRequest())

	var exhausted *rollback.RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Equal(t, int32(2), attempts.Load())

	var transportErr *rollback.TransportError
	assert.ErrorAs(t, err, &transportErr, "aggregate must wrap the last underlying error")
	assert.Equal(t, http.StatusInternalServerError, transportErr.Status)
}

func TestExecuteWithRetry_CancelDuringBackoff(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, func(cfg *rollback.Config) {
		cfg.RetryAttempts = 3
		cfg.BackoffBase = 10 * time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.ExecuteWithRetry(ctx, validRequest())

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "backoff sleep must be cancelable")
	assert.ErrorIs(t, err, context.Canceled)
}
