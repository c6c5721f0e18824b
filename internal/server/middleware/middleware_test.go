package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathcanary/rollback-go/internal/domain"
	"github.com/pathcanary/rollback-go/internal/server/middleware"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockResolver struct {
	resolveFunc func(ctx context.Context, rawKey string) (*domain.Tenant, *domain.APIKey, error)
}

func (m *mockResolver) ResolveKey(ctx context.Context, rawKey string) (*domain.Tenant, *domain.APIKey, error) {
	return m.resolveFunc(ctx, rawKey)
}

type mockAuditRepo struct {
	entries []*domain.AuditEntry
}

func (m *mockAuditRepo) Record(_ context.Context, entry *domain.AuditEntry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByTenant(_ context.Context, _ uuid.UUID, _ int) ([]*domain.AuditEntry, error) {
	return m.entries, nil
}

// contextHandler captures context values set by middleware.
type contextHandler struct {
	tenant    *domain.Tenant
	requestID string
	called    bool
}

func (h *contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.tenant, _ = middleware.TenantFromContext(r.Context())
	h.requestID = middleware.RequestIDFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func setTenant(r *http.Request, tenant *domain.Tenant) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ContextKeyTenant, tenant)
	return r.WithContext(ctx)
}

func knownTenantResolver(rawKey string, tenant *domain.Tenant) *mockResolver {
	return &mockResolver{
		resolveFunc: func(_ context.Context, k string) (*domain.Tenant, *domain.APIKey, error) {
			if k == rawKey {
				return tenant, &domain.APIKey{ID: uuid.New(), TenantID: tenant.ID}, nil
			}
			return nil, nil, domain.ErrUnauthorized
		},
	}
}

// ===========================================================================
// Auth middleware
// ===========================================================================

func TestAuth_ValidBearer_PopulatesTenant(t *testing.T) {
	t.Parallel()

	tenant := &domain.Tenant{ID: uuid.New(), Slug: "acme"}
	audit := &mockAuditRepo{}
	capture := &contextHandler{}

	handler := middleware.Auth(knownTenantResolver("pc_valid_key_12345", tenant), audit)(capture)

	req := httptest.NewRequest(http.MethodPost, "/webhook/pathcanary", http.NoBody)
	req.Header.Set("Authorization", "Bearer pc_valid_key_12345")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.True(t, capture.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, capture.tenant)
	assert.Equal(t, tenant.ID, capture.tenant.ID)
	assert.Empty(t, audit.entries, "successful auth records no audit entry")
}

func TestAuth_MissingHeader_Returns401AndAudits(t *testing.T) {
	t.Parallel()

	audit := &mockAuditRepo{}
	capture := &contextHandler{}
	handler := middleware.Auth(knownTenantResolver("k", &domain.Tenant{ID: uuid.New()}), audit)(capture)

	req := httptest.NewRequest(http.MethodPost, "/webhook/pathcanary", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.False(t, capture.called, "inner handler must not run")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing or invalid Authorization header")
	assert.Contains(t, rec.Body.String(), `"success":false`)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, domain.AuditAuthFailed, audit.entries[0].Action)
	assert.Equal(t, "missing_header", audit.entries[0].Details["reason"])
}

func TestAuth_MalformedHeader_Returns401(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
	}{
		{name: "wrong scheme", header: "Basic pc_valid_key_12345"},
		{name: "no token", header: "Bearer "},
		{name: "bare token", header: "pc_valid_key_12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			audit := &mockAuditRepo{}
			handler := middleware.Auth(knownTenantResolver("pc_valid_key_12345", &domain.Tenant{ID: uuid.New()}), audit)(okHandler)

			req := httptest.NewRequest(http.MethodPost, "/webhook/pathcanary", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Len(t, audit.entries, 1)
			assert.Equal(t, domain.AuditAuthFailed, audit.entries[0].Action)
		})
	}
}

func TestAuth_UnknownKey_Returns401InvalidAPIKey(t *testing.T) {
	t.Parallel()

	audit := &mockAuditRepo{}
	handler := middleware.Auth(knownTenantResolver("pc_valid_key_12345", &domain.Tenant{ID: uuid.New()}), audit)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/webhook/pathcanary", http.NoBody)
	req.Header.Set("Authorization", "Bearer pc_wrong_key_99999")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid API key")

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "invalid_key", audit.entries[0].Details["reason"])
	// Never record the secret in full.
	keyPrefix, _ := audit.entries[0].Details["key_prefix"].(string)
	assert.NotContains(t, keyPrefix, "pc_wrong_key_99999")
	assert.Equal(t, "pc_wrong...", keyPrefix)
}

func TestAuth_LowercaseBearerAccepted(t *testing.T) {
	t.Parallel()

	tenant := &domain.Tenant{ID: uuid.New(), Slug: "acme"}
	handler := middleware.Auth(knownTenantResolver("pc_valid_key_12345", tenant), &mockAuditRepo{})(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/webhook/pathcanary", http.NoBody)
	req.Header.Set("Authorization", "bearer pc_valid_key_12345")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// ===========================================================================
// RequestID middleware
// ===========================================================================

func TestRequestID_HonorsInboundHeader(t *testing.T) {
	t.Parallel()

	capture := &contextHandler{}
	handler := middleware.RequestID()(capture)

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.Header.Set(middleware.HeaderRequestID, "client-generated-id")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "client-generated-id", capture.requestID)
	assert.Equal(t, "client-generated-id", rec.Header().Get(middleware.HeaderRequestID))
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	t.Parallel()

	capture := &contextHandler{}
	handler := middleware.RequestID()(capture)

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.NotEmpty(t, capture.requestID)
	_, err := uuid.Parse(capture.requestID)
	assert.NoError(t, err)
	assert.Equal(t, capture.requestID, rec.Header().Get(middleware.HeaderRequestID))
}

// ===========================================================================
// RequireTenant middleware
// ===========================================================================

func TestRequireTenant_PassesWithTenant(t *testing.T) {
	t.Parallel()

	handler := middleware.RequireTenant()(okHandler)
	req := setTenant(httptest.NewRequest(http.MethodGet, "/", http.NoBody), &domain.Tenant{ID: uuid.New()})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireTenant_BlocksWhenAbsent(t *testing.T) {
	t.Parallel()

	handler := middleware.RequireTenant()(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid tenant required")
}

// ===========================================================================
// RateLimit middleware
// ===========================================================================

func TestRateLimit_NoTenant_PassesThrough(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(context.Background(), 1, 1)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	tenant := &domain.Tenant{ID: uuid.New()}
	handler := middleware.RateLimit(context.Background(), 0.001, 2)(okHandler)

	for i := range 2 {
		req := setTenant(httptest.NewRequest(http.MethodGet, "/", http.NoBody), tenant)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	req := setTenant(httptest.NewRequest(http.MethodGet, "/", http.NoBody), tenant)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_IndependentPerTenant(t *testing.T) {
	t.Parallel()

	tenantA := &domain.Tenant{ID: uuid.New()}
	tenantB := &domain.Tenant{ID: uuid.New()}
	handler := middleware.RateLimit(context.Background(), 0.001, 1)(okHandler)

	reqA := setTenant(httptest.NewRequest(http.MethodGet, "/", http.NoBody), tenantA)
	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, reqA)
	require.Equal(t, http.StatusOK, recA.Code)

	reqA2 := setTenant(httptest.NewRequest(http.MethodGet, "/", http.NoBody), tenantA)
	recA2 := httptest.NewRecorder()
	handler.ServeHTTP(recA2, reqA2)
	assert.Equal(t, http.StatusTooManyRequests, recA2.Code)

	reqB := setTenant(httptest.NewRequest(http.MethodGet, "/", http.NoBody), tenantB)
	recB := httptest.NewRecorder()

	handler.ServeHTTP(recB, reqB)

	assert.Equal(t, http.StatusOK, recB.Code)
}
