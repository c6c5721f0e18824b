package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pathcanary/rollback-go/internal/domain"
)

// Webhook contract error strings. Clients match on these shapes, so they
// are fixed.
const (
	errMissingAuthHeader = "Missing or invalid Authorization header. Expected: Bearer <api_key>"
	errInvalidAPIKey     = "Invalid API key"
)

// KeyResolver maps a raw bearer credential to its tenant.
type KeyResolver interface {
	ResolveKey(ctx context.Context, rawKey string) (*domain.Tenant, *domain.APIKey, error)
}

// Auth resolves the Authorization bearer credential to a tenant and
// attaches it to the request context. Both failure modes respond 401 and
// record an AUTH_FAILED audit entry; flag state is never touched.
func Auth(resolver KeyResolver, audit domain.AuditRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey, ok := extractBearer(r)
			if !ok {
				recordAuthFailure(r, audit, "missing_header", "")
				writeAuthError(w, errMissingAuthHeader)
				return
			}

			tenant, _, err := resolver.ResolveKey(r.Context(), rawKey)
			if err != nil {
				recordAuthFailure(r, audit, "invalid_key", redactKey(rawKey))
				writeAuthError(w, errInvalidAPIKey)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyTenant, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") && auth[7:] != "" {
		return auth[7:], true
	}
	return "", false
}

// redactKey keeps only the lookup prefix of a credential for logs and
// audit entries.
func redactKey(rawKey string) string {
	if len(rawKey) <= 8 {
		return "***"
	}
	return rawKey[:8] + "..."
}

func recordAuthFailure(r *http.Request, audit domain.AuditRepository, reason, redacted string) {
	details := map[string]any{"reason": reason}
	if redacted != "" {
		details["key_prefix"] = redacted
	}

	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		TenantID:  uuid.Nil, // caller could not be resolved
		Action:    domain.AuditAuthFailed,
		RequestID: RequestIDFromContext(r.Context()),
		Details:   details,
		CreatedAt: time.Now(),
	}
	if err := audit.Record(r.Context(), entry); err != nil {
		log.Error().Err(err).Msg("auth: audit record failed")
	}

	log.Warn().
		Str("reason", reason).
		Str("key_prefix", redacted).
		Str("path", r.URL.Path).
		Msg("authentication failed")
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"` + msg + `"}`))
}
