package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequireTenant guards handlers that must never run without a resolved
// tenant, regardless of how the middleware stack above them is composed.
func RequireTenant() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := TenantFromContext(r.Context())
			if !ok || tenant == nil || tenant.ID == uuid.Nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"success":false,"error":"valid tenant required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
