package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// HeaderRequestID is the correlation header callers attach so the audit
// trail can be joined with client-side logs.
const HeaderRequestID = "X-PathCanary-Request-ID"

// RequestID honors an inbound correlation identifier, generates one
// otherwise, and echoes it on the response.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(HeaderRequestID, id)
			ctx := context.WithValue(r.Context(), ContextKeyRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
