package middleware

import (
	"context"

	"github.com/pathcanary/rollback-go/internal/domain"
)

type contextKey string

const (
	ContextKeyTenant    contextKey = "tenant"
	ContextKeyRequestID contextKey = "request_id"
)

func TenantFromContext(ctx context.Context) (*domain.Tenant, bool) {
	v, ok := ctx.Value(ContextKeyTenant).(*domain.Tenant)
	return v, ok
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ContextKeyRequestID).(string)
	return v
}
