package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pathcanary/rollback-go/internal/domain"
	"github.com/pathcanary/rollback-go/internal/server/middleware"
)

type ListAuditLogInput struct {
	Limit int `query:"limit" default:"50" minimum:"1" maximum:"1000" doc:"Maximum number of entries returned, most recent first"`
}

type ListAuditLogOutput struct {
	Body struct {
		Logs  []*domain.AuditEntry `json:"logs"`
		Count int                  `json:"count"`
	}
}

func RegisterAuditRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-log",
		Method:      http.MethodGet,
		Path:        "/audit-log",
		Summary:     "List the authenticated tenant's audit trail",
		Tags:        []string{"Audit"},
	}, func(ctx context.Context, input *ListAuditLogInput) (*ListAuditLogOutput, error) {
		tenant, ok := middleware.TenantFromContext(ctx)
		if !ok {
			return nil, forbiddenError("missing tenant context")
		}

		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}

		logs, err := store.Audit().ListByTenant(ctx, tenant.ID, limit)
		if err != nil {
			return nil, internalError("failed to list audit log")
		}

		out := &ListAuditLogOutput{}
		out.Body.Logs = logs
		out.Body.Count = len(logs)
		return out, nil
	})
}
