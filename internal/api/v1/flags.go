package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pathcanary/rollback-go/internal/domain"
	"github.com/pathcanary/rollback-go/internal/server/middleware"
)

type ListFlagsOutput struct {
	Body struct {
		Flags []*domain.FeatureFlag `json:"flags"`
		Count int                   `json:"count"`
	}
}

type GetFlagInput struct {
	FlagKey string `path:"flagKey" doc:"Flag key"`
}

type GetFlagOutput struct {
	Body *domain.FeatureFlag
}

func RegisterFlagRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-flags",
		Method:      http.MethodGet,
		Path:        "/flags",
		Summary:     "List the authenticated tenant's feature flags",
		Tags:        []string{"Flags"},
	}, func(ctx context.Context, _ *struct{}) (*ListFlagsOutput, error) {
		tenant, ok := middleware.TenantFromContext(ctx)
		if !ok {
			return nil, forbiddenError("missing tenant context")
		}

		flags, err := store.Flags().List(ctx, tenant.ID)
		if err != nil {
			return nil, internalError("failed to list flags")
		}

		out := &ListFlagsOutput{}
		out.Body.Flags = flags
		out.Body.Count = len(flags)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-flag",
		Method:      http.MethodGet,
		Path:        "/flags/{flagKey}",
		Summary:     "Get one feature flag by key",
		Tags:        []string{"Flags"},
	}, func(ctx context.Context, input *GetFlagInput) (*GetFlagOutput, error) {
		tenant, ok := middleware.TenantFromContext(ctx)
		if !ok {
			return nil, forbiddenError("missing tenant context")
		}

		flag, err := store.Flags().GetByKey(ctx, tenant.ID, input.FlagKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, notFoundError(fmt.Sprintf("Feature flag '%s' not found", input.FlagKey))
			}
			return nil, internalError("failed to load flag")
		}

		return &GetFlagOutput{Body: flag}, nil
	})
}
