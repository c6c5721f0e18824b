package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FeatureFlag is a named boolean toggle scoped to a tenant. Flags are
// mutated only through SetState and are never deleted by this component.
type FeatureFlag struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Key          string    `json:"key"`
	Enabled      bool      `json:"enabled"`
	Environment  string    `json:"environment"`
	Description  string    `json:"description,omitempty"`
	UpdateReason string    `json:"update_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type FlagRepository interface {
	Create(ctx context.Context, f *FeatureFlag) error
	GetByKey(ctx context.Context, tenantID uuid.UUID, key string) (*FeatureFlag, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]*FeatureFlag, error)

	// SetState forces the flag to the target state, stamping UpdatedAt and
	// UpdateReason, and reports the state it replaced. The read-modify-write
	// is serialized per (tenant, key) so a caller never observes a torn
	// previous/new pair. Returns ErrNotFound if the flag does not exist.
	SetState(ctx context.Context, tenantID uuid.UUID, key string, enabled bool, reason string) (previous bool, updated *FeatureFlag, err error)
}
