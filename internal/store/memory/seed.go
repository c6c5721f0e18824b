package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pathcanary/rollback-go/internal/domain"
)

// SeedDemo provisions a demo tenant with a known API key and a handful of
// flags so the kit is testable out of the box. rawAPIKey is the bearer
// credential partners will send; it is hashed before storage.
func (s *Store) SeedDemo(ctx context.Context, rawAPIKey string) (*domain.Tenant, error) {
	if len(rawAPIKey) < 8 {
		return nil, fmt.Errorf("memory.SeedDemo: API key too short")
	}

	now := time.Now()
	tenant := &domain.Tenant{
		ID:        uuid.New(),
		Name:      "Demo Company",
		Slug:      "demo-company",
		CreatedAt: now,
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, fmt.Errorf("memory.SeedDemo: %w", err)
	}

	hash := sha256.Sum256([]byte(rawAPIKey))
	key := &domain.APIKey{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Name:      "demo",
		KeyHash:   hex.EncodeToString(hash[:]),
		Prefix:    rawAPIKey[:8],
		CreatedAt: now,
	}
	if err := s.tenants.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("memory.SeedDemo: %w", err)
	}

	flags := []*domain.FeatureFlag{
		{Key: "new-checkout-flow", Enabled: true, Environment: "production", Description: "Redesigned checkout funnel"},
		{Key: "ai-recommendations", Enabled: true, Environment: "production", Description: "ML-driven product recommendations"},
		{Key: "dark-mode", Enabled: false, Environment: "staging", Description: "Dark theme rollout"},
	}
	for _, f := range flags {
		f.ID = uuid.New()
		f.TenantID = tenant.ID
		f.CreatedAt = now
		f.UpdatedAt = now
		if err := s.flags.Create(ctx, f); err != nil {
			return nil, fmt.Errorf("memory.SeedDemo: %w", err)
		}
	}

	return tenant, nil
}
