package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pathcanary/rollback-go/internal/domain"
)

type FlagRepo struct {
	// mu serializes all flag writes. A store-wide lock is a superset of the
	// required per-(tenant,key) serialization and keeps the reference
	// implementation obvious; readers get copies, never shared pointers.
	mu    sync.RWMutex
	flags map[uuid.UUID]map[string]*domain.FeatureFlag
}

func NewFlagRepo() *FlagRepo {
	return &FlagRepo{flags: make(map[uuid.UUID]map[string]*domain.FeatureFlag)}
}

func (r *FlagRepo) Create(_ context.Context, f *domain.FeatureFlag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey, ok := r.flags[f.TenantID]
	if !ok {
		byKey = make(map[string]*domain.FeatureFlag)
		r.flags[f.TenantID] = byKey
	}
	if _, exists := byKey[f.Key]; exists {
		return fmt.Errorf("flagRepo.Create: key %q: %w", f.Key, domain.ErrConflict)
	}

	cp := *f
	byKey[f.Key] = &cp
	return nil
}

func (r *FlagRepo) GetByKey(_ context.Context, tenantID uuid.UUID, key string) (*domain.FeatureFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flags[tenantID][key]
	if !ok {
		return nil, fmt.Errorf("flagRepo.GetByKey: key %q: %w", key, domain.ErrNotFound)
	}

	cp := *f
	return &cp, nil
}

func (r *FlagRepo) List(_ context.Context, tenantID uuid.UUID) ([]*domain.FeatureFlag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byKey := r.flags[tenantID]
	out := make([]*domain.FeatureFlag, 0, len(byKey))
	for _, f := range byKey {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	return out, nil
}

func (r *FlagRepo) SetState(_ context.Context, tenantID uuid.UUID, key string, enabled bool, reason string) (bool, *domain.FeatureFlag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flags[tenantID][key]
	if !ok {
		return false, nil, fmt.Errorf("flagRepo.SetState: key %q: %w", key, domain.ErrNotFound)
	}

	previous := f.Enabled
	f.Enabled = enabled
	f.UpdateReason = reason
	f.UpdatedAt = time.Now()

	cp := *f
	return previous, &cp, nil
}
