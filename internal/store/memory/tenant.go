package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pathcanary/rollback-go/internal/domain"
)

type TenantRepo struct {
	mu           sync.RWMutex
	tenants      map[uuid.UUID]*domain.Tenant
	keysByPrefix map[string]*domain.APIKey
	keysByID     map[uuid.UUID]*domain.APIKey
}

func NewTenantRepo() *TenantRepo {
	return &TenantRepo{
		tenants:      make(map[uuid.UUID]*domain.Tenant),
		keysByPrefix: make(map[string]*domain.APIKey),
		keysByID:     make(map[uuid.UUID]*domain.APIKey),
	}
}

func (r *TenantRepo) Create(_ context.Context, t *domain.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[t.ID]; ok {
		return fmt.Errorf("tenantRepo.Create: id %s: %w", t.ID, domain.ErrConflict)
	}

	cp := *t
	r.tenants[t.ID] = &cp
	return nil
}

func (r *TenantRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenantRepo.GetByID: id %s: %w", id, domain.ErrNotFound)
	}

	cp := *t
	return &cp, nil
}

func (r *TenantRepo) CreateAPIKey(_ context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keysByPrefix[key.Prefix]; ok {
		return fmt.Errorf("tenantRepo.CreateAPIKey: prefix %s: %w", key.Prefix, domain.ErrConflict)
	}

	cp := *key
	r.keysByPrefix[key.Prefix] = &cp
	r.keysByID[key.ID] = &cp
	return nil
}

func (r *TenantRepo) GetAPIKeyByPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keysByPrefix[prefix]
	if !ok {
		return nil, fmt.Errorf("tenantRepo.GetAPIKeyByPrefix: %w", domain.ErrNotFound)
	}

	cp := *key
	return &cp, nil
}

func (r *TenantRepo) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keysByID[id]
	if !ok {
		return fmt.Errorf("tenantRepo.UpdateAPIKeyLastUsed: id %s: %w", id, domain.ErrNotFound)
	}

	now := time.Now()
	key.LastUsedAt = &now
	return nil
}
