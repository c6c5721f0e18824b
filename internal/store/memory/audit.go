package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pathcanary/rollback-go/internal/domain"
)

type AuditRepo struct {
	mu       sync.Mutex
	capacity int
	// entries per tenant, oldest first. Appends are lock-protected so
	// concurrent webhook handlers never interleave-corrupt the sequence.
	entries map[uuid.UUID][]*domain.AuditEntry
}

func NewAuditRepo(capacity int) *AuditRepo {
	return &AuditRepo{
		capacity: capacity,
		entries:  make(map[uuid.UUID][]*domain.AuditEntry),
	}
}

func (r *AuditRepo) Record(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	list := append(r.entries[entry.TenantID], &cp)

	// Bounded retention: evict oldest past the capacity.
	if len(list) > r.capacity {
		list = list[len(list)-r.capacity:]
	}
	r.entries[entry.TenantID] = list

	return nil
}

func (r *AuditRepo) ListByTenant(_ context.Context, tenantID uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.entries[tenantID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	// Most recent first.
	out := make([]*domain.AuditEntry, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}

	return out, nil
}
