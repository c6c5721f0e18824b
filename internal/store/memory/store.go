// Package memory is the reference in-memory store for the rollback
// provider. It exists so the kit runs with zero infrastructure; real
// deployments substitute the postgres store behind the same repository
// interfaces.
package memory

import (
	"github.com/pathcanary/rollback-go/internal/domain"
)

// Store aggregates the in-memory repositories.
type Store struct {
	tenants *TenantRepo
	flags   *FlagRepo
	audit   *AuditRepo
}

// New creates an empty store. auditCapacity bounds the per-tenant audit
// retention window (most-recent-N kept); values < 1 fall back to 1000.
func New(auditCapacity int) *Store {
	if auditCapacity < 1 {
		auditCapacity = 1000
	}
	return &Store{
		tenants: NewTenantRepo(),
		flags:   NewFlagRepo(),
		audit:   NewAuditRepo(auditCapacity),
	}
}

func (s *Store) Tenants() domain.TenantRepository { return s.tenants }
func (s *Store) Flags() domain.FlagRepository     { return s.flags }
func (s *Store) Audit() domain.AuditRepository    { return s.audit }

// Close satisfies the provider's store lifecycle; nothing to release.
func (s *Store) Close() {}
