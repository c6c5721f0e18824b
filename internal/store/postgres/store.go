// Package postgres implements the domain repositories on PostgreSQL via
// pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathcanary/rollback-go/internal/domain"
)

type Store struct {
	pool    *pgxpool.Pool
	tenants *TenantRepo
	flags   *FlagRepo
	audit   *AuditRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:    pool,
		tenants: NewTenantRepo(pool),
		flags:   NewFlagRepo(pool),
		audit:   NewAuditRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Tenants() domain.TenantRepository { return s.tenants }
func (s *Store) Flags() domain.FlagRepository     { return s.flags }
func (s *Store) Audit() domain.AuditRepository    { return s.audit }
