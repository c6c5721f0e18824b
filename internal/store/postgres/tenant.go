package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathcanary/rollback-go/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

type TenantRepo struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) *TenantRepo {
	return &TenantRepo{pool: pool}
}

func (r *TenantRepo) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, slug, created_at)
		 VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.Slug, t.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenantRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("tenantRepo.Create: %w", err)
	}

	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	var t domain.Tenant

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at
		 FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenantRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetByID: %w", err)
	}

	return &t, nil
}

func (r *TenantRepo) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, prefix, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.Prefix, key.ExpiresAt, key.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenantRepo.CreateAPIKey: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("tenantRepo.CreateAPIKey: %w", err)
	}

	return nil
}

func (r *TenantRepo) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var k domain.APIKey

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, key_hash, prefix, expires_at, last_used_at, created_at
		 FROM api_keys WHERE prefix = $1`,
		prefix,
	).Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.Prefix, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenantRepo.GetAPIKeyByPrefix: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.GetAPIKeyByPrefix: %w", err)
	}

	return &k, nil
}

func (r *TenantRepo) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.UpdateAPIKeyLastUsed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.UpdateAPIKeyLastUsed: %w", domain.ErrNotFound)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
