package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathcanary/rollback-go/internal/domain"
)

type FlagRepo struct {
	pool *pgxpool.Pool
}

func NewFlagRepo(pool *pgxpool.Pool) *FlagRepo {
	return &FlagRepo{pool: pool}
}

func (r *FlagRepo) Create(ctx context.Context, f *domain.FeatureFlag) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feature_flags (id, tenant_id, key, enabled, environment, description, update_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		f.ID, f.TenantID, f.Key, f.Enabled, f.Environment, f.Description, f.UpdateReason, f.CreatedAt, f.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("flagRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("flagRepo.Create: %w", err)
	}

	return nil
}

func (r *FlagRepo) GetByKey(ctx context.Context, tenantID uuid.UUID, key string) (*domain.FeatureFlag, error) {
	var f domain.FeatureFlag

	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, key, enabled, environment, description, update_reason, created_at, updated_at
		 FROM feature_flags WHERE tenant_id = $1 AND key = $2`,
		tenantID, key,
	).Scan(&f.ID, &f.TenantID, &f.Key, &f.Enabled, &f.Environment, &f.Description, &f.UpdateReason, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("flagRepo.GetByKey: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("flagRepo.GetByKey: %w", err)
	}

	return &f, nil
}

func (r *FlagRepo) List(ctx context.Context, tenantID uuid.UUID) ([]*domain.FeatureFlag, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, key, enabled, environment, description, update_reason, created_at, updated_at
		 FROM feature_flags WHERE tenant_id = $1
		 ORDER BY key`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("flagRepo.List: %w", err)
	}
	defer rows.Close()

	var flags []*domain.FeatureFlag
	for rows.Next() {
		var f domain.FeatureFlag

		err = rows.Scan(&f.ID, &f.TenantID, &f.Key, &f.Enabled, &f.Environment, &f.Description, &f.UpdateReason, &f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("flagRepo.List: scan: %w", err)
		}

		flags = append(flags, &f)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("flagRepo.List: rows: %w", err)
	}

	return flags, nil
}

// SetState performs the transition as a single UPDATE ... RETURNING so the
// previous/new pair is read atomically; concurrent writers to the same row
// serialize on the row lock.
func (r *FlagRepo) SetState(ctx context.Context, tenantID uuid.UUID, key string, enabled bool, reason string) (bool, *domain.FeatureFlag, error) {
	var previous bool
	var f domain.FeatureFlag

	err := r.pool.QueryRow(ctx,
		`UPDATE feature_flags AS ff
		 SET enabled = $3, update_reason = $4, updated_at = now()
		 FROM (SELECT id, enabled FROM feature_flags WHERE tenant_id = $1 AND key = $2 FOR UPDATE) AS old
		 WHERE ff.id = old.id
		 RETURNING old.enabled, ff.id, ff.tenant_id, ff.key, ff.enabled, ff.environment, ff.description, ff.update_reason, ff.created_at, ff.updated_at`,
		tenantID, key, enabled, reason,
	).Scan(&previous, &f.ID, &f.TenantID, &f.Key, &f.Enabled, &f.Environment, &f.Description, &f.UpdateReason, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil, fmt.Errorf("flagRepo.SetState: %w", domain.ErrNotFound)
	}
	if err != nil {
		return false, nil, fmt.Errorf("flagRepo.SetState: %w", err)
	}

	return previous, &f, nil
}
