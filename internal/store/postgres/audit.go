package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathcanary/rollback-go/internal/domain"
)

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: marshal details: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_log (id, tenant_id, action, flag_key, previous_state, new_state, incident_id, request_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.TenantID, entry.Action, entry.FlagKey,
		entry.PreviousState, entry.NewState, entry.IncidentID, entry.RequestID,
		details, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("auditRepo.Record: %w", err)
	}

	return nil
}

func (r *AuditRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, action, flag_key, previous_state, new_state, incident_id, request_id, details, created_at
		 FROM audit_log WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var details []byte

		err = rows.Scan(
			&e.ID, &e.TenantID, &e.Action, &e.FlagKey,
			&e.PreviousState, &e.NewState, &e.IncidentID, &e.RequestID,
			&details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("auditRepo.ListByTenant: scan: %w", err)
		}
		if err = json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("auditRepo.ListByTenant: unmarshal details: %w", err)
		}

		entries = append(entries, &e)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByTenant: rows: %w", err)
	}

	return entries, nil
}
