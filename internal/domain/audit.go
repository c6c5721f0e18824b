package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAction classifies an audit entry. One entry is recorded per inbound
// webhook attempt; entries are append-only and never mutated.
type AuditAction string

const (
	AuditFlagToggled  AuditAction = "FLAG_TOGGLED"
	AuditFlagNotFound AuditAction = "FLAG_NOT_FOUND"
	AuditAuthFailed   AuditAction = "AUTH_FAILED"
	AuditWebhookError AuditAction = "WEBHOOK_ERROR"
)

type AuditEntry struct {
	ID            uuid.UUID      `json:"id"`
	TenantID      uuid.UUID      `json:"tenant_id"`
	Action        AuditAction    `json:"action"`
	FlagKey       string         `json:"flag_key,omitempty"`
	PreviousState *bool          `json:"previous_state,omitempty"`
	NewState      *bool          `json:"new_state,omitempty"`
	IncidentID    string         `json:"incident_id,omitempty"`
	RequestID     string         `json:"request_id"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error

	// ListByTenant returns up to limit entries for the tenant, most recent
	// first.
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]*AuditEntry, error)
}
