package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FlagEvent is published on every successful toggle so live observers
// (WebSocket streams, chat notifications) can react. Delivery is
// best-effort and never affects the webhook response.
type FlagEvent struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	FlagKey       string    `json:"flag_key"`
	PreviousState bool      `json:"previous_state"`
	NewState      bool      `json:"new_state"`
	IncidentID    string    `json:"incident_id"`
	RequestID     string    `json:"request_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventBroker fans flag events out to subscribers. Implementations:
// an in-process broker for single-node deployments and a Redis pub/sub
// broker for multi-node ones.
type EventBroker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// FlagChannel returns the event channel name for a tenant's flag events.
func FlagChannel(tenantID uuid.UUID) string {
	return "flags:" + tenantID.String()
}
