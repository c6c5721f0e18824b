// Package toggle implements the rollback state transition: look up the
// flag, force it to the target state, record the audit entry, and fan the
// change out to observers.
package toggle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pathcanary/rollback-go/internal/domain"
)

// Notifier pushes a human-readable rollback notification (e.g. to a Slack
// channel). Implementations must be safe for concurrent use.
type Notifier interface {
	NotifyRollback(ctx context.Context, tenant *domain.Tenant, ev domain.FlagEvent) error
}

// Service applies rollback transitions. Broker and notifier are optional;
// when set, delivery is best-effort and never affects the caller's result.
type Service struct {
	flags    domain.FlagRepository
	audit    domain.AuditRepository
	broker   domain.EventBroker
	notifier Notifier
}

func NewService(flags domain.FlagRepository, audit domain.AuditRepository, broker domain.EventBroker, notifier Notifier) *Service {
	return &Service{flags: flags, audit: audit, broker: broker, notifier: notifier}
}

// ApplyInput is a validated rollback command. Validation of the wire
// payload happens in the webhook handler, strictly before this point.
type ApplyInput struct {
	FlagKey         string
	Enabled         bool
	IncidentID      string
	IncidentMessage string
	RequestID       string
	Metadata        map[string]any
}

// Result reports a completed transition.
type Result struct {
	Previous bool
	Flag     *domain.FeatureFlag
	Duration time.Duration
}

// Apply forces the flag to the target state. The operation is a set, not
// a flip: applying the same target twice yields the same final state, with
// the second call's previous state equal to the first call's new state.
// Returns an error wrapping domain.ErrNotFound when the flag does not
// exist for the tenant; that outcome is recorded as FLAG_NOT_FOUND.
func (s *Service) Apply(ctx context.Context, tenant *domain.Tenant, in ApplyInput) (*Result, error) {
	start := time.Now()
	reason := fmt.Sprintf("Incident %s: %s", in.IncidentID, in.IncidentMessage)

	previous, flag, err := s.flags.SetState(ctx, tenant.ID, in.FlagKey, in.Enabled, reason)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.record(ctx, &domain.AuditEntry{
				ID:         uuid.New(),
				TenantID:   tenant.ID,
				Action:     domain.AuditFlagNotFound,
				FlagKey:    in.FlagKey,
				IncidentID: in.IncidentID,
				RequestID:  in.RequestID,
				Details:    in.Metadata,
				CreatedAt:  time.Now(),
			})
			return nil, fmt.Errorf("toggle.Apply: flag %q: %w", in.FlagKey, err)
		}

		s.record(ctx, &domain.AuditEntry{
			ID:         uuid.New(),
			TenantID:   tenant.ID,
			Action:     domain.AuditWebhookError,
			FlagKey:    in.FlagKey,
			IncidentID: in.IncidentID,
			RequestID:  in.RequestID,
			Details:    map[string]any{"error": err.Error()},
			CreatedAt:  time.Now(),
		})
		return nil, fmt.Errorf("toggle.Apply: %w", err)
	}

	s.record(ctx, &domain.AuditEntry{
		ID:            uuid.New(),
		TenantID:      tenant.ID,
		Action:        domain.AuditFlagToggled,
		FlagKey:       in.FlagKey,
		PreviousState: &previous,
		NewState:      &flag.Enabled,
		IncidentID:    in.IncidentID,
		RequestID:     in.RequestID,
		Details:       in.Metadata,
		CreatedAt:     time.Now(),
	})

	ev := domain.FlagEvent{
		TenantID:      tenant.ID,
		FlagKey:       flag.Key,
		PreviousState: previous,
		NewState:      flag.Enabled,
		IncidentID:    in.IncidentID,
		RequestID:     in.RequestID,
		OccurredAt:    flag.UpdatedAt,
	}
	s.publish(ctx, ev)
	s.notify(tenant, ev)

	return &Result{
		Previous: previous,
		Flag:     flag,
		Duration: time.Since(start),
	}, nil
}

// record appends an audit entry. A failing audit store is logged, not
// surfaced: the webhook response to the caller takes precedence.
func (s *Service) record(ctx context.Context, entry *domain.AuditEntry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		log.Error().
			Err(err).
			Str("action", string(entry.Action)).
			Str("request_id", entry.RequestID).
			Msg("toggle: audit record failed")
	}
}

func (s *Service) publish(ctx context.Context, ev domain.FlagEvent) {
	if s.broker == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("toggle: marshal flag event")
		return
	}
	if err := s.broker.Publish(ctx, domain.FlagChannel(ev.TenantID), payload); err != nil {
		log.Warn().Err(err).Str("flag_key", ev.FlagKey).Msg("toggle: publish flag event failed")
	}
}

// notify runs off the request path so a slow notification channel cannot
// eat into the handler's latency budget.
func (s *Service) notify(tenant *domain.Tenant, ev domain.FlagEvent) {
	if s.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.notifier.NotifyRollback(ctx, tenant, ev); err != nil {
			log.Warn().Err(err).Str("flag_key", ev.FlagKey).Msg("toggle: rollback notification failed")
		}
	}()
}
