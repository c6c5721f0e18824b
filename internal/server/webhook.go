package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pathcanary/rollback-go/internal/domain"
	"github.com/pathcanary/rollback-go/internal/server/middleware"
	"github.com/pathcanary/rollback-go/internal/toggle"
	"github.com/pathcanary/rollback-go/pkg/rollback"
)

// maxWebhookBody bounds inbound payload size.
const maxWebhookBody = 64 << 10

// webhookHandler serves POST /webhook/pathcanary: strict payload
// validation, then the idempotent toggle transition. Authentication has
// already run in the middleware stack.
type webhookHandler struct {
	toggles *toggle.Service
	// budget is the hard ceiling on handler latency (the caller applies
	// its own timeout, so this is part of the contract, not a guideline).
	budget time.Duration
}

func newWebhookHandler(toggles *toggle.Service, budget time.Duration) *webhookHandler {
	if budget <= 0 {
		budget = 2 * time.Second
	}
	return &webhookHandler{toggles: toggles, budget: budget}
}

// webhookPayload mirrors rollback.Request with probe fields so missing
// values and wrong types are distinguishable. `enabled` stays raw: the
// contract requires exactly a JSON boolean, not a truthy string or number.
type webhookPayload struct {
	FlagKey         *string         `json:"flag_key"`
	Enabled         json.RawMessage `json:"enabled"`
	IncidentID      *string         `json:"incident_id"`
	IncidentMessage *string         `json:"incident_message"`
	Source          *string         `json:"source"`
	Metadata        map[string]any  `json:"metadata"`
}

func (h *webhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.budget)
	defer cancel()

	tenant, ok := middleware.TenantFromContext(ctx)
	if !ok {
		// RequireTenant runs above this handler; this is a wiring bug.
		writeRollbackResponse(w, http.StatusInternalServerError, &rollback.Response{
			Success: false,
			Error:   "Internal server error processing rollback",
		})
		return
	}
	requestID := middleware.RequestIDFromContext(ctx)

	var payload webhookPayload
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeValidationError(w, "", "Unable to read request body")
		return
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeValidationError(w, "", "Invalid JSON body")
		return
	}

	flagKey := ""
	if payload.FlagKey != nil {
		flagKey = *payload.FlagKey
	}

	// Validation order is part of the contract; all checks run strictly
	// before any state lookup.
	enabled, verr := validatePayload(&payload)
	if verr != "" {
		writeValidationError(w, flagKey, verr)
		return
	}

	res, err := h.toggles.Apply(ctx, tenant, toggle.ApplyInput{
		FlagKey:         flagKey,
		Enabled:         enabled,
		IncidentID:      *payload.IncidentID,
		IncidentMessage: *payload.IncidentMessage,
		RequestID:       requestID,
		Metadata:        payload.Metadata,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// A missing flag is a business-level failure, not a transport
			// failure: HTTP 200 so well-behaved clients never retry it.
			writeRollbackResponse(w, http.StatusOK, &rollback.Response{
				Success: false,
				FlagKey: flagKey,
				Error:   fmt.Sprintf("Feature flag '%s' not found for customer %s", flagKey, tenant.Slug),
			})
			return
		}

		log.Error().
			Err(err).
			Str("tenant", tenant.Slug).
			Str("flag_key", flagKey).
			Str("request_id", requestID).
			Msg("rollback failed")

		// Internal detail never reaches the caller; the request_id joins
		// this response to the server-side log and audit trail.
		writeRollbackResponse(w, http.StatusInternalServerError, &rollback.Response{
			Success:          false,
			FlagKey:          flagKey,
			Error:            "Internal server error processing rollback",
			ProviderMetadata: map[string]any{"request_id": requestID},
		})
		return
	}

	log.Info().
		Str("tenant", tenant.Slug).
		Str("flag_key", flagKey).
		Bool("previous_state", res.Previous).
		Bool("new_state", res.Flag.Enabled).
		Str("incident_id", *payload.IncidentID).
		Str("request_id", requestID).
		Dur("duration", res.Duration).
		Msg("flag rolled back")

	writeRollbackResponse(w, http.StatusOK, &rollback.Response{
		Success:       true,
		FlagKey:       res.Flag.Key,
		PreviousState: res.Previous,
		NewState:      res.Flag.Enabled,
		ProviderMetadata: map[string]any{
			"flag_id":     res.Flag.ID.String(),
			"tenant_id":   tenant.ID.String(),
			"environment": res.Flag.Environment,
			"updated_at":  res.Flag.UpdatedAt.UTC().Format(time.RFC3339Nano),
			"duration_ms": res.Duration.Milliseconds(),
		},
	})
}

// validatePayload runs the contract's checks in order and returns the
// decoded target state. An empty string means the payload passed.
func validatePayload(p *webhookPayload) (bool, string) {
	if p.FlagKey == nil || *p.FlagKey == "" {
		return false, "Missing or empty required field: flag_key"
	}

	if len(p.Enabled) == 0 {
		return false, "Missing required field: enabled"
	}
	var enabled bool
	if err := json.Unmarshal(p.Enabled, &enabled); err != nil {
		return false, "Field 'enabled' must be a boolean"
	}

	if p.IncidentID == nil || *p.IncidentID == "" {
		return false, "Missing or empty required field: incident_id"
	}
	if p.IncidentMessage == nil || *p.IncidentMessage == "" {
		return false, "Missing or empty required field: incident_message"
	}

	if p.Source == nil || *p.Source != rollback.Source {
		return false, fmt.Sprintf("Invalid source: expected '%s'", rollback.Source)
	}

	return enabled, ""
}

func writeValidationError(w http.ResponseWriter, flagKey, reason string) {
	writeRollbackResponse(w, http.StatusBadRequest, &rollback.Response{
		Success: false,
		FlagKey: flagKey,
		Error:   reason,
	})
}

func writeRollbackResponse(w http.ResponseWriter, status int, resp *rollback.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("write rollback response")
	}
}
