// Package rollback is the Go client SDK for the PathCanary incident
// rollback webhook contract. It constructs rollback requests, sends them
// with a bounded timeout, validates the shape of provider responses, and
// retries transient failures with exponential backoff.
package rollback

// Source is the only value of Request.Source accepted by providers.
const Source = "pathcanary"

// HeaderRequestID carries the client-generated correlation identifier so
// the provider's audit trail can be joined with client-side logs.
const HeaderRequestID = "X-PathCanary-Request-ID"

// WebhookPath is the provider endpoint the rollback request is POSTed to.
const WebhookPath = "/webhook/pathcanary"

// Request asks a provider to force a feature flag to a target state in
// response to an incident. It is transient: providers log it but never
// persist it.
type Request struct {
	FlagKey         string         `json:"flag_key"`
	Enabled         bool           `json:"enabled"`
	IncidentID      string         `json:"incident_id"`
	IncidentMessage string         `json:"incident_message"`
	Source          string         `json:"source"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Response is the provider's structured result. Success == false with a
// well-formed body is a deterministic business outcome (e.g. flag not
// found) and is never retried.
type Response struct {
	Success          bool           `json:"success"`
	FlagKey          string         `json:"flag_key"`
	PreviousState    bool           `json:"previous_state"`
	NewState         bool           `json:"new_state"`
	Error            string         `json:"error,omitempty"`
	ProviderMetadata map[string]any `json:"provider_metadata,omitempty"`
}
