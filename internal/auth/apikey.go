// Package auth issues and resolves the bearer API keys that identify
// partner tenants on the webhook surface.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pathcanary/rollback-go/internal/domain"
)

// ErrInvalidAPIKey is returned when an API key is not found or the hash
// does not match.
var ErrInvalidAPIKey = errors.New("auth: invalid API key")

const (
	apiKeyPrefix    = "pc_"
	apiKeyRandLen   = 16 // 16 bytes = 32 hex chars
	apiKeyPrefixLen = 8  // first 8 chars of the full key used for lookup
)

// Service resolves bearer credentials to tenants.
type Service struct {
	tenants domain.TenantRepository
}

func NewService(tenants domain.TenantRepository) *Service {
	return &Service{tenants: tenants}
}

// GenerateAPIKey creates a new API key, stores the SHA-256 hash, and
// returns the raw key (shown to the partner once). Key format: "pc_" + 32
// random hex chars.
func (s *Service) GenerateAPIKey(ctx context.Context, tenantID uuid.UUID, name string) (string, *domain.APIKey, error) {
	raw := make([]byte, apiKeyRandLen)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	rawKey := apiKeyPrefix + hex.EncodeToString(raw)

	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])

	key := &domain.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		KeyHash:   keyHash,
		Prefix:    rawKey[:apiKeyPrefixLen],
		CreatedAt: time.Now(),
	}

	if err := s.tenants.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	return rawKey, key, nil
}

// ResolveKey checks an API key by looking up the prefix (first 8 chars)
// and comparing the SHA-256 hash. Returns the owning tenant.
func (s *Service) ResolveKey(ctx context.Context, rawKey string) (*domain.Tenant, *domain.APIKey, error) {
	if len(rawKey) < apiKeyPrefixLen {
		return nil, nil, fmt.Errorf("auth.ResolveKey: %w", ErrInvalidAPIKey)
	}

	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])

	apiKey, err := s.tenants.GetAPIKeyByPrefix(ctx, rawKey[:apiKeyPrefixLen])
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ResolveKey: %w", ErrInvalidAPIKey)
	}

	if apiKey.KeyHash != keyHash {
		return nil, nil, fmt.Errorf("auth.ResolveKey: %w", ErrInvalidAPIKey)
	}

	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
		return nil, nil, fmt.Errorf("auth.ResolveKey: key expired: %w", ErrInvalidAPIKey)
	}

	tenant, err := s.tenants.GetByID(ctx, apiKey.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ResolveKey: %w", err)
	}

	// Update last used timestamp (fire and forget).
	if updateErr := s.tenants.UpdateAPIKeyLastUsed(ctx, apiKey.ID); updateErr != nil {
		log.Warn().Err(updateErr).Str("api_key_id", apiKey.ID.String()).Msg("auth.ResolveKey: failed to update last_used_at")
	}

	return tenant, apiKey, nil
}

// Redact truncates a raw key for logs and audit entries. The full secret
// must never be recorded.
func Redact(rawKey string) string {
	if len(rawKey) <= apiKeyPrefixLen {
		return "***"
	}
	return rawKey[:apiKeyPrefixLen] + "..."
}
