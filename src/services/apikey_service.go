package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/models"
	"github.com/campusware/school-admin-server/src/repositories"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyService owns the full lifecycle of API keys: issuance, verification,
// scope checks, rotation and revocation. Storage is delegated to a KeyStore;
// time comes from an injected clock so expiry is testable.
//
// Verification is CPU-heavy (bcrypt compare per candidate) and runs without
// any shared lock, so validations for different keys proceed in parallel.
type APIKeyService struct {
	store repositories.KeyStore
	clk   clock.Clock
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(store repositories.KeyStore, clk clock.Clock) *APIKeyService {
	return &APIKeyService{store: store, clk: clk}
}

// GenerateParams describes a key to be issued.
type GenerateParams struct {
	OwnerID          uuid.UUID
	Name             string
	Description      string
	Scopes           []string
	IPWhitelist      []string
	RateLimitPerHour int
	TTL              time.Duration // 0 = never expires
}

// generateSecret draws 32 bytes from the CSPRNG and returns the raw secret
// string. 256 bits of entropy, hex-encoded behind the fixed literal prefix.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key secret: %w", err)
	}
	return models.SecretPrefix + hex.EncodeToString(buf), nil
}

// displayPrefix derives the non-secret lookup shard from a raw secret: its
// first 10 characters plus an ellipsis marker.
func displayPrefix(rawSecret string) string {
	if len(rawSecret) < models.KeyPrefixLength {
		return ""
	}
	return rawSecret[:models.KeyPrefixLength] + models.KeyPrefixMarker
}

// Generate issues a new key and returns the record together with the raw
// secret. The raw secret is revealed exactly once: only its bcrypt hash is
// persisted and it can never be retrieved again.
func (s *APIKeyService) Generate(ctx context.Context, p GenerateParams) (*models.APIKey, string, error) {
	rawSecret, err := generateSecret()
	if err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash key secret: %w", err)
	}

	now := s.clk.Now()
	rateLimit := p.RateLimitPerHour
	if rateLimit <= 0 {
		rateLimit = models.DefaultRateLimitPerHour
	}

	key := &models.APIKey{
		ID:               uuid.New(),
		Name:             p.Name,
		Description:      p.Description,
		OwnerID:          p.OwnerID,
		KeyHash:          string(hash),
		KeyPrefix:        displayPrefix(rawSecret),
		Scopes:           p.Scopes,
		IPWhitelist:      p.IPWhitelist,
		RateLimitPerHour: rateLimit,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if p.TTL > 0 {
		expiresAt := now.Add(p.TTL)
		key.ExpiresAt = &expiresAt
	}

	if err := s.store.Save(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to persist api key: %w", err)
	}

	log.Info().
		Str("key_id", key.ID.String()).
		Str("key_prefix", key.KeyPrefix).
		Str("owner_id", key.OwnerID.String()).
		Msg("api key generated")

	return key, rawSecret, nil
}

// verify resolves a raw secret to its record via the prefix shard and bcrypt
// comparison, then applies the active and expiry checks in order. It performs
// no side effects; the IP check and usage accounting belong to Validate.
func (s *APIKeyService) verify(ctx context.Context, rawSecret string) (*models.APIKey, error) {
	prefix := displayPrefix(rawSecret)
	if prefix == "" {
		return nil, ErrKeyNotFound
	}

	candidates, err := s.store.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to look up key candidates: %w", err)
	}

	var key *models.APIKey
	for _, c := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(c.KeyHash), []byte(rawSecret)) == nil {
			key = c
			break
		}
	}
	if key == nil {
		return nil, ErrKeyNotFound
	}

	if !key.Active {
		return nil, ErrKeyInactive
	}
	if s.IsExpired(key) {
		return nil, ErrKeyExpired
	}
	return key, nil
}

// Validate verifies a raw secret presented from callerIP. Checks run in
// order: secret match, active, expiry, IP whitelist. On success the record's
// usage stats are updated as an observable side effect and the record is
// returned. Validation never panics; every failure maps to a sentinel error.
func (s *APIKeyService) Validate(ctx context.Context, rawSecret, callerIP string) (*models.APIKey, error) {
	key, err := s.verify(ctx, rawSecret)
	if err != nil {
		return nil, err
	}

	if !key.AllowsIP(callerIP) {
		return nil, ErrIPNotWhitelisted
	}

	now := s.clk.Now()
	if err := s.store.TouchUsage(ctx, key.ID, now); err != nil {
		// Usage accounting must not fail an otherwise valid request
		log.Warn().Err(err).Str("key_id", key.ID.String()).Msg("failed to update key usage stats")
	} else {
		key.LastUsedAt = &now
		key.RequestCount++
	}

	return key, nil
}

// HasScope re-runs secret verification and reports whether the key carries
// the required scope. Any verification failure yields false; this check
// never returns an error to the caller.
func (s *APIKeyService) HasScope(ctx context.Context, rawSecret, requiredScope string) bool {
	key, err := s.verify(ctx, rawSecret)
	if err != nil {
		return false
	}
	return key.HasScope(requiredScope)
}

// IsExpired reports whether the record's expiry instant has passed. Expiry
// is a derived condition evaluated at read time; the stored active flag is
// never mutated because of it.
func (s *APIKeyService) IsExpired(key *models.APIKey) bool {
	return key.ExpiresAt != nil && s.clk.Now().After(*key.ExpiresAt)
}

// findOwned fetches a key and enforces ownership. A missing record and an
// ownership mismatch are distinct errors.
func (s *APIKeyService) findOwned(ctx context.Context, keyID, callerOwnerID uuid.UUID) (*models.APIKey, error) {
	key, err := s.store.FindByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}
	if key.OwnerID != callerOwnerID {
		return nil, ErrOwnershipMismatch
	}
	return key, nil
}

// Rotate replaces an active key with a new one carrying the same name,
// description, scopes, whitelist, rate limit and expiry. The new record is
// persisted BEFORE the old one is deactivated: if persisting the new key
// fails, the old key remains valid and the caller is never left without a
// working key.
func (s *APIKeyService) Rotate(ctx context.Context, keyID, callerOwnerID uuid.UUID) (*models.APIKey, string, error) {
	old, err := s.findOwned(ctx, keyID, callerOwnerID)
	if err != nil {
		return nil, "", err
	}
	if !old.Active {
		return nil, "", ErrInvalidRotationState
	}

	rawSecret, err := generateSecret()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(rawSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash key secret: %w", err)
	}

	now := s.clk.Now()
	replacement := &models.APIKey{
		ID:               uuid.New(),
		Name:             old.Name,
		Description:      old.Description,
		OwnerID:          old.OwnerID,
		KeyHash:          string(hash),
		KeyPrefix:        displayPrefix(rawSecret),
		Scopes:           old.Scopes,
		IPWhitelist:      old.IPWhitelist,
		RateLimitPerHour: old.RateLimitPerHour,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        old.ExpiresAt,
	}

	if err := s.store.Save(ctx, replacement); err != nil {
		return nil, "", fmt.Errorf("failed to persist replacement key: %w", err)
	}

	old.Active = false
	old.UpdatedAt = now
	if err := s.store.Save(ctx, old); err != nil {
		// The replacement is already durable and usable; the old key stays
		// briefly valid, which rotation explicitly tolerates.
		log.Error().Err(err).
			Str("old_key_id", old.ID.String()).
			Str("new_key_id", replacement.ID.String()).
			Msg("rotated key persisted but old key deactivation failed")
		return replacement, rawSecret, fmt.Errorf("rotation completed but old key deactivation failed: %w", err)
	}

	log.Info().
		Str("old_key_id", old.ID.String()).
		Str("new_key_id", replacement.ID.String()).
		Msg("api key rotated")

	return replacement, rawSecret, nil
}

// Revoke deactivates a key. Revocation is terminal: the flag is monotonic
// and never set back to true on this record.
func (s *APIKeyService) Revoke(ctx context.Context, keyID, callerOwnerID uuid.UUID) error {
	key, err := s.findOwned(ctx, keyID, callerOwnerID)
	if err != nil {
		return err
	}

	key.Active = false
	key.UpdatedAt = s.clk.Now()
	if err := s.store.Save(ctx, key); err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	log.Info().Str("key_id", key.ID.String()).Msg("api key revoked")
	return nil
}

// UpdateParams holds optional mutations for a key record. Nil fields are
// left unchanged; an empty non-nil slice clears the set.
type UpdateParams struct {
	Name             *string
	Description      *string
	Scopes           []string
	IPWhitelist      []string
	RateLimitPerHour *int
}

// Update applies ownership-checked mutations to a key's metadata.
func (s *APIKeyService) Update(ctx context.Context, keyID, callerOwnerID uuid.UUID, p UpdateParams) (*models.APIKey, error) {
	key, err := s.findOwned(ctx, keyID, callerOwnerID)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		key.Name = *p.Name
	}
	if p.Description != nil {
		key.Description = *p.Description
	}
	if p.Scopes != nil {
		key.Scopes = p.Scopes
	}
	if p.IPWhitelist != nil {
		key.IPWhitelist = p.IPWhitelist
	}
	if p.RateLimitPerHour != nil && *p.RateLimitPerHour > 0 {
		key.RateLimitPerHour = *p.RateLimitPerHour
	}
	key.UpdatedAt = s.clk.Now()

	if err := s.store.Save(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to update api key: %w", err)
	}
	return key, nil
}

// Delete physically removes a key record. Ownership-checked; distinct from
// revocation, which keeps the record.
func (s *APIKeyService) Delete(ctx context.Context, keyID, callerOwnerID uuid.UUID) error {
	if _, err := s.findOwned(ctx, keyID, callerOwnerID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, keyID); err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	log.Info().Str("key_id", keyID.String()).Msg("api key deleted")
	return nil
}

// ListByOwner returns all keys owned by the given owner, hashes included
// only internally; handlers serialize via the model's json tags which omit
// the hash.
func (s *APIKeyService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	return s.store.FindByOwner(ctx, ownerID)
}
