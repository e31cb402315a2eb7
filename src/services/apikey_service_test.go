package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/models"
	"github.com/campusware/school-admin-server/src/repositories/mock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*APIKeyService, *mock.KeyStore, *clock.Fake) {
	store := mock.NewKeyStore()
	clk := clock.NewFake(time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC))
	return NewAPIKeyService(store, clk), store, clk
}

func TestGenerate_ValidateRoundtrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	key, rawSecret, err := svc.Generate(ctx, GenerateParams{
		OwnerID: owner,
		Name:    "gradebook-sync",
		Scopes:  []string{models.ScopeStudentsRead},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rawSecret, models.SecretPrefix))
	// 32 random bytes hex-encoded behind the literal prefix
	require.Len(t, rawSecret, len(models.SecretPrefix)+64)
	assert.Equal(t, rawSecret[:10]+"...", key.KeyPrefix)
	assert.Equal(t, models.DefaultRateLimitPerHour, key.RateLimitPerHour)
	assert.True(t, key.Active)

	got, err := svc.Validate(ctx, rawSecret, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, key.ID, got.ID)
}

func TestGenerate_RawSecretNotRecoverable(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	key, rawSecret, err := svc.Generate(ctx, GenerateParams{OwnerID: uuid.New(), Name: "k"})
	require.NoError(t, err)

	stored, err := store.FindByID(ctx, key.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.KeyHash, rawSecret)
	assert.NotEqual(t, rawSecret, stored.KeyHash)
	// The stored prefix reveals only the first 10 characters
	assert.Equal(t, rawSecret[:10]+"...", stored.KeyPrefix)
}

func TestValidate_UnknownSecret(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Validate(context.Background(), "sk_0000000000000000", "10.0.0.1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = svc.Validate(context.Background(), "short", "10.0.0.1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestValidate_RevokedKey(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	key, rawSecret, err := svc.Generate(ctx, GenerateParams{OwnerID: owner, Name: "k"})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, key.ID, owner))

	// The raw secret still hashes equal, but the record is inactive
	_, err = svc.Validate(ctx, rawSecret, "10.0.0.1")
	assert.ErrorIs(t, err, ErrKeyInactive)
}

func TestValidate_Expiry(t *testing.T) {
	svc, _, clk := newTestService()
	ctx := context.Background()

	_, rawSecret, err := svc.Generate(ctx, GenerateParams{
		OwnerID: uuid.New(),
		Name:    "k",
		TTL:     time.Hour,
	})
	require.NoError(t, err)

	// Strictly before expiry: valid
	clk.Advance(time.Hour - time.Second)
	_, err = svc.Validate(ctx, rawSecret, "10.0.0.1")
	require.NoError(t, err)

	// Past expiry: rejected, even though active=true is still stored
	clk.Advance(2 * time.Second)
	_, err = svc.Validate(ctx, rawSecret, "10.0.0.1")
	assert.ErrorIs(t, err, ErrKeyExpired)
}

func TestValidate_ExpiryIsDerivedNotStored(t *testing.T) {
	svc, store, clk := newTestService()
	ctx := context.Background()

	key, rawSecret, err := svc.Generate(ctx, GenerateParams{
		OwnerID: uuid.New(),
		Name:    "k",
		TTL:     time.Minute,
	})
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = svc.Validate(ctx, rawSecret, "10.0.0.1")
	require.ErrorIs(t, err, ErrKeyExpired)

	// Expiry never mutates the stored active flag
	stored, err := store.FindByID(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
}

func TestValidate_IPWhitelist(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, rawSecret, err := svc.Generate(ctx, GenerateParams{
		OwnerID:     uuid.New(),
		Name:        "k",
		IPWhitelist: []string{"192.168.1.10", "192.168.1.11"},
	})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, rawSecret, "192.168.1.10")
	require.NoError(t, err)

	_, err = svc.Validate(ctx, rawSecret, "203.0.113.9")
	assert.ErrorIs(t, err, ErrIPNotWhitelisted)
}

func TestValidate_EmptyWhitelistUnrestricted(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, rawSecret, err := svc.Generate(ctx, GenerateParams{OwnerID: uuid.New(), Name: "k"})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, rawSecret, "203.0.113.9")
	assert.NoError(t, err)
}

func TestValidate_UpdatesUsageStats(t *testing.T) {
	svc, store, clk := newTestService()
	ctx := context.Background()

	key, rawSecret, err := svc.Generate(ctx, GenerateParams{OwnerID: uuid.New(), Name: "k"})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	_, err = svc.Validate(ctx, rawSecret, "10.0.0.1")
	require.NoError(t, err)
	_, err = svc.Validate(ctx, rawSecret, "10.0.0.1")
	require.NoError(t, err)

	stored, err := store.FindByID(ctx, key.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.RequestCount)
	require.NotNil(t, stored.LastUsedAt)
	assert.Equal(t, clk.Now(), *stored.LastUsedAt)
}

func TestHasScope(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	key, rawSecret, err := svc.Generate(ctx, GenerateParams{
		OwnerID: owner,
		Name:    "k",
		Scopes:  []string{models.ScopeStudentsRead, models.ScopeReportsRead},
	})
	require.NoError(t, err)

	assert.True(t, svc.HasScope(ctx, rawSecret, models.ScopeStudentsRead))
	assert.False(t, svc.HasScope(ctx, rawSecret, models.ScopeStudentsWrite))

	// Any verification failure yields false, never an error
	assert.False(t, svc.HasScope(ctx, "sk_bogus00000", models.ScopeStudentsRead))

	require.NoError(t, svc.Revoke(ctx, key.ID, owner))
	assert.False(t, svc.HasScope(ctx, rawSecret, models.ScopeStudentsRead))
}

func TestRotate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	key, oldSecret, err := svc.Generate(ctx, GenerateParams{
		OwnerID:          owner,
		Name:             "sis-export",
		Scopes:           []string{models.ScopeStudentsRead, models.ScopeAssignmentsRead},
		IPWhitelist:      []string{"10.1.2.3"},
		RateLimitPerHour: 250,
	})
	require.NoError(t, err)

	newKey, newSecret, err := svc.Rotate(ctx, key.ID, owner)
	require.NoError(t, err)
	require.NotEqual(t, oldSecret, newSecret)
	require.NotEqual(t, key.ID, newKey.ID)

	// Configuration carries over
	assert.Equal(t, key.Name, newKey.Name)
	assert.ElementsMatch(t, key.Scopes, newKey.Scopes)
	assert.ElementsMatch(t, key.IPWhitelist, newKey.IPWhitelist)
	assert.Equal(t, 250, newKey.RateLimitPerHour)

	// Old secret stops validating, new one works
	_, err = svc.Validate(ctx, oldSecret, "10.1.2.3")
	assert.ErrorIs(t, err, ErrKeyInactive)
	_, err = svc.Validate(ctx, newSecret, "10.1.2.3")
	assert.NoError(t, err)
}

func TestRotate_FailClosed(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	_, oldSecret, err := svc.Generate(ctx, GenerateParams{OwnerID: owner, Name: "k"})
	require.NoError(t, err)

	keys, err := store.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	// Persisting the replacement fails: the old key must remain valid
	store.SaveErr = errors.New("storage unavailable")
	_, _, err = svc.Rotate(ctx, keys[0].ID, owner)
	require.Error(t, err)

	_, err = svc.Validate(ctx, oldSecret, "10.0.0.1")
	assert.NoError(t, err, "old key must survive a failed rotation")
}

func TestRotate_OwnershipAndState(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	key, _, err := svc.Generate(ctx, GenerateParams{OwnerID: owner, Name: "k"})
	require.NoError(t, err)

	_, _, err = svc.Rotate(ctx, key.ID, uuid.New())
	assert.ErrorIs(t, err, ErrOwnershipMismatch)

	_, _, err = svc.Rotate(ctx, uuid.New(), owner)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, svc.Revoke(ctx, key.ID, owner))
	_, _, err = svc.Rotate(ctx, key.ID, owner)
	assert.ErrorIs(t, err, ErrInvalidRotationState)
}

func TestRevoke_OwnershipMismatch(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	key, _, err := svc.Generate(ctx, GenerateParams{OwnerID: uuid.New(), Name: "k"})
	require.NoError(t, err)

	err = svc.Revoke(ctx, key.ID, uuid.New())
	assert.ErrorIs(t, err, ErrOwnershipMismatch)
}

func TestUpdate(t *testing.T) {
	svc, _, clk := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	key, _, err := svc.Generate(ctx, GenerateParams{OwnerID: owner, Name: "before"})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	name := "after"
	limit := 42
	updated, err := svc.Update(ctx, key.ID, owner, UpdateParams{
		Name:             &name,
		Scopes:           []string{models.ScopeIEPRead},
		RateLimitPerHour: &limit,
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, []string{models.ScopeIEPRead}, updated.Scopes)
	assert.Equal(t, 42, updated.RateLimitPerHour)
	assert.True(t, updated.UpdatedAt.After(key.UpdatedAt))
}

func TestDelete(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	key, _, err := svc.Generate(ctx, GenerateParams{OwnerID: owner, Name: "k"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, key.ID, uuid.New()), ErrOwnershipMismatch)
	require.NoError(t, svc.Delete(ctx, key.ID, owner))
	assert.Equal(t, 0, store.Count())

	assert.ErrorIs(t, svc.Delete(ctx, key.ID, owner), ErrKeyNotFound)
}
