package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusware/school-admin-server/src/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKeyStore persists API-key records in the api_keys table.
type PostgresKeyStore struct {
	pool *pgxpool.Pool
}

// NewPostgresKeyStore creates a KeyStore backed by the given pool.
func NewPostgresKeyStore(pool *pgxpool.Pool) *PostgresKeyStore {
	return &PostgresKeyStore{pool: pool}
}

const apiKeyColumns = `id, name, description, owner_id, key_hash, key_prefix,
	scopes, ip_whitelist, rate_limit_per_hour, active,
	created_at, updated_at, last_used_at, expires_at, request_count`

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(
		&k.ID, &k.Name, &k.Description, &k.OwnerID, &k.KeyHash, &k.KeyPrefix,
		&k.Scopes, &k.IPWhitelist, &k.RateLimitPerHour, &k.Active,
		&k.CreatedAt, &k.UpdatedAt, &k.LastUsedAt, &k.ExpiresAt, &k.RequestCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}
	return &k, nil
}

// Save inserts or updates a key record.
func (s *PostgresKeyStore) Save(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			scopes = EXCLUDED.scopes,
			ip_whitelist = EXCLUDED.ip_whitelist,
			rate_limit_per_hour = EXCLUDED.rate_limit_per_hour,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`,
		key.ID, key.Name, key.Description, key.OwnerID, key.KeyHash, key.KeyPrefix,
		key.Scopes, key.IPWhitelist, key.RateLimitPerHour, key.Active,
		key.CreatedAt, key.UpdatedAt, key.LastUsedAt, key.ExpiresAt, key.RequestCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// FindByID returns the record or ErrNotFound.
func (s *PostgresKeyStore) FindByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	return scanAPIKey(row)
}

// FindByPrefix returns all records sharing a non-secret key prefix.
func (s *PostgresKeyStore) FindByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys by prefix: %w", err)
	}
	defer rows.Close()

	return collectAPIKeys(rows)
}

// FindByOwner returns all records owned by the given owner, newest first.
func (s *PostgresKeyStore) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query api keys by owner: %w", err)
	}
	defer rows.Close()

	return collectAPIKeys(rows)
}

func collectAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(
			&k.ID, &k.Name, &k.Description, &k.OwnerID, &k.KeyHash, &k.KeyPrefix,
			&k.Scopes, &k.IPWhitelist, &k.RateLimitPerHour, &k.Active,
			&k.CreatedAt, &k.UpdatedAt, &k.LastUsedAt, &k.ExpiresAt, &k.RequestCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}
	return keys, nil
}

// Delete physically removes a record.
func (s *PostgresKeyStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchUsage records a successful validation.
func (s *PostgresKeyStore) TouchUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE api_keys SET last_used_at = $2, request_count = request_count + 1 WHERE id = $1
	`, id, usedAt)
	if err != nil {
		return fmt.Errorf("failed to update key usage stats: %w", err)
	}
	return nil
}
