package mock

import (
	"context"
	"sync"
	"time"

	"github.com/campusware/school-admin-server/src/models"
	"github.com/campusware/school-admin-server/src/repositories"
	"github.com/google/uuid"
)

// KeyStore is an in-memory KeyStore for tests.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*models.APIKey

	// SaveErr, when set, is returned by the next Save call. Used to exercise
	// rotation's fail-closed ordering.
	SaveErr error
}

// NewKeyStore creates an empty in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[uuid.UUID]*models.APIKey)}
}

func copyKey(k *models.APIKey) *models.APIKey {
	c := *k
	c.Scopes = append([]string(nil), k.Scopes...)
	c.IPWhitelist = append([]string(nil), k.IPWhitelist...)
	if k.LastUsedAt != nil {
		t := *k.LastUsedAt
		c.LastUsedAt = &t
	}
	if k.ExpiresAt != nil {
		t := *k.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// Save inserts or updates a record.
func (s *KeyStore) Save(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		err := s.SaveErr
		s.SaveErr = nil
		return err
	}
	s.keys[key.ID] = copyKey(key)
	return nil
}

// FindByID returns the record or repositories.ErrNotFound.
func (s *KeyStore) FindByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyKey(k), nil
}

// FindByPrefix returns all records sharing the given prefix.
func (s *KeyStore) FindByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, copyKey(k))
		}
	}
	return out, nil
}

// FindByOwner returns all records owned by ownerID.
func (s *KeyStore) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.OwnerID == ownerID {
			out = append(out, copyKey(k))
		}
	}
	return out, nil
}

// Delete removes a record.
func (s *KeyStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.keys, id)
	return nil
}

// TouchUsage updates usage stats for a record.
func (s *KeyStore) TouchUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t := usedAt
	k.LastUsedAt = &t
	k.RequestCount++
	return nil
}

// Count returns the number of stored records.
func (s *KeyStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
