package repositories

import (
	"context"
	"time"

	"github.com/campusware/school-admin-server/src/models"
	"github.com/google/uuid"
)

// KeyStore is the durable storage contract the API-key service depends on.
// Implementations must be safe for concurrent use; the service never holds
// locks across these calls.
type KeyStore interface {
	// Save inserts or updates a key record.
	Save(ctx context.Context, key *models.APIKey) error

	// FindByID returns the record or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error)

	// FindByPrefix returns the (small, bounded) set of records sharing a
	// non-secret key prefix. An empty slice means no candidates.
	FindByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)

	// FindByOwner returns all records owned by the given owner.
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error)

	// Delete physically removes a record, or returns ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) error

	// TouchUsage records a successful validation: sets last_used_at and
	// increments request_count.
	TouchUsage(ctx context.Context, id uuid.UUID, usedAt time.Time) error
}

// AuditEvent is a structured security event emitted by the request layer.
type AuditEvent struct {
	Action    string    `json:"action"`
	KeyID     string    `json:"key_id,omitempty"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CallerIP  string    `json:"caller_ip,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditSink receives audit events. Implementations must never block the
// caller; delivery is best effort.
type AuditSink interface {
	Log(event AuditEvent)
}
