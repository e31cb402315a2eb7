package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is the stored record for an API key. The raw secret is never
// persisted: only the bcrypt hash and a short non-secret prefix used to
// narrow candidate lookups.
type APIKey struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	OwnerID          uuid.UUID  `json:"owner_id"`
	KeyHash          string     `json:"-"`
	KeyPrefix        string     `json:"key_prefix"`
	Scopes           []string   `json:"scopes"`
	IPWhitelist      []string   `json:"ip_whitelist"`
	RateLimitPerHour int        `json:"rate_limit_per_hour"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RequestCount     int64      `json:"request_count"`
}

// HasScope reports whether the key carries the given permission scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AllowsIP reports whether the caller IP is permitted. An empty whitelist
// means the key is unrestricted.
func (k *APIKey) AllowsIP(ip string) bool {
	if len(k.IPWhitelist) == 0 {
		return true
	}
	for _, allowed := range k.IPWhitelist {
		if allowed == ip {
			return true
		}
	}
	return false
}
