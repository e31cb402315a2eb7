package models

// Permission scopes attached to API keys and checked by handlers before
// granting access to an operation.
const (
	ScopeStudentsRead     = "students:read"
	ScopeStudentsWrite    = "students:write"
	ScopeAssignmentsRead  = "assignments:read"
	ScopeAssignmentsWrite = "assignments:write"
	ScopeReferralsRead    = "referrals:read"
	ScopeReferralsWrite   = "referrals:write"
	ScopeIEPRead          = "iep:read"
	ScopeIEPWrite         = "iep:write"
	ScopeParentsRead      = "parents:read"
	ScopeParentsWrite     = "parents:write"
	ScopeReportsRead      = "reports:read"
	ScopeReportsWrite     = "reports:write"
)

// DefaultRateLimitPerHour is applied when a key is created without an
// explicit hourly limit.
const DefaultRateLimitPerHour = 1000

// SecretPrefix is the fixed literal at the start of every raw key secret.
const SecretPrefix = "sk_"

// KeyPrefixMarker is appended to the displayed key prefix so it is never
// mistaken for a usable secret.
const KeyPrefixMarker = "..."

// KeyPrefixLength is the number of raw-secret characters kept as the
// non-secret lookup shard.
const KeyPrefixLength = 10
