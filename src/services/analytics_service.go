package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog/log"
)

// HashIdentifier returns a hex-encoded SHA-256 hash of an identifier for use
// as the PostHog distinct ID. Raw usernames and emails never leave the server.
func HashIdentifier(id string) string {
	h := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%x", h)
}

// AnalyticsService handles product analytics tracking. All tracking is
// fire-and-forget; a disabled or misconfigured client degrades to no-ops.
type AnalyticsService struct {
	client  posthog.Client
	enabled bool
}

type posthogLogger struct{}

func (l posthogLogger) Success(m posthog.APIMessage) {
	log.Debug().Str("type", fmt.Sprintf("%T", m)).Msg("PostHog event delivered")
}

func (l posthogLogger) Failure(m posthog.APIMessage, err error) {
	log.Error().Err(err).Str("type", fmt.Sprintf("%T", m)).Msg("PostHog delivery failed")
}

// AnalyticsConfig holds analytics configuration
type AnalyticsConfig struct {
	PostHogAPIKey string
	PostHogHost   string
	Enabled       bool
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(cfg AnalyticsConfig) (*AnalyticsService, error) {
	if !cfg.Enabled || cfg.PostHogAPIKey == "" {
		return &AnalyticsService{enabled: false}, nil
	}

	client, err := posthog.NewWithConfig(
		cfg.PostHogAPIKey,
		posthog.Config{
			Endpoint:  cfg.PostHogHost,
			Interval:  30 * time.Second,
			BatchSize: 100,
			Callback:  posthogLogger{},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &AnalyticsService{
		client:  client,
		enabled: true,
	}, nil
}

// Close flushes pending events and closes client
func (s *AnalyticsService) Close() error {
	if !s.enabled {
		return nil
	}
	return s.client.Close()
}

// getEnvironment returns current environment (production, staging, development)
func getEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "production"
	}
	return env
}

// TrackEvent captures a generic event
func (s *AnalyticsService) TrackEvent(ctx context.Context, distinctID, event string, properties map[string]interface{}) {
	if !s.enabled {
		return
	}

	if properties == nil {
		properties = make(map[string]interface{})
	}
	properties["timestamp"] = time.Now().Unix()
	properties["environment"] = getEnvironment()

	if err := s.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		log.Error().Err(err).Str("event", event).Msg("PostHog enqueue failed")
	}
}

// TrackKeyGenerated tracks API key issuance
func (s *AnalyticsService) TrackKeyGenerated(ctx context.Context, ownerHash string, scopeCount int) {
	s.TrackEvent(ctx, "owner_"+ownerHash, "api_key_generated", map[string]interface{}{
		"scope_count": scopeCount,
	})
}

// TrackKeyRotated tracks API key rotation
func (s *AnalyticsService) TrackKeyRotated(ctx context.Context, ownerHash string) {
	s.TrackEvent(ctx, "owner_"+ownerHash, "api_key_rotated", nil)
}

// TrackKeyRevoked tracks API key revocation
func (s *AnalyticsService) TrackKeyRevoked(ctx context.Context, ownerHash string) {
	s.TrackEvent(ctx, "owner_"+ownerHash, "api_key_revoked", nil)
}

// TrackStaffLogin tracks a successful staff sign-in
func (s *AnalyticsService) TrackStaffLogin(ctx context.Context, usernameHash string) {
	s.TrackEvent(ctx, "staff_"+usernameHash, "staff_login", nil)
}

// TrackReportSent tracks delivery of a scheduled report email
func (s *AnalyticsService) TrackReportSent(ctx context.Context, recipientHash, kind string) {
	s.TrackEvent(ctx, "parent_"+recipientHash, "report_sent", map[string]interface{}{
		"kind": kind,
	})
}

// TrackRateLimited tracks requests rejected by the hourly key limiter
func (s *AnalyticsService) TrackRateLimited(ctx context.Context, keyPrefix string) {
	s.TrackEvent(ctx, "key_"+keyPrefix, "rate_limit_exceeded", nil)
}
