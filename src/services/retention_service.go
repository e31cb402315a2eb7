package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// RetentionService prunes aged audit-log rows on a daily schedule.
type RetentionService struct {
	pool      *pgxpool.Pool
	enabled   bool
	retention time.Duration
	interval  time.Duration
	done      chan bool
}

// NewRetentionService creates a retention sweeper. Rows older than the
// retention window are deleted on each pass.
func NewRetentionService(pool *pgxpool.Pool, enabled bool, retention time.Duration) *RetentionService {
	return &RetentionService{
		pool:      pool,
		enabled:   enabled,
		retention: retention,
		interval:  24 * time.Hour,
		done:      make(chan bool),
	}
}

// Start starts the retention sweeper.
func (rs *RetentionService) Start(ctx context.Context) {
	if !rs.enabled {
		log.Info().Msg("Audit retention sweeper is disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(rs.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Audit retention sweeper stopped")
				return
			case <-rs.done:
				log.Info().Msg("Audit retention sweeper stopped")
				return
			case <-ticker.C:
				rs.sweep(ctx)
			}
		}
	}()

	log.Info().Dur("retention", rs.retention).Msg("Audit retention sweeper started")
}

// Stop stops the retention sweeper.
func (rs *RetentionService) Stop() {
	if !rs.enabled {
		return
	}
	rs.done <- true
}

func (rs *RetentionService) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-rs.retention)
	result, err := rs.pool.Exec(ctx, "DELETE FROM audit_log WHERE created_at < $1", cutoff)
	if err != nil {
		log.Error().Err(err).Msg("audit retention sweep failed")
		return
	}

	if deleted := result.RowsAffected(); deleted > 0 {
		log.Info().Int64("deleted", deleted).Msg("Audit retention sweep completed")
	}
}
