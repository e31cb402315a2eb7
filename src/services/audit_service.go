package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/campusware/school-admin-server/src/logging"
	"github.com/campusware/school-admin-server/src/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// AuditService records security-relevant events: key validations, rotations,
// revocations, denied requests. Events are queued on a buffered channel and
// written by a single background worker, so Log never blocks the request
// path. When the buffer is full the event is dropped and counted.
type AuditService struct {
	pool   *pgxpool.Pool
	events chan repositories.AuditEvent
	done   chan struct{}
	logger zerolog.Logger

	dropped atomic.Int64
}

const auditBufferSize = 1024

// NewAuditService creates an audit sink. A nil pool is allowed; events are
// then only written to the structured log.
func NewAuditService(pool *pgxpool.Pool) *AuditService {
	return &AuditService{
		pool:   pool,
		events: make(chan repositories.AuditEvent, auditBufferSize),
		done:   make(chan struct{}),
		logger: logging.NewLogger("audit"),
	}
}

// Start launches the background writer.
func (s *AuditService) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				s.drain()
				if n := s.dropped.Load(); n > 0 {
					s.logger.Warn().Int64("dropped_total", n).Msg("audit sink shut down with dropped events")
				}
				return
			case ev, ok := <-s.events:
				if !ok {
					return
				}
				s.write(context.Background(), ev)
			}
		}
	}()
	s.logger.Info().Msg("Audit service started")
}

// Stop waits for the writer to finish draining.
func (s *AuditService) Stop() {
	<-s.done
}

// Log enqueues an event. Drops instead of blocking when the buffer is full.
func (s *AuditService) Log(event repositories.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case s.events <- event:
	default:
		total := s.dropped.Add(1)
		s.logger.Warn().
			Str("action", event.Action).
			Int64("dropped_total", total).
			Msg("audit buffer full, event dropped")
	}
}

// Dropped returns how many events have been discarded because the buffer
// was full.
func (s *AuditService) Dropped() int64 {
	return s.dropped.Load()
}

func (s *AuditService) drain() {
	for {
		select {
		case ev := <-s.events:
			s.write(context.Background(), ev)
		default:
			return
		}
	}
}

func (s *AuditService) write(ctx context.Context, ev repositories.AuditEvent) {
	s.logger.Info().
		Str("action", ev.Action).
		Str("key_id", ev.KeyID).
		Str("owner_id", ev.OwnerID).
		Str("caller_ip", ev.CallerIP).
		Str("outcome", ev.Outcome).
		Str("detail", ev.Detail).
		Time("at", ev.Timestamp).
		Msg("audit event")

	if s.pool == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(writeCtx, `
		INSERT INTO audit_log (action, key_id, owner_id, caller_ip, outcome, detail, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7)
	`, ev.Action, ev.KeyID, ev.OwnerID, ev.CallerIP, ev.Outcome, ev.Detail, ev.Timestamp)
	if err != nil {
		s.logger.Error().Err(err).Str("action", ev.Action).Msg("failed to persist audit event")
	}
}
