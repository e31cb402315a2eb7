package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ReportScheduler periodically delivers due report schedules by email.
type ReportScheduler struct {
	reports   *ReportService
	email     *EmailService
	analytics *AnalyticsService
	enabled   bool
	interval  time.Duration
	done      chan bool
}

// NewReportScheduler creates a scheduler that checks for due reports every
// 15 minutes.
func NewReportScheduler(reports *ReportService, email *EmailService, analytics *AnalyticsService, enabled bool) *ReportScheduler {
	return &ReportScheduler{
		reports:   reports,
		email:     email,
		analytics: analytics,
		enabled:   enabled && email.Enabled(),
		interval:  15 * time.Minute,
		done:      make(chan bool),
	}
}

// Start starts the scheduler loop.
func (sc *ReportScheduler) Start(ctx context.Context) {
	if !sc.enabled {
		log.Info().Msg("Report scheduler is disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(sc.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Report scheduler stopped")
				return
			case <-sc.done:
				log.Info().Msg("Report scheduler stopped")
				return
			case <-ticker.C:
				sc.deliverDue(ctx)
			}
		}
	}()

	log.Info().Msg("Report scheduler started")
}

// Stop stops the scheduler loop.
func (sc *ReportScheduler) Stop() {
	if !sc.enabled {
		return
	}
	sc.done <- true
}

// deliverDue sends every due report. A failed send is left due and retried
// on the next tick; only a successful send advances the schedule.
func (sc *ReportScheduler) deliverDue(ctx context.Context) {
	due, err := sc.reports.ListDue(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list due reports")
		return
	}

	for _, schedule := range due {
		subject, body, err := sc.reports.Render(ctx, schedule)
		if err != nil {
			log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("failed to render report")
			continue
		}

		if err := sc.email.SendReport(ctx, schedule.Recipient, subject, body, ""); err != nil {
			log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("failed to send report")
			continue
		}

		if err := sc.reports.MarkSent(ctx, schedule.ID); err != nil {
			log.Error().Err(err).Str("schedule_id", schedule.ID.String()).Msg("failed to advance report schedule")
			continue
		}

		sc.analytics.TrackReportSent(ctx, HashIdentifier(schedule.Recipient), string(schedule.Kind))
		log.Info().
			Str("schedule_id", schedule.ID.String()).
			Str("kind", string(schedule.Kind)).
			Msg("report delivered")
	}
}
