package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrMeetingNotFound indicates the IEP meeting does not exist
var ErrMeetingNotFound = errors.New("iep meeting not found")

// IEPService handles Individualized Education Program meetings.
type IEPService struct {
	pool *pgxpool.Pool
	clk  clock.Clock
}

// NewIEPService creates a new IEP service.
func NewIEPService(pool *pgxpool.Pool, clk clock.Clock) *IEPService {
	return &IEPService{pool: pool, clk: clk}
}

const meetingColumns = `id, student_id, scheduled_at, location, attendees,
	outcome, held_at, created_at`

// IEPScheduleParams describes a meeting to schedule.
type IEPScheduleParams struct {
	StudentID   uuid.UUID
	ScheduledAt time.Time
	Location    string
	Attendees   []string
}

// Schedule books an IEP meeting for a student.
func (is *IEPService) Schedule(ctx context.Context, p IEPScheduleParams) (*models.IEPMeeting, error) {
	if p.ScheduledAt.Before(is.clk.Now()) {
		return nil, errors.New("meeting must be scheduled in the future")
	}

	m := &models.IEPMeeting{
		ID:          uuid.New(),
		StudentID:   p.StudentID,
		ScheduledAt: p.ScheduledAt,
		Location:    p.Location,
		Attendees:   p.Attendees,
		CreatedAt:   is.clk.Now(),
	}

	_, err := is.pool.Exec(ctx, `
		INSERT INTO iep_meetings (`+meetingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.StudentID, m.ScheduledAt, m.Location, m.Attendees,
		m.Outcome, m.HeldAt, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule iep meeting: %w", err)
	}
	return m, nil
}

func scanMeeting(row pgx.Row) (*models.IEPMeeting, error) {
	var m models.IEPMeeting
	err := row.Scan(
		&m.ID, &m.StudentID, &m.ScheduledAt, &m.Location, &m.Attendees,
		&m.Outcome, &m.HeldAt, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to scan iep meeting: %w", err)
	}
	return &m, nil
}

// GetByID returns a meeting or ErrMeetingNotFound.
func (is *IEPService) GetByID(ctx context.Context, id uuid.UUID) (*models.IEPMeeting, error) {
	row := is.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM iep_meetings WHERE id = $1`, id)
	return scanMeeting(row)
}

func (is *IEPService) list(ctx context.Context, query string, args ...interface{}) ([]*models.IEPMeeting, error) {
	rows, err := is.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list iep meetings: %w", err)
	}
	defer rows.Close()

	var out []*models.IEPMeeting
	for rows.Next() {
		var m models.IEPMeeting
		if err := rows.Scan(
			&m.ID, &m.StudentID, &m.ScheduledAt, &m.Location, &m.Attendees,
			&m.Outcome, &m.HeldAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan iep meeting: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating iep meetings: %w", err)
	}
	return out, nil
}

// ListByStudent returns a student's meetings, soonest first.
func (is *IEPService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.IEPMeeting, error) {
	return is.list(ctx,
		`SELECT `+meetingColumns+` FROM iep_meetings WHERE student_id = $1 ORDER BY scheduled_at`, studentID)
}

// ListUpcoming returns meetings scheduled from now on that have not been held.
func (is *IEPService) ListUpcoming(ctx context.Context) ([]*models.IEPMeeting, error) {
	return is.list(ctx,
		`SELECT `+meetingColumns+` FROM iep_meetings
		 WHERE scheduled_at >= $1 AND held_at IS NULL ORDER BY scheduled_at`, is.clk.Now())
}

// RecordOutcome marks a meeting as held and stores its outcome.
func (is *IEPService) RecordOutcome(ctx context.Context, id uuid.UUID, outcome string) (*models.IEPMeeting, error) {
	m, err := is.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := is.clk.Now()
	_, err = is.pool.Exec(ctx,
		`UPDATE iep_meetings SET outcome = $2, held_at = $3 WHERE id = $1`, id, outcome, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record meeting outcome: %w", err)
	}
	m.Outcome = outcome
	m.HeldAt = &now
	return m, nil
}
