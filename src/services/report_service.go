package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrScheduleNotFound indicates the report schedule does not exist
var ErrScheduleNotFound = errors.New("report schedule not found")

// ReportService manages recurring report schedules and renders report
// bodies from the student's records.
type ReportService struct {
	pool        *pgxpool.Pool
	clk         clock.Clock
	students    *StudentService
	assignments *AssignmentService
	referrals   *ReferralService
}

// NewReportService creates a new report service.
func NewReportService(pool *pgxpool.Pool, clk clock.Clock, students *StudentService, assignments *AssignmentService, referrals *ReferralService) *ReportService {
	return &ReportService{
		pool:        pool,
		clk:         clk,
		students:    students,
		assignments: assignments,
		referrals:   referrals,
	}
}

const scheduleColumns = `id, student_id, kind, recipient, interval_days,
	next_due_at, last_sent_at, created_at`

// ScheduleParams describes a recurring report.
type ScheduleParams struct {
	StudentID    uuid.UUID
	Kind         models.ReportKind
	Recipient    string
	IntervalDays int
}

// CreateSchedule registers a recurring report. The first send is due one
// full interval from now.
func (rs *ReportService) CreateSchedule(ctx context.Context, p ScheduleParams) (*models.ReportSchedule, error) {
	if p.Recipient == "" {
		return nil, errors.New("recipient is required")
	}
	if p.IntervalDays <= 0 {
		return nil, errors.New("interval must be at least one day")
	}
	switch p.Kind {
	case models.ReportKindProgress, models.ReportKindAttendance, models.ReportKindDiscipline:
	default:
		return nil, fmt.Errorf("unknown report kind %q", p.Kind)
	}

	now := rs.clk.Now()
	s := &models.ReportSchedule{
		ID:           uuid.New(),
		StudentID:    p.StudentID,
		Kind:         p.Kind,
		Recipient:    p.Recipient,
		IntervalDays: p.IntervalDays,
		NextDueAt:    now.AddDate(0, 0, p.IntervalDays),
		CreatedAt:    now,
	}

	_, err := rs.pool.Exec(ctx, `
		INSERT INTO report_schedules (`+scheduleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.StudentID, s.Kind, s.Recipient, s.IntervalDays,
		s.NextDueAt, s.LastSentAt, s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create report schedule: %w", err)
	}
	return s, nil
}

func (rs *ReportService) collect(rows pgx.Rows) ([]*models.ReportSchedule, error) {
	var out []*models.ReportSchedule
	for rows.Next() {
		var s models.ReportSchedule
		if err := rows.Scan(
			&s.ID, &s.StudentID, &s.Kind, &s.Recipient, &s.IntervalDays,
			&s.NextDueAt, &s.LastSentAt, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report schedule: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report schedules: %w", err)
	}
	return out, nil
}

// ListByStudent returns all schedules for a student.
func (rs *ReportService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.ReportSchedule, error) {
	rows, err := rs.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM report_schedules WHERE student_id = $1 ORDER BY created_at`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report schedules: %w", err)
	}
	defer rows.Close()
	return rs.collect(rows)
}

// ListDue returns schedules whose next send instant has passed.
func (rs *ReportService) ListDue(ctx context.Context) ([]*models.ReportSchedule, error) {
	rows, err := rs.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM report_schedules WHERE next_due_at <= $1 ORDER BY next_due_at`, rs.clk.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due report schedules: %w", err)
	}
	defer rows.Close()
	return rs.collect(rows)
}

// MarkSent records a delivery and pushes the schedule forward one interval.
func (rs *ReportService) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := rs.clk.Now()
	result, err := rs.pool.Exec(ctx, `
		UPDATE report_schedules
		SET last_sent_at = $2, next_due_at = $2 + (interval_days || ' days')::interval
		WHERE id = $1
	`, id, now)
	if err != nil {
		return fmt.Errorf("failed to mark report sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// DeleteSchedule removes a recurring report.
func (rs *ReportService) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	result, err := rs.pool.Exec(ctx, `DELETE FROM report_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Render produces the subject and plain-text body for a schedule.
func (rs *ReportService) Render(ctx context.Context, s *models.ReportSchedule) (subject, body string, err error) {
	student, err := rs.students.GetByID(ctx, s.StudentID)
	if err != nil {
		return "", "", err
	}
	name := student.FirstName + " " + student.LastName

	switch s.Kind {
	case models.ReportKindProgress:
		return rs.renderProgress(ctx, student, name)
	case models.ReportKindDiscipline:
		return rs.renderDiscipline(ctx, student, name)
	case models.ReportKindAttendance:
		subject = fmt.Sprintf("Attendance summary for %s", name)
		body = fmt.Sprintf("Attendance summary for %s (grade %d).\n\nEnrolled since %s.\n",
			name, student.GradeLevel, student.EnrolledAt.Format("January 2, 2006"))
		return subject, body, nil
	default:
		return "", "", fmt.Errorf("unknown report kind %q", s.Kind)
	}
}

func (rs *ReportService) renderProgress(ctx context.Context, student *models.Student, name string) (string, string, error) {
	assignments, err := rs.assignments.ListByStudent(ctx, student.ID)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Progress report for %s (grade %d)\n\n", name, student.GradeLevel)
	if len(assignments) == 0 {
		b.WriteString("No assignments on record for this period.\n")
	}
	for _, a := range assignments {
		if a.Graded() {
			fmt.Fprintf(&b, "- %s (%s): %.1f / %.1f\n", a.Title, a.Subject, *a.Score, a.MaxScore)
		} else {
			fmt.Fprintf(&b, "- %s (%s): due %s, not yet graded\n", a.Title, a.Subject, a.DueAt.Format("Jan 2"))
		}
	}
	return fmt.Sprintf("Progress report for %s", name), b.String(), nil
}

func (rs *ReportService) renderDiscipline(ctx context.Context, student *models.Student, name string) (string, string, error) {
	referrals, err := rs.referrals.ListByStudent(ctx, student.ID)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Discipline summary for %s (grade %d)\n\n", name, student.GradeLevel)
	if len(referrals) == 0 {
		b.WriteString("No referrals on record. Keep it up!\n")
	}
	for _, r := range referrals {
		fmt.Fprintf(&b, "- %s filed %s: %s", r.Category, r.FiledAt.Format("Jan 2"), r.Status)
		if r.Status == models.ReferralStatusResolved {
			fmt.Fprintf(&b, " (%s)", r.Resolution)
		}
		b.WriteString("\n")
	}
	return fmt.Sprintf("Discipline summary for %s", name), b.String(), nil
}
