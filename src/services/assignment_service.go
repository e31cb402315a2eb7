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

// ErrAssignmentNotFound indicates the assignment does not exist
var ErrAssignmentNotFound = errors.New("assignment not found")

// AssignmentService handles graded work for students.
type AssignmentService struct {
	pool *pgxpool.Pool
	clk  clock.Clock
}

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(pool *pgxpool.Pool, clk clock.Clock) *AssignmentService {
	return &AssignmentService{pool: pool, clk: clk}
}

const assignmentColumns = `id, student_id, title, subject, due_at, score,
	max_score, graded_at, created_at, updated_at`

// AssignmentCreateParams describes a new assignment.
type AssignmentCreateParams struct {
	StudentID uuid.UUID
	Title     string
	Subject   string
	DueAt     time.Time
	MaxScore  float64
}

// Create records a new assignment for a student.
func (as *AssignmentService) Create(ctx context.Context, p AssignmentCreateParams) (*models.Assignment, error) {
	if p.Title == "" {
		return nil, errors.New("title is required")
	}
	if p.MaxScore <= 0 {
		return nil, errors.New("max score must be positive")
	}

	now := as.clk.Now()
	a := &models.Assignment{
		ID:        uuid.New(),
		StudentID: p.StudentID,
		Title:     p.Title,
		Subject:   p.Subject,
		DueAt:     p.DueAt,
		MaxScore:  p.MaxScore,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := as.pool.Exec(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.StudentID, a.Title, a.Subject, a.DueAt, a.Score,
		a.MaxScore, a.GradedAt, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	return a, nil
}

func scanAssignment(row pgx.Row) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(
		&a.ID, &a.StudentID, &a.Title, &a.Subject, &a.DueAt, &a.Score,
		&a.MaxScore, &a.GradedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}
	return &a, nil
}

// GetByID returns an assignment or ErrAssignmentNotFound.
func (as *AssignmentService) GetByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	row := as.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	return scanAssignment(row)
}

// ListByStudent returns a student's assignments, soonest due first.
func (as *AssignmentService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Assignment, error) {
	rows, err := as.pool.Query(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE student_id = $1 ORDER BY due_at`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []*models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(
			&a.ID, &a.StudentID, &a.Title, &a.Subject, &a.DueAt, &a.Score,
			&a.MaxScore, &a.GradedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return out, nil
}

// Grade records a score. The score must not exceed the assignment's maximum.
func (as *AssignmentService) Grade(ctx context.Context, id uuid.UUID, score float64) (*models.Assignment, error) {
	a, err := as.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if score < 0 || score > a.MaxScore {
		return nil, fmt.Errorf("score must be between 0 and %.1f", a.MaxScore)
	}

	now := as.clk.Now()
	_, err = as.pool.Exec(ctx,
		`UPDATE assignments SET score = $2, graded_at = $3, updated_at = $3 WHERE id = $1`,
		id, score, now)
	if err != nil {
		return nil, fmt.Errorf("failed to grade assignment: %w", err)
	}
	a.Score = &score
	a.GradedAt = &now
	a.UpdatedAt = now
	return a, nil
}

// Delete removes an assignment.
func (as *AssignmentService) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := as.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}
