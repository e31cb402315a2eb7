package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusware/school-admin-server/src/clock"
	"github.com/campusware/school-admin-server/src/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// StudentService handles student enrollment records.
type StudentService struct {
	pool *pgxpool.Pool
	clk  clock.Clock
}

// NewStudentService creates a new student service.
func NewStudentService(pool *pgxpool.Pool, clk clock.Clock) *StudentService {
	return &StudentService{pool: pool, clk: clk}
}

const studentColumns = `id, first_name, last_name, grade_level, email,
	enrolled_at, withdrawn_at, created_at, updated_at`

// StudentCreateParams describes a student to enroll.
type StudentCreateParams struct {
	FirstName  string
	LastName   string
	GradeLevel int
	Email      string
}

// Create enrolls a new student.
func (ss *StudentService) Create(ctx context.Context, p StudentCreateParams) (*models.Student, error) {
	if p.FirstName == "" || p.LastName == "" {
		return nil, errors.New("first and last name are required")
	}
	if p.GradeLevel < 0 || p.GradeLevel > 12 {
		return nil, errors.New("grade level must be between 0 and 12")
	}

	now := ss.clk.Now()
	student := &models.Student{
		ID:         uuid.New(),
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		GradeLevel: p.GradeLevel,
		Email:      p.Email,
		EnrolledAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := ss.pool.Exec(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, student.ID, student.FirstName, student.LastName, student.GradeLevel,
		student.Email, student.EnrolledAt, student.WithdrawnAt, student.CreatedAt, student.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	log.Info().Str("student_id", student.ID.String()).Int("grade", student.GradeLevel).Msg("student enrolled")
	return student, nil
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	var s models.Student
	err := row.Scan(
		&s.ID, &s.FirstName, &s.LastName, &s.GradeLevel, &s.Email,
		&s.EnrolledAt, &s.WithdrawnAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}
	return &s, nil
}

// GetByID returns a student record or ErrStudentNotFound.
func (ss *StudentService) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	row := ss.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	return scanStudent(row)
}

// List returns students, optionally filtered by grade level. gradeLevel < 0
// means all grades. Withdrawn students are included.
func (ss *StudentService) List(ctx context.Context, gradeLevel int) ([]*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	args := []interface{}{}
	if gradeLevel >= 0 {
		query += ` WHERE grade_level = $1`
		args = append(args, gradeLevel)
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := ss.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(
			&s.ID, &s.FirstName, &s.LastName, &s.GradeLevel, &s.Email,
			&s.EnrolledAt, &s.WithdrawnAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating students: %w", err)
	}
	return students, nil
}

// StudentUpdateParams holds optional mutations. Nil fields are unchanged.
type StudentUpdateParams struct {
	FirstName  *string
	LastName   *string
	GradeLevel *int
	Email      *string
}

// Update applies mutations to a student record.
func (ss *StudentService) Update(ctx context.Context, id uuid.UUID, p StudentUpdateParams) (*models.Student, error) {
	student, err := ss.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.FirstName != nil {
		student.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		student.LastName = *p.LastName
	}
	if p.GradeLevel != nil {
		if *p.GradeLevel < 0 || *p.GradeLevel > 12 {
			return nil, errors.New("grade level must be between 0 and 12")
		}
		student.GradeLevel = *p.GradeLevel
	}
	if p.Email != nil {
		student.Email = *p.Email
	}
	student.UpdatedAt = ss.clk.Now()

	_, err = ss.pool.Exec(ctx, `
		UPDATE students SET first_name = $2, last_name = $3, grade_level = $4,
			email = $5, updated_at = $6
		WHERE id = $1
	`, student.ID, student.FirstName, student.LastName, student.GradeLevel,
		student.Email, student.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	return student, nil
}

// Withdraw marks a student as withdrawn as of now. Idempotent.
func (ss *StudentService) Withdraw(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	student, err := ss.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if student.WithdrawnAt != nil {
		return student, nil
	}

	now := ss.clk.Now()
	_, err = ss.pool.Exec(ctx,
		`UPDATE students SET withdrawn_at = $2, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw student: %w", err)
	}
	student.WithdrawnAt = &now
	student.UpdatedAt = now

	log.Info().Str("student_id", id.String()).Msg("student withdrawn")
	return student, nil
}

// Delete removes a student and, via foreign keys, the dependent records.
func (ss *StudentService) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := ss.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}
