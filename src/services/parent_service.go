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
)

var (
	// ErrParentLinkNotFound indicates the parent link does not exist
	ErrParentLinkNotFound = errors.New("parent link not found")

	// ErrNoPrimaryContact indicates the student has no primary contact on file
	ErrNoPrimaryContact = errors.New("no primary contact on file")
)

// ParentService manages parent and guardian contacts for students.
type ParentService struct {
	pool *pgxpool.Pool
	clk  clock.Clock
}

// NewParentService creates a new parent service.
func NewParentService(pool *pgxpool.Pool, clk clock.Clock) *ParentService {
	return &ParentService{pool: pool, clk: clk}
}

const parentColumns = `id, student_id, parent_name, parent_email, relationship,
	is_primary, created_at`

// ParentLinkParams describes a contact to link to a student.
type ParentLinkParams struct {
	StudentID    uuid.UUID
	ParentName   string
	ParentEmail  string
	Relationship string
	Primary      bool
}

// Link associates a parent contact with a student. Marking a contact as
// primary demotes any existing primary contact for that student.
func (ps *ParentService) Link(ctx context.Context, p ParentLinkParams) (*models.ParentLink, error) {
	if p.ParentName == "" || p.ParentEmail == "" {
		return nil, errors.New("parent name and email are required")
	}

	link := &models.ParentLink{
		ID:           uuid.New(),
		StudentID:    p.StudentID,
		ParentName:   p.ParentName,
		ParentEmail:  p.ParentEmail,
		Relationship: p.Relationship,
		Primary:      p.Primary,
		CreatedAt:    ps.clk.Now(),
	}

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if p.Primary {
		if _, err := tx.Exec(ctx,
			`UPDATE parent_links SET is_primary = false WHERE student_id = $1 AND is_primary = true`,
			p.StudentID); err != nil {
			return nil, fmt.Errorf("failed to demote existing primary contact: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO parent_links (`+parentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, link.ID, link.StudentID, link.ParentName, link.ParentEmail,
		link.Relationship, link.Primary, link.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to link parent: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit parent link: %w", err)
	}
	return link, nil
}

// ListByStudent returns a student's parent contacts, primary first.
func (ps *ParentService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.ParentLink, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT `+parentColumns+` FROM parent_links
		WHERE student_id = $1 ORDER BY is_primary DESC, created_at
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parent links: %w", err)
	}
	defer rows.Close()

	var out []*models.ParentLink
	for rows.Next() {
		var l models.ParentLink
		if err := rows.Scan(
			&l.ID, &l.StudentID, &l.ParentName, &l.ParentEmail,
			&l.Relationship, &l.Primary, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan parent link: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parent links: %w", err)
	}
	return out, nil
}

// PrimaryContact returns the student's primary contact.
func (ps *ParentService) PrimaryContact(ctx context.Context, studentID uuid.UUID) (*models.ParentLink, error) {
	var l models.ParentLink
	err := ps.pool.QueryRow(ctx, `
		SELECT `+parentColumns+` FROM parent_links
		WHERE student_id = $1 AND is_primary = true
	`, studentID).Scan(
		&l.ID, &l.StudentID, &l.ParentName, &l.ParentEmail,
		&l.Relationship, &l.Primary, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPrimaryContact
		}
		return nil, fmt.Errorf("failed to load primary contact: %w", err)
	}
	return &l, nil
}

// Unlink removes a parent contact.
func (ps *ParentService) Unlink(ctx context.Context, id uuid.UUID) error {
	result, err := ps.pool.Exec(ctx, `DELETE FROM parent_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to unlink parent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrParentLinkNotFound
	}
	return nil
}
