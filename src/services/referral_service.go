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

var (
	// ErrReferralNotFound indicates the referral does not exist
	ErrReferralNotFound = errors.New("referral not found")

	// ErrReferralAlreadyResolved indicates resolution was attempted twice
	ErrReferralAlreadyResolved = errors.New("referral already resolved")
)

// ReferralService handles disciplinary referrals.
type ReferralService struct {
	pool *pgxpool.Pool
	clk  clock.Clock
}

// NewReferralService creates a new referral service.
func NewReferralService(pool *pgxpool.Pool, clk clock.Clock) *ReferralService {
	return &ReferralService{pool: pool, clk: clk}
}

const referralColumns = `id, student_id, reported_by, category, description,
	status, resolution, filed_at, resolved_at`

// ReferralFileParams describes a referral being filed.
type ReferralFileParams struct {
	StudentID   uuid.UUID
	ReportedBy  string
	Category    string
	Description string
}

// File records a new open referral.
func (rs *ReferralService) File(ctx context.Context, p ReferralFileParams) (*models.Referral, error) {
	if p.ReportedBy == "" || p.Category == "" {
		return nil, errors.New("reporter and category are required")
	}

	r := &models.Referral{
		ID:          uuid.New(),
		StudentID:   p.StudentID,
		ReportedBy:  p.ReportedBy,
		Category:    p.Category,
		Description: p.Description,
		Status:      models.ReferralStatusOpen,
		FiledAt:     rs.clk.Now(),
	}

	_, err := rs.pool.Exec(ctx, `
		INSERT INTO referrals (`+referralColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.StudentID, r.ReportedBy, r.Category, r.Description,
		r.Status, r.Resolution, r.FiledAt, r.ResolvedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to file referral: %w", err)
	}

	log.Info().
		Str("referral_id", r.ID.String()).
		Str("student_id", r.StudentID.String()).
		Str("category", r.Category).
		Msg("referral filed")
	return r, nil
}

func scanReferral(row pgx.Row) (*models.Referral, error) {
	var r models.Referral
	err := row.Scan(
		&r.ID, &r.StudentID, &r.ReportedBy, &r.Category, &r.Description,
		&r.Status, &r.Resolution, &r.FiledAt, &r.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("failed to scan referral: %w", err)
	}
	return &r, nil
}

// GetByID returns a referral or ErrReferralNotFound.
func (rs *ReferralService) GetByID(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	row := rs.pool.QueryRow(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = $1`, id)
	return scanReferral(row)
}

func (rs *ReferralService) list(ctx context.Context, query string, args ...interface{}) ([]*models.Referral, error) {
	rows, err := rs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	defer rows.Close()

	var out []*models.Referral
	for rows.Next() {
		var r models.Referral
		if err := rows.Scan(
			&r.ID, &r.StudentID, &r.ReportedBy, &r.Category, &r.Description,
			&r.Status, &r.Resolution, &r.FiledAt, &r.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referrals: %w", err)
	}
	return out, nil
}

// ListByStudent returns a student's referrals, newest first.
func (rs *ReferralService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*models.Referral, error) {
	return rs.list(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE student_id = $1 ORDER BY filed_at DESC`, studentID)
}

// ListOpen returns all unresolved referrals, oldest first.
func (rs *ReferralService) ListOpen(ctx context.Context) ([]*models.Referral, error) {
	return rs.list(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE status = $1 ORDER BY filed_at`,
		models.ReferralStatusOpen)
}

// Resolve records an outcome and closes the referral. Resolving twice is an
// error; the first resolution is final.
func (rs *ReferralService) Resolve(ctx context.Context, id uuid.UUID, resolution string) (*models.Referral, error) {
	r, err := rs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == models.ReferralStatusResolved {
		return nil, ErrReferralAlreadyResolved
	}

	now := rs.clk.Now()
	_, err = rs.pool.Exec(ctx, `
		UPDATE referrals SET status = $2, resolution = $3, resolved_at = $4 WHERE id = $1
	`, id, models.ReferralStatusResolved, resolution, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve referral: %w", err)
	}

	r.Status = models.ReferralStatusResolved
	r.Resolution = resolution
	r.ResolvedAt = &now
	return r, nil
}
