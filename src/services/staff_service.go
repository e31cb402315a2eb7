package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusware/school-admin-server/src/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// StaffService handles staff account operations: creation, authentication
// and the first-run auto-seed.
type StaffService struct {
	pool *pgxpool.Pool
}

// NewStaffService creates a new staff service.
func NewStaffService(pool *pgxpool.Pool) *StaffService {
	return &StaffService{pool: pool}
}

// CreateStaffUser creates a staff account with a bcrypt-hashed password.
func (ss *StaffService) CreateStaffUser(ctx context.Context, username, password, role string) (*models.StaffUser, error) {
	if len(username) < 1 || len(username) > 255 {
		return nil, errors.New("username must be between 1 and 255 characters")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	if role == "" {
		role = "teacher"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	staff := &models.StaffUser{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
		IsActive:     true,
	}

	_, err = ss.pool.Exec(ctx, `
		INSERT INTO staff_users (id, username, password_hash, role, created_at, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
	`, staff.ID, staff.Username, staff.PasswordHash, staff.Role, staff.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create staff user: %w", err)
	}

	return staff, nil
}

// HasStaff reports whether any staff accounts exist.
func (ss *StaffService) HasStaff(ctx context.Context) (bool, error) {
	var count int
	if err := ss.pool.QueryRow(ctx, "SELECT COUNT(*) FROM staff_users").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check staff users: %w", err)
	}
	return count > 0, nil
}

// Authenticate verifies username and password and touches last_login.
// Unknown user and wrong password are indistinguishable to the caller.
func (ss *StaffService) Authenticate(ctx context.Context, username, password string) (*models.StaffUser, error) {
	staff := &models.StaffUser{}
	err := ss.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at, last_login, is_active
		FROM staff_users
		WHERE username = $1 AND is_active = true
	`, username).Scan(
		&staff.ID, &staff.Username, &staff.PasswordHash, &staff.Role,
		&staff.CreatedAt, &staff.LastLogin, &staff.IsActive,
	)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if _, err := ss.pool.Exec(ctx, `UPDATE staff_users SET last_login = $1 WHERE id = $2`, now, staff.ID); err != nil {
		log.Warn().Err(err).Str("username", staff.Username).Msg("failed to update last_login")
	}
	staff.LastLogin = &now

	return staff, nil
}

// GetByUsername retrieves a staff user by username.
func (ss *StaffService) GetByUsername(ctx context.Context, username string) (*models.StaffUser, error) {
	staff := &models.StaffUser{}
	err := ss.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at, last_login, is_active
		FROM staff_users
		WHERE username = $1
	`, username).Scan(
		&staff.ID, &staff.Username, &staff.PasswordHash, &staff.Role,
		&staff.CreatedAt, &staff.LastLogin, &staff.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to load staff user: %w", err)
	}
	return staff, nil
}

// SeedInitialAdmin creates the first admin account from configuration when
// no staff exist yet. Runs once at startup; a no-op on every later boot.
func (ss *StaffService) SeedInitialAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	exists, err := ss.HasStaff(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := ss.CreateStaffUser(ctx, username, password, "admin"); err != nil {
		return fmt.Errorf("failed to seed initial admin: %w", err)
	}
	log.Info().Str("username", username).Msg("Initial admin account created")
	return nil
}
