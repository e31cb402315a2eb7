package models

import (
	"time"

	"github.com/google/uuid"
)

// StaffUser represents a staff account that can log in and manage API keys
// and domain records.
type StaffUser struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // never expose
	Role         string     `json:"role"` // admin, teacher, counselor
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
	IsActive     bool       `json:"is_active"`
}
