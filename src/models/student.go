package models

import (
	"time"

	"github.com/google/uuid"
)

// Student represents an enrolled student.
type Student struct {
	ID             uuid.UUID  `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	GradeLevel     int        `json:"grade_level"`
	Email          string     `json:"email,omitempty"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	WithdrawnAt    *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Enrolled reports whether the student is currently enrolled.
func (s *Student) Enrolled() bool {
	return s.WithdrawnAt == nil
}
