package models

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is a graded piece of work assigned to a student.
type Assignment struct {
	ID        uuid.UUID  `json:"id"`
	StudentID uuid.UUID  `json:"student_id"`
	Title     string     `json:"title"`
	Subject   string     `json:"subject"`
	DueAt     time.Time  `json:"due_at"`
	Score     *float64   `json:"score,omitempty"`
	MaxScore  float64    `json:"max_score"`
	GradedAt  *time.Time `json:"graded_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Graded reports whether a score has been recorded.
func (a *Assignment) Graded() bool {
	return a.GradedAt != nil
}
