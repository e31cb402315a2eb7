package models

import (
	"time"

	"github.com/google/uuid"
)

// ParentLink associates a parent or guardian with a student.
type ParentLink struct {
	ID           uuid.UUID `json:"id"`
	StudentID    uuid.UUID `json:"student_id"`
	ParentName   string    `json:"parent_name"`
	ParentEmail  string    `json:"parent_email"`
	Relationship string    `json:"relationship"` // mother, father, guardian
	Primary      bool      `json:"primary"`
	CreatedAt    time.Time `json:"created_at"`
}
