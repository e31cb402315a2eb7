package models

import (
	"time"

	"github.com/google/uuid"
)

// IEPMeeting is a scheduled Individualized Education Program meeting
// for a student.
type IEPMeeting struct {
	ID          uuid.UUID  `json:"id"`
	StudentID   uuid.UUID  `json:"student_id"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Location    string     `json:"location"`
	Attendees   []string   `json:"attendees"`
	Outcome     string     `json:"outcome,omitempty"`
	HeldAt      *time.Time `json:"held_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
