package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportKind identifies what a scheduled report contains.
type ReportKind string

const (
	// ReportKindProgress is a periodic grade/progress summary
	ReportKindProgress ReportKind = "progress"
	// ReportKindAttendance summarizes attendance over the period
	ReportKindAttendance ReportKind = "attendance"
	// ReportKindDiscipline summarizes disciplinary referrals
	ReportKindDiscipline ReportKind = "discipline"
)

// ReportSchedule describes a recurring report emailed to a parent.
type ReportSchedule struct {
	ID         uuid.UUID  `json:"id"`
	StudentID  uuid.UUID  `json:"student_id"`
	Kind       ReportKind `json:"kind"`
	Recipient  string     `json:"recipient"`
	IntervalDays int      `json:"interval_days"`
	NextDueAt  time.Time  `json:"next_due_at"`
	LastSentAt *time.Time `json:"last_sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
