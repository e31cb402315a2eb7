package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus tracks a disciplinary referral through its workflow.
type ReferralStatus string

const (
	// ReferralStatusOpen indicates the referral has been filed and awaits review
	ReferralStatusOpen ReferralStatus = "open"
	// ReferralStatusResolved indicates an outcome has been recorded
	ReferralStatusResolved ReferralStatus = "resolved"
)

// Referral is a disciplinary referral filed against a student.
type Referral struct {
	ID          uuid.UUID      `json:"id"`
	StudentID   uuid.UUID      `json:"student_id"`
	ReportedBy  string         `json:"reported_by"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Status      ReferralStatus `json:"status"`
	Resolution  string         `json:"resolution,omitempty"`
	FiledAt     time.Time      `json:"filed_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}
