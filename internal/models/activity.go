package models

import "time"

// ActivityStatus tracks the lifecycle of a materialized activity.
type ActivityStatus string

const (
	ActivityStatusUpcoming  ActivityStatus = "UPCOMING"
	ActivityStatusOngoing   ActivityStatus = "ONGOING"
	ActivityStatusCompleted ActivityStatus = "COMPLETED"
	ActivityStatusCancelled ActivityStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusUpcoming, ActivityStatusOngoing, ActivityStatusCompleted, ActivityStatusCancelled:
		return true
	}
	return false
}

// Activity is the schedulable unit of work created from a fully approved proposal.
type Activity struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     string         `db:"description" json:"description"`
	TargetDate      time.Time      `db:"target_date" json:"target_date"`
	Status          ActivityStatus `db:"status" json:"status"`
	DepartmentID    string         `db:"department_id" json:"department_id"`
	CommunityID     *string        `db:"community_id" json:"community_id,omitempty"`
	BannerProgramID *string        `db:"banner_program_id" json:"banner_program_id,omitempty"`
	ProposalID      *string        `db:"proposal_id" json:"proposal_id,omitempty"`
	SchoolYearID    string         `db:"school_year_id" json:"school_year_id"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// ActivityFilter constrains activity listings.
type ActivityFilter struct {
	Status       []ActivityStatus
	DepartmentID string
	SchoolYearID string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}
