package models

import "time"

// ApprovalStatus is the decision recorded for one ledger step.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusReturned ApprovalStatus = "RETURNED"
)

// ApprovalStep is one row of the approval ledger: a single chain role's decision on a proposal.
// IsActive marks the step currently awaiting a decision.
type ApprovalStep struct {
	ID         string         `db:"id" json:"id"`
	ProposalID string         `db:"proposal_id" json:"proposal_id"`
	Role       UserRole       `db:"role" json:"role"`
	Position   int            `db:"position" json:"position"`
	Status     ApprovalStatus `db:"status" json:"status"`
	Comment    *string        `db:"comment" json:"comment,omitempty"`
	ApprovedBy *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	IsActive   bool           `db:"is_active" json:"is_active"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
