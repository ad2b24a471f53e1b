package models

import "time"

// ProposalStatus captures the overall workflow state of a proposal.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "PENDING"
	ProposalStatusApproved ProposalStatus = "APPROVED"
	ProposalStatusReturned ProposalStatus = "RETURNED"
)

// Terminal reports whether no further approval decisions can be recorded.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusApproved || s == ProposalStatusReturned
}

// Proposal is a request to run a community extension project.
type Proposal struct {
	ID                  string         `db:"id" json:"id"`
	Title               string         `db:"title" json:"title"`
	Description         string         `db:"description" json:"description"`
	TargetDate          time.Time      `db:"target_date" json:"target_date"`
	Budget              float64        `db:"budget" json:"budget"`
	DepartmentID        *string        `db:"department_id" json:"department_id,omitempty"`
	UserID              string         `db:"user_id" json:"user_id"`
	CommunityID         *string        `db:"community_id" json:"community_id,omitempty"`
	BannerProgramID     *string        `db:"banner_program_id" json:"banner_program_id,omitempty"`
	Status              ProposalStatus `db:"status" json:"status"`
	CurrentApprovalStep *UserRole      `db:"current_approval_step" json:"current_approval_step,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// StaleProposal is a pending proposal whose active ledger step has not moved since LastUpdated.
type StaleProposal struct {
	ProposalID    string    `db:"proposal_id"`
	Title         string    `db:"title"`
	SubmittedBy   string    `db:"submitted_by"`
	SubmitterName string    `db:"submitter_name"`
	SubmittedAt   time.Time `db:"submitted_at"`
	Step          UserRole  `db:"step"`
	LastUpdated   time.Time `db:"last_updated"`
}
