package dto

import (
	"time"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

// SubmitProposalRequest is the payload for entering a proposal into the approval chain.
type SubmitProposalRequest struct {
	Title           string    `json:"title" validate:"required,max=255"`
	Description     string    `json:"description"`
	TargetDate      time.Time `json:"targetDate" validate:"required"`
	Budget          float64   `json:"budget" validate:"gte=0"`
	DepartmentID    *string   `json:"departmentId" validate:"omitempty,uuid"`
	CommunityID     *string   `json:"communityId" validate:"omitempty,uuid"`
	BannerProgramID *string   `json:"bannerProgramId" validate:"omitempty,uuid"`
}

// ApproveRequest carries an optional approver comment.
type ApproveRequest struct {
	Comment string `json:"comment" validate:"max=2000"`
}

// ReturnRequest carries the reason a proposal goes back to its owner.
type ReturnRequest struct {
	Comment string `json:"comment" validate:"required,max=2000"`
}

// ApprovalDecisionResponse reports the proposal state after a decision.
type ApprovalDecisionResponse struct {
	Proposal   models.Proposal `json:"proposal"`
	ActivityID *string         `json:"activityId,omitempty"`
}

// ApprovalHistoryResponse pairs a proposal with its ledger in chain order.
type ApprovalHistoryResponse struct {
	Proposal models.Proposal       `json:"proposal"`
	Steps    []models.ApprovalStep `json:"steps"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format"`
}
