package dto

import (
	"time"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

// LifecycleSweepResult summarises one activity lifecycle run.
type LifecycleSweepResult struct {
	RanAt       time.Time  `json:"ranAt"`
	WindowStart *time.Time `json:"windowStart,omitempty"`
	WindowEnd   time.Time  `json:"windowEnd"`
	Promoted    int        `json:"promoted"`
	ActivityIDs []string   `json:"activityIds"`
}

// EscalationItemResult is the outcome for one stale proposal.
type EscalationItemResult struct {
	ProposalID string          `json:"proposalId"`
	Title      string          `json:"title"`
	Step       models.UserRole `json:"step"`
	Recipients int             `json:"recipients"`
	Emailed    int             `json:"emailed"`
	Error      string          `json:"error,omitempty"`
}

// Succeeded reports whether at least one approver received the reminder.
func (r EscalationItemResult) Succeeded() bool {
	return r.Error == "" && r.Recipients > 0
}

// EscalationSweepResult summarises one escalation run.
type EscalationSweepResult struct {
	RanAt    time.Time              `json:"ranAt"`
	Cutoff   time.Time              `json:"cutoff"`
	Scanned  int                    `json:"scanned"`
	Reminded int                    `json:"reminded"`
	Failed   int                    `json:"failed"`
	Items    []EscalationItemResult `json:"items"`
}

// SchedulerRunResponse wraps a manually triggered job.
type SchedulerRunResponse struct {
	Job        string      `json:"job"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Result     interface{} `json:"result"`
}
