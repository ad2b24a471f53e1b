package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

const approvalStepColumns = `id, proposal_id, role, position, status, comment, approved_by, approved_at, is_active, created_at, updated_at`

// ApprovalRepository persists the per-proposal approval ledger.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateSteps inserts one PENDING row per chain role. The first role starts active.
func (r *ApprovalRepository) CreateSteps(ctx context.Context, exec sqlx.ExtContext, proposalID string, chain []models.UserRole, at time.Time) ([]models.ApprovalStep, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("approval chain is empty")
	}

	steps := make([]models.ApprovalStep, len(chain))
	values := make([]string, 0, len(chain))
	args := make([]interface{}, 0, len(chain)*8)
	for i, role := range chain {
		steps[i] = models.ApprovalStep{
			ID:         uuid.NewString(),
			ProposalID: proposalID,
			Role:       role,
			Position:   i + 1,
			Status:     models.ApprovalStatusPending,
			IsActive:   i == 0,
			CreatedAt:  at,
			UpdatedAt:  at,
		}
		base := len(args)
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, steps[i].ID, proposalID, role, steps[i].Position, steps[i].Status, steps[i].IsActive, at, at)
	}

	query := `INSERT INTO approval_steps (id, proposal_id, role, position, status, is_active, created_at, updated_at) VALUES ` +
		strings.Join(values, ", ")
	if _, err := r.exec(exec).ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert approval steps: %w", err)
	}
	return steps, nil
}

// ListByProposal returns the ledger ordered by chain position.
func (r *ApprovalRepository) ListByProposal(ctx context.Context, proposalID string) ([]models.ApprovalStep, error) {
	query := `SELECT ` + approvalStepColumns + ` FROM approval_steps WHERE proposal_id = $1 ORDER BY position ASC`
	var steps []models.ApprovalStep
	if err := r.db.SelectContext(ctx, &steps, query, proposalID); err != nil {
		return nil, fmt.Errorf("list approval steps: %w", err)
	}
	return steps, nil
}

// DecideStepParams captures a single approver decision.
type DecideStepParams struct {
	ProposalID string
	Role       models.UserRole
	Status     models.ApprovalStatus
	Comment    *string
	DecidedBy  string
	DecidedAt  time.Time
}

// Decide records a decision on the active PENDING step for the role and deactivates it.
// sql.ErrNoRows means the step was not awaiting a decision.
func (r *ApprovalRepository) Decide(ctx context.Context, exec sqlx.ExtContext, params DecideStepParams) error {
	const query = `UPDATE approval_steps
SET status = $1, comment = $2, approved_by = $3, approved_at = $4, is_active = FALSE, updated_at = $4
WHERE proposal_id = $5 AND role = $6 AND status = 'PENDING' AND is_active = TRUE`
	result, err := r.exec(exec).ExecContext(ctx, query,
		params.Status, params.Comment, params.DecidedBy, params.DecidedAt, params.ProposalID, params.Role)
	if err != nil {
		return fmt.Errorf("decide approval step: %w", err)
	}
	return expectAffected(result, "decide approval step")
}

// Activate marks the PENDING step for role as the current one. Touching updated_at restarts
// the staleness clock for escalation.
func (r *ApprovalRepository) Activate(ctx context.Context, exec sqlx.ExtContext, proposalID string, role models.UserRole, at time.Time) error {
	const query = `UPDATE approval_steps SET is_active = TRUE, updated_at = $1
WHERE proposal_id = $2 AND role = $3 AND status = 'PENDING' AND is_active = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, at, proposalID, role)
	if err != nil {
		return fmt.Errorf("activate approval step: %w", err)
	}
	return expectAffected(result, "activate approval step")
}

// ResetForResubmission reopens every ledger row of a returned proposal and activates firstRole.
func (r *ApprovalRepository) ResetForResubmission(ctx context.Context, exec sqlx.ExtContext, proposalID string, firstRole models.UserRole, at time.Time) error {
	const query = `UPDATE approval_steps
SET status = 'PENDING', comment = NULL, approved_by = NULL, approved_at = NULL, is_active = (role = $1), updated_at = $2
WHERE proposal_id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, firstRole, at, proposalID)
	if err != nil {
		return fmt.Errorf("reset approval steps: %w", err)
	}
	return expectAffected(result, "reset approval steps")
}

// ListStale returns pending proposals whose current step has not changed since before.
func (r *ApprovalRepository) ListStale(ctx context.Context, before time.Time) ([]models.StaleProposal, error) {
	const query = `SELECT p.id AS proposal_id, p.title, p.user_id AS submitted_by,
       COALESCE(u.full_name, '') AS submitter_name, p.created_at AS submitted_at,
       s.role AS step, s.updated_at AS last_updated
FROM proposals p
JOIN approval_steps s ON s.proposal_id = p.id AND s.role = p.current_approval_step
LEFT JOIN users u ON u.id = p.user_id
WHERE p.status = 'PENDING' AND s.status = 'PENDING' AND s.is_active = TRUE AND s.updated_at < $1
ORDER BY s.updated_at ASC`
	var stale []models.StaleProposal
	if err := r.db.SelectContext(ctx, &stale, query, before); err != nil {
		return nil, fmt.Errorf("list stale approvals: %w", err)
	}
	return stale, nil
}

func expectAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
