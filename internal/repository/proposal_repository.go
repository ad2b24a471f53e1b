package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

const proposalColumns = `id, title, description, target_date, budget, department_id, user_id, community_id, banner_program_id,
       status, current_approval_step, created_at, updated_at`

// ProposalRepository persists proposals and their workflow state.
type ProposalRepository struct {
	db *sqlx.DB
}

// NewProposalRepository constructs the repository.
func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a proposal row.
func (r *ProposalRepository) Create(ctx context.Context, exec sqlx.ExtContext, proposal *models.Proposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	if proposal.Status == "" {
		proposal.Status = models.ProposalStatusPending
	}
	now := time.Now().UTC()
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = now
	}
	if proposal.UpdatedAt.IsZero() {
		proposal.UpdatedAt = proposal.CreatedAt
	}

	const query = `INSERT INTO proposals (id, title, description, target_date, budget, department_id, user_id, community_id,
	banner_program_id, status, current_approval_step, created_at, updated_at)
VALUES (:id, :title, :description, :target_date, :budget, :department_id, :user_id, :community_id,
	:banner_program_id, :status, :current_approval_step, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, proposal); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

// GetByID loads a proposal without locking.
func (r *ProposalRepository) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1`
	var proposal models.Proposal
	if err := r.db.GetContext(ctx, &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// GetForUpdate loads a proposal and row-locks it until the surrounding transaction ends.
func (r *ProposalRepository) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = $1 FOR UPDATE`
	var proposal models.Proposal
	if err := sqlx.GetContext(ctx, r.exec(exec), &proposal, query, id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// UpdateProposalStateParams moves a proposal from an expected state to a new one.
type UpdateProposalStateParams struct {
	ID             string
	ExpectedStatus models.ProposalStatus
	ExpectedStep   *models.UserRole
	Status         models.ProposalStatus
	Step           *models.UserRole
	UpdatedAt      time.Time
}

// UpdateState performs a compare-and-set on status and current step.
// sql.ErrNoRows means the proposal no longer matches the expected state.
func (r *ProposalRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, params UpdateProposalStateParams) error {
	const query = `UPDATE proposals SET status = $1, current_approval_step = $2, updated_at = $3
WHERE id = $4 AND status = $5 AND current_approval_step IS NOT DISTINCT FROM $6`
	result, err := r.exec(exec).ExecContext(ctx, query,
		params.Status, params.Step, params.UpdatedAt, params.ID, params.ExpectedStatus, params.ExpectedStep)
	if err != nil {
		return fmt.Errorf("update proposal state: %w", err)
	}
	return expectAffected(result, "update proposal state")
}

// ListPendingByStep returns PENDING proposals waiting on the given chain role, oldest first.
func (r *ProposalRepository) ListPendingByStep(ctx context.Context, step models.UserRole) ([]models.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals
WHERE status = 'PENDING' AND current_approval_step = $1 ORDER BY created_at ASC`
	var proposals []models.Proposal
	if err := r.db.SelectContext(ctx, &proposals, query, step); err != nil {
		return nil, fmt.Errorf("list pending proposals: %w", err)
	}
	return proposals, nil
}
