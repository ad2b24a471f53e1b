package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/internal/repository"
	"github.com/generyand/umdc-cec-system-sub001/pkg/database"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/middleware/requestid"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type proposalStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, proposal *models.Proposal) error
	GetByID(ctx context.Context, id string) (*models.Proposal, error)
	GetForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Proposal, error)
	UpdateState(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateProposalStateParams) error
	ListPendingByStep(ctx context.Context, step models.UserRole) ([]models.Proposal, error)
}

type approvalLedger interface {
	CreateSteps(ctx context.Context, exec sqlx.ExtContext, proposalID string, chain []models.UserRole, at time.Time) ([]models.ApprovalStep, error)
	ListByProposal(ctx context.Context, proposalID string) ([]models.ApprovalStep, error)
	Decide(ctx context.Context, exec sqlx.ExtContext, params repository.DecideStepParams) error
	Activate(ctx context.Context, exec sqlx.ExtContext, proposalID string, role models.UserRole, at time.Time) error
	ResetForResubmission(ctx context.Context, exec sqlx.ExtContext, proposalID string, firstRole models.UserRole, at time.Time) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type activityMaterializer interface {
	CreateFromProposal(ctx context.Context, tx *sqlx.Tx, proposal *models.Proposal) (*models.Activity, error)
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, notifications ...models.Notification)
}

// ApprovalService drives proposals through the approval chain. Every decision runs in one
// transaction that row-locks the proposal; notifications are sent after commit.
type ApprovalService struct {
	proposals     proposalStore
	ledger        approvalLedger
	users         userDirectory
	materializer  activityMaterializer
	notifications notificationDispatcher
	templates     NotificationTemplates
	audit         auditLogger
	tx            txProvider
	chain         ApprovalChain
	cache         *CacheService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// ApprovalServiceOption configures the service.
type ApprovalServiceOption func(*ApprovalService)

// WithApprovalChain swaps the default chain.
func WithApprovalChain(chain ApprovalChain) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if chain.Len() > 0 {
			s.chain = chain
		}
	}
}

// WithApprovalTemplates overrides notification rendering.
func WithApprovalTemplates(templates NotificationTemplates) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.templates = templates
	}
}

// WithApprovalCache enables caching of pending-approval lists.
func WithApprovalCache(cache *CacheService) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.cache = cache
	}
}

// WithApprovalMetrics records transitions.
func WithApprovalMetrics(metrics *MetricsService) ApprovalServiceOption {
	return func(s *ApprovalService) {
		s.metrics = metrics
	}
}

// WithApprovalClock overrides the time source.
func WithApprovalClock(now func() time.Time) ApprovalServiceOption {
	return func(s *ApprovalService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewApprovalService wires approval dependencies.
func NewApprovalService(
	proposals proposalStore,
	ledger approvalLedger,
	users userDirectory,
	materializer activityMaterializer,
	notifications notificationDispatcher,
	audit auditLogger,
	tx txProvider,
	logger *zap.Logger,
	opts ...ApprovalServiceOption,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ApprovalService{
		proposals:     proposals,
		ledger:        ledger,
		users:         users,
		materializer:  materializer,
		notifications: notifications,
		audit:         audit,
		tx:            tx,
		chain:         DefaultApprovalChain(),
		validator:     validator.New(),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Chain exposes the configured approval chain.
func (s *ApprovalService) Chain() ApprovalChain {
	return s.chain
}

// Submit creates a PENDING proposal at the first chain step together with its ledger rows.
func (s *ApprovalService) Submit(ctx context.Context, userID string, req dto.SubmitProposalRequest) (*models.Proposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}
	owner, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	first := s.chain.First()
	now := s.now()
	proposal := &models.Proposal{
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		TargetDate:          req.TargetDate,
		Budget:              req.Budget,
		DepartmentID:        req.DepartmentID,
		UserID:              owner.ID,
		CommunityID:         req.CommunityID,
		BannerProgramID:     req.BannerProgramID,
		Status:              models.ProposalStatusPending,
		CurrentApprovalStep: &first,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if proposal.DepartmentID == nil {
		proposal.DepartmentID = owner.DepartmentID
	}

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.proposals.Create(ctx, tx, proposal); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create proposal")
		}
		if _, err := s.ledger.CreateSteps(ctx, tx, proposal.ID, s.chain.Roles(), now); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval steps")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, models.AuditActionProposalSubmit, owner, nil, proposal, "")
	s.notifyReviewers(ctx, proposal)
	return proposal, nil
}

// Approve records the acting user's approval of the proposal's current step. The final
// approval also materializes the activity inside the same transaction.
func (s *ApprovalService) Approve(ctx context.Context, proposalID, actingUserID, comment string) (*dto.ApprovalDecisionResponse, error) {
	if err := s.validator.Struct(dto.ApproveRequest{Comment: comment}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "approval comment is too long")
	}
	actor, err := s.loadActor(ctx, actingUserID)
	if err != nil {
		return nil, err
	}

	var (
		before   models.Proposal
		updated  *models.Proposal
		activity *models.Activity
		decided  models.UserRole
		next     models.UserRole
		advanced bool
	)
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		proposal, err := s.lockDecidable(ctx, tx, proposalID, actor)
		if err != nil {
			return err
		}
		before = *proposal
		decided = *proposal.CurrentApprovalStep
		now := s.now()

		if err := s.decide(ctx, tx, proposal.ID, decided, models.ApprovalStatusApproved, comment, actor.ID, now); err != nil {
			return err
		}

		advanced = !s.chain.IsLast(decided)
		if advanced {
			next, _ = s.chain.Next(decided)
			if err := s.ledger.Activate(ctx, tx, proposal.ID, next, now); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("proposal %s has no pending %s step", proposal.ID, next))
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate next approval step")
			}
			if err := s.moveProposal(ctx, tx, proposal, models.ProposalStatusPending, next, now); err != nil {
				return err
			}
			updated = proposal
			return nil
		}

		if err := s.moveProposal(ctx, tx, proposal, models.ProposalStatusApproved, s.chain.Last(), now); err != nil {
			return err
		}
		created, err := s.materializer.CreateFromProposal(ctx, tx, proposal)
		if err != nil {
			return err
		}
		activity = created
		updated = proposal
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, models.AuditActionProposalApprove, actor, &before, updated, comment)
	if advanced {
		s.notifyReviewers(ctx, updated)
		s.notifications.Dispatch(ctx, s.templates.StepApproved(updated, decided, next))
	} else {
		s.notifications.Dispatch(ctx, s.templates.ProposalApproved(updated, activity))
	}

	resp := &dto.ApprovalDecisionResponse{Proposal: *updated}
	if activity != nil {
		resp.ActivityID = &activity.ID
	}
	return resp, nil
}

// Return sends the proposal back to its owner. The comment is mandatory.
func (s *ApprovalService) Return(ctx context.Context, proposalID, actingUserID, comment string) (*dto.ApprovalDecisionResponse, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a comment is required when returning a proposal")
	}
	if err := s.validator.Struct(dto.ReturnRequest{Comment: comment}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "return comment is too long")
	}
	actor, err := s.loadActor(ctx, actingUserID)
	if err != nil {
		return nil, err
	}

	var (
		before  models.Proposal
		updated *models.Proposal
		step    models.UserRole
	)
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		proposal, err := s.lockDecidable(ctx, tx, proposalID, actor)
		if err != nil {
			return err
		}
		before = *proposal
		step = *proposal.CurrentApprovalStep
		now := s.now()

		if err := s.decide(ctx, tx, proposal.ID, step, models.ApprovalStatusReturned, comment, actor.ID, now); err != nil {
			return err
		}
		if err := s.moveProposal(ctx, tx, proposal, models.ProposalStatusReturned, step, now); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, models.AuditActionProposalReturn, actor, &before, updated, comment)
	s.notifications.Dispatch(ctx, s.templates.ProposalReturned(updated, step, comment))
	return &dto.ApprovalDecisionResponse{Proposal: *updated}, nil
}

// Resubmit restarts a RETURNED proposal at the first chain step, reusing the same row and
// reopening every ledger entry. Only the owner may resubmit.
func (s *ApprovalService) Resubmit(ctx context.Context, proposalID, userID string) (*models.Proposal, error) {
	owner, err := s.loadActor(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		before  models.Proposal
		updated *models.Proposal
	)
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		proposal, err := s.lockProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if proposal.UserID != owner.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the proposal owner can resubmit")
		}
		if proposal.Status != models.ProposalStatusReturned {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("proposal is %s, only returned proposals can be resubmitted", proposal.Status))
		}
		before = *proposal
		now := s.now()
		first := s.chain.First()

		if err := s.ledger.ResetForResubmission(ctx, tx, proposal.ID, first, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("proposal %s has no approval ledger", proposal.ID))
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset approval steps")
		}
		if err := s.moveProposal(ctx, tx, proposal, models.ProposalStatusPending, first, now); err != nil {
			return err
		}
		updated = proposal
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, models.AuditActionProposalResubmit, owner, &before, updated, "")
	s.notifyReviewers(ctx, updated)
	return updated, nil
}

// ListPendingFor returns proposals waiting on the user's role. Roles outside the chain never
// have pending approvals.
func (s *ApprovalService) ListPendingFor(ctx context.Context, userID string) ([]models.Proposal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active || !s.chain.Contains(user.Role) {
		return []models.Proposal{}, nil
	}

	key := fmt.Sprintf(cacheKeyPendingApprovals, user.Role)
	var cached []models.Proposal
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	proposals, err := s.proposals.ListPendingByStep(ctx, user.Role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending approvals")
	}
	if proposals == nil {
		proposals = []models.Proposal{}
	}
	_ = s.cache.Set(ctx, key, proposals, 0)
	return proposals, nil
}

// History returns the proposal together with its ledger in chain order.
func (s *ApprovalService) History(ctx context.Context, proposalID string) (*dto.ApprovalHistoryResponse, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	steps, err := s.ledger.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval steps")
	}
	return &dto.ApprovalHistoryResponse{Proposal: *proposal, Steps: steps}, nil
}

func (s *ApprovalService) loadActor(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "acting user is not in the directory")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load acting user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "acting user is inactive")
	}
	return user, nil
}

func (s *ApprovalService) lockProposal(ctx context.Context, tx *sqlx.Tx, proposalID string) (*models.Proposal, error) {
	proposal, err := s.proposals.GetForUpdate(ctx, tx, proposalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal")
	}
	return proposal, nil
}

// lockDecidable loads the proposal under lock and checks it awaits a decision from actor.
func (s *ApprovalService) lockDecidable(ctx context.Context, tx *sqlx.Tx, proposalID string, actor *models.User) (*models.Proposal, error) {
	proposal, err := s.lockProposal(ctx, tx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("proposal already %s", strings.ToLower(string(proposal.Status))))
	}
	if proposal.CurrentApprovalStep == nil || !s.chain.Contains(*proposal.CurrentApprovalStep) {
		return nil, appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("proposal %s has no valid current approval step", proposal.ID))
	}
	current := *proposal.CurrentApprovalStep
	if actor.Role != current {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("proposal is awaiting %s", current))
	}
	return proposal, nil
}

func (s *ApprovalService) decide(ctx context.Context, tx *sqlx.Tx, proposalID string, role models.UserRole, status models.ApprovalStatus, comment, actorID string, at time.Time) error {
	var commentPtr *string
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		commentPtr = &trimmed
	}
	err := s.ledger.Decide(ctx, tx, repository.DecideStepParams{
		ProposalID: proposalID,
		Role:       role,
		Status:     status,
		Comment:    commentPtr,
		DecidedBy:  actorID,
		DecidedAt:  at,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("the %s step is no longer awaiting a decision", role))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record approval decision")
	}
	return nil
}

// moveProposal applies a compare-and-set transition and mirrors it onto proposal.
func (s *ApprovalService) moveProposal(ctx context.Context, tx *sqlx.Tx, proposal *models.Proposal, status models.ProposalStatus, step models.UserRole, at time.Time) error {
	err := s.proposals.UpdateState(ctx, tx, repository.UpdateProposalStateParams{
		ID:             proposal.ID,
		ExpectedStatus: proposal.Status,
		ExpectedStep:   proposal.CurrentApprovalStep,
		Status:         status,
		Step:           &step,
		UpdatedAt:      at,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "proposal was modified concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update proposal")
	}
	proposal.Status = status
	proposal.CurrentApprovalStep = &step
	proposal.UpdatedAt = at
	return nil
}

func (s *ApprovalService) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	return asAppError(database.RunInTx(ctx, s.tx, nil, fn), "approval transaction failed")
}

// asAppError keeps typed errors raised inside a transaction and wraps begin/commit failures.
func asAppError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ApprovalService) notifyReviewers(ctx context.Context, proposal *models.Proposal) {
	step := stepOf(proposal)
	reviewers, err := s.users.ListActiveByRole(ctx, step)
	if err != nil {
		s.logger.Warn("failed to resolve reviewers", zap.String("proposal_id", proposal.ID), zap.String("role", string(step)), zap.Error(err))
		return
	}
	if len(reviewers) == 0 {
		s.logger.Warn("no active user holds approval role", zap.String("proposal_id", proposal.ID), zap.String("role", string(step)))
		return
	}
	s.notifications.Dispatch(ctx, s.templates.ReviewNeeded(proposal, reviewers)...)
}

func (s *ApprovalService) afterTransition(ctx context.Context, action string, actor *models.User, before, after *models.Proposal, comment string) {
	s.metrics.RecordApprovalTransition(action, string(actor.Role))
	_ = s.cache.Invalidate(ctx, fmt.Sprintf(cacheKeyPendingApprovals, "*"))

	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "proposal",
		ResourceID: &after.ID,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(proposalAuditState(before, ""))
	}
	newState := proposalAuditState(after, comment)
	if reqID := requestid.FromContext(ctx); reqID != "" {
		newState["request_id"] = reqID
	}
	entry.NewValues, _ = json.Marshal(newState)
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.String("proposal_id", after.ID), zap.Error(err))
	}

	s.logger.Info("proposal transition",
		zap.String("action", action),
		zap.String("proposal_id", after.ID),
		zap.String("actor_id", actor.ID),
		zap.String("status", string(after.Status)),
		zap.String("step", string(stepOf(after))),
		zap.String("request_id", requestid.FromContext(ctx)),
	)
}

func proposalAuditState(p *models.Proposal, comment string) map[string]interface{} {
	state := map[string]interface{}{
		"status": p.Status,
		"step":   stepOf(p),
	}
	if comment != "" {
		state["comment"] = comment
	}
	return state
}
