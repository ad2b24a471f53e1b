package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/mailer"
)

// JobApprovalEscalation names the daily reminder sweep for stale approvals.
const JobApprovalEscalation = "approval_escalation"

// DefaultEscalationThreshold is how long a step may wait before reminders go out.
const DefaultEscalationThreshold = 72 * time.Hour

type staleApprovalLister interface {
	ListStale(ctx context.Context, before time.Time) ([]models.StaleProposal, error)
}

type approverDirectory interface {
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type notificationWriter interface {
	CreateBulk(ctx context.Context, notifications []models.Notification) error
}

// EscalationService reminds approvers about proposals stuck on their step. It never changes
// workflow state.
type EscalationService struct {
	approvals     staleApprovalLister
	users         approverDirectory
	notifications notificationWriter
	mail          mailer.Sender
	templates     NotificationTemplates
	metrics       *MetricsService
	threshold     time.Duration
	logger        *zap.Logger
}

// NewEscalationService constructs the sweep. A non-positive threshold falls back to 72h.
func NewEscalationService(
	approvals staleApprovalLister,
	users approverDirectory,
	notifications notificationWriter,
	mail mailer.Sender,
	templates NotificationTemplates,
	metrics *MetricsService,
	threshold time.Duration,
	logger *zap.Logger,
) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = DefaultEscalationThreshold
	}
	if mail == nil {
		mail = mailer.NewLogSender(logger)
	}
	return &EscalationService{
		approvals:     approvals,
		users:         users,
		notifications: notifications,
		mail:          mail,
		templates:     templates,
		metrics:       metrics,
		threshold:     threshold,
		logger:        logger,
	}
}

// Threshold returns the configured staleness threshold.
func (s *EscalationService) Threshold() time.Duration {
	return s.threshold
}

// RunEscalationSweep sends reminders for every proposal whose current step has been pending
// longer than the threshold. A failure on one proposal is recorded in its item result and the
// sweep moves on.
func (s *EscalationService) RunEscalationSweep(ctx context.Context, now time.Time) (*dto.EscalationSweepResult, error) {
	started := time.Now()
	cutoff := now.Add(-s.threshold)

	stale, err := s.approvals.ListStale(ctx, cutoff)
	if err != nil {
		s.metrics.RecordSweep(JobApprovalEscalation, 0, time.Since(started), err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stale approvals")
	}

	result := &dto.EscalationSweepResult{
		RanAt:   now.UTC(),
		Cutoff:  cutoff.UTC(),
		Scanned: len(stale),
		Items:   make([]dto.EscalationItemResult, 0, len(stale)),
	}
	approvers := make(map[models.UserRole][]models.User)

	for _, item := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := s.remind(ctx, item, approvers, now)
		if outcome.Succeeded() {
			result.Reminded++
		} else {
			result.Failed++
		}
		result.Items = append(result.Items, outcome)
	}

	s.metrics.RecordSweep(JobApprovalEscalation, result.Reminded, time.Since(started), nil)
	s.logger.Info("approval escalation sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("scanned", result.Scanned),
		zap.Int("reminded", result.Reminded),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *EscalationService) remind(ctx context.Context, stale models.StaleProposal, cache map[models.UserRole][]models.User, now time.Time) dto.EscalationItemResult {
	outcome := dto.EscalationItemResult{ProposalID: stale.ProposalID, Title: stale.Title, Step: stale.Step}
	log := s.logger.With(zap.String("proposal_id", stale.ProposalID), zap.String("step", string(stale.Step)))

	recipients, ok := cache[stale.Step]
	if !ok {
		var err error
		recipients, err = s.users.ListActiveByRole(ctx, stale.Step)
		if err != nil {
			outcome.Error = fmt.Sprintf("resolve approvers: %v", err)
			log.Warn("escalation failed to resolve approvers", zap.Error(err))
			return outcome
		}
		cache[stale.Step] = recipients
	}
	if len(recipients) == 0 {
		outcome.Error = fmt.Sprintf("no active user holds role %s", stale.Step)
		log.Warn("escalation has no recipients")
		return outcome
	}

	batch := make([]models.Notification, 0, len(recipients))
	for _, approver := range recipients {
		batch = append(batch, s.templates.ApprovalReminder(stale, approver, now))
	}
	if err := s.notifications.CreateBulk(ctx, batch); err != nil {
		outcome.Error = fmt.Sprintf("store reminders: %v", err)
		log.Warn("escalation failed to store reminders", zap.Error(err))
		return outcome
	}
	outcome.Recipients = len(recipients)

	for _, approver := range recipients {
		if approver.Email == "" {
			continue
		}
		subject, body := s.templates.ReminderEmail(stale, approver)
		if err := s.mail.Send(ctx, mailer.Message{To: []string{approver.Email}, Subject: subject, Body: body}); err != nil {
			log.Warn("escalation email failed", zap.String("approver_id", approver.ID), zap.Error(err))
			s.metrics.RecordNotification("email_failed", 1)
			continue
		}
		outcome.Emailed++
	}
	s.metrics.RecordNotification("emailed", outcome.Emailed)
	return outcome
}
