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
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

// JobActivityLifecycle names the daily UPCOMING → ONGOING sweep.
const JobActivityLifecycle = "activity_lifecycle"

type activityStore interface {
	GetByID(ctx context.Context, id string) (*models.Activity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	PromoteDue(ctx context.Context, from *time.Time, to, at time.Time) ([]models.Activity, error)
	UpdateStatus(ctx context.Context, id string, status models.ActivityStatus, at time.Time) error
}

type proposalReader interface {
	GetByID(ctx context.Context, id string) (*models.Proposal, error)
}

// ActivityServiceConfig carries organisational policy for the lifecycle sweep.
type ActivityServiceConfig struct {
	Location *time.Location
	// CatchUp also promotes UPCOMING activities whose date already passed, e.g. after downtime.
	CatchUp bool
}

// ActivityService exposes activities and advances their lifecycle.
type ActivityService struct {
	activities    activityStore
	proposals     proposalReader
	notifications notificationDispatcher
	templates     NotificationTemplates
	audit         auditLogger
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	cfg           ActivityServiceConfig
	now           func() time.Time
}

// NewActivityService constructs the service.
func NewActivityService(
	activities activityStore,
	proposals proposalReader,
	notifications notificationDispatcher,
	templates NotificationTemplates,
	audit auditLogger,
	metrics *MetricsService,
	cfg ActivityServiceConfig,
	logger *zap.Logger,
) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ActivityService{
		activities:    activities,
		proposals:     proposals,
		notifications: notifications,
		templates:     templates,
		audit:         audit,
		metrics:       metrics,
		validator:     validator.New(),
		logger:        logger,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RunLifecycleSweep promotes activities scheduled for today (in the organisational timezone)
// from UPCOMING to ONGOING. Running it again the same day promotes nothing.
func (s *ActivityService) RunLifecycleSweep(ctx context.Context, now time.Time) (*dto.LifecycleSweepResult, error) {
	started := time.Now()
	start, end := dayBounds(now, s.cfg.Location)

	var from *time.Time
	if !s.cfg.CatchUp {
		from = &start
	}

	promoted, err := s.activities.PromoteDue(ctx, from, end, now.UTC())
	if err != nil {
		s.metrics.RecordSweep(JobActivityLifecycle, 0, time.Since(started), err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote activities")
	}

	result := &dto.LifecycleSweepResult{
		RanAt:       now.UTC(),
		WindowStart: from,
		WindowEnd:   end,
		Promoted:    len(promoted),
		ActivityIDs: make([]string, 0, len(promoted)),
	}
	for _, activity := range promoted {
		result.ActivityIDs = append(result.ActivityIDs, activity.ID)
		s.notifyStarted(ctx, activity)
	}

	s.metrics.RecordSweep(JobActivityLifecycle, len(promoted), time.Since(started), nil)
	s.logger.Info("activity lifecycle sweep finished",
		zap.Time("window_end", end),
		zap.Bool("catch_up", s.cfg.CatchUp),
		zap.Int("promoted", len(promoted)),
	)
	return result, nil
}

// Get returns a single activity.
func (s *ActivityService) Get(ctx context.Context, id string) (*models.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// List returns activities matching the query with pagination metadata.
func (s *ActivityService) List(ctx context.Context, query dto.ActivityQuery) ([]models.Activity, *models.Pagination, error) {
	filter := models.ActivityFilter{
		DepartmentID: query.DepartmentID,
		SchoolYearID: query.SchoolYearID,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	for _, raw := range query.Status {
		status := models.ActivityStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown activity status %q", raw))
		}
		filter.Status = append(filter.Status, status)
	}
	var err error
	if filter.From, err = s.parseDate(query.From); err != nil {
		return nil, nil, err
	}
	if filter.To, err = s.parseDate(query.To); err != nil {
		return nil, nil, err
	}
	if filter.To != nil {
		end := filter.To.AddDate(0, 0, 1)
		filter.To = &end
	}

	items, total, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page, size := pageDefaults(query.Page, query.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateStatus is an administrative override of an activity's status.
func (s *ActivityService) UpdateStatus(ctx context.Context, id, actorID string, req dto.UpdateActivityStatusRequest) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity status")
	}
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := activity.Status
	if previous == req.Status {
		return activity, nil
	}

	now := s.now()
	if err := s.activities.UpdateStatus(ctx, id, req.Status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity status")
	}
	activity.Status = req.Status
	activity.UpdatedAt = now

	if s.audit != nil {
		entry := &models.AuditLog{Action: models.AuditActionActivityStatus, Resource: "activity", ResourceID: &activity.ID}
		if actorID != "" {
			entry.UserID = &actorID
		}
		entry.OldValues, _ = json.Marshal(map[string]interface{}{"status": previous})
		entry.NewValues, _ = json.Marshal(map[string]interface{}{"status": req.Status})
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to write audit log", zap.String("activity_id", id), zap.Error(err))
		}
	}
	return activity, nil
}

func (s *ActivityService) notifyStarted(ctx context.Context, activity models.Activity) {
	if activity.ProposalID == nil || s.proposals == nil {
		return
	}
	proposal, err := s.proposals.GetByID(ctx, *activity.ProposalID)
	if err != nil {
		s.logger.Warn("failed to resolve activity owner", zap.String("activity_id", activity.ID), zap.Error(err))
		return
	}
	s.notifications.Dispatch(ctx, s.templates.ActivityStarted(activity, proposal.UserID))
}

func (s *ActivityService) parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, s.cfg.Location)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return &parsed, nil
}

// dayBounds returns local midnight of now's calendar day in loc and the following midnight.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
