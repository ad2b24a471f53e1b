package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/pkg/database"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/jobs"
)

// NotificationJobType identifies queued notification deliveries.
const NotificationJobType = "notification.deliver"

type notificationStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, notification *models.Notification) error
	CreateBulk(ctx context.Context, exec sqlx.ExtContext, notifications []models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
	Archive(ctx context.Context, id, userID string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// NotificationService persists notifications and serves the recipient inbox.
type NotificationService struct {
	repo    notificationStore
	tx      txProvider
	queue   jobEnqueuer
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithNotificationQueue routes Dispatch through a retrying background queue.
func WithNotificationQueue(queue jobEnqueuer) NotificationServiceOption {
	return func(s *NotificationService) {
		s.queue = queue
	}
}

// WithNotificationCache enables unread-count caching.
func WithNotificationCache(cache *CacheService) NotificationServiceOption {
	return func(s *NotificationService) {
		s.cache = cache
	}
}

// WithNotificationMetrics records delivery outcomes.
func WithNotificationMetrics(metrics *MetricsService) NotificationServiceOption {
	return func(s *NotificationService) {
		s.metrics = metrics
	}
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(repo notificationStore, tx txProvider, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		repo:   repo,
		tx:     tx,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SetQueue attaches the queue once it has been built around HandleJob.
func (s *NotificationService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Create stamps defaults and inserts a single notification.
func (s *NotificationService) Create(ctx context.Context, notification *models.Notification) error {
	if notification == nil {
		return appErrors.Clone(appErrors.ErrValidation, "notification is required")
	}
	if err := validateNotification(notification); err != nil {
		return err
	}
	applyNotificationDefaults(notification)
	if err := s.repo.Create(ctx, nil, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	s.invalidateUnread(ctx, notification.UserID)
	return nil
}

// CreateBulk inserts notifications for several recipients in one transaction.
func (s *NotificationService) CreateBulk(ctx context.Context, notifications []models.Notification) (err error) {
	if len(notifications) == 0 {
		return nil
	}
	for i := range notifications {
		if err := validateNotification(&notifications[i]); err != nil {
			return err
		}
		applyNotificationDefaults(&notifications[i])
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	err = database.RunInTx(ctx, s.tx, nil, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateBulk(ctx, tx, notifications); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notifications")
		}
		return nil
	})
	if err != nil {
		return asAppError(err, "failed to commit notifications")
	}

	seen := make(map[string]struct{}, len(notifications))
	for _, n := range notifications {
		if _, ok := seen[n.UserID]; ok {
			continue
		}
		seen[n.UserID] = struct{}{}
		s.invalidateUnread(ctx, n.UserID)
	}
	return nil
}

// Dispatch delivers notifications on a best-effort basis. Failures are logged and never
// returned; callers invoke it only after their own transaction has committed.
func (s *NotificationService) Dispatch(ctx context.Context, notifications ...models.Notification) {
	if len(notifications) == 0 {
		return
	}
	batch := append([]models.Notification(nil), notifications...)

	if s.queue != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: NotificationJobType, Payload: batch}
		err := s.queue.Enqueue(job)
		if err == nil {
			return
		}
		s.logger.Warn("notification queue unavailable, delivering inline", zap.Error(err))
	}

	if err := s.deliver(ctx, batch); err != nil {
		s.logger.Error("notification delivery failed",
			zap.Int("count", len(batch)),
			zap.Strings("recipients", recipientIDs(batch)),
			zap.Error(err),
		)
		s.metrics.RecordNotification("dropped", len(batch))
	}
}

// HandleJob is the queue handler; a returned error makes the queue retry.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	batch, ok := job.Payload.([]models.Notification)
	if !ok {
		s.logger.Error("unexpected notification job payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	return s.deliver(ctx, batch)
}

// OnJobDropped records a batch that exhausted its retries.
func (s *NotificationService) OnJobDropped(job jobs.Job, err error) {
	count := 0
	if batch, ok := job.Payload.([]models.Notification); ok {
		count = len(batch)
	}
	s.logger.Error("notification batch dropped after retries", zap.String("job_id", job.ID), zap.Int("count", count), zap.Error(err))
	s.metrics.RecordNotification("dropped", count)
}

func (s *NotificationService) deliver(ctx context.Context, batch []models.Notification) error {
	var err error
	if len(batch) == 1 {
		err = s.Create(ctx, &batch[0])
	} else {
		err = s.CreateBulk(ctx, batch)
	}
	if err == nil {
		s.metrics.RecordNotification("stored", len(batch))
	}
	return err
}

// ListForUser returns the caller's inbox. Archived notifications are hidden unless requested.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error) {
	filter := models.NotificationFilter{UserID: userID, Page: query.Page, PageSize: query.PageSize}
	for _, raw := range query.Status {
		status := models.NotificationStatus(strings.ToUpper(strings.TrimSpace(raw)))
		switch status {
		case models.NotificationStatusUnread, models.NotificationStatusRead, models.NotificationStatusArchived:
			filter.Status = append(filter.Status, status)
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown notification status %q", raw))
		}
	}
	if len(filter.Status) == 0 {
		filter.Status = []models.NotificationStatus{models.NotificationStatusUnread, models.NotificationStatusRead}
	}
	if query.Type != "" {
		filter.Type = models.NotificationType(strings.ToUpper(query.Type))
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	page, size := pageDefaults(query.Page, query.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UnreadCount returns the UNREAD badge count for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	key := fmt.Sprintf(cacheKeyUnreadCount, userID)
	var cached int
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	_ = s.cache.Set(ctx, key, count, 0)
	return count, nil
}

// MarkRead marks one notification read. Only the recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.authorizeRecipient(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, id, userID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "archived notifications cannot be marked read")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// MarkAllRead marks every UNREAD notification of the user read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.invalidateUnread(ctx, userID)
	return updated, nil
}

// Archive hides a notification. Only the recipient may do so.
func (s *NotificationService) Archive(ctx context.Context, id, userID string) error {
	if err := s.authorizeRecipient(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive notification")
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

func (s *NotificationService) authorizeRecipient(ctx context.Context, id, userID string) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if notification.UserID != userID {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID string) {
	_ = s.cache.Delete(ctx, fmt.Sprintf(cacheKeyUnreadCount, userID))
}

func validateNotification(n *models.Notification) error {
	switch {
	case n.UserID == "":
		return appErrors.Clone(appErrors.ErrValidation, "notification recipient is required")
	case strings.TrimSpace(n.Title) == "":
		return appErrors.Clone(appErrors.ErrValidation, "notification title is required")
	case n.Type == "":
		return appErrors.Clone(appErrors.ErrValidation, "notification type is required")
	}
	return nil
}

func applyNotificationDefaults(n *models.Notification) {
	if n.Status == "" {
		n.Status = models.NotificationStatusUnread
	}
	if n.Priority == "" {
		n.Priority = models.NotificationPriorityMedium
	}
}

func recipientIDs(batch []models.Notification) []string {
	ids := make([]string, 0, len(batch))
	for _, n := range batch {
		ids = append(ids, n.UserID)
	}
	return ids
}

func pageDefaults(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
