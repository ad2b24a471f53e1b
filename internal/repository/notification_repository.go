package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

const notificationColumns = `id, title, content, type, status, priority, user_id, proposal_id, activity_id, department_id,
       action_url, action_label, created_at, read_at`

// NotificationRepository persists user notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts one notification.
func (r *NotificationRepository) Create(ctx context.Context, exec sqlx.ExtContext, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO notifications (id, title, content, type, status, priority, user_id, proposal_id, activity_id,
	department_id, action_url, action_label, created_at, read_at)
VALUES (:id, :title, :content, :type, :status, :priority, :user_id, :proposal_id, :activity_id,
	:department_id, :action_url, :action_label, :created_at, :read_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreateBulk inserts every notification through exec. Callers pass a transaction to make the
// batch all-or-nothing.
func (r *NotificationRepository) CreateBulk(ctx context.Context, exec sqlx.ExtContext, notifications []models.Notification) error {
	for i := range notifications {
		if err := r.Create(ctx, exec, &notifications[i]); err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads a notification.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// List returns a user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	args := []interface{}{filter.UserID}
	base := "FROM notifications WHERE user_id = $1"

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		base += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ","))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		base += fmt.Sprintf(" AND type = $%d", len(args))
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", notificationColumns, base, size, (page-1)*size)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// CountUnread returns the number of UNREAD notifications for a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND status = 'UNREAD'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as READ. Already read rows keep their read_at.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	const query = `UPDATE notifications SET status = 'READ', read_at = COALESCE(read_at, $1)
WHERE id = $2 AND user_id = $3 AND status <> 'ARCHIVED'`
	result, err := r.db.ExecContext(ctx, query, at, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectAffected(result, "mark notification read")
}

// MarkAllRead flags every UNREAD notification of the user and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	const query = `UPDATE notifications SET status = 'READ', read_at = $1 WHERE user_id = $2 AND status = 'UNREAD'`
	result, err := r.db.ExecContext(ctx, query, at, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read rows affected: %w", err)
	}
	return rows, nil
}

// Archive hides one of the user's notifications from the default inbox.
func (r *NotificationRepository) Archive(ctx context.Context, id, userID string) error {
	const query = `UPDATE notifications SET status = 'ARCHIVED' WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("archive notification: %w", err)
	}
	return expectAffected(result, "archive notification")
}
