package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/jobs"
)

type notificationRepoStub struct {
	mu         sync.Mutex
	items      map[string]models.Notification
	createErr  error
	lastFilter models.NotificationFilter
	countCalls int
}

func newNotificationRepoStub() *notificationRepoStub {
	return &notificationRepoStub{items: make(map[string]models.Notification)}
}

func (r *notificationRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if n.ID == "" {
		n.ID = fmt.Sprintf("n-%d", len(r.items)+1)
	}
	r.items[n.ID] = *n
	return nil
}

func (r *notificationRepoStub) CreateBulk(ctx context.Context, exec sqlx.ExtContext, list []models.Notification) error {
	for i := range list {
		if err := r.Create(ctx, exec, &list[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *notificationRepoStub) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &n, nil
}

func (r *notificationRepoStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	var out []models.Notification
	for _, n := range r.items {
		if n.UserID == filter.UserID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (r *notificationRepoStub) CountUnread(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && n.Status == models.NotificationStatusUnread {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepoStub) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.items[id]
	if n.Status == models.NotificationStatusArchived {
		return sql.ErrNoRows
	}
	n.Status = models.NotificationStatusRead
	n.ReadAt = &at
	r.items[id] = n
	return nil
}

func (r *notificationRepoStub) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for id, n := range r.items {
		if n.UserID == userID && n.Status == models.NotificationStatusUnread {
			n.Status = models.NotificationStatusRead
			n.ReadAt = &at
			r.items[id] = n
			updated++
		}
	}
	return updated, nil
}

func (r *notificationRepoStub) Archive(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.items[id]
	n.Status = models.NotificationStatusArchived
	r.items[id] = n
	return nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func reviewNotification(userID string) models.Notification {
	return models.Notification{
		Title:  "Proposal awaiting your review",
		Type:   models.NotificationTypeProposalStatus,
		UserID: userID,
	}
}

func TestNotificationServiceCreateAppliesDefaults(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, nil, nil)

	n := reviewNotification("head-1")
	require.NoError(t, svc.Create(context.Background(), &n))
	assert.Equal(t, models.NotificationStatusUnread, n.Status)
	assert.Equal(t, models.NotificationPriorityMedium, n.Priority)

	high := reviewNotification("head-1")
	high.Priority = models.NotificationPriorityHigh
	require.NoError(t, svc.Create(context.Background(), &high))
	assert.Equal(t, models.NotificationPriorityHigh, high.Priority)

	err := svc.Create(context.Background(), &models.Notification{Title: "no recipient", Type: models.NotificationTypeSystemUpdate})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestNotificationServiceCreateBulkUsesOneTransaction(t *testing.T) {
	repo := newNotificationRepoStub()
	tx, mock := newTxProviderMock(t)
	svc := NewNotificationService(repo, tx, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()
	err := svc.CreateBulk(context.Background(), []models.Notification{reviewNotification("vp-1"), reviewNotification("vp-2")})
	require.NoError(t, err)
	assert.Len(t, repo.items, 2)
	require.NoError(t, mock.ExpectationsWereMet())

	repo.createErr = errors.New("insert failed")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = svc.CreateBulk(context.Background(), []models.Notification{reviewNotification("vp-1"), reviewNotification("vp-2")})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationServiceDispatchEnqueues(t *testing.T) {
	repo := newNotificationRepoStub()
	queue := &queueStub{}
	svc := NewNotificationService(repo, nil, nil, WithNotificationQueue(queue))

	svc.Dispatch(context.Background(), reviewNotification("head-1"))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, NotificationJobType, queue.jobs[0].Type)
	assert.Empty(t, repo.items)

	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))
	assert.Len(t, repo.items, 1)
}

func TestNotificationServiceDispatchFallsBackInline(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, nil, nil, WithNotificationQueue(&queueStub{err: errors.New("queue stopped")}))

	svc.Dispatch(context.Background(), reviewNotification("head-1"))
	assert.Len(t, repo.items, 1)
}

func TestNotificationServiceDispatchFullQueueDeliversInline(t *testing.T) {
	repo := newNotificationRepoStub()
	release := make(chan struct{})
	picked := make(chan struct{}, 1)
	queue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		picked <- struct{}{}
		<-release
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 1})
	queue.Start(context.Background())
	defer queue.Stop()
	defer close(release)

	require.NoError(t, queue.Enqueue(jobs.Job{ID: "busy"}))
	select {
	case <-picked:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up the first job")
	}
	require.NoError(t, queue.Enqueue(jobs.Job{ID: "buffered"}))

	svc := NewNotificationService(repo, nil, nil, WithNotificationQueue(queue))
	done := make(chan struct{})
	go func() {
		svc.Dispatch(context.Background(), reviewNotification("head-1"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("dispatch blocked on a full queue")
	}
	assert.Len(t, repo.items, 1)
}

func TestNotificationServiceDispatchSwallowsFailures(t *testing.T) {
	repo := newNotificationRepoStub()
	repo.createErr = errors.New("database down")
	metrics := NewMetricsService()
	svc := NewNotificationService(repo, nil, nil, WithNotificationMetrics(metrics))

	assert.NotPanics(t, func() {
		svc.Dispatch(context.Background(), reviewNotification("head-1"))
	})
	assert.Empty(t, repo.items)
}

func TestNotificationServiceRecipientOperations(t *testing.T) {
	repo := newNotificationRepoStub()
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewNotificationService(repo, nil, nil, WithNotificationCache(cache))
	ctx := context.Background()

	first := reviewNotification("staff-1")
	second := reviewNotification("staff-1")
	require.NoError(t, svc.Create(ctx, &first))
	require.NoError(t, svc.Create(ctx, &second))

	count, err := svc.UnreadCount(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	_, err = svc.UnreadCount(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.countCalls)

	err = svc.MarkRead(ctx, first.ID, "staff-2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	err = svc.MarkRead(ctx, "missing", "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, svc.MarkRead(ctx, first.ID, "staff-1"))
	count, err = svc.UnreadCount(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	updated, err := svc.MarkAllRead(ctx, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	require.NoError(t, svc.Archive(ctx, second.ID, "staff-1"))
	err = svc.MarkRead(ctx, second.ID, "staff-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestNotificationServiceListForUser(t *testing.T) {
	repo := newNotificationRepoStub()
	svc := NewNotificationService(repo, nil, nil)
	ctx := context.Background()

	_, page, err := svc.ListForUser(ctx, "staff-1", dto.NotificationQuery{})
	require.NoError(t, err)
	assert.Equal(t, []models.NotificationStatus{models.NotificationStatusUnread, models.NotificationStatusRead}, repo.lastFilter.Status)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.ListForUser(ctx, "staff-1", dto.NotificationQuery{Status: []string{"archived"}, Type: "deadline_alert"})
	require.NoError(t, err)
	assert.Equal(t, []models.NotificationStatus{models.NotificationStatusArchived}, repo.lastFilter.Status)
	assert.Equal(t, models.NotificationTypeDeadlineAlert, repo.lastFilter.Type)

	_, _, err = svc.ListForUser(ctx, "staff-1", dto.NotificationQuery{Status: []string{"deleted"}})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
