package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type triggerMock struct {
	busy bool
}

func (m triggerMock) Jobs() []string {
	return []string{"activity_lifecycle", "approval_escalation"}
}

func (m triggerMock) Trigger(ctx context.Context, job string) (*dto.SchedulerRunResponse, error) {
	if job != "activity_lifecycle" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown job")
	}
	if m.busy {
		return nil, appErrors.Clone(appErrors.ErrLocked, "job already running")
	}
	now := time.Now()
	return &dto.SchedulerRunResponse{Job: job, StartedAt: now, FinishedAt: now, Result: &dto.LifecycleSweepResult{Promoted: 2}}, nil
}

func TestSchedulerHandlerRun(t *testing.T) {
	r := testRouter(nil)
	h := NewSchedulerHandler(triggerMock{})
	r.GET("/scheduler/jobs", h.Jobs)
	r.POST("/scheduler/:job/run", h.Run)

	w := doJSON(r, http.MethodPost, "/scheduler/activity_lifecycle/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"promoted":2`)

	w = doJSON(r, http.MethodPost, "/scheduler/reindex/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/scheduler/jobs", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	busy := testRouter(nil)
	busy.POST("/scheduler/:job/run", NewSchedulerHandler(triggerMock{busy: true}).Run)
	w = doJSON(busy, http.MethodPost, "/scheduler/activity_lifecycle/run", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	r := testRouter(nil)
	healthy := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": func(ctx context.Context) error { return nil },
	})
	r.GET("/ready", healthy.Ready)
	r.GET("/health", healthy.Health)
	r.GET("/metrics", healthy.Prometheus)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(r, http.MethodGet, "/metrics", nil).Code)

	degraded := testRouter(nil)
	degraded.GET("/ready", NewMetricsHandler(nil, map[string]Pinger{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	}).Ready)
	w := doJSON(degraded, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
