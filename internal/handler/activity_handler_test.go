package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type activityServiceMock struct {
	query   dto.ActivityQuery
	updated dto.UpdateActivityStatusRequest
}

func (m *activityServiceMock) Get(ctx context.Context, id string) (*models.Activity, error) {
	if id != "activity-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
	}
	return &models.Activity{ID: id, Status: models.ActivityStatusUpcoming}, nil
}

func (m *activityServiceMock) List(ctx context.Context, query dto.ActivityQuery) ([]models.Activity, *models.Pagination, error) {
	m.query = query
	return []models.Activity{{ID: "activity-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *activityServiceMock) UpdateStatus(ctx context.Context, id, actorID string, req dto.UpdateActivityStatusRequest) (*models.Activity, error) {
	m.updated = req
	return &models.Activity{ID: id, Status: req.Status}, nil
}

func TestActivityHandlerList(t *testing.T) {
	svc := &activityServiceMock{}
	r := testRouter(nil)
	h := NewActivityHandler(svc)
	r.GET("/activities", h.List)
	r.GET("/activities/:id", h.Get)

	w := doJSON(r, http.MethodGet, "/activities?status=UPCOMING&status=ONGOING&from=2025-04-01&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"UPCOMING", "ONGOING"}, svc.query.Status)
	assert.Equal(t, "2025-04-01", svc.query.From)
	assert.Equal(t, 2, svc.query.Page)

	w = doJSON(r, http.MethodGet, "/activities?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/activities/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivityHandlerUpdateStatus(t *testing.T) {
	svc := &activityServiceMock{}
	r := testRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	r.PATCH("/activities/:id/status", NewActivityHandler(svc).UpdateStatus)

	w := doJSON(r, http.MethodPatch, "/activities/activity-1/status", dto.UpdateActivityStatusRequest{Status: models.ActivityStatusCompleted})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ActivityStatusCompleted, svc.updated.Status)
}
