package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type inboxMock struct {
	owner    string
	archived []string
}

func (m *inboxMock) ListForUser(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error) {
	return []models.Notification{{ID: "n-1", UserID: userID}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *inboxMock) UnreadCount(ctx context.Context, userID string) (int, error) {
	return 3, nil
}

func (m *inboxMock) MarkRead(ctx context.Context, id, userID string) error {
	if userID != m.owner {
		return appErrors.Clone(appErrors.ErrForbidden, "not your notification")
	}
	return nil
}

func (m *inboxMock) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 5, nil
}

func (m *inboxMock) Archive(ctx context.Context, id, userID string) error {
	m.archived = append(m.archived, id)
	return nil
}

func inboxRoutes(inbox *inboxMock, claims *models.JWTClaims) http.Handler {
	r := testRouter(claims)
	h := NewNotificationHandler(inbox)
	r.GET("/notifications", h.List)
	r.GET("/notifications/unread-count", h.UnreadCount)
	r.PATCH("/notifications/read-all", h.MarkAllRead)
	r.PATCH("/notifications/:id/read", h.MarkRead)
	r.PATCH("/notifications/:id/archive", h.Archive)
	return r
}

func TestNotificationHandlerInbox(t *testing.T) {
	inbox := &inboxMock{owner: "staff-1"}
	r := inboxRoutes(inbox, &models.JWTClaims{UserID: "staff-1"})

	w := doJSON(r, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var count dto.UnreadCountResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &count))
	assert.Equal(t, 3, count.Unread)

	w = doJSON(r, http.MethodPatch, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPatch, "/notifications/n-1/read", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(r, http.MethodPatch, "/notifications/n-1/archive", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"n-1"}, inbox.archived)
}

func TestNotificationHandlerRecipientOnly(t *testing.T) {
	r := inboxRoutes(&inboxMock{owner: "staff-1"}, &models.JWTClaims{UserID: "staff-2"})
	w := doJSON(r, http.MethodPatch, "/notifications/n-1/read", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	anonymous := inboxRoutes(&inboxMock{}, nil)
	w = doJSON(anonymous, http.MethodGet, "/notifications", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
