package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/response"
)

type notificationInbox interface {
	ListForUser(ctx context.Context, userID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Archive(ctx context.Context, id, userID string) error
}

// NotificationHandler exposes the caller's inbox.
type NotificationHandler struct {
	service notificationInbox
}

// NewNotificationHandler builds a notification handler.
func NewNotificationHandler(service notificationInbox) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List godoc
// @Summary List my notifications
// @Tags Notifications
// @Produce json
// @Param status query []string false "UNREAD, READ or ARCHIVED" collectionFormat(multi)
// @Param type query string false "Notification type"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.NotificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notification query"))
		return
	}
	items, pagination, err := h.service.ListForUser(c.Request.Context(), userID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// UnreadCount godoc
// @Summary Unread badge count
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.UnreadCountResponse{Unread: count}, nil)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [patch]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	updated, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MarkAllReadResponse{Updated: updated}, nil)
}

// Archive godoc
// @Summary Archive a notification
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/archive [patch]
func (h *NotificationHandler) Archive(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Archive(c.Request.Context(), c.Param("id"), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
