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

type activityReader interface {
	Get(ctx context.Context, id string) (*models.Activity, error)
	List(ctx context.Context, query dto.ActivityQuery) ([]models.Activity, *models.Pagination, error)
	UpdateStatus(ctx context.Context, id, actorID string, req dto.UpdateActivityStatusRequest) (*models.Activity, error)
}

// ActivityHandler exposes materialized activities.
type ActivityHandler struct {
	service activityReader
}

// NewActivityHandler builds an activity handler.
func NewActivityHandler(service activityReader) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Param status query []string false "UPCOMING, ONGOING, COMPLETED or CANCELLED" collectionFormat(multi)
// @Param departmentId query string false "Department"
// @Param schoolYearId query string false "School year"
// @Param from query string false "Target date lower bound (YYYY-MM-DD)"
// @Param to query string false "Target date upper bound (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	var query dto.ActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activity query"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get activity
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	activity, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// UpdateStatus godoc
// @Summary Override activity status
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body dto.UpdateActivityStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/status [patch]
func (h *ActivityHandler) UpdateStatus(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateActivityStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	activity, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}
