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

type schoolYearManager interface {
	List(ctx context.Context) ([]models.SchoolYear, error)
	GetCurrent(ctx context.Context) (*models.SchoolYear, error)
	Create(ctx context.Context, req dto.CreateSchoolYearRequest) (*models.SchoolYear, error)
	SetCurrent(ctx context.Context, id, actorID string) (*models.SchoolYear, error)
}

// SchoolYearHandler manages academic years.
type SchoolYearHandler struct {
	service schoolYearManager
}

// NewSchoolYearHandler builds a school year handler.
func NewSchoolYearHandler(service schoolYearManager) *SchoolYearHandler {
	return &SchoolYearHandler{service: service}
}

// List godoc
// @Summary List school years
// @Tags SchoolYears
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /school-years [get]
func (h *SchoolYearHandler) List(c *gin.Context) {
	years, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// Current godoc
// @Summary Current school year
// @Tags SchoolYears
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /school-years/current [get]
func (h *SchoolYearHandler) Current(c *gin.Context) {
	year, err := h.service.GetCurrent(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}

// Create godoc
// @Summary Create school year
// @Tags SchoolYears
// @Accept json
// @Produce json
// @Param payload body dto.CreateSchoolYearRequest true "School year payload"
// @Success 201 {object} response.Envelope
// @Router /school-years [post]
func (h *SchoolYearHandler) Create(c *gin.Context) {
	var req dto.CreateSchoolYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school year payload"))
		return
	}
	year, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// SetCurrent godoc
// @Summary Switch the current school year
// @Tags SchoolYears
// @Produce json
// @Param id path string true "School year ID"
// @Success 200 {object} response.Envelope
// @Router /school-years/{id}/current [post]
func (h *SchoolYearHandler) SetCurrent(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	year, err := h.service.SetCurrent(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, year, nil)
}
