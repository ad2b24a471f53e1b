package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/pkg/response"
)

type jobTrigger interface {
	Jobs() []string
	Trigger(ctx context.Context, job string) (*dto.SchedulerRunResponse, error)
}

// SchedulerHandler lets administrators run background sweeps on demand.
type SchedulerHandler struct {
	scheduler jobTrigger
}

// NewSchedulerHandler builds a scheduler handler.
func NewSchedulerHandler(scheduler jobTrigger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// Jobs godoc
// @Summary List registered jobs
// @Tags Scheduler
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /scheduler/jobs [get]
func (h *SchedulerHandler) Jobs(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.scheduler.Jobs(), nil)
}

// Run godoc
// @Summary Run a sweep now
// @Tags Scheduler
// @Produce json
// @Param job path string true "activity_lifecycle or approval_escalation"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /scheduler/{job}/run [post]
func (h *SchedulerHandler) Run(c *gin.Context) {
	result, err := h.scheduler.Trigger(c.Request.Context(), c.Param("job"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
