package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/internal/service"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/response"
)

type approvalWorkflow interface {
	Submit(ctx context.Context, userID string, req dto.SubmitProposalRequest) (*models.Proposal, error)
	Approve(ctx context.Context, proposalID, actingUserID, comment string) (*dto.ApprovalDecisionResponse, error)
	Return(ctx context.Context, proposalID, actingUserID, comment string) (*dto.ApprovalDecisionResponse, error)
	Resubmit(ctx context.Context, proposalID, userID string) (*models.Proposal, error)
	ListPendingFor(ctx context.Context, userID string) ([]models.Proposal, error)
	History(ctx context.Context, proposalID string) (*dto.ApprovalHistoryResponse, error)
}

type approvalExporter interface {
	ExportApprovalHistory(ctx context.Context, proposalID, rawFormat string) (*service.ExportFile, error)
}

// ProposalHandler exposes the approval workflow endpoints.
type ProposalHandler struct {
	workflow approvalWorkflow
	exporter approvalExporter
}

// NewProposalHandler builds a proposal handler.
func NewProposalHandler(workflow approvalWorkflow, exporter approvalExporter) *ProposalHandler {
	return &ProposalHandler{workflow: workflow, exporter: exporter}
}

// Submit godoc
// @Summary Submit a proposal into the approval chain
// @Tags Proposals
// @Accept json
// @Produce json
// @Param payload body dto.SubmitProposalRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /proposals [post]
func (h *ProposalHandler) Submit(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}
	proposal, err := h.workflow.Submit(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proposal)
}

// Approve godoc
// @Summary Approve the current step of a proposal
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ApproveRequest false "Optional comment"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /proposals/{id}/approve [post]
func (h *ProposalHandler) Approve(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
			return
		}
	}
	result, err := h.workflow.Approve(c.Request.Context(), c.Param("id"), userID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Return godoc
// @Summary Return a proposal to its owner
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ReturnRequest true "Return reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /proposals/{id}/return [post]
func (h *ProposalHandler) Return(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid return payload"))
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a return comment is required"))
		return
	}
	result, err := h.workflow.Return(c.Request.Context(), c.Param("id"), userID, req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Resubmit godoc
// @Summary Resubmit a returned proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id}/resubmit [post]
func (h *ProposalHandler) Resubmit(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	proposal, err := h.workflow.Resubmit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// History godoc
// @Summary Approval ledger of a proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Router /proposals/{id}/approvals [get]
func (h *ProposalHandler) History(c *gin.Context) {
	history, err := h.workflow.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Export godoc
// @Summary Download the approval ledger
// @Tags Proposals
// @Produce octet-stream
// @Param id path string true "Proposal ID"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /proposals/{id}/approvals/export [get]
func (h *ProposalHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.ExportApprovalHistory(c.Request.Context(), c.Param("id"), query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}

// Pending godoc
// @Summary Proposals awaiting the caller's decision
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /approvals/pending [get]
func (h *ProposalHandler) Pending(c *gin.Context) {
	userID, err := actorID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.workflow.ListPendingFor(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}
