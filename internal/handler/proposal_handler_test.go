package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/middleware"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/internal/service"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type workflowMock struct {
	approveErr  error
	lastActor   string
	lastComment string
	pending     []models.Proposal
}

func (m *workflowMock) Submit(ctx context.Context, userID string, req dto.SubmitProposalRequest) (*models.Proposal, error) {
	m.lastActor = userID
	step := models.RoleCECHead
	return &models.Proposal{ID: "proposal-1", Title: req.Title, UserID: userID, Status: models.ProposalStatusPending, CurrentApprovalStep: &step}, nil
}

func (m *workflowMock) Approve(ctx context.Context, proposalID, actingUserID, comment string) (*dto.ApprovalDecisionResponse, error) {
	m.lastActor, m.lastComment = actingUserID, comment
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	activityID := "activity-1"
	return &dto.ApprovalDecisionResponse{Proposal: models.Proposal{ID: proposalID, Status: models.ProposalStatusApproved}, ActivityID: &activityID}, nil
}

func (m *workflowMock) Return(ctx context.Context, proposalID, actingUserID, comment string) (*dto.ApprovalDecisionResponse, error) {
	m.lastActor, m.lastComment = actingUserID, comment
	return &dto.ApprovalDecisionResponse{Proposal: models.Proposal{ID: proposalID, Status: models.ProposalStatusReturned}}, nil
}

func (m *workflowMock) Resubmit(ctx context.Context, proposalID, userID string) (*models.Proposal, error) {
	return &models.Proposal{ID: proposalID, Status: models.ProposalStatusPending}, nil
}

func (m *workflowMock) ListPendingFor(ctx context.Context, userID string) ([]models.Proposal, error) {
	return m.pending, nil
}

func (m *workflowMock) History(ctx context.Context, proposalID string) (*dto.ApprovalHistoryResponse, error) {
	return &dto.ApprovalHistoryResponse{Proposal: models.Proposal{ID: proposalID}}, nil
}

type exporterMock struct {
	err error
}

func (m exporterMock) ExportApprovalHistory(ctx context.Context, proposalID, rawFormat string) (*service.ExportFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "approvals_" + proposalID + ".csv", ContentType: "text/csv; charset=utf-8", Payload: []byte("Step\r\n")}, nil
}

// testRouter injects claims the way middleware.JWT would.
func testRouter(claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	return r
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func proposalRoutes(workflow *workflowMock, exporter approvalExporter, claims *models.JWTClaims) *gin.Engine {
	r := testRouter(claims)
	h := NewProposalHandler(workflow, exporter)
	r.POST("/proposals", h.Submit)
	r.POST("/proposals/:id/approve", h.Approve)
	r.POST("/proposals/:id/return", h.Return)
	r.POST("/proposals/:id/resubmit", h.Resubmit)
	r.GET("/proposals/:id/approvals", h.History)
	r.GET("/proposals/:id/approvals/export", h.Export)
	r.GET("/approvals/pending", h.Pending)
	return r
}

func TestProposalHandlerApprove(t *testing.T) {
	workflow := &workflowMock{}
	r := proposalRoutes(workflow, exporterMock{}, &models.JWTClaims{UserID: "coo-1", Role: models.RoleChiefOperationOfficer})

	w := doJSON(r, http.MethodPost, "/proposals/proposal-42/approve", dto.ApproveRequest{Comment: "go"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "coo-1", workflow.lastActor)
	assert.Equal(t, "go", workflow.lastComment)

	var decision dto.ApprovalDecisionResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &decision))
	assert.Equal(t, models.ProposalStatusApproved, decision.Proposal.Status)
	assert.Equal(t, "activity-1", *decision.ActivityID)

	w = doJSON(r, http.MethodPost, "/proposals/proposal-42/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, workflow.lastComment)
}

func TestProposalHandlerApproveMapsErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"conflict":  {appErrors.Clone(appErrors.ErrConflict, "proposal is not pending"), http.StatusConflict},
		"forbidden": {appErrors.Clone(appErrors.ErrForbidden, "not your step"), http.StatusForbidden},
		"missing":   {appErrors.Clone(appErrors.ErrNotFound, "proposal not found"), http.StatusNotFound},
		"integrity": {appErrors.Clone(appErrors.ErrIntegrity, "no current school year"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := proposalRoutes(&workflowMock{approveErr: tc.err}, exporterMock{}, &models.JWTClaims{UserID: "head-1"})
			w := doJSON(r, http.MethodPost, "/proposals/p/approve", nil)
			assert.Equal(t, tc.status, w.Code)
			require.NotNil(t, decodeEnvelope(t, w).Error)
		})
	}
}

func TestProposalHandlerRequiresClaims(t *testing.T) {
	r := proposalRoutes(&workflowMock{}, exporterMock{}, nil)
	w := doJSON(r, http.MethodPost, "/proposals/p/approve", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = doJSON(r, http.MethodGet, "/approvals/pending", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProposalHandlerReturnRequiresComment(t *testing.T) {
	workflow := &workflowMock{}
	r := proposalRoutes(workflow, exporterMock{}, &models.JWTClaims{UserID: "vp-1"})

	w := doJSON(r, http.MethodPost, "/proposals/p/return", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/proposals/p/return", dto.ReturnRequest{Comment: "Attach the budget"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Attach the budget", workflow.lastComment)
}

func TestProposalHandlerSubmitAndPending(t *testing.T) {
	workflow := &workflowMock{pending: []models.Proposal{{ID: "p-1"}, {ID: "p-2"}}}
	r := proposalRoutes(workflow, exporterMock{}, &models.JWTClaims{UserID: "staff-1"})

	w := doJSON(r, http.MethodPost, "/proposals", map[string]interface{}{"title": "Clean-up", "targetDate": "2025-04-05T00:00:00Z"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "staff-1", workflow.lastActor)

	w = doJSON(r, http.MethodPost, "/proposals", "not-an-object")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/approvals/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.EqualValues(t, 2, env.Meta["count"])
}

func TestProposalHandlerExport(t *testing.T) {
	r := proposalRoutes(&workflowMock{}, exporterMock{}, &models.JWTClaims{UserID: "head-1"})
	w := doJSON(r, http.MethodGet, "/proposals/proposal-42/approvals/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="approvals_proposal-42.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Step\r\n", w.Body.String())

	failing := proposalRoutes(&workflowMock{}, exporterMock{err: appErrors.Wrap(errors.New("bad"), appErrors.ErrValidation.Code, http.StatusBadRequest, "unsupported export format")}, nil)
	w = doJSON(failing, http.MethodGet, "/proposals/proposal-42/approvals/export?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
