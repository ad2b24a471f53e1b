package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type historyStub struct {
	resp *dto.ApprovalHistoryResponse
	err  error
}

func (h historyStub) History(ctx context.Context, proposalID string) (*dto.ApprovalHistoryResponse, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.resp, nil
}

type userLookupStub struct {
	calls int
}

func (u *userLookupStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u.calls++
	return &models.User{ID: id, FullName: "Carla Head"}, nil
}

func ledgerHistory() *dto.ApprovalHistoryResponse {
	decided := time.Date(2025, time.March, 3, 1, 30, 0, 0, time.UTC)
	return &dto.ApprovalHistoryResponse{
		Proposal: models.Proposal{
			ID:         "proposal-42",
			Title:      "Coastal clean-up drive",
			Status:     models.ProposalStatusPending,
			TargetDate: time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC),
		},
		Steps: []models.ApprovalStep{
			{Position: 0, Role: models.RoleCECHead, Status: models.ApprovalStatusApproved, ApprovedBy: strPtr("head-1"), ApprovedAt: &decided, Comment: strPtr("Looks good, proceed")},
			{Position: 1, Role: models.RoleVPDirector, Status: models.ApprovalStatusPending, IsActive: true},
			{Position: 2, Role: models.RoleChiefOperationOfficer, Status: models.ApprovalStatusPending},
		},
	}
}

func TestExportServiceApprovalHistoryCSV(t *testing.T) {
	users := &userLookupStub{}
	svc := NewExportService(historyStub{resp: ledgerHistory()}, users, manila, nil, nil, nil, nil)

	file, err := svc.ExportApprovalHistory(context.Background(), "proposal-42", "")
	require.NoError(t, err)
	assert.Equal(t, "approvals_proposal-42.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Payload)), "\r\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Step,Role,Status,Decided By,Decided At,Comment", lines[0])
	assert.Equal(t, `1,CEC_HEAD,APPROVED,Carla Head,2025-03-03 09:30,"Looks good, proceed"`, lines[1])
	assert.Equal(t, "2,VP_DIRECTOR,PENDING,,,", lines[2])
	assert.Equal(t, 1, users.calls)
}

func TestExportServiceApprovalHistoryXLSXAndPDF(t *testing.T) {
	svc := NewExportService(historyStub{resp: ledgerHistory()}, nil, time.UTC, nil, nil, nil, nil)
	ctx := context.Background()

	xlsx, err := svc.ExportApprovalHistory(ctx, "proposal-42", "XLSX")
	require.NoError(t, err)
	assert.Equal(t, "approvals_proposal-42.xlsx", xlsx.Filename)
	book, err := excelize.OpenReader(bytes.NewReader(xlsx.Payload))
	require.NoError(t, err)
	defer book.Close()
	cell, err := book.GetCellValue("Approvals", "D2")
	require.NoError(t, err)
	assert.Equal(t, "head-1", cell)

	pdf, err := svc.ExportApprovalHistory(ctx, "proposal-42", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.ContentType)
	assert.True(t, bytes.HasPrefix(pdf.Payload, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(historyStub{resp: ledgerHistory()}, nil, nil, nil, nil, nil, nil)
	_, err := svc.ExportApprovalHistory(context.Background(), "proposal-42", "docx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	missing := NewExportService(historyStub{err: appErrors.Clone(appErrors.ErrNotFound, "proposal not found")}, nil, nil, nil, nil, nil, nil)
	_, err = missing.ExportApprovalHistory(context.Background(), "nope", "csv")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a_b-c", sanitizeFilename("a b/c"))
}
