package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

var defaultChain = []models.UserRole{models.RoleCECHead, models.RoleVPDirector, models.RoleChiefOperationOfficer}

func TestApprovalRepositoryCreateStepsActivatesFirstRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_steps (id, proposal_id, role, position, status, is_active, created_at, updated_at) VALUES ($1")).
		WithArgs(
			sqlmock.AnyArg(), "prop-42", "CEC_HEAD", 1, "PENDING", true, now, now,
			sqlmock.AnyArg(), "prop-42", "VP_DIRECTOR", 2, "PENDING", false, now, now,
			sqlmock.AnyArg(), "prop-42", "CHIEF_OPERATION_OFFICER", 3, "PENDING", false, now, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 3))

	steps, err := repo.CreateSteps(context.Background(), nil, "prop-42", defaultChain, now)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.True(t, steps[0].IsActive)
	assert.False(t, steps[1].IsActive)
	assert.Equal(t, 3, steps[2].Position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryCreateStepsRejectsEmptyChain(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()

	_, err := NewApprovalRepository(db).CreateSteps(context.Background(), nil, "prop-1", nil, time.Now())
	require.Error(t, err)
}

func TestApprovalRepositoryListByProposal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "proposal_id", "role", "position", "status", "comment", "approved_by", "approved_at", "is_active", "created_at", "updated_at"}).
		AddRow("s-1", "prop-42", "CEC_HEAD", 1, "APPROVED", "ok", "u-1", now, false, now, now).
		AddRow("s-2", "prop-42", "VP_DIRECTOR", 2, "PENDING", nil, nil, nil, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, proposal_id, role, position, status, comment, approved_by, approved_at, is_active, created_at, updated_at FROM approval_steps WHERE proposal_id = $1 ORDER BY position ASC")).
		WithArgs("prop-42").
		WillReturnRows(rows)

	steps, err := repo.ListByProposal(context.Background(), "prop-42")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	require.NotNil(t, steps[0].Comment)
	assert.Equal(t, "ok", *steps[0].Comment)
	assert.True(t, steps[1].IsActive)
	assert.Nil(t, steps[1].ApprovedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryDecideLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Now()
	comment := "fine"
	params := DecideStepParams{
		ProposalID: "prop-42",
		Role:       models.RoleCECHead,
		Status:     models.ApprovalStatusApproved,
		Comment:    &comment,
		DecidedBy:  "u-1",
		DecidedAt:  now,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_steps")).
		WithArgs("APPROVED", "fine", "u-1", now, "prop-42", "CEC_HEAD").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Decide(context.Background(), nil, params))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_steps")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Decide(context.Background(), nil, params)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryActivate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_steps SET is_active = TRUE, updated_at = $1")).
		WithArgs(now, "prop-42", "VP_DIRECTOR").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Activate(context.Background(), nil, "prop-42", models.RoleVPDirector, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryResetForResubmission(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_steps")).
		WithArgs("CEC_HEAD", now, "prop-42").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.ResetForResubmission(context.Background(), nil, "prop-42", models.RoleCECHead, now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalRepository(db)

	cutoff := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	submitted := cutoff.Add(-6 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"proposal_id", "title", "submitted_by", "submitter_name", "submitted_at", "step", "last_updated"}).
		AddRow("prop-7", "River cleanup", "u-9", "Staff Nine", submitted, "VP_DIRECTOR", cutoff.Add(-24*time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.id AS proposal_id")).
		WithArgs(cutoff).
		WillReturnRows(rows)

	stale, err := repo.ListStale(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, models.RoleVPDirector, stale[0].Step)
	assert.Equal(t, "Staff Nine", stale[0].SubmitterName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
