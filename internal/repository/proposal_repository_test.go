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

var proposalRowColumns = []string{"id", "title", "description", "target_date", "budget", "department_id", "user_id", "community_id",
	"banner_program_id", "status", "current_approval_step", "created_at", "updated_at"}

func TestProposalRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO proposals")).WillReturnResult(sqlmock.NewResult(1, 1))

	step := models.RoleCECHead
	proposal := &models.Proposal{Title: "Literacy drive", UserID: "u-1", TargetDate: time.Now(), CurrentApprovalStep: &step}
	require.NoError(t, repo.Create(context.Background(), nil, proposal))
	assert.NotEmpty(t, proposal.ID)
	assert.Equal(t, models.ProposalStatusPending, proposal.Status)
	assert.Equal(t, proposal.CreatedAt, proposal.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryGetForUpdateLocksRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM proposals WHERE id = \$1 FOR UPDATE`).
		WithArgs("prop-42").
		WillReturnRows(sqlmock.NewRows(proposalRowColumns).
			AddRow("prop-42", "Literacy drive", "", now, 1500.5, "dept-1", "u-1", nil, nil, "PENDING", "CEC_HEAD", now, now))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	proposal, err := repo.GetForUpdate(context.Background(), tx, "prop-42")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	require.NotNil(t, proposal.CurrentApprovalStep)
	assert.Equal(t, models.RoleCECHead, *proposal.CurrentApprovalStep)
	assert.Equal(t, 1500.5, proposal.Budget)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryUpdateStateCompareAndSet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	from := models.RoleCECHead
	to := models.RoleVPDirector
	params := UpdateProposalStateParams{
		ID:             "prop-42",
		ExpectedStatus: models.ProposalStatusPending,
		ExpectedStep:   &from,
		Status:         models.ProposalStatusPending,
		Step:           &to,
		UpdatedAt:      now,
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET status = $1, current_approval_step = $2, updated_at = $3")).
		WithArgs("PENDING", "VP_DIRECTOR", now, "prop-42", "PENDING", "CEC_HEAD").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateState(context.Background(), nil, params))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE proposals SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateState(context.Background(), nil, params), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProposalRepositoryListPendingByStep(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProposalRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'PENDING' AND current_approval_step = $1")).
		WithArgs("VP_DIRECTOR").
		WillReturnRows(sqlmock.NewRows(proposalRowColumns).
			AddRow("prop-1", "A", "", now, 0, nil, "u-1", nil, nil, "PENDING", "VP_DIRECTOR", now, now))

	list, err := repo.ListPendingByStep(context.Background(), models.RoleVPDirector)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].DepartmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
