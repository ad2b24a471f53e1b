package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizationRepositoryLookups(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewOrganizationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, abbreviation FROM departments WHERE id = $1")).
		WithArgs("dept-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "abbreviation"}).AddRow("dept-1", "College of Engineering", "CE"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM communities WHERE id = $1")).
		WithArgs("com-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title FROM banner_programs WHERE id = $1")).
		WithArgs("bp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow("bp-1", "Green Campus"))

	department, err := repo.FindDepartment(context.Background(), nil, "dept-1")
	require.NoError(t, err)
	assert.Equal(t, "CE", department.Abbreviation)

	_, err = repo.FindCommunity(context.Background(), nil, "com-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	program, err := repo.FindBannerProgram(context.Background(), nil, "bp-1")
	require.NoError(t, err)
	assert.Equal(t, "Green Campus", program.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
