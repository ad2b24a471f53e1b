package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/pkg/database"
)

const schoolYearColumns = `id, year, start_date, end_date, is_current, created_at, updated_at`

// SchoolYearRepository handles persistence for school years.
type SchoolYearRepository struct {
	db *sqlx.DB
}

// NewSchoolYearRepository instantiates a school year repository.
func NewSchoolYearRepository(db *sqlx.DB) *SchoolYearRepository {
	return &SchoolYearRepository{db: db}
}

func (r *SchoolYearRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns all school years, latest first.
func (r *SchoolYearRepository) List(ctx context.Context) ([]models.SchoolYear, error) {
	query := `SELECT ` + schoolYearColumns + ` FROM school_years ORDER BY start_date DESC`
	var years []models.SchoolYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list school years: %w", err)
	}
	return years, nil
}

// FindByID loads a school year by identifier.
func (r *SchoolYearRepository) FindByID(ctx context.Context, id string) (*models.SchoolYear, error) {
	query := `SELECT ` + schoolYearColumns + ` FROM school_years WHERE id = $1`
	var year models.SchoolYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// FindCurrent returns the current school year as seen by exec.
func (r *SchoolYearRepository) FindCurrent(ctx context.Context, exec sqlx.ExtContext) (*models.SchoolYear, error) {
	query := `SELECT ` + schoolYearColumns + ` FROM school_years WHERE is_current = TRUE LIMIT 1`
	var year models.SchoolYear
	if err := sqlx.GetContext(ctx, r.exec(exec), &year, query); err != nil {
		return nil, err
	}
	return &year, nil
}

// Create inserts a new school year. New rows are never current; use SetCurrent.
func (r *SchoolYearRepository) Create(ctx context.Context, year *models.SchoolYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if year.CreatedAt.IsZero() {
		year.CreatedAt = now
	}
	year.UpdatedAt = now
	year.IsCurrent = false

	const query = `INSERT INTO school_years (id, year, start_date, end_date, is_current, created_at, updated_at)
VALUES (:id, :year, :start_date, :end_date, :is_current, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create school year: %w", err)
	}
	return nil
}

// SetCurrent clears the current flag on every row and sets it on id inside one transaction.
// An unknown id rolls back and returns sql.ErrNoRows.
func (r *SchoolYearRepository) SetCurrent(ctx context.Context, id string) error {
	return database.RunInTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE school_years SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE`, now); err != nil {
			return fmt.Errorf("clear current school year: %w", err)
		}

		result, err := tx.ExecContext(ctx, `UPDATE school_years SET is_current = TRUE, updated_at = $1 WHERE id = $2`, now, id)
		if err != nil {
			return fmt.Errorf("set current school year: %w", err)
		}
		return expectAffected(result, "set current school year")
	})
}
