package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

const activityColumns = `id, title, description, target_date, status, department_id, community_id, banner_program_id,
       proposal_id, school_year_id, created_at, updated_at`

// ActivityRepository persists activities materialized from approved proposals.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an activity. A second activity for the same proposal fails on the
// unique proposal_id constraint.
func (r *ActivityRepository) Create(ctx context.Context, exec sqlx.ExtContext, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Status == "" {
		activity.Status = models.ActivityStatusUpcoming
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = activity.CreatedAt

	const query = `INSERT INTO activities (id, title, description, target_date, status, department_id, community_id,
	banner_program_id, proposal_id, school_year_id, created_at, updated_at)
VALUES (:id, :title, :description, :target_date, :status, :department_id, :community_id,
	:banner_program_id, :proposal_id, :school_year_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, activity); err != nil {
		return fmt.Errorf("create activity: %w", err)
	}
	return nil
}

// GetByID loads an activity.
func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*models.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = $1`
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}

// List returns activities matching the filter ordered by target date.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	base := "FROM activities WHERE 1=1"
	var conditions []string
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.SchoolYearID != "" {
		args = append(args, filter.SchoolYearID)
		conditions = append(conditions, fmt.Sprintf("school_year_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("target_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("target_date < $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY target_date ASC LIMIT %d OFFSET %d", activityColumns, base, size, (page-1)*size)

	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return activities, total, nil
}

// PromoteDue moves UPCOMING activities whose target date falls in [from, to) to ONGOING and
// returns the promoted rows. A nil from drops the lower bound. Rows already ONGOING are untouched,
// so repeated runs promote nothing new.
func (r *ActivityRepository) PromoteDue(ctx context.Context, from *time.Time, to, at time.Time) ([]models.Activity, error) {
	query := `UPDATE activities SET status = 'ONGOING', updated_at = $1 WHERE status = 'UPCOMING' AND target_date < $2`
	args := []interface{}{at, to}
	if from != nil {
		query += ` AND target_date >= $3`
		args = append(args, *from)
	}
	query += ` RETURNING ` + activityColumns

	var promoted []models.Activity
	if err := r.db.SelectContext(ctx, &promoted, query, args...); err != nil {
		return nil, fmt.Errorf("promote due activities: %w", err)
	}
	return promoted, nil
}

// UpdateStatus overrides the status of a single activity.
func (r *ActivityRepository) UpdateStatus(ctx context.Context, id string, status models.ActivityStatus, at time.Time) error {
	const query = `UPDATE activities SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, at, id)
	if err != nil {
		return fmt.Errorf("update activity status: %w", err)
	}
	return expectAffected(result, "update activity status")
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
