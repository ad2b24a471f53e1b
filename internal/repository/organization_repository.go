package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
)

// OrganizationRepository resolves departments, communities and banner programs owned by the
// directory service.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs the repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindDepartment loads a department. sql.ErrNoRows when it does not exist.
func (r *OrganizationRepository) FindDepartment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Department, error) {
	var department models.Department
	if err := sqlx.GetContext(ctx, r.exec(exec), &department, `SELECT id, name, abbreviation FROM departments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// FindCommunity loads a community.
func (r *OrganizationRepository) FindCommunity(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Community, error) {
	var community models.Community
	if err := sqlx.GetContext(ctx, r.exec(exec), &community, `SELECT id, name FROM communities WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &community, nil
}

// FindBannerProgram loads a banner program.
func (r *OrganizationRepository) FindBannerProgram(ctx context.Context, exec sqlx.ExtContext, id string) (*models.BannerProgram, error) {
	var program models.BannerProgram
	if err := sqlx.GetContext(ctx, r.exec(exec), &program, `SELECT id, title FROM banner_programs WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &program, nil
}
