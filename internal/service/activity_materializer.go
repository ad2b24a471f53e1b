package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/pkg/database"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type activityWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, activity *models.Activity) error
}

type currentSchoolYearReader interface {
	FindCurrent(ctx context.Context, exec sqlx.ExtContext) (*models.SchoolYear, error)
}

type organizationReader interface {
	FindDepartment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Department, error)
	FindCommunity(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Community, error)
	FindBannerProgram(ctx context.Context, exec sqlx.ExtContext, id string) (*models.BannerProgram, error)
}

// ActivityMaterializer turns a fully approved proposal into its activity. It only runs inside the
// transaction that marks the proposal APPROVED.
type ActivityMaterializer struct {
	activities activityWriter
	years      currentSchoolYearReader
	orgs       organizationReader
	logger     *zap.Logger
}

// NewActivityMaterializer constructs the materializer.
func NewActivityMaterializer(activities activityWriter, years currentSchoolYearReader, orgs organizationReader, logger *zap.Logger) *ActivityMaterializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityMaterializer{activities: activities, years: years, orgs: orgs, logger: logger}
}

// CreateFromProposal inserts an UPCOMING activity copied from proposal and linked to the current
// school year. Any error must abort the surrounding transaction.
func (m *ActivityMaterializer) CreateFromProposal(ctx context.Context, tx *sqlx.Tx, proposal *models.Proposal) (*models.Activity, error) {
	if tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "activity materialization requires a transaction")
	}
	if proposal == nil {
		return nil, appErrors.Clone(appErrors.ErrIntegrity, "approved proposal is missing")
	}
	if proposal.DepartmentID == nil || *proposal.DepartmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("proposal %s has no department", proposal.ID))
	}

	if _, err := m.orgs.FindDepartment(ctx, tx, *proposal.DepartmentID); err != nil {
		return nil, m.lookupError(err, "department", *proposal.DepartmentID)
	}

	activity := &models.Activity{
		Title:        proposal.Title,
		Description:  proposal.Description,
		TargetDate:   proposal.TargetDate,
		Status:       models.ActivityStatusUpcoming,
		DepartmentID: *proposal.DepartmentID,
		ProposalID:   &proposal.ID,
	}

	if proposal.CommunityID != nil && *proposal.CommunityID != "" {
		if _, err := m.orgs.FindCommunity(ctx, tx, *proposal.CommunityID); err != nil {
			return nil, m.lookupError(err, "community", *proposal.CommunityID)
		}
		activity.CommunityID = proposal.CommunityID
	}
	if proposal.BannerProgramID != nil && *proposal.BannerProgramID != "" {
		if _, err := m.orgs.FindBannerProgram(ctx, tx, *proposal.BannerProgramID); err != nil {
			return nil, m.lookupError(err, "banner program", *proposal.BannerProgramID)
		}
		activity.BannerProgramID = proposal.BannerProgramID
	}

	year, err := m.years.FindCurrent(ctx, tx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrIntegrity, "no current school year is set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current school year")
	}
	activity.SchoolYearID = year.ID

	if err := m.activities.Create(ctx, tx, activity); err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("proposal %s already has an activity", proposal.ID))
		case database.IsForeignKeyViolation(err):
			return nil, appErrors.Wrap(err, appErrors.ErrIntegrity.Code, appErrors.ErrIntegrity.Status, "activity references a missing record")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
		}
	}

	m.logger.Info("activity materialized",
		zap.String("proposal_id", proposal.ID),
		zap.String("activity_id", activity.ID),
		zap.String("school_year_id", activity.SchoolYearID),
	)
	return activity, nil
}

func (m *ActivityMaterializer) lookupError(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrIntegrity, fmt.Sprintf("%s %s does not exist", kind, id))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", kind))
}
