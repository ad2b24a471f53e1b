package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	"github.com/generyand/umdc-cec-system-sub001/pkg/database"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
)

type schoolYearStore interface {
	List(ctx context.Context) ([]models.SchoolYear, error)
	FindByID(ctx context.Context, id string) (*models.SchoolYear, error)
	FindCurrent(ctx context.Context, exec sqlx.ExtContext) (*models.SchoolYear, error)
	Create(ctx context.Context, year *models.SchoolYear) error
	SetCurrent(ctx context.Context, id string) error
}

// SchoolYearService manages academic years and the single current-year flag.
type SchoolYearService struct {
	repo      schoolYearStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolYearService constructs the service.
func NewSchoolYearService(repo schoolYearStore, audit auditLogger, logger *zap.Logger) *SchoolYearService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolYearService{repo: repo, audit: audit, validator: validator.New(), logger: logger}
}

// List returns all school years, newest first.
func (s *SchoolYearService) List(ctx context.Context) ([]models.SchoolYear, error) {
	years, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list school years")
	}
	return years, nil
}

// GetCurrent returns the school year flagged current.
func (s *SchoolYearService) GetCurrent(ctx context.Context) (*models.SchoolYear, error) {
	year, err := s.repo.FindCurrent(ctx, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current school year configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current school year")
	}
	return year, nil
}

// Create registers a school year. New years are never current.
func (s *SchoolYearService) Create(ctx context.Context, req dto.CreateSchoolYearRequest) (*models.SchoolYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school year payload")
	}
	year := &models.SchoolYear{
		Year:      strings.TrimSpace(req.Year),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.repo.Create(ctx, year); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "school year already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school year")
	}
	return year, nil
}

// SetCurrent makes id the only current school year.
func (s *SchoolYearService) SetCurrent(ctx context.Context, id, actorID string) (*models.SchoolYear, error) {
	var previous *string
	if current, err := s.repo.FindCurrent(ctx, nil); err == nil {
		if current.ID == id {
			return current, nil
		}
		previous = &current.ID
	}

	if err := s.repo.SetCurrent(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to switch school year")
	}

	year, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school year")
	}

	if s.audit != nil {
		entry := &models.AuditLog{Action: models.AuditActionSchoolYearSwitch, Resource: "school_year", ResourceID: &year.ID}
		if actorID != "" {
			entry.UserID = &actorID
		}
		entry.OldValues, _ = json.Marshal(map[string]interface{}{"current": previous})
		entry.NewValues, _ = json.Marshal(map[string]interface{}{"current": year.ID, "year": year.Year})
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to write audit log", zap.String("school_year_id", id), zap.Error(err))
		}
	}
	s.logger.Info("current school year switched", zap.String("school_year_id", year.ID), zap.String("year", year.Year))
	return year, nil
}
