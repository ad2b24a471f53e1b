package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/generyand/umdc-cec-system-sub001/internal/dto"
	"github.com/generyand/umdc-cec-system-sub001/internal/models"
	appErrors "github.com/generyand/umdc-cec-system-sub001/pkg/errors"
	"github.com/generyand/umdc-cec-system-sub001/pkg/export"
)

type approvalHistoryReader interface {
	History(ctx context.Context, proposalID string) (*dto.ApprovalHistoryResponse, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, subtitle ...string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

var ledgerHeaders = []string{"Step", "Role", "Status", "Decided By", "Decided At", "Comment"}

// ExportService renders approval ledgers as csv, pdf or xlsx.
type ExportService struct {
	history approvalHistoryReader
	users   userLookup
	csv     csvRenderer
	pdf     pdfRenderer
	xlsx    xlsxRenderer
	loc     *time.Location
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(history approvalHistoryReader, users userLookup, loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{history: history, users: users, csv: csv, pdf: pdf, xlsx: xlsx, loc: loc, logger: logger}
}

// ExportApprovalHistory renders the proposal's approval ledger in the requested format.
func (s *ExportService) ExportApprovalHistory(ctx context.Context, proposalID, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	history, err := s.history.History(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	dataset := s.ledgerDataset(ctx, history.Steps)
	title := fmt.Sprintf("Approval history: %s", history.Proposal.Title)

	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset, title,
			fmt.Sprintf("Status: %s", history.Proposal.Status),
			fmt.Sprintf("Target date: %s", history.Proposal.TargetDate.In(s.loc).Format("2006-01-02")),
		)
	case export.FormatXLSX:
		payload, err = s.xlsx.Render(dataset, "Approvals")
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    format.Filename(fmt.Sprintf("approvals_%s", sanitizeFilename(history.Proposal.ID))),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

func (s *ExportService) ledgerDataset(ctx context.Context, steps []models.ApprovalStep) export.Dataset {
	names := make(map[string]string)
	rows := make([]map[string]string, 0, len(steps))
	for _, step := range steps {
		row := map[string]string{
			"Step":   strconv.Itoa(step.Position + 1),
			"Role":   string(step.Role),
			"Status": string(step.Status),
		}
		if step.ApprovedBy != nil {
			row["Decided By"] = s.userName(ctx, *step.ApprovedBy, names)
		}
		if step.ApprovedAt != nil {
			row["Decided At"] = step.ApprovedAt.In(s.loc).Format("2006-01-02 15:04")
		}
		if step.Comment != nil {
			row["Comment"] = *step.Comment
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: ledgerHeaders, Rows: rows}
}

func (s *ExportService) userName(ctx context.Context, id string, cache map[string]string) string {
	if name, ok := cache[id]; ok {
		return name
	}
	name := id
	if s.users != nil {
		if user, err := s.users.FindByID(ctx, id); err == nil && user.FullName != "" {
			name = user.FullName
		} else if err != nil {
			s.logger.Debug("export could not resolve approver", zap.String("user_id", id), zap.Error(err))
		}
	}
	cache[id] = name
	return name
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
