package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
	"github.com/noah-isme/scolarite-api/pkg/export"
	"github.com/noah-isme/scolarite-api/pkg/logger"
)

// Export formats accepted by the dashboard.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var exportHeaders = []string{"Numéro", "Type", "Étudiant", "Immatricule", "Détails", "Statut", "Date demande", "Date traitement"}

type unifiedCollector interface {
	Collect(ctx context.Context, query dto.UnifiedQuery) ([]models.UnifiedRecord, models.UnifiedFilter, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportResult is a rendered file ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders the filtered dashboard listing as CSV or PDF.
type ExportService struct {
	unified  unifiedCollector
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(unified unifiedCollector, csv csvRenderer, pdf pdfRenderer, location *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter(';')
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(map[string]float64{"Numéro": 24, "Type": 34, "Immatricule": 26, "Statut": 26, "Date demande": 28, "Date traitement": 28})
	}
	return &ExportService{unified: unified, csv: csv, pdf: pdf, logger: logger, location: location, now: time.Now}
}

// Export renders the listing matching query in format.
func (s *ExportService) Export(ctx context.Context, query dto.UnifiedQuery, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.WithFields("unsupported export format", map[string]string{"format": "must be csv or pdf"})
	}

	query.Page, query.PageSize = 0, 0
	records, filter, err := s.unified.Collect(ctx, query)
	if err != nil {
		return nil, err
	}
	dataset := s.dataset(records)
	generatedAt := s.now().In(s.location)

	var body []byte
	contentType := "text/csv; charset=utf-8"
	switch format {
	case ExportFormatPDF:
		contentType = "application/pdf"
		subtitle := fmt.Sprintf("%d demande(s) - %s - généré le %s", len(records), describeFilters(filter), generatedAt.Format("02/01/2006 15:04"))
		body, err = s.pdf.Render(dataset, "Demandes de documents", subtitle)
	default:
		body, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	logger.FromContext(ctx, s.logger).Info("dashboard exported", zap.String("format", format), zap.Int("rows", len(records)))
	return &ExportResult{
		Filename:    fmt.Sprintf("demandes_%s.%s", generatedAt.Format("20060102_150405"), format),
		ContentType: contentType,
		Body:        body,
		Rows:        len(records),
	}, nil
}

func (s *ExportService) dataset(records []models.UnifiedRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]string{
			"Numéro":          r.Number,
			"Type":            r.KindLabel,
			"Étudiant":        r.Student.FullName,
			"Immatricule":     r.Student.Registration,
			"Détails":         describeDetails(r.Details),
			"Statut":          r.StatusLabel,
			"Date demande":    s.formatTime(r.RequestedAt),
			"Date traitement": s.formatTime(r.ProcessedAt),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func (s *ExportService) formatTime(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.In(s.location).Format("02/01/2006 15:04")
}

func describeDetails(details map[string]interface{}) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, ", ")
}

func describeFilters(filter models.UnifiedFilter) string {
	applied := filter.Applied()
	if len(applied) == 0 {
		return "sans filtre"
	}
	keys := make([]string, 0, len(applied))
	for k := range applied {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+applied[k])
	}
	return strings.Join(parts, ", ")
}
