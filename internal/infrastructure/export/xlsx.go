package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName = "Service Requests"
	dateFmt   = "2006-01-02 15:04:05"
)

var columns = []string{
	"ID", "Title", "Description", "Status", "Priority", "Category",
	"Customer", "Email", "Phone", "Department", "Assigned To",
	"Confidence", "Classified By", "Handled By",
	"Created", "Updated", "Registered", "Classified", "Fulfilled", "Closed",
}

// RequestExporter renders request listings as an XLSX workbook.
// It implements port.RequestExporter.
type RequestExporter struct {
	logger *zap.Logger
}

// NewRequestExporter creates a new exporter
func NewRequestExporter(logger *zap.Logger) *RequestExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestExporter{logger: logger}
}

// ContentType is the MIME type of the generated workbook
func (e *RequestExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension of the generated workbook
func (e *RequestExporter) FileExtension() string {
	return ".xlsx"
}

// Export writes one header row followed by one row per request
func (e *RequestExporter) Export(ctx context.Context, w io.Writer, requests []*entity.ServiceRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := toRow(req)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write request %s: %w", req.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Requests exported", zap.Int("count", len(requests)))
	return nil
}

func toRow(r *entity.ServiceRequest) []interface{} {
	category := ""
	if r.Category != nil {
		category = string(*r.Category)
	}
	var confidence interface{} = ""
	if r.ClassificationConfidence != nil {
		confidence = *r.ClassificationConfidence
	}

	return []interface{}{
		r.ID, r.Title, r.Description, string(r.Status), string(r.Priority), category,
		r.CustomerName, r.CustomerEmail, r.CustomerPhone, r.Department, r.AssignedTo,
		confidence, r.AIClassificationEngine, r.AIHandlingEngine,
		formatTime(&r.CreatedAt), formatTime(&r.UpdatedAt),
		formatTime(r.RegisteredAt), formatTime(r.ClassifiedAt),
		formatTime(r.FulfilledAt), formatTime(r.ClosedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateFmt)
}
