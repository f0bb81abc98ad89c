package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/scanops/envelope-batch-api/internal/models"
	"github.com/scanops/envelope-batch-api/pkg/export"
	appErrors "github.com/scanops/envelope-batch-api/pkg/errors"
)

// Export formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

type exportBatchRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Batch, error)
	ItemsByBatch(ctx context.Context, batchID int64) ([]models.Item, error)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered batch report ready to be served as a download.
type ExportResult struct {
	Content     []byte
	Filename    string
	ContentType string
}

// ExportService renders completed batches as downloadable reports. Row order
// matches the persisted item order; only configured scanner columns appear.
type ExportService struct {
	repo      exportBatchRepository
	renderers map[string]datasetRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService with the default renderers.
func NewExportService(repo exportBatchRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo: repo,
		renderers: map[string]datasetRenderer{
			FormatXLSX: export.NewXLSXExporter(),
			FormatCSV:  export.NewCSVExporter(),
			FormatPDF:  export.NewPDFExporter(),
		},
		logger: logger,
	}
}

var exportContentTypes = map[string]string{
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatCSV:  "text/csv",
	FormatPDF:  "application/pdf",
}

// Export renders one completed batch in the requested format (xlsx default).
func (s *ExportService) Export(ctx context.Context, batchID int64, format string) (*ExportResult, error) {
	if format == "" {
		format = FormatXLSX
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("batch %d not found", batchID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load batch")
	}
	if batch.Status != models.BatchStatusCompleted {
		return nil, appErrors.ErrNotCompleted
	}

	items, err := s.repo.ItemsByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load batch items")
	}
	if len(items) == 0 {
		return nil, appErrors.ErrNoItems
	}

	dataset := buildDataset(batch, items)
	title := fmt.Sprintf("Batch Report #%d", batch.ID)
	content, err := renderer.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("batch exported",
		zap.Int64("batch_id", batch.ID),
		zap.String("format", format),
		zap.Int("items", len(items)),
	)

	return &ExportResult{
		Content:     content,
		Filename:    fmt.Sprintf("batch_%d_%s.%s", batch.ID, time.Now().Format("20060102_150405"), format),
		ContentType: exportContentTypes[format],
	}, nil
}

func buildDataset(batch *models.Batch, items []models.Item) export.Dataset {
	slots := append(models.ScannerList(nil), batch.Scanners...)
	sort.Ints(slots)

	headers := []string{"No", "Item ID"}
	for _, slot := range slots {
		headers = append(headers, fmt.Sprintf("Scanner %d", slot))
	}
	headers = append(headers, "Result", "Scan Time")

	rows := make([]map[string]string, 0, len(items))
	for i, item := range items {
		row := map[string]string{
			"No":        fmt.Sprintf("%d", i+1),
			"Item ID":   fmt.Sprintf("%d", item.ItemID),
			"Result":    string(item.Result),
			"Scan Time": item.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for _, slot := range slots {
			value := ""
			if v := item.Value(slot); v != nil {
				value = *v
			}
			row[fmt.Sprintf("Scanner %d", slot)] = value
		}
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}
}
