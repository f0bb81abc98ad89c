package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/scanops/envelope-batch-api/internal/dto"
	appErrors "github.com/scanops/envelope-batch-api/pkg/errors"
)

var requiredColumns = []string{"scanner 1", "scanner 2", "scanner 3"}

type snapshotStorage interface {
	Save(filename string, data []byte) (string, error)
}

// ImportService converts uploaded spreadsheets into raw items ready for the
// batch finish operation. Item ids are assigned by row position (1-based).
type ImportService struct {
	storage snapshotStorage
	logger  *zap.Logger
	maxSize int64
}

// NewImportService constructs ImportService. storage may be nil to disable
// snapshot persistence.
func NewImportService(storage snapshotStorage, maxSize int64, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &ImportService{storage: storage, logger: logger, maxSize: maxSize}
}

// ParseSpreadsheet reads an .xlsx upload, requiring the three scanner columns
// (header match is case-insensitive). Cell values are trimmed; empty cells
// become absent readings with unknown validity.
func (s *ImportService) ParseSpreadsheet(filename string, content []byte) (*dto.ImportResponse, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return nil, appErrors.ErrInvalidFileType
	}
	if int64(len(content)) > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.maxSize))
	}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse spreadsheet")
	}
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read spreadsheet rows")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrMissingColumn, "spreadsheet has no header row")
	}

	columns := make(map[string]int, len(rows[0]))
	for idx, header := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(header))] = idx
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, appErrors.Clone(appErrors.ErrMissingColumn, fmt.Sprintf("missing required column: %s", strings.ToUpper(required)))
		}
	}

	items := make([]dto.RawItem, 0, len(rows)-1)
	for i, row := range rows[1:] {
		itemID := int64(i + 1)
		item := dto.RawItem{
			ItemID:   &itemID,
			Scanner1: cellReading(row, columns["scanner 1"]),
			Scanner2: cellReading(row, columns["scanner 2"]),
			Scanner3: cellReading(row, columns["scanner 3"]),
		}
		items = append(items, item)
	}

	resp := &dto.ImportResponse{Items: items, TotalItems: len(items)}
	resp.SnapshotPath = s.saveSnapshot(items)
	return resp, nil
}

func (s *ImportService) saveSnapshot(items []dto.RawItem) string {
	if s.storage == nil {
		return ""
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		s.logger.Warn("failed to marshal import snapshot", zap.Error(err))
		return ""
	}
	path, err := s.storage.Save(fmt.Sprintf("import_%s.json", uuid.NewString()), payload)
	if err != nil {
		s.logger.Warn("failed to persist import snapshot", zap.Error(err))
		return ""
	}
	return path
}

func cellReading(row []string, idx int) dto.ScannerReading {
	if idx >= len(row) {
		return dto.ScannerReading{}
	}
	value := strings.TrimSpace(row[idx])
	if value == "" {
		return dto.ScannerReading{}
	}
	return dto.ScannerReading{Present: true, Value: &value}
}
