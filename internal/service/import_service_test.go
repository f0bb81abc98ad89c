package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appErrors "github.com/scanops/envelope-batch-api/pkg/errors"
)

type mockSnapshotStorage struct {
	saved map[string][]byte
	err   error
}

func (m *mockSnapshotStorage) Save(filename string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return "/imports/" + filename, nil
}

func buildWorkbook(t *testing.T, headers []string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, header))
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportServiceParseSpreadsheet(t *testing.T) {
	storage := &mockSnapshotStorage{}
	svc := NewImportService(storage, 0, nil)

	content := buildWorkbook(t,
		[]string{"Scanner 1", "SCANNER 2", " scanner 3 "},
		[][]string{
			{"A001", "B001", "C001"},
			{"  A002  ", "", "C002"},
		},
	)

	resp, err := svc.ParseSpreadsheet("scans.xlsx", content)
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, 2, resp.TotalItems)

	first := resp.Items[0]
	require.NotNil(t, first.ItemID)
	assert.Equal(t, int64(1), *first.ItemID)
	require.NotNil(t, first.Scanner1.Value)
	assert.Equal(t, "A001", *first.Scanner1.Value)
	assert.Nil(t, first.Scanner1.Valid)

	second := resp.Items[1]
	require.NotNil(t, second.Scanner1.Value)
	assert.Equal(t, "A002", *second.Scanner1.Value)
	assert.False(t, second.Scanner2.Present)

	assert.NotEmpty(t, resp.SnapshotPath)
	assert.Len(t, storage.saved, 1)
}

func TestImportServiceMissingColumn(t *testing.T) {
	svc := NewImportService(nil, 0, nil)

	content := buildWorkbook(t, []string{"Scanner 1", "Scanner 3"}, nil)
	_, err := svc.ParseSpreadsheet("scans.xlsx", content)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrMissingColumn.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "SCANNER 2")
}

func TestImportServiceInvalidFileType(t *testing.T) {
	svc := NewImportService(nil, 0, nil)

	_, err := svc.ParseSpreadsheet("scans.csv", []byte("scanner 1,scanner 2,scanner 3"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFileType.Code, appErrors.FromError(err).Code)
}

func TestImportServiceOversizedFile(t *testing.T) {
	svc := NewImportService(nil, 16, nil)

	content := buildWorkbook(t, []string{"Scanner 1", "Scanner 2", "Scanner 3"}, nil)
	_, err := svc.ParseSpreadsheet("scans.xlsx", content)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportServiceCorruptFile(t *testing.T) {
	svc := NewImportService(nil, 0, nil)

	_, err := svc.ParseSpreadsheet("scans.xlsx", []byte("not a zip archive"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportServiceSnapshotFailureIsNonFatal(t *testing.T) {
	storage := &mockSnapshotStorage{err: assert.AnError}
	svc := NewImportService(storage, 0, nil)

	content := buildWorkbook(t,
		[]string{"Scanner 1", "Scanner 2", "Scanner 3"},
		[][]string{{"A", "B", "C"}},
	)
	resp, err := svc.ParseSpreadsheet("scans.xlsx", content)
	require.NoError(t, err)
	assert.Empty(t, resp.SnapshotPath)
	require.Len(t, resp.Items, 1)
}
