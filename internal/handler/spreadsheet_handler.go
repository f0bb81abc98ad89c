package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scanops/envelope-batch-api/internal/dto"
	"github.com/scanops/envelope-batch-api/internal/service"
	appErrors "github.com/scanops/envelope-batch-api/pkg/errors"
	"github.com/scanops/envelope-batch-api/pkg/response"
)

type importService interface {
	ParseSpreadsheet(filename string, content []byte) (*dto.ImportResponse, error)
}

type exportService interface {
	Export(ctx context.Context, batchID int64, format string) (*service.ExportResult, error)
}

// SpreadsheetHandler manages spreadsheet import and batch export endpoints.
type SpreadsheetHandler struct {
	imports importService
	exports exportService
}

// NewSpreadsheetHandler constructs the handler.
func NewSpreadsheetHandler(imports importService, exports exportService) *SpreadsheetHandler {
	return &SpreadsheetHandler{imports: imports, exports: exports}
}

// Import godoc
// @Summary Import legacy scan results from a spreadsheet
// @Tags Spreadsheets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet (.xlsx) with Scanner 1/2/3 columns"
// @Success 200 {object} response.Envelope
// @Router /imports/spreadsheet [post]
func (h *SpreadsheetHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close() //nolint:errcheck

	content, err := io.ReadAll(src)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}

	resp, err := h.imports.ParseSpreadsheet(fileHeader.Filename, content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Export godoc
// @Summary Export a completed batch as a formatted report
// @Tags Spreadsheets
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Batch ID"
// @Param format query string false "Export format: xlsx (default), csv or pdf"
// @Success 200 {file} binary
// @Router /batches/{id}/export [get]
func (h *SpreadsheetHandler) Export(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	result, err := h.exports.Export(c.Request.Context(), batchID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
