package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scanops/envelope-batch-api/internal/dto"
	"github.com/scanops/envelope-batch-api/internal/models"
	appErrors "github.com/scanops/envelope-batch-api/pkg/errors"
	"github.com/scanops/envelope-batch-api/pkg/response"
)

type batchService interface {
	Start(ctx context.Context, req dto.StartBatchRequest) (*dto.StartBatchResponse, error)
	Finish(ctx context.Context, batchID int64, items []dto.RawItem) (*dto.FinishBatchResponse, error)
	Get(ctx context.Context, batchID int64) (*dto.BatchDetailResponse, error)
	List(ctx context.Context, filter models.BatchFilter) ([]models.BatchSummary, *models.Pagination, error)
}

// BatchHandler exposes the batch lifecycle endpoints.
type BatchHandler struct {
	batches batchService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches batchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Start godoc
// @Summary Start a scanning batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body dto.StartBatchRequest true "Scanner configuration"
// @Success 201 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Start(c *gin.Context) {
	var req dto.StartBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	resp, err := h.batches.Start(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Finish godoc
// @Summary Finish a batch with its full item set
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path int true "Batch ID"
// @Param payload body dto.FinishBatchRequest true "Raw scan items"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/finish [post]
func (h *BatchHandler) Finish(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	var req dto.FinishBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	resp, err := h.batches.Finish(c.Request.Context(), batchID, req.Items)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Get godoc
// @Summary Get batch detail with items and counts
// @Tags Batches
// @Produce json
// @Param id path int true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	batchID, ok := batchIDParam(c)
	if !ok {
		return
	}
	detail, err := h.batches.Get(c.Request.Context(), batchID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List batches with aggregated counts
// @Tags Batches
// @Produce json
// @Param status query string false "Filter by status (Running or Completed)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	var filter models.BatchFilter
	switch strings.ToLower(c.Query("status")) {
	case "":
	case "running":
		filter.Status = models.BatchStatusRunning
	case "completed":
		filter.Status = models.BatchStatusCompleted
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be Running or Completed"))
		return
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	summaries, pagination, err := h.batches.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, pagination)
}

func batchIDParam(c *gin.Context) (int64, bool) {
	batchID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || batchID < 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "batch id must be a positive integer"))
		return 0, false
	}
	return batchID, true
}
