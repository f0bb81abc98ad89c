package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanops/envelope-batch-api/internal/dto"
	"github.com/scanops/envelope-batch-api/internal/models"
	appErrors "github.com/scanops/envelope-batch-api/pkg/errors"
)

type batchServiceMock struct {
	startResp  *dto.StartBatchResponse
	startErr   error
	finishResp *dto.FinishBatchResponse
	finishErr  error
	getResp    *dto.BatchDetailResponse
	getErr     error
	listResp   []models.BatchSummary
	listErr    error

	lastFinishID    int64
	lastFinishItems []dto.RawItem
	lastFilter      models.BatchFilter
}

func (m *batchServiceMock) Start(ctx context.Context, req dto.StartBatchRequest) (*dto.StartBatchResponse, error) {
	return m.startResp, m.startErr
}

func (m *batchServiceMock) Finish(ctx context.Context, batchID int64, items []dto.RawItem) (*dto.FinishBatchResponse, error) {
	m.lastFinishID = batchID
	m.lastFinishItems = items
	return m.finishResp, m.finishErr
}

func (m *batchServiceMock) Get(ctx context.Context, batchID int64) (*dto.BatchDetailResponse, error) {
	return m.getResp, m.getErr
}

func (m *batchServiceMock) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchSummary, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, m.listErr
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c, w
}

func TestBatchHandlerStart(t *testing.T) {
	mockSvc := &batchServiceMock{startResp: &dto.StartBatchResponse{BatchID: 1, Scanners: []int{1, 2}}}
	h := NewBatchHandler(mockSvc)

	payload, _ := json.Marshal(dto.StartBatchRequest{Scanners: []int{1, 2}})
	c, w := testContext(t, http.MethodPost, "/batches", payload)

	h.Start(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"batch_id":1`)
}

func TestBatchHandlerStartInvalidBody(t *testing.T) {
	h := NewBatchHandler(&batchServiceMock{})

	c, w := testContext(t, http.MethodPost, "/batches", []byte(`{"scanners_configured":[1`))
	h.Start(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchHandlerStartDuplicateCode(t *testing.T) {
	h := NewBatchHandler(&batchServiceMock{startErr: appErrors.ErrDuplicateBatchCode})

	payload, _ := json.Marshal(dto.StartBatchRequest{Scanners: []int{1}})
	c, w := testContext(t, http.MethodPost, "/batches", payload)
	h.Start(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestBatchHandlerFinish(t *testing.T) {
	mockSvc := &batchServiceMock{finishResp: &dto.FinishBatchResponse{Status: "completed", TotalItems: 2, Scanners: []int{1, 2}}}
	h := NewBatchHandler(mockSvc)

	body := []byte(`{"items":[
		{"item_id":1,"scanner_1":{"value":"A","valid":true},"scanner_2":{"value":"B","valid":true}},
		{"item_id":2,"scanner_2":"C"}
	]}`)
	c, w := testContext(t, http.MethodPost, "/batches/7/finish", body)
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	h.Finish(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), mockSvc.lastFinishID)
	require.Len(t, mockSvc.lastFinishItems, 2)
	// bare scalar reading resolved at the boundary
	second := mockSvc.lastFinishItems[1].Scanner2
	assert.True(t, second.Present)
	require.NotNil(t, second.Value)
	assert.Equal(t, "C", *second.Value)
	assert.Nil(t, second.Valid)
}

func TestBatchHandlerFinishAlreadyFinished(t *testing.T) {
	h := NewBatchHandler(&batchServiceMock{finishErr: appErrors.ErrAlreadyFinished})

	c, w := testContext(t, http.MethodPost, "/batches/7/finish", []byte(`{"items":[{"item_id":1}]}`))
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	h.Finish(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestBatchHandlerFinishBadID(t *testing.T) {
	h := NewBatchHandler(&batchServiceMock{})

	c, w := testContext(t, http.MethodPost, "/batches/abc/finish", []byte(`{"items":[{"item_id":1}]}`))
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Finish(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchHandlerGetNotFound(t *testing.T) {
	h := NewBatchHandler(&batchServiceMock{getErr: appErrors.ErrNotFound})

	c, w := testContext(t, http.MethodGet, "/batches/99", nil)
	c.Params = gin.Params{{Key: "id", Value: "99"}}
	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchHandlerList(t *testing.T) {
	mockSvc := &batchServiceMock{listResp: []models.BatchSummary{{Batch: models.Batch{ID: 8, Status: models.BatchStatusCompleted}}}}
	h := NewBatchHandler(mockSvc)

	c, w := testContext(t, http.MethodGet, "/batches?status=completed&page=2&limit=10", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BatchStatusCompleted, mockSvc.lastFilter.Status)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 10, mockSvc.lastFilter.PageSize)
}

func TestBatchHandlerListInvalidStatus(t *testing.T) {
	h := NewBatchHandler(&batchServiceMock{})

	c, w := testContext(t, http.MethodGet, "/batches?status=failed", nil)
	h.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
