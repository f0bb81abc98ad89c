package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/scanops/envelope-batch-api/internal/dto"
	"github.com/scanops/envelope-batch-api/internal/models"
	"github.com/scanops/envelope-batch-api/internal/repository"
	appErrors "github.com/scanops/envelope-batch-api/pkg/errors"
)

const listCachePattern = "batches:list:*"

type batchRepository interface {
	Insert(ctx context.Context, batch *models.Batch) error
	FindByID(ctx context.Context, id int64) (*models.Batch, error)
	ItemsByBatch(ctx context.Context, batchID int64) ([]models.Item, error)
	FinalizeBatch(ctx context.Context, batchID int64, items []models.Item, endTime time.Time) error
	ListSummaries(ctx context.Context, filter models.BatchFilter) ([]models.BatchSummary, int, error)
	CountByResult(ctx context.Context, batchID int64) (pass, fail int, err error)
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type batchMetrics interface {
	ObserveBatchStarted()
	ObserveBatchFinished(itemCount int)
	ObserveItemResult(result models.ItemResult, fallback bool)
	ObserveCacheLookup(hit bool)
}

// BatchService owns the Running → Completed batch lifecycle.
type BatchService struct {
	repo      batchRepository
	cache     listCache
	metrics   batchMetrics
	validator *validator.Validate
	logger    *zap.Logger
	listTTL   time.Duration
}

// NewBatchService constructs BatchService. cache and metrics may be nil.
func NewBatchService(repo batchRepository, cache listCache, metrics batchMetrics, listTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if listTTL <= 0 {
		listTTL = 2 * time.Minute
	}
	return &BatchService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, listTTL: listTTL}
}

// Start opens a new Running batch with an immutable scanner configuration.
func (s *BatchService) Start(ctx context.Context, req dto.StartBatchRequest) (*dto.StartBatchResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start payload")
	}
	if !ValidateScanners(req.Scanners) {
		return nil, appErrors.Clone(appErrors.ErrInvalidConfiguration, "scanners must be 1-3 distinct slots from {1, 2, 3}")
	}

	batch := &models.Batch{
		Scanners:  models.ScannerList(req.Scanners),
		Status:    models.BatchStatusRunning,
		StartTime: time.Now().UTC(),
	}
	if req.BatchCode != nil {
		code := strings.TrimSpace(*req.BatchCode)
		if code != "" {
			batch.BatchCode = &code
		}
	}

	if err := s.repo.Insert(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrDuplicateBatchCode) {
			return nil, appErrors.ErrDuplicateBatchCode
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create batch")
	}

	s.invalidateListCache(ctx)
	if s.metrics != nil {
		s.metrics.ObserveBatchStarted()
	}
	s.logger.Info("batch started",
		zap.Int64("batch_id", batch.ID),
		zap.Ints("scanners", req.Scanners),
	)

	return &dto.StartBatchResponse{BatchID: batch.ID, Scanners: batch.Scanners}, nil
}

// Finish normalizes the submitted items against the batch's stored scanner
// configuration and closes the batch in one atomic write. A batch can be
// finished exactly once; concurrent callers race for the row lock and the
// loser is rejected.
func (s *BatchService) Finish(ctx context.Context, batchID int64, rawItems []dto.RawItem) (*dto.FinishBatchResponse, error) {
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("batch %d not found", batchID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load batch")
	}
	if len(rawItems) == 0 {
		return nil, appErrors.ErrEmptyInput
	}
	if batch.Status != models.BatchStatusRunning {
		return nil, appErrors.ErrAlreadyFinished
	}

	for i, raw := range rawItems {
		if raw.ItemID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item at position %d is missing item_id", i+1))
		}
	}

	now := time.Now().UTC()
	normalized := make([]models.Item, 0, len(rawItems))
	for _, raw := range rawItems {
		normalized = append(normalized, NormalizeItem(raw, batch.ID, batch.Scanners, now))
	}

	if err := s.repo.FinalizeBatch(ctx, batch.ID, normalized, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrBatchNotRunning):
			return nil, appErrors.ErrAlreadyFinished
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("batch %d not found", batchID))
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to finalize batch")
		}
	}

	s.invalidateListCache(ctx)
	if s.metrics != nil {
		s.metrics.ObserveBatchFinished(len(normalized))
		for _, item := range normalized {
			s.metrics.ObserveItemResult(item.Result, item.Fallback)
		}
	}
	s.logger.Info("batch finished",
		zap.Int64("batch_id", batch.ID),
		zap.Int("total_items", len(normalized)),
	)

	return &dto.FinishBatchResponse{
		Status:     "completed",
		TotalItems: len(normalized),
		Scanners:   batch.Scanners,
	}, nil
}

// Get returns a batch with its full item list and pass/fail counts.
func (s *BatchService) Get(ctx context.Context, batchID int64) (*dto.BatchDetailResponse, error) {
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("batch %d not found", batchID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load batch")
	}

	items, err := s.repo.ItemsByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load batch items")
	}
	pass, fail, err := s.repo.CountByResult(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to count batch results")
	}

	return &dto.BatchDetailResponse{Batch: *batch, Items: items, PassCount: pass, FailCount: fail}, nil
}

type cachedBatchList struct {
	Summaries []models.BatchSummary `json:"summaries"`
	Total     int                   `json:"total"`
}

// List returns batch summaries newest first, read through the list cache.
func (s *BatchService) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchSummary, *models.Pagination, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	key := fmt.Sprintf("batches:list:%s:%d:%d", filter.Status, page, size)
	if s.cache != nil {
		var cached cachedBatchList
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCacheLookup(true)
			}
			return cached.Summaries, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("batch list cache read failed", zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.ObserveCacheLookup(false)
		}
	}

	summaries, total, err := s.repo.ListSummaries(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list batches")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedBatchList{Summaries: summaries, Total: total}, s.listTTL); err != nil {
			s.logger.Warn("batch list cache write failed", zap.Error(err))
		}
	}

	return summaries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *BatchService) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, listCachePattern); err != nil {
		s.logger.Warn("batch list cache invalidation failed", zap.Error(err))
	}
}
