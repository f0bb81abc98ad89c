package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/scanops/envelope-batch-api/internal/models"
)

// Sentinel errors surfaced to the service layer for typed handling.
var (
	ErrDuplicateBatchCode = errors.New("batch code already exists")
	ErrBatchNotRunning    = errors.New("batch is not running")
)

const pqUniqueViolation = "23505"

// BatchRepository handles persistence of batches and their items.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Insert persists a new Running batch and fills in its generated identity.
func (r *BatchRepository) Insert(ctx context.Context, batch *models.Batch) error {
	const query = `INSERT INTO batches (batch_code, scanners_configured, status, start_time)
        VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, batch.BatchCode, batch.Scanners, batch.Status, batch.StartTime).
		Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrDuplicateBatchCode
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// FindByID returns a batch by its ID. sql.ErrNoRows passes through for the
// service layer to map.
func (r *BatchRepository) FindByID(ctx context.Context, id int64) (*models.Batch, error) {
	const query = `SELECT id, batch_code, scanners_configured, status, start_time, end_time, total_items, created_at
        FROM batches WHERE id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ItemsByBatch returns a batch's items in insertion order.
func (r *BatchRepository) ItemsByBatch(ctx context.Context, batchID int64) ([]models.Item, error) {
	const query = `SELECT id, item_id, batch_id,
        scanner_1, scanner_1_valid, scanner_2, scanner_2_valid, scanner_3, scanner_3_valid,
        result, fallback, created_at
        FROM batch_items WHERE batch_id = $1 ORDER BY id ASC`
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query, batchID); err != nil {
		return nil, fmt.Errorf("list batch items: %w", err)
	}
	return items, nil
}

// FinalizeBatch atomically inserts all normalized items and transitions the
// batch to Completed. The status is re-checked under a row lock inside the
// transaction so concurrent finish calls cannot both succeed; the loser gets
// ErrBatchNotRunning. On any failure the whole operation rolls back and the
// batch stays Running.
func (r *BatchRepository) FinalizeBatch(ctx context.Context, batchID int64, items []models.Item, endTime time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.BatchStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM batches WHERE id = $1 FOR UPDATE`, batchID); err != nil {
		return err
	}
	if status != models.BatchStatusRunning {
		err = ErrBatchNotRunning
		return err
	}

	const insertItem = `INSERT INTO batch_items (
        item_id, batch_id,
        scanner_1, scanner_1_valid, scanner_2, scanner_2_valid, scanner_3, scanner_3_valid,
        result, fallback, created_at
    ) VALUES (
        :item_id, :batch_id,
        :scanner_1, :scanner_1_valid, :scanner_2, :scanner_2_valid, :scanner_3, :scanner_3_valid,
        :result, :fallback, :created_at
    )`
	for i := range items {
		if _, err = tx.NamedExecContext(ctx, insertItem, &items[i]); err != nil {
			err = fmt.Errorf("insert item %d: %w", items[i].ItemID, err)
			return err
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE batches SET status = $2, end_time = $3, total_items = $4 WHERE id = $1`,
		batchID, models.BatchStatusCompleted, endTime, len(items)); err != nil {
		err = fmt.Errorf("complete batch: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize: %w", err)
	}
	return nil
}

// ListSummaries returns batches newest first with pass/fail counts aggregated
// from their item sets. Unknown results count toward neither.
func (r *BatchRepository) ListSummaries(ctx context.Context, filter models.BatchFilter) ([]models.BatchSummary, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT b.id, b.batch_code, b.scanners_configured, b.status, b.start_time, b.end_time, b.total_items, b.created_at,
        COUNT(i.id) FILTER (WHERE i.result = 'Pass') AS pass_count,
        COUNT(i.id) FILTER (WHERE i.result = 'Fail') AS fail_count
        FROM batches b
        LEFT JOIN batch_items i ON i.batch_id = b.id%s
        GROUP BY b.id ORDER BY b.id DESC LIMIT %d OFFSET %d`, clause, size, offset)

	var summaries []models.BatchSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM batches b" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return summaries, total, nil
}

// CountByResult aggregates a single batch's pass/fail counts.
func (r *BatchRepository) CountByResult(ctx context.Context, batchID int64) (pass, fail int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE result = 'Pass') AS pass_count,
        COUNT(*) FILTER (WHERE result = 'Fail') AS fail_count
        FROM batch_items WHERE batch_id = $1`
	row := r.db.QueryRowxContext(ctx, query, batchID)
	if err := row.Scan(&pass, &fail); err != nil {
		return 0, 0, fmt.Errorf("count batch results: %w", err)
	}
	return pass, fail, nil
}
