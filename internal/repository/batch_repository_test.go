package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanops/envelope-batch-api/internal/models"
)

func newBatchRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBatchRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO batches (batch_code, scanners_configured, status, start_time)")).
		WithArgs(nil, sqlmock.AnyArg(), models.BatchStatusRunning, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	batch := &models.Batch{Scanners: models.ScannerList{1, 2}, Status: models.BatchStatusRunning, StartTime: now}
	require.NoError(t, repo.Insert(context.Background(), batch))
	assert.Equal(t, int64(42), batch.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryInsertDuplicateCode(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	code := "BCH-001"
	mock.ExpectQuery("INSERT INTO batches").
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	batch := &models.Batch{BatchCode: &code, Scanners: models.ScannerList{1}, Status: models.BatchStatusRunning, StartTime: time.Now()}
	err := repo.Insert(context.Background(), batch)
	require.ErrorIs(t, err, ErrDuplicateBatchCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "batch_code", "scanners_configured", "status", "start_time", "end_time", "total_items", "created_at"}).
		AddRow(int64(7), nil, []byte("[1,2]"), "Running", now, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, batch_code, scanners_configured, status, start_time, end_time, total_items, created_at")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	batch, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.ScannerList{1, 2}, batch.Scanners)
	assert.Equal(t, models.BatchStatusRunning, batch.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryFinalizeBatch(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM batches WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Running"))
	mock.ExpectExec("INSERT INTO batch_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO batch_items").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE batches SET status = $2, end_time = $3, total_items = $4 WHERE id = $1")).
		WithArgs(int64(7), models.BatchStatusCompleted, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	items := []models.Item{
		{ItemID: 1, BatchID: 7, Result: models.ItemResultPass, CreatedAt: time.Now()},
		{ItemID: 2, BatchID: 7, Result: models.ItemResultFail, CreatedAt: time.Now()},
	}
	require.NoError(t, repo.FinalizeBatch(context.Background(), 7, items, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryFinalizeBatchNotRunning(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM batches").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Completed"))
	mock.ExpectRollback()

	err := repo.FinalizeBatch(context.Background(), 7, []models.Item{{ItemID: 1}}, time.Now())
	require.ErrorIs(t, err, ErrBatchNotRunning)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryFinalizeBatchMissing(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM batches").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.FinalizeBatch(context.Background(), 99, []models.Item{{ItemID: 1}}, time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryFinalizeBatchInsertFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM batches").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Running"))
	mock.ExpectExec("INSERT INTO batch_items").WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	err := repo.FinalizeBatch(context.Background(), 7, []models.Item{{ItemID: 1}}, time.Now())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryItemsByBatchOrdered(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "item_id", "batch_id", "scanner_1", "scanner_1_valid", "scanner_2", "scanner_2_valid", "scanner_3", "scanner_3_valid", "result", "fallback", "created_at"}).
		AddRow(int64(1), int64(10), int64(7), "A", true, "B", true, nil, nil, "Pass", false, now).
		AddRow(int64(2), int64(11), int64(7), nil, nil, "C", true, nil, nil, "Pass", true, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM batch_items WHERE batch_id = $1 ORDER BY id ASC")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	items, err := repo.ItemsByBatch(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(10), items[0].ItemID)
	assert.True(t, items[1].Fallback)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryListSummaries(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	now := time.Now()
	total := 2
	rows := sqlmock.NewRows([]string{"id", "batch_code", "scanners_configured", "status", "start_time", "end_time", "total_items", "created_at", "pass_count", "fail_count"}).
		AddRow(int64(8), "BCH-002", []byte("[1,2,3]"), "Completed", now, now, total, now, 1, 1).
		AddRow(int64(7), nil, []byte("[1]"), "Running", now, nil, nil, now, 0, 0)
	mock.ExpectQuery("LEFT JOIN batch_items").WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM batches b")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	summaries, count, err := repo.ListSummaries(context.Background(), models.BatchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, summaries, 2)
	assert.Equal(t, int64(8), summaries[0].ID)
	assert.Equal(t, 1, summaries[0].PassCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRepositoryListSummariesStatusFilter(t *testing.T) {
	db, mock, cleanup := newBatchRepoMock(t)
	defer cleanup()
	repo := NewBatchRepository(db)

	rows := sqlmock.NewRows([]string{"id", "batch_code", "scanners_configured", "status", "start_time", "end_time", "total_items", "created_at", "pass_count", "fail_count"})
	mock.ExpectQuery(regexp.QuoteMeta("b.status = $1")).
		WithArgs(models.BatchStatusCompleted).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM batches b WHERE b.status = $1")).
		WithArgs(models.BatchStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, count, err := repo.ListSummaries(context.Background(), models.BatchFilter{Status: models.BatchStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
