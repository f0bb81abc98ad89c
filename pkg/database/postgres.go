package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/scanops/envelope-batch-api/pkg/config"
)

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate ensures the batch tables exist. Items cascade with their batch.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id BIGSERIAL PRIMARY KEY,
			batch_code TEXT UNIQUE,
			scanners_configured JSONB NOT NULL,
			status TEXT NOT NULL DEFAULT 'Running',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			total_items INT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS batch_items (
			id BIGSERIAL PRIMARY KEY,
			item_id BIGINT NOT NULL,
			batch_id BIGINT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			scanner_1 TEXT,
			scanner_1_valid BOOLEAN,
			scanner_2 TEXT,
			scanner_2_valid BOOLEAN,
			scanner_3 TEXT,
			scanner_3_valid BOOLEAN,
			result TEXT NOT NULL DEFAULT 'Unknown',
			fallback BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (batch_id, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batch_items_batch_id ON batch_items (batch_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}
