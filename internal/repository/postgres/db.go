package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/demandcast/backend-go/internal/config"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	once       sync.Once
)

// NewDB opens the shared connection pool. Repeated calls return the same
// instance.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	var err error
	once.Do(func() {
		connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

		var db *sqlx.DB
		db, err = sqlx.Connect("postgres", connStr)
		if err != nil {
			return
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		dbInstance = &DB{
			DB:  db,
			sem: semaphore.NewWeighted(10),
		}
	})

	return dbInstance, err
}

// WithTx executes fn inside a transaction, bounded by the operation
// semaphore so bulk ingestion cannot exhaust the pool.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx.Tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// SchemaStatements create the sales tables. The seed CLI runs them over its
// own connection, so they are exported rather than inlined in EnsureSchema.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		id BIGSERIAL PRIMARY KEY,
		file_name TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		row_count INT NOT NULL DEFAULT 0,
		ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sales_records (
		id BIGSERIAL PRIMARY KEY,
		dataset_id BIGINT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
		sale_date DATE NOT NULL,
		store_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		units_sold DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION,
		discount DOUBLE PRECISION,
		competitor_price DOUBLE PRECISION,
		inventory_level DOUBLE PRECISION,
		category TEXT,
		region TEXT,
		weather TEXT,
		season TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_records_dataset_date
		ON sales_records (dataset_id, sale_date)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_records_store_product
		ON sales_records (store_id, product_id)`,
}

// EnsureSchema creates the sales tables when they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range SchemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}
	return nil
}
