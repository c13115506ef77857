package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/demandcast/backend-go/internal/domain"
	"github.com/demandcast/backend-go/internal/repository"
)

const insertBatchSize = 500

// SalesRepository stores cleaned sales records keyed by dataset.
type SalesRepository struct {
	db *DB
}

func NewSalesRepository(db *DB) *SalesRepository {
	return &SalesRepository{db: db}
}

var _ repository.SalesRepository = (*SalesRepository)(nil)

// RegisterDataset upserts the dataset row and replaces its records in one
// transaction, so readers never observe a half-loaded dataset.
func (r *SalesRepository) RegisterDataset(ctx context.Context, fileName, source string, records []domain.SalesRecord) (*repository.Dataset, error) {
	var ds repository.Dataset

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO datasets (file_name, source, row_count, ingested_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (file_name) DO UPDATE
				SET source = EXCLUDED.source,
				    row_count = EXCLUDED.row_count,
				    ingested_at = now()
			RETURNING id, file_name, source, row_count, ingested_at`,
			fileName, source, len(records))
		if err := row.Scan(&ds.ID, &ds.FileName, &ds.Source, &ds.RowCount, &ds.IngestedAt); err != nil {
			return fmt.Errorf("failed to upsert dataset %s: %w", fileName, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sales_records WHERE dataset_id = $1`, ds.ID); err != nil {
			return fmt.Errorf("failed to clear old records for %s: %w", fileName, err)
		}

		return insertRecords(ctx, tx, ds.ID, records)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("file", fileName).
		Str("source", source).
		Int("rows", len(records)).
		Msg("dataset registered")

	return &ds, nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, datasetID int64, records []domain.SalesRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sales_records
			(dataset_id, sale_date, store_id, product_id, units_sold,
			 price, discount, competitor_price, inventory_level,
			 category, region, weather, season)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if i > 0 && i%insertBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		_, err := stmt.ExecContext(ctx,
			datasetID, rec.Date, rec.StoreID, rec.ProductID, rec.UnitsSold,
			nullNumeric(rec, domain.ColPrice),
			nullNumeric(rec, domain.ColDiscount),
			nullNumeric(rec, domain.ColCompetitorPrice),
			nullNumeric(rec, domain.ColInventoryLevel),
			nullCategorical(rec, domain.ColCategory),
			nullCategorical(rec, domain.ColRegion),
			nullCategorical(rec, domain.ColWeather),
			nullCategorical(rec, domain.ColSeason),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	return nil
}

// RecordsByFile returns one dataset's records ordered by date.
func (r *SalesRepository) RecordsByFile(ctx context.Context, fileName string) ([]domain.SalesRecord, error) {
	if err := r.db.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer r.db.sem.Release(1)

	rows, err := r.db.QueryxContext(ctx, `
		SELECT s.sale_date, s.store_id, s.product_id, s.units_sold,
		       s.price, s.discount, s.competitor_price, s.inventory_level,
		       s.category, s.region, s.weather, s.season
		FROM sales_records s
		JOIN datasets d ON d.id = s.dataset_id
		WHERE d.file_name = $1
		ORDER BY s.sale_date`, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to query records for %s: %w", fileName, err)
	}
	defer rows.Close()

	var records []domain.SalesRecord
	for rows.Next() {
		var (
			saleDate                                 time.Time
			storeID, productID                       string
			unitsSold                                float64
			price, discount, compPrice, inventory    sql.NullFloat64
			category, region, weatherCond, seasonVal sql.NullString
		)
		if err := rows.Scan(&saleDate, &storeID, &productID, &unitsSold,
			&price, &discount, &compPrice, &inventory,
			&category, &region, &weatherCond, &seasonVal); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec := domain.SalesRecord{
			Date:      saleDate.UTC().Truncate(24 * time.Hour),
			StoreID:   storeID,
			ProductID: productID,
			UnitsSold: unitsSold,
		}
		setNumeric(&rec, domain.ColPrice, price)
		setNumeric(&rec, domain.ColDiscount, discount)
		setNumeric(&rec, domain.ColCompetitorPrice, compPrice)
		setNumeric(&rec, domain.ColInventoryLevel, inventory)
		setCategorical(&rec, domain.ColCategory, category)
		setCategorical(&rec, domain.ColRegion, region)
		setCategorical(&rec, domain.ColWeather, weatherCond)
		setCategorical(&rec, domain.ColSeason, seasonVal)

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records for dataset %s", domain.ErrNoData, fileName)
	}
	return records, nil
}

// ListDatasets returns registered datasets, newest first.
func (r *SalesRepository) ListDatasets(ctx context.Context, limit int) ([]repository.Dataset, error) {
	if limit <= 0 {
		limit = 50
	}

	var datasets []repository.Dataset
	err := r.db.SelectContext(ctx, &datasets, `
		SELECT id, file_name, source, row_count, ingested_at
		FROM datasets
		ORDER BY ingested_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, nil
}

func nullNumeric(rec domain.SalesRecord, col string) sql.NullFloat64 {
	if v, ok := rec.Numeric[col]; ok {
		return sql.NullFloat64{Float64: v, Valid: true}
	}
	return sql.NullFloat64{}
}

func nullCategorical(rec domain.SalesRecord, col string) sql.NullString {
	if v, ok := rec.Categorical[col]; ok {
		return sql.NullString{String: v, Valid: true}
	}
	return sql.NullString{}
}

func setNumeric(rec *domain.SalesRecord, col string, v sql.NullFloat64) {
	if !v.Valid {
		return
	}
	if rec.Numeric == nil {
		rec.Numeric = make(map[string]float64)
	}
	rec.Numeric[col] = v.Float64
}

func setCategorical(rec *domain.SalesRecord, col string, v sql.NullString) {
	if !v.Valid {
		return
	}
	if rec.Categorical == nil {
		rec.Categorical = make(map[string]string)
	}
	rec.Categorical[col] = v.String
}
