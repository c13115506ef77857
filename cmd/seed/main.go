package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/demandcast/backend-go/internal/config"
	"github.com/demandcast/backend-go/internal/domain"
	"github.com/demandcast/backend-go/internal/drive"
	"github.com/demandcast/backend-go/internal/ingest"
	"github.com/demandcast/backend-go/internal/repository"
	"github.com/demandcast/backend-go/internal/repository/postgres"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "seed",
		Usage: "Load sales datasets into the database and pull them from Drive",
		Commands: []*cli.Command{
			{
				Name:  "sales",
				Usage: "Seed sales datasets from a directory of CSV/XLSX files",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing sales data files",
						Value:   "./data/seeds/sales",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of files loaded concurrently",
						Value: 4,
					},
				},
				Action: seedSales,
			},
			{
				Name:  "pull",
				Usage: "Download sales files from a Google Drive folder",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "folder-id",
						Usage:   "Drive folder ID to pull from",
						EnvVars: []string{"GOOGLE_DRIVE_FOLDER_ID"},
					},
					&cli.StringFlag{
						Name:  "download-dir",
						Usage: "Directory downloaded CSVs are written to",
						Value: "./data/uploads",
					},
				},
				Action: pullDrive,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func seedSales(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := c.Context
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range postgres.SchemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema migration failed: %w", err)
		}
	}

	dataDir := c.String("data-dir")
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return fmt.Errorf("failed to read data dir %s: %w", dataDir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".csv" || ext == ".xlsx" {
			paths = append(paths, filepath.Join(dataDir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no CSV or XLSX files in %s", dataDir)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Int("workers"))
	for _, path := range paths {
		g.Go(func() error {
			if err := seedFile(ctx, db, path); err != nil {
				return fmt.Errorf("failed to seed %s: %w", filepath.Base(path), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("Seeded %d datasets from %s", len(paths), dataDir)
	return nil
}

func seedFile(ctx context.Context, db *sql.DB, path string) error {
	records, err := ingest.LoadFile(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no usable rows", domain.ErrNoData)
	}

	fileName := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(fileName), ".xlsx") {
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".csv"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var datasetID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO datasets (file_name, source, row_count, ingested_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (file_name) DO UPDATE
			SET source = EXCLUDED.source,
			    row_count = EXCLUDED.row_count,
			    ingested_at = now()
		RETURNING id`,
		fileName, repository.SourceUpload, len(records)).Scan(&datasetID)
	if err != nil {
		return fmt.Errorf("failed to upsert dataset: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sales_records WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to clear old records: %w", err)
	}

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
		if _, err := stmt.ExecContext(ctx,
			datasetID, rec.Date, rec.StoreID, rec.ProductID, rec.UnitsSold,
			nullNumeric(rec, domain.ColPrice),
			nullNumeric(rec, domain.ColDiscount),
			nullNumeric(rec, domain.ColCompetitorPrice),
			nullNumeric(rec, domain.ColInventoryLevel),
			nullCategorical(rec, domain.ColCategory),
			nullCategorical(rec, domain.ColRegion),
			nullCategorical(rec, domain.ColWeather),
			nullCategorical(rec, domain.ColSeason),
		); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Seeded %s (%d rows)", fileName, len(records))
	return nil
}

func pullDrive(c *cli.Context) error {
	cfg := config.Load()
	if cfg.Drive.CredentialsJSON == "" {
		return fmt.Errorf("GOOGLE_DRIVE_CREDENTIALS_JSON is required")
	}

	ctx := c.Context
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		return err
	}

	folderID := c.String("folder-id")
	if folderID == "" {
		folderID = cfg.Drive.FolderID
	}

	paths, err := drive.NewPuller(driveService).PullFolderCSV(ctx, drive.PullOptions{
		FolderID:    folderID,
		DownloadDir: c.String("download-dir"),
	})
	if err != nil {
		return err
	}

	for _, path := range paths {
		log.Printf("Pulled %s", path)
	}
	log.Printf("Pulled %d files", len(paths))
	return nil
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
