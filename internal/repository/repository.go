package repository

import (
	"context"
	"time"

	"github.com/demandcast/backend-go/internal/domain"
)

// Dataset is one registered sales file, uploaded or pulled from Drive.
type Dataset struct {
	ID         int64     `db:"id" json:"id"`
	FileName   string    `db:"file_name" json:"file_name"`
	Source     string    `db:"source" json:"source"`
	RowCount   int       `db:"row_count" json:"row_count"`
	IngestedAt time.Time `db:"ingested_at" json:"ingested_at"`
}

// Dataset sources.
const (
	SourceUpload = "upload"
	SourceDrive  = "drive"
)

// SalesRepository persists cleaned sales records and the dataset registry.
type SalesRepository interface {
	// RegisterDataset upserts the dataset row for a file and replaces its
	// sales records.
	RegisterDataset(ctx context.Context, fileName, source string, records []domain.SalesRecord) (*Dataset, error)

	// RecordsByFile returns all records of one dataset ordered by date.
	RecordsByFile(ctx context.Context, fileName string) ([]domain.SalesRecord, error)

	// ListDatasets returns registered datasets, newest first.
	ListDatasets(ctx context.Context, limit int) ([]Dataset, error)
}
