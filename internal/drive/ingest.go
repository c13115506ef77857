package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/demandcast/backend-go/internal/domain"
	"github.com/demandcast/backend-go/internal/ingest"
	"github.com/demandcast/backend-go/internal/repository"
)

// IngestService pulls one Drive file through the cleaning pipeline and
// registers it as a dataset.
type IngestService struct {
	driveService *Service
	repo         repository.SalesRepository
	uploadDir    string
}

// NewIngestService wires the ingestion flow. repo may be nil; the dataset
// then lives on the filesystem only.
func NewIngestService(driveService *Service, repo repository.SalesRepository, uploadDir string) *IngestService {
	return &IngestService{
		driveService: driveService,
		repo:         repo,
		uploadDir:    uploadDir,
	}
}

// IngestFile downloads a Drive file, validates and cleans it, stores the
// CSV next to uploaded datasets and registers it.
func (s *IngestService) IngestFile(ctx context.Context, fileID string) (*repository.Dataset, error) {
	meta, err := s.fileMeta(fileID)
	if err != nil {
		return nil, err
	}

	localPath, err := s.downloadAsCSV(meta)
	if err != nil {
		return nil, err
	}

	records, err := ingest.LoadFile(localPath)
	if err != nil {
		_ = os.Remove(localPath)
		return nil, err
	}
	if len(records) == 0 {
		_ = os.Remove(localPath)
		return nil, fmt.Errorf("%w: %s has no usable rows", domain.ErrNoData, meta.Name)
	}

	fileName := filepath.Base(localPath)
	log.Info().
		Str("file", fileName).
		Str("drive_id", fileID).
		Int("rows", len(records)).
		Msg("drive file ingested")

	if s.repo != nil {
		return s.repo.RegisterDataset(ctx, fileName, repository.SourceDrive, records)
	}
	return &repository.Dataset{FileName: fileName, Source: repository.SourceDrive, RowCount: len(records)}, nil
}

// IngestFolder pulls every CSV/XLSX file from a Drive folder and registers
// each as a dataset. Files that clean down to zero rows are skipped with a
// warning rather than failing the batch.
func (s *IngestService) IngestFolder(ctx context.Context, folderID string) ([]*repository.Dataset, error) {
	paths, err := NewPuller(s.driveService).PullFolderCSV(ctx, PullOptions{
		FolderID:    folderID,
		DownloadDir: s.uploadDir,
	})
	if err != nil {
		return nil, err
	}

	var datasets []*repository.Dataset
	for _, path := range paths {
		records, err := ingest.LoadFile(path)
		if err != nil || len(records) == 0 {
			log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("pulled file is not a usable dataset")
			_ = os.Remove(path)
			continue
		}

		fileName := filepath.Base(path)
		ds := &repository.Dataset{FileName: fileName, Source: repository.SourceDrive, RowCount: len(records)}
		if s.repo != nil {
			ds, err = s.repo.RegisterDataset(ctx, fileName, repository.SourceDrive, records)
			if err != nil {
				return nil, err
			}
		}
		datasets = append(datasets, ds)
	}

	log.Info().Str("folder", folderID).Int("files", len(datasets)).Msg("drive folder ingested")
	return datasets, nil
}

func (s *IngestService) fileMeta(fileID string) (*File, error) {
	result, err := s.driveService.srv.Files.Get(fileID).Fields("id, name, mimeType, size").Do()
	if err != nil {
		return nil, fmt.Errorf("unable to stat drive file %s: %w", fileID, err)
	}
	return &File{ID: result.Id, Name: result.Name, MimeType: result.MimeType, Size: result.Size}, nil
}

func (s *IngestService) downloadAsCSV(meta *File) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := filepath.Base(meta.Name)
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".csv" && ext != ".xlsx" {
		return "", fmt.Errorf("%w: unsupported file type %s", domain.ErrMissingRequiredField, ext)
	}

	localPath := filepath.Join(s.uploadDir, name)
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	if err := s.driveService.DownloadFile(meta.ID, out); err != nil {
		out.Close()
		return "", err
	}
	out.Close()

	if ext == ".csv" {
		return localPath, nil
	}

	csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
	if err := ingest.ConvertXLSXToCSV(localPath, csvPath); err != nil {
		return "", err
	}
	_ = os.Remove(localPath)
	return csvPath, nil
}
