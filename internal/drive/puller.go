package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/demandcast/backend-go/internal/ingest"
)

// PullOptions controls how sales files are pulled from a Drive folder.
type PullOptions struct {
	FolderID    string
	DownloadDir string
}

// Puller downloads a folder's sales datasets to local CSV files.
type Puller struct {
	service *Service
}

func NewPuller(s *Service) *Puller {
	return &Puller{service: s}
}

// PullFolderCSV downloads all CSV and XLSX files from the folder into
// DownloadDir and returns the local CSV paths. XLSX files are converted to
// CSV through their first sheet and the temporary workbook is removed.
func (p *Puller) PullFolderCSV(ctx context.Context, opts PullOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := p.service.ListFiles(opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, f.Name)
		if err := p.download(f.ID, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		if ext == ".csv" {
			localPaths = append(localPaths, localPath)
			continue
		}

		csvPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".csv"
		if err := ingest.ConvertXLSXToCSV(localPath, csvPath); err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", f.Name, err)
		}
		_ = os.Remove(localPath)
		localPaths = append(localPaths, csvPath)
	}

	return localPaths, nil
}

func (p *Puller) download(fileID, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return p.service.DownloadFile(fileID, out)
}
