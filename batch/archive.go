package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"converthub/models"
	"converthub/storage"
)

// Archiver bundles the successful results of a batch into one ZIP
// archive together with a machine-readable manifest.
type Archiver struct {
	logger *zap.Logger
	store  storage.Storage
}

func NewArchiver(logger *zap.Logger, store storage.Storage) *Archiver {
	return &Archiver{logger: logger, store: store}
}

type manifestEntry struct {
	Index    int    `json:"index"`
	Source   string `json:"source"`
	Entry    string `json:"entry,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	SourceID string `json:"task_id,omitempty"`
}

type manifest struct {
	BatchID   string          `json:"batch_id"`
	CreatedAt time.Time       `json:"created_at"`
	Entries   []manifestEntry `json:"entries"`
}

// Build downloads every successful artifact in input-index order,
// writes them into a ZIP, and uploads the archive. A failed download
// becomes an error placeholder entry instead of aborting the archive.
func (a *Archiver) Build(ctx context.Context, batchID string, results []models.ConversionResult) (string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	man := manifest{
		BatchID:   batchID,
		CreatedAt: time.Now().UTC(),
	}
	used := make(map[string]bool)

	for i, result := range results {
		if result.Status != models.ConversionSuccess || result.ResultURL == "" {
			man.Entries = append(man.Entries, manifestEntry{
				Index:    i,
				Source:   result.Metadata["input_filename"],
				Status:   "skipped",
				Error:    result.ErrorMessage,
				SourceID: result.TaskID,
			})
			continue
		}

		data, err := a.store.Download(ctx, result.ResultURL)
		if err != nil {
			a.logger.Warn("Archive entry download failed",
				zap.String("batch_id", batchID),
				zap.Int("index", i),
				zap.String("url", result.ResultURL),
				zap.Error(err),
			)
			errName := fmt.Sprintf("error_%d.txt", i)
			if werr := writeEntry(zw, errName, []byte(fmt.Sprintf("Error downloading %s: %v", result.ResultURL, err))); werr != nil {
				return "", fmt.Errorf("write placeholder entry: %w", werr)
			}
			man.Entries = append(man.Entries, manifestEntry{
				Index:    i,
				Source:   result.Metadata["input_filename"],
				Entry:    errName,
				Status:   "download_error",
				Error:    err.Error(),
				SourceID: result.TaskID,
			})
			continue
		}

		name := entryName(result, i, used)
		if err := writeEntry(zw, name, data); err != nil {
			return "", fmt.Errorf("write archive entry: %w", err)
		}
		man.Entries = append(man.Entries, manifestEntry{
			Index:    i,
			Source:   result.Metadata["input_filename"],
			Entry:    name,
			Status:   "ok",
			SourceID: result.TaskID,
		})
	}

	manData, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeEntry(zw, "manifest.json", manData); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	zipName := fmt.Sprintf("batch_%s.zip", batchID)
	url, err := a.store.Upload(ctx, buf.Bytes(), zipName, "application/zip")
	if err != nil {
		return "", fmt.Errorf("upload archive: %w", err)
	}

	a.logger.Info("Built batch archive",
		zap.String("batch_id", batchID),
		zap.Int("entries", len(man.Entries)),
		zap.Int("size", buf.Len()),
	)
	return url, nil
}

// entryName derives the archive entry name from the original input
// filename stem and the output format. Two inputs that collapse to the
// same stem are disambiguated with the input index.
func entryName(result models.ConversionResult, index int, used map[string]bool) string {
	original := result.Metadata["input_filename"]
	if original == "" {
		original = fmt.Sprintf("file_%d", index)
	}
	stem := strings.TrimSuffix(path.Base(original), path.Ext(original))

	format := result.Metadata["output_format"]
	if format == "" {
		format = "bin"
	}

	name := fmt.Sprintf("%s.%s", stem, format)
	if used[name] {
		name = fmt.Sprintf("%s_%d.%s", stem, index, format)
	}
	used[name] = true
	return name
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
