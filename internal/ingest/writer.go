package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docembed/internal/model"
	appErr "github.com/xxxsen/docembed/internal/pkg/errors"
)

// Store is the persistence the pipeline writes through.
type Store interface {
	FindFile(ctx context.Context, sourceID, path string) (*model.FileRecord, error)
	CreateFile(ctx context.Context, f *model.FileRecord) error
	UpdateFile(ctx context.Context, f *model.FileRecord) error
	DeleteSections(ctx context.Context, fileID string) error
	InsertSections(ctx context.Context, sections []model.SectionRecord) error
	InsertSection(ctx context.Context, section *model.SectionRecord) error
	DeleteFile(ctx context.Context, fileID string) error
	// CompleteFile stamps the checksum and token count once the sections are
	// in place. Until then the stored checksum stays empty.
	CompleteFile(ctx context.Context, fileID, checksum string, tokens int) error
	ListChecksums(ctx context.Context, sourceID string) (map[string]string, error)
}

type writer struct {
	store Store
}

// write upserts the file by path and replaces its sections as a unit. The
// checksum is written last so a half written file never looks unchanged.
// The returned warnings are non fatal degradations.
func (w *writer) write(ctx context.Context, f *model.FileRecord, sections []model.SectionRecord, tokens int) ([]string, error) {
	now := time.Now().Unix()
	sum := f.Checksum
	f.Checksum = ""
	f.Mtime = now
	existing, err := w.store.FindFile(ctx, f.SourceID, f.Path)
	switch {
	case err == nil:
		f.ID = existing.ID
		f.Ctime = existing.Ctime
		if err := w.store.DeleteSections(ctx, f.ID); err != nil {
			return nil, fmt.Errorf("delete sections: %w", err)
		}
		if err := w.store.UpdateFile(ctx, f); err != nil {
			return nil, fmt.Errorf("update file: %w", err)
		}
	case isNotFound(err):
		f.ID = uuid.NewString()
		f.Ctime = now
		if err := w.store.CreateFile(ctx, f); err != nil {
			return nil, fmt.Errorf("create file: %w", err)
		}
	default:
		return nil, fmt.Errorf("find file: %w", err)
	}

	for i := range sections {
		sections[i].FileID = f.ID
		sections[i].Ctime = now
	}
	warnings, err := w.insertSections(ctx, sections)
	if err != nil {
		return warnings, err
	}
	if err := w.store.CompleteFile(ctx, f.ID, sum, tokens); err != nil {
		return warnings, fmt.Errorf("complete file: %w", err)
	}
	f.Checksum = sum
	f.TokenCount = tokens
	return warnings, nil
}

// insertSections tries one batch first and falls back to row by row inserts.
func (w *writer) insertSections(ctx context.Context, sections []model.SectionRecord) ([]string, error) {
	if len(sections) == 0 {
		return nil, nil
	}
	batchErr := w.store.InsertSections(ctx, sections)
	if batchErr == nil {
		return nil, nil
	}
	logutil.GetLogger(ctx).Warn("batch insert sections failed, fallback to single rows",
		zap.Int("count", len(sections)), zap.Error(batchErr))
	warnings := []string{fmt.Sprintf("batch insert failed: %v", batchErr)}
	for i := range sections {
		if err := w.store.InsertSection(ctx, &sections[i]); err != nil {
			return warnings, fmt.Errorf("insert section %d: %w", i, err)
		}
	}
	return warnings, nil
}

func isNotFound(err error) bool {
	return appErr.IsNotFound(err)
}
