package source

import (
	"context"
	"path"
	"sync/atomic"

	"github.com/xxxsen/docembed/internal/model"
)

// Memory serves a fixed set of files. It counts content reads so callers
// can observe which files were actually loaded.
type Memory struct {
	files []model.FileData
	reads atomic.Int64
}

func NewMemory(files []model.FileData) *Memory {
	return &Memory{files: files}
}

func (m *Memory) Fetch(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Len() int {
	return len(m.files)
}

func (m *Memory) FilePath(i int) string {
	return m.files[i].Path
}

func (m *Memory) ReadFile(_ context.Context, i int) (*model.FileData, error) {
	m.reads.Add(1)
	f := m.files[i]
	if f.Name == "" {
		f.Name = path.Base(f.Path)
	}
	return &f, nil
}

func (m *Memory) Reads() int64 {
	return m.reads.Load()
}
