// Package source enumerates the files of a documentation source.
package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/docembed/internal/config"
	"github.com/xxxsen/docembed/internal/model"
)

// Source lists files once through Fetch and then serves them by index.
// ReadFile may be expensive and is only called for files that pass the path
// filters. It returns the file's name, content and whatever metadata the
// backing store carries for it.
type Source interface {
	Fetch(ctx context.Context) error
	Len() int
	FilePath(i int) string
	ReadFile(ctx context.Context, i int) (*model.FileData, error)
}

type Factory func(cfg config.SourceConfig) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.SourceConfig) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("source type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
	return factory(cfg)
}
