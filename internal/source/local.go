package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/xxxsen/docembed/internal/config"
	"github.com/xxxsen/docembed/internal/model"
)

type localSource struct {
	dir   string
	paths []string
}

func init() {
	Register("local", createLocalSource)
}

func createLocalSource(cfg config.SourceConfig) (Source, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("local source dir is required")
	}
	return NewLocal(cfg.Dir), nil
}

func NewLocal(dir string) Source {
	return &localSource{dir: dir}
}

// Fetch walks the directory. Paths are relative, slash separated and sorted;
// hidden directories are not entered.
func (s *localSource) Fetch(ctx context.Context) error {
	var paths []string
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != s.dir && len(d.Name()) > 1 && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", s.dir, err)
	}
	sort.Strings(paths)
	s.paths = paths
	return nil
}

func (s *localSource) Len() int {
	return len(s.paths)
}

func (s *localSource) FilePath(i int) string {
	return s.paths[i]
}

func (s *localSource) ReadFile(_ context.Context, i int) (*model.FileData, error) {
	rel := s.paths[i]
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	return &model.FileData{
		Path:             rel,
		Name:             path.Base(rel),
		Content:          string(data),
		InternalMetadata: map[string]interface{}{"local_path": full},
	}, nil
}
