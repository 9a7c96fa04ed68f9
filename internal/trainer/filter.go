package trainer

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathFilter decides which source paths enter a run. An empty include list
// admits every path; exclude always wins over include.
type PathFilter struct {
	include []string
	exclude []string
}

func NewPathFilter(include, exclude []string) (*PathFilter, error) {
	f := &PathFilter{}
	var err error
	if f.include, err = cleanPatterns(include); err != nil {
		return nil, err
	}
	if f.exclude, err = cleanPatterns(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func cleanPatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = normalizePath(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern: %s", p)
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *PathFilter) Match(path string) bool {
	path = normalizePath(path)
	if len(f.include) > 0 && !matchAny(f.include, path) {
		return false
	}
	return !matchAny(f.exclude, path)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}
