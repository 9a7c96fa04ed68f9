// Package checksum detects files whose content did not change since the
// last successful run.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

func Sum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Index is a read only path to checksum snapshot taken once per batch.
type Index struct {
	sums map[string]string
}

func NewIndex(sums map[string]string) *Index {
	cp := make(map[string]string, len(sums))
	for k, v := range sums {
		cp[k] = v
	}
	return &Index{sums: cp}
}

func (i *Index) Get(path string) (string, bool) {
	if i == nil {
		return "", false
	}
	v, ok := i.sums[path]
	return v, ok
}

// Unchanged reports whether path was stored with exactly this checksum.
func (i *Index) Unchanged(path, sum string) bool {
	v, ok := i.Get(path)
	return ok && v == sum
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.sums)
}
