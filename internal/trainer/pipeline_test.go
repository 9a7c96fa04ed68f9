package trainer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docembed/internal/ingest"
	"github.com/xxxsen/docembed/internal/model"
	appErr "github.com/xxxsen/docembed/internal/pkg/errors"
	"github.com/xxxsen/docembed/internal/source"
)

// recordStore keeps files and sections in memory for end to end runs.
type recordStore struct {
	mu       sync.Mutex
	files    map[string]*model.FileRecord
	sections map[string][]model.SectionRecord
}

func newRecordStore() *recordStore {
	return &recordStore{files: map[string]*model.FileRecord{}, sections: map[string][]model.SectionRecord{}}
}

func (s *recordStore) FindFile(_ context.Context, sourceID, path string) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.SourceID == sourceID && f.Path == path {
			cp := *f
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *recordStore) CreateFile(_ context.Context, f *model.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.files[f.ID] = &cp
	return nil
}

func (s *recordStore) UpdateFile(_ context.Context, f *model.FileRecord) error {
	return s.CreateFile(context.Background(), f)
}

func (s *recordStore) DeleteSections(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sections, fileID)
	return nil
}

func (s *recordStore) InsertSections(_ context.Context, sections []model.SectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range sections {
		s.sections[sec.FileID] = append(s.sections[sec.FileID], sec)
	}
	return nil
}

func (s *recordStore) InsertSection(ctx context.Context, sec *model.SectionRecord) error {
	return s.InsertSections(ctx, []model.SectionRecord{*sec})
}

func (s *recordStore) DeleteFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, fileID)
	delete(s.sections, fileID)
	return nil
}

func (s *recordStore) CompleteFile(_ context.Context, fileID, sum string, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return appErr.ErrNotFound
	}
	f.Checksum = sum
	f.TokenCount = tokens
	return nil
}

func (s *recordStore) ListChecksums(_ context.Context, sourceID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]string{}
	for _, f := range s.files {
		if f.SourceID == sourceID {
			out[f.Path] = f.Checksum
		}
	}
	return out, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) (*model.Embedding, error) {
	return &model.Embedding{Vector: []float32{1, 0}, TokenCount: 1}, nil
}

func (constEmbedder) ModelName() string { return "const" }

func TestRunCarriesSourceMetadata(t *testing.T) {
	store := newRecordStore()
	proc := ingest.NewProcessor(store, constEmbedder{}, nil, ingest.Options{MinContentChars: 1})
	tr := New(proc, store, Options{})

	src := source.NewMemory([]model.FileData{{
		Path:             "guide/intro.md",
		Content:          "---\ntitle: Frontmatter Title\n---\n# Intro\n\nSome words about the product.\n",
		Metadata:         map[string]interface{}{"title": "Integration Title", "url": "https://e.com/intro"},
		InternalMetadata: map[string]interface{}{"s3_key": "root/guide/intro.md"},
	}})
	job := tr.Run(context.Background(), Request{SourceID: "docs", ProjectID: "p1", Source: src}, nil, nil)
	require.Empty(t, job.Errors)
	require.Equal(t, 1, job.Processed)

	f, err := store.FindFile(context.Background(), "docs", "guide/intro.md")
	require.NoError(t, err)
	assert.Equal(t, "Integration Title", f.Meta["title"])
	assert.Equal(t, "https://e.com/intro", f.Meta["url"])
	assert.Equal(t, "root/guide/intro.md", f.InternalMetadata["s3_key"])
	assert.Equal(t, "markdown", f.InternalMetadata["content_type"])
	require.NotEmpty(t, f.Checksum)

	sections := store.sections[f.ID]
	require.NotEmpty(t, sections)
	assert.Equal(t, "Integration Title", sections[0].FileMeta["title"])
}
