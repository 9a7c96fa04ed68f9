package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docembed/internal/checksum"
	"github.com/xxxsen/docembed/internal/model"
	appErr "github.com/xxxsen/docembed/internal/pkg/errors"
	"github.com/xxxsen/docembed/internal/quota"
)

type memStore struct {
	mu          sync.Mutex
	files       map[string]*model.FileRecord
	sections    map[string][]model.SectionRecord
	writes      int
	failBatch   bool
	failSingle  bool
	failDelete  bool
	singleCalls int
}

func newMemStore() *memStore {
	return &memStore{files: map[string]*model.FileRecord{}, sections: map[string][]model.SectionRecord{}}
}

func (m *memStore) FindFile(_ context.Context, sourceID, path string) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.SourceID == sourceID && f.Path == path {
			cp := *f
			return &cp, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (m *memStore) CreateFile(_ context.Context, f *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memStore) UpdateFile(_ context.Context, f *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if _, ok := m.files[f.ID]; !ok {
		return appErr.ErrNotFound
	}
	cp := *f
	m.files[f.ID] = &cp
	return nil
}

func (m *memStore) DeleteSections(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	delete(m.sections, fileID)
	return nil
}

func (m *memStore) InsertSections(_ context.Context, sections []model.SectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failBatch {
		return errors.New("batch too large")
	}
	for _, s := range sections {
		m.sections[s.FileID] = append(m.sections[s.FileID], s)
	}
	return nil
}

func (m *memStore) InsertSection(_ context.Context, s *model.SectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.singleCalls++
	if m.failSingle {
		return errors.New("row rejected")
	}
	m.sections[s.FileID] = append(m.sections[s.FileID], *s)
	return nil
}

func (m *memStore) DeleteFile(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failDelete {
		return errors.New("connection reset")
	}
	delete(m.files, fileID)
	delete(m.sections, fileID)
	return nil
}

func (m *memStore) CompleteFile(_ context.Context, fileID, sum string, tokens int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	f, ok := m.files[fileID]
	if !ok {
		return appErr.ErrNotFound
	}
	f.Checksum = sum
	f.TokenCount = tokens
	return nil
}

func (m *memStore) ListChecksums(_ context.Context, sourceID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, f := range m.files {
		if f.SourceID == sourceID {
			out[f.Path] = f.Checksum
		}
	}
	return out, nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
	tokens int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (*model.Embedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("provider exhausted")
	}
	return &model.Embedding{Vector: []float32{float32(len(text)), 1}, TokenCount: f.tokens}, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake" }

const sampleDoc = "# Getting Started\n\n" +
	"This paragraph introduces the product in enough words.\n\n" +
	"## Install\n\n" +
	"Run the installer and follow the prompts on screen.\n"

func newInput(content string) Input {
	return Input{
		SourceID:  "src",
		ProjectID: "proj",
		File:      model.FileData{Path: "docs/start.md", Name: "start.md", Content: content},
	}
}

func TestProcessNewFile(t *testing.T) {
	store := newMemStore()
	emb := &fakeEmbedder{tokens: 7}
	p := NewProcessor(store, emb, nil, Options{})

	res := p.Process(context.Background(), newInput(sampleDoc))
	require.True(t, res.OK(), "%v", res.Errors)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Sections)
	assert.Equal(t, int64(14), res.Tokens)
	assert.Equal(t, 2, emb.calls)

	f := store.files[res.FileID]
	require.NotNil(t, f)
	assert.Equal(t, checksum.Sum(sampleDoc), f.Checksum)
	assert.Equal(t, "Getting Started", f.Meta["title"])
	assert.Equal(t, "markdown", f.InternalMetadata["content_type"])
	assert.Equal(t, 14, f.TokenCount)
	assert.Equal(t, sampleDoc, f.RawContent)

	sections := store.sections[res.FileID]
	require.Len(t, sections, 2)
	require.NotNil(t, sections[0].Meta.LeadHeading)
	assert.Equal(t, "Getting Started", sections[0].Meta.LeadHeading.Value)
	assert.Equal(t, "install", sections[1].Meta.LeadHeading.Slug)
	assert.Equal(t, "proj", sections[1].ProjectID)
	assert.Equal(t, "Getting Started", sections[1].FileMeta["title"])
}

func TestProcessUnchangedFileIsSkipped(t *testing.T) {
	store := newMemStore()
	emb := &fakeEmbedder{tokens: 1}
	p := NewProcessor(store, emb, nil, Options{})

	in := newInput(sampleDoc)
	in.Checksums = checksum.NewIndex(map[string]string{"docs/start.md": checksum.Sum(sampleDoc)})
	res := p.Process(context.Background(), in)
	assert.True(t, res.Skipped)
	assert.True(t, res.OK())
	assert.Equal(t, 0, emb.calls)
	assert.Equal(t, 0, store.writes)
}

func TestProcessQuotaExceededRevertsFile(t *testing.T) {
	store := newMemStore()
	emb := &fakeEmbedder{tokens: 5}
	p := NewProcessor(store, emb, nil, Options{})
	ctx := context.Background()

	first := p.Process(ctx, newInput(sampleDoc))
	require.True(t, first.OK())

	ledger := quota.NewLedger("team", quota.Allowance{PlanTokens: 16})
	in := newInput(sampleDoc + "\n## More\n\nAnother section with plenty of words in it.\n")
	in.Budget = ledger.NewBudget()
	res := p.Process(ctx, in)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, quota.ErrorIDTokenAllowanceExceeded, res.Errors[0].ErrorID)
	assert.Equal(t, "docs/start.md", res.Errors[0].Path)

	_, err := store.FindFile(ctx, "src", "docs/start.md")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	assert.Empty(t, store.sections)
	assert.Equal(t, int64(0), ledger.Reserved())
	assert.Equal(t, int64(0), ledger.Used())
}

func TestProcessChunkFailureKeepsGoingThenReverts(t *testing.T) {
	store := newMemStore()
	emb := &fakeEmbedder{tokens: 3, failOn: "Getting Started"}
	p := NewProcessor(store, emb, nil, Options{})
	ledger := quota.NewLedger("team", quota.Allowance{PlanTokens: 1000})

	in := newInput(sampleDoc)
	in.Budget = ledger.NewBudget()
	res := p.Process(context.Background(), in)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "embed chunk 0")
	assert.Empty(t, res.Errors[0].ErrorID)
	assert.Equal(t, 2, emb.calls)
	assert.Empty(t, store.files)
	assert.Equal(t, int64(0), ledger.Reserved())
}

func TestProcessBatchInsertFallback(t *testing.T) {
	store := newMemStore()
	store.failBatch = true
	p := NewProcessor(store, &fakeEmbedder{tokens: 2}, nil, Options{})

	res := p.Process(context.Background(), newInput(sampleDoc))
	require.True(t, res.OK(), "%v", res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "batch insert failed")
	assert.Equal(t, 2, store.singleCalls)
	assert.Len(t, store.sections[res.FileID], 2)
}

func TestProcessPersistenceFailureReverts(t *testing.T) {
	store := newMemStore()
	store.failBatch = true
	store.failSingle = true
	ledger := quota.NewLedger("team", quota.Allowance{PlanTokens: 100})
	p := NewProcessor(store, &fakeEmbedder{tokens: 2}, nil, Options{})

	in := newInput(sampleDoc)
	in.Budget = ledger.NewBudget()
	res := p.Process(context.Background(), in)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "persist")
	assert.Empty(t, store.files)
	assert.Equal(t, int64(0), ledger.Reserved())
	assert.Equal(t, int64(0), ledger.Used())
}

func TestProcessFailedWriteNeverLooksUnchanged(t *testing.T) {
	store := newMemStore()
	store.failBatch = true
	store.failSingle = true
	store.failDelete = true
	p := NewProcessor(store, &fakeEmbedder{tokens: 2}, nil, Options{})
	ctx := context.Background()

	res := p.Process(ctx, newInput(sampleDoc))
	require.Len(t, res.Errors, 1)

	// the revert failed too, so the row is left behind without a checksum
	f, err := store.FindFile(ctx, "src", "docs/start.md")
	require.NoError(t, err)
	assert.Empty(t, f.Checksum)

	sums, err := store.ListChecksums(ctx, "src")
	require.NoError(t, err)
	assert.False(t, checksum.NewIndex(sums).Unchanged("docs/start.md", checksum.Sum(sampleDoc)))
}

func TestProcessUpdateReplacesSections(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, &fakeEmbedder{tokens: 1}, nil, Options{})
	ctx := context.Background()

	first := p.Process(ctx, newInput(sampleDoc))
	require.True(t, first.OK())
	second := p.Process(ctx, newInput("# Rewritten\n\nCompletely different body text here.\n"))
	require.True(t, second.OK())

	assert.Equal(t, first.FileID, second.FileID)
	require.Len(t, store.files, 1)
	sections := store.sections[first.FileID]
	require.Len(t, sections, 1)
	assert.Contains(t, sections[0].Content, "Completely different")
	assert.Equal(t, "Rewritten", store.files[first.FileID].Meta["title"])
}

func TestProcessSkipsShortChunksAndMergesMeta(t *testing.T) {
	store := newMemStore()
	emb := &fakeEmbedder{tokens: 1}
	p := NewProcessor(store, emb, nil, Options{MinContentChars: 30})

	in := newInput("---\ntitle: From Frontmatter\ntags: [a]\n---\n# Tiny\n\n## Long enough section\n\nThis body has more than thirty characters.\n")
	in.File.Metadata = map[string]interface{}{"tags": "override", "url": "https://example.com"}
	res := p.Process(context.Background(), in)
	require.True(t, res.OK())
	assert.Equal(t, 1, emb.calls)
	assert.Equal(t, 1, res.Sections)

	meta := store.files[res.FileID].Meta
	assert.Equal(t, "From Frontmatter", meta["title"])
	assert.Equal(t, "override", meta["tags"])
	assert.Equal(t, "https://example.com", meta["url"])
}

func TestProcessHTMLWithSelectors(t *testing.T) {
	store := newMemStore()
	p := NewProcessor(store, &fakeEmbedder{tokens: 1}, nil, Options{MinContentChars: 1})

	in := newInput(`<html><body><nav>Menu</nav><main><h1>Guide</h1><div class="ad">Buy now</div><p>Useful text</p></main></body></html>`)
	in.File.Path = "site/guide.html"
	in.Selectors.ExcludeSelectors = ".ad"
	res := p.Process(context.Background(), in)
	require.True(t, res.OK(), "%v", res.Errors)

	sections := store.sections[res.FileID]
	require.Len(t, sections, 1)
	assert.Equal(t, "# Guide\n\nUseful text", sections[0].Content)
	assert.Equal(t, "html", store.files[res.FileID].InternalMetadata["content_type"])
}

func TestMergeMeta(t *testing.T) {
	out := mergeMeta(map[string]interface{}{"a": 1, "b": 1}, nil, map[string]interface{}{"b": 2})
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, out)
}
