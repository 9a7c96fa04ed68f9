package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/docembed/internal/model"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) (*model.Embedding, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &model.Embedding{Vector: []float32{float32(len(text))}, TokenCount: len(text)}, nil
}

func (c *countingEmbedder) ModelName() string { return "m" }

type memStore struct {
	items map[string]*model.EmbeddingCache
	err   error
}

func (m *memStore) Get(_ context.Context, modelName, contentHash string) (*model.EmbeddingCache, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	item, ok := m.items[modelName+":"+contentHash]
	return item, ok, nil
}

func (m *memStore) Save(_ context.Context, item *model.EmbeddingCache) error {
	m.items[item.ModelName+":"+item.ContentHash] = item
	return nil
}

func TestLruCache(t *testing.T) {
	next := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(next, 10, time.Minute)
	first, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	first.Vector[0] = 99

	second, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5}, second.Vector)
	assert.Equal(t, 5, second.TokenCount)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "m", e.ModelName())
}

func TestLruCacheDisabled(t *testing.T) {
	next := &countingEmbedder{}
	assert.Same(t, next, WrapLruCacheToEmbedder(next, 0, time.Minute))
}

func TestDBCache(t *testing.T) {
	next := &countingEmbedder{}
	store := &memStore{items: map[string]*model.EmbeddingCache{}}
	e := WrapDBCacheToEmbedder(next, store)

	_, err := e.Embed(context.Background(), "abc")
	require.NoError(t, err)
	res, err := e.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 3, res.TokenCount)
	require.Len(t, store.items, 1)
}

func TestDBCacheReadFailureFallsThrough(t *testing.T) {
	next := &countingEmbedder{}
	store := &memStore{items: map[string]*model.EmbeddingCache{}, err: errors.New("db down")}
	e := WrapDBCacheToEmbedder(next, store)
	res, err := e.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, res.Vector)
	assert.Equal(t, 1, next.calls)
}

func TestDBCacheDoesNotStoreFailures(t *testing.T) {
	next := &countingEmbedder{err: errors.New("boom")}
	store := &memStore{items: map[string]*model.EmbeddingCache{}}
	_, err := WrapDBCacheToEmbedder(next, store).Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.Empty(t, store.items)
}
