package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docembed/internal/config"
	"github.com/xxxsen/docembed/internal/model"
)

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guide"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.md"), []byte("# Home"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide", "setup.rst"), []byte("Setup\n====="), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref"), 0o644))

	src, err := New(config.SourceConfig{Type: "local", Dir: dir})
	require.NoError(t, err)
	require.NoError(t, src.Fetch(context.Background()))
	require.Equal(t, 2, src.Len())
	assert.Equal(t, "guide/setup.rst", src.FilePath(0))
	assert.Equal(t, "index.md", src.FilePath(1))

	f, err := src.ReadFile(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "guide/setup.rst", f.Path)
	assert.Equal(t, "setup.rst", f.Name)
	assert.Equal(t, "Setup\n=====", f.Content)
	assert.Equal(t, filepath.Join(dir, "guide", "setup.rst"), f.InternalMetadata["local_path"])
}

func TestLocalSourceMissingDir(t *testing.T) {
	src := NewLocal(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, src.Fetch(context.Background()))
}

func TestNewValidation(t *testing.T) {
	_, err := New(config.SourceConfig{})
	require.Error(t, err)
	_, err = New(config.SourceConfig{Type: "ftp"})
	require.Error(t, err)
	_, err = New(config.SourceConfig{Type: "local"})
	require.Error(t, err)
	_, err = New(config.SourceConfig{Type: "s3", S3: config.S3Config{Endpoint: "localhost:9000"}})
	require.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	m := NewMemory([]model.FileData{
		{Path: "a/b.md", Content: "x", Metadata: map[string]interface{}{"url": "https://e.com/b"}},
		{Path: "c.md", Name: "C", Content: "y"},
	})
	require.NoError(t, m.Fetch(context.Background()))
	assert.Equal(t, 2, m.Len())
	f, err := m.ReadFile(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "b.md", f.Name)
	assert.Equal(t, "x", f.Content)
	assert.Equal(t, "https://e.com/b", f.Metadata["url"])
	f, err = m.ReadFile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "C", f.Name)
	assert.Equal(t, int64(2), m.Reads())
}

func TestS3ObjectFileData(t *testing.T) {
	modified := time.Unix(1700000000, 0)
	f := objectFileData("docs", "root/guide/a.md", &s3.GetObjectOutput{
		ETag:         aws.String(`"abc123"`),
		LastModified: &modified,
		Metadata:     map[string]string{"Source-Url": "https://e.com/a"},
	})
	assert.Equal(t, "a.md", f.Name)
	assert.Equal(t, "https://e.com/a", f.Metadata["source-url"])
	assert.Equal(t, "docs", f.InternalMetadata["s3_bucket"])
	assert.Equal(t, "root/guide/a.md", f.InternalMetadata["s3_key"])
	assert.Equal(t, "abc123", f.InternalMetadata["etag"])
	assert.Equal(t, int64(1700000000), f.InternalMetadata["last_modified"])

	f = objectFileData("docs", "b.md", &s3.GetObjectOutput{})
	assert.Nil(t, f.Metadata)
	assert.NotContains(t, f.InternalMetadata, "etag")
}

func TestS3Helpers(t *testing.T) {
	assert.Equal(t, "docs/a.md", relativeKey("root", "root/docs/a.md"))
	assert.Equal(t, "a.md", relativeKey("", "a.md"))
	assert.Equal(t, "https://s3.local", buildEndpoint("s3.local/", true))
	assert.Equal(t, "http://minio:9000", buildEndpoint("http://minio:9000/", false))
}
