package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/config"
	"github.com/dshills/codeindex/internal/indexer"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Indexing.SnapshotDir = filepath.Join(dir, "snapshots")
	cfg.Storage.DBPath = filepath.Join(dir, "db", "index.db")
	cfg.Obfuscation.MappingFile = filepath.Join(dir, "mapping.json")
	cfg.Indexing.Workers = 2
	return cfg
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func openEngine(t *testing.T, cfg config.Config) *Engine {
	t.Helper()
	e, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

var sampleFiles = map[string]string{
	"main.go":         "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n",
	"util/strings.go": "package util\n\nfunc Upper(s string) string {\n\treturn s\n}\n",
	"README.md":       "# sample\n\nSome notes.\n",
}

func TestCollectionName(t *testing.T) {
	a := CollectionName("/srv/project")
	assert.Equal(t, a, CollectionName("/srv/project/"))
	assert.NotEqual(t, a, CollectionName("/srv/other"))
	assert.Len(t, a, len("code-")+16)
	assert.NotContains(t, a, "project")
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Obfuscation.Enabled = true
	cfg.Obfuscation.Key = ""

	_, err := Open(cfg, zerolog.Nop())
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestIndexAndStatus(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleFiles)
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	res, err := e.Index(ctx, IndexRequest{Root: root})
	require.NoError(t, err)
	assert.Equal(t, CollectionName(root), res.Collection)
	assert.True(t, res.FullRebuild)
	assert.Equal(t, 3, res.FilesChunked)
	assert.Positive(t, res.ChunksEmitted)

	st, err := e.Status(ctx, res.Collection)
	require.NoError(t, err)
	assert.True(t, st.Indexed)
	assert.False(t, st.Indexing)
	assert.False(t, st.Obfuscated)
	assert.Equal(t, res.BuildID, st.BuildID)
	assert.Equal(t, res.RootHash, st.RootHash)
	assert.Equal(t, 3, st.Files)
	require.NotNil(t, st.Storage)
	assert.Equal(t, 3, st.Storage.FilesCount)
	assert.Equal(t, res.ChunksEmitted, st.Storage.ChunksCount)

	again, err := e.Index(ctx, IndexRequest{Root: root})
	require.NoError(t, err)
	assert.True(t, again.NoChanges)
	assert.Zero(t, again.ChunksEmitted)

	collections, err := e.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{res.Collection}, collections)
}

func TestIndexIncrementalChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleFiles)
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := e.Index(ctx, IndexRequest{Root: root, Collection: "demo"})
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{"main.go": "package main\n\nfunc main() {}\n"})
	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))

	res, err := e.Index(ctx, IndexRequest{Root: root, Collection: "demo"})
	require.NoError(t, err)
	assert.False(t, res.FullRebuild)
	assert.Equal(t, []string{"main.go"}, res.Changes.Modified)
	assert.Equal(t, []string{"README.md"}, res.Changes.Deleted)
	assert.Equal(t, 1, res.FilesChunked)

	st, err := e.Status(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, 2, st.Storage.FilesCount)
}

func TestIndexRespectsIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"keep.go":           "package keep\n",
		"vendor/dep/dep.go": "package dep\n",
		"build/output.log":  "log line\n",
	})
	cfg := testConfig(t)
	cfg.Indexing.IgnorePatterns = []string{"vendor/**", "*.log"}
	e := openEngine(t, cfg)

	res, err := e.Index(context.Background(), IndexRequest{Root: root, Collection: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.go"}, res.Changes.Added)
}

func TestIndexRejectsFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleFiles)
	e := openEngine(t, testConfig(t))

	_, err := e.Index(context.Background(), IndexRequest{Root: filepath.Join(root, "main.go")})
	require.ErrorIs(t, err, ErrNotDirectory)

	_, err = e.Index(context.Background(), IndexRequest{Root: filepath.Join(root, "missing")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestStatusUnknownCollection(t *testing.T) {
	e := openEngine(t, testConfig(t))

	st, err := e.Status(context.Background(), "never-indexed")
	require.NoError(t, err)
	assert.False(t, st.Indexed)
	assert.Nil(t, st.Storage)

	_, err = e.Status(context.Background(), "../escape")
	require.Error(t, err)
}

func TestObfuscatedIndex(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleFiles)
	cfg := testConfig(t)
	cfg.Obfuscation.Enabled = true
	cfg.Obfuscation.Key = "test-key"
	e := openEngine(t, cfg)
	ctx := context.Background()

	res, err := e.Index(ctx, IndexRequest{Root: root, Collection: "secret"})
	require.NoError(t, err)

	st, err := e.Status(ctx, "secret")
	require.NoError(t, err)
	assert.True(t, st.Obfuscated)

	for orig := range sampleFiles {
		plain, err := e.store.ListChunks(ctx, "secret", orig)
		require.NoError(t, err)
		assert.Empty(t, plain, orig)

		obf, err := e.obfuscator.Obfuscate(orig)
		require.NoError(t, err)
		stored, err := e.store.ListChunks(ctx, "secret", obf)
		require.NoError(t, err)
		assert.NotEmpty(t, stored, orig)

		back, err := e.Deobfuscate(obf)
		require.NoError(t, err)
		assert.Equal(t, orig, back)
	}
	assert.Equal(t, 3, res.FilesChunked)
	assert.Zero(t, e.obfuscator.Pending())
}

func TestDeobfuscateDisabled(t *testing.T) {
	e := openEngine(t, testConfig(t))

	_, err := e.Deobfuscate("anything")
	require.ErrorIs(t, err, ErrObfuscationDisabled)
	_, err = e.CompactMapping()
	require.ErrorIs(t, err, ErrObfuscationDisabled)
}

func TestCompactMapping(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleFiles)
	cfg := testConfig(t)
	cfg.Obfuscation.Enabled = true
	cfg.Obfuscation.Key = "test-key"
	e := openEngine(t, cfg)
	ctx := context.Background()

	_, err := e.Index(ctx, IndexRequest{Root: root, Collection: "secret"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "README.md")))
	_, err = e.Index(ctx, IndexRequest{Root: root, Collection: "secret"})
	require.NoError(t, err)

	// removed files keep their mapping until compacted
	assert.Equal(t, 3, e.obfuscator.Len())

	removed, err := e.CompactMapping()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, e.obfuscator.Len())

	removed, err = e.CompactMapping()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestEmbeddingsStored(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleFiles)
	cfg := testConfig(t)
	cfg.Embedding.Enabled = true
	e := openEngine(t, cfg)
	ctx := context.Background()

	res, err := e.Index(ctx, IndexRequest{Root: root, Collection: "vectors"})
	require.NoError(t, err)

	st, err := e.Status(ctx, "vectors")
	require.NoError(t, err)
	assert.Equal(t, res.ChunksEmitted, st.Storage.EmbeddingsCount)
	assert.True(t, st.Storage.Health.EmbeddingsAvailable)
}

func TestIndexCanceled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, sampleFiles)
	e := openEngine(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Index(ctx, IndexRequest{Root: root, Collection: "canceled"})
	require.ErrorIs(t, err, indexer.ErrBuildFailed)

	st, err := e.Status(context.Background(), "canceled")
	require.NoError(t, err)
	assert.False(t, st.Indexed)
}
