package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, 800, cfg.Chunk.MaxTokens)
	assert.Equal(t, 100, cfg.Chunk.MinTokens)
	assert.True(t, cfg.Indexing.Incremental)
	assert.Empty(t, cfg.Indexing.IgnorePatterns)
	assert.Equal(t, 10, cfg.Indexing.MaxFileSizeMB)
	assert.Equal(t, 100, cfg.Indexing.BatchSize)
	assert.Equal(t, d.Indexing.SnapshotDir, cfg.Indexing.SnapshotDir)
	assert.False(t, cfg.Obfuscation.Enabled)
	assert.Equal(t, d.Obfuscation.MappingFile, cfg.Obfuscation.MappingFile)
	assert.Equal(t, d.Storage.DBPath, cfg.Storage.DBPath)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.Equal(t, int64(10<<20), cfg.MaxFileSizeBytes())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CODEINDEX_CHUNK_MAX_TOKENS", "400")
	t.Setenv("CODEINDEX_CHUNK_MIN_TOKENS", "50")
	t.Setenv("CODEINDEX_ENABLE_INCREMENTAL_INDEXING", "false")
	t.Setenv("CODEINDEX_ENABLE_PATH_OBFUSCATION", "true")
	t.Setenv("CODEINDEX_PATH_OBFUSCATION_KEY", "s3cret")
	t.Setenv("CODEINDEX_INDEXING_IGNORE_PATTERNS", "*.log,tmp/**")
	t.Setenv("CODEINDEX_INDEXING_WORKERS", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.Chunk.MaxTokens)
	assert.Equal(t, 50, cfg.Chunk.MinTokens)
	assert.False(t, cfg.Indexing.Incremental)
	assert.True(t, cfg.Obfuscation.Enabled)
	assert.Equal(t, "s3cret", cfg.Obfuscation.Key)
	assert.Equal(t, []string{"*.log", "tmp/**"}, cfg.Indexing.IgnorePatterns)
	assert.Equal(t, 3, cfg.Indexing.Workers)
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	file := filepath.Join(t.TempDir(), "codeindex.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
chunk:
  max_tokens: 1000
  min_tokens: 200
indexing:
  ignore_patterns:
    - "*.min.js"
log:
  level: debug
`), 0o644))
	t.Setenv("CODEINDEX_LOG_LEVEL", "warn")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Chunk.MaxTokens)
	assert.Equal(t, 200, cfg.Chunk.MinTokens)
	assert.Equal(t, []string{"*.min.js"}, cfg.Indexing.IgnorePatterns)
	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CODEINDEX_CHUNK_MIN_TOKENS", "900")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero min", func(c *Config) { c.Chunk.MinTokens = 0 }},
		{"min above max", func(c *Config) { c.Chunk.MinTokens = 900 }},
		{"max above cap", func(c *Config) { c.Chunk.MaxTokens = MaxChunkTokens + 1 }},
		{"zero batch", func(c *Config) { c.Indexing.BatchSize = 0 }},
		{"tiny file limit", func(c *Config) { c.Indexing.MaxFileSizeMB = 0 }},
		{"negative workers", func(c *Config) { c.Indexing.Workers = -1 }},
		{"no snapshot dir", func(c *Config) { c.Indexing.SnapshotDir = "" }},
		{"obfuscation without key", func(c *Config) { c.Obfuscation.Enabled = true }},
		{"obfuscation without mapping", func(c *Config) {
			c.Obfuscation.Enabled = true
			c.Obfuscation.Key = "k"
			c.Obfuscation.MappingFile = ""
		}},
		{"unknown embedder", func(c *Config) {
			c.Embedding.Enabled = true
			c.Embedding.Provider = "openai"
		}},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
