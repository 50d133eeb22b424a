// Package config loads codeindex settings from defaults, an optional config
// file and CODEINDEX_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable the config reads
	EnvPrefix = "CODEINDEX"

	// MaxChunkTokens caps chunk.max_tokens
	MaxChunkTokens = 8000
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config holds all settings. It is loaded once and passed by value; nothing
// reads configuration from globals afterwards.
type Config struct {
	Chunk       ChunkConfig       `mapstructure:"chunk"`
	Indexing    IndexingConfig    `mapstructure:"indexing"`
	Obfuscation ObfuscationConfig `mapstructure:"obfuscation"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Log         LogConfig         `mapstructure:"log"`
}

// ChunkConfig bounds chunk sizes in tokens
type ChunkConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
	MinTokens int `mapstructure:"min_tokens"`
}

// IndexingConfig controls change detection and emission
type IndexingConfig struct {
	Incremental    bool     `mapstructure:"incremental"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
	MaxFileSizeMB  int      `mapstructure:"max_file_size_mb"`
	BatchSize      int      `mapstructure:"batch_size"`
	Workers        int      `mapstructure:"workers"` // 0 means one per CPU
	SnapshotDir    string   `mapstructure:"snapshot_dir"`
}

// ObfuscationConfig controls path obfuscation
type ObfuscationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Key         string `mapstructure:"key"`
	MappingFile string `mapstructure:"mapping_file"`
}

// StorageConfig locates the chunk database
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// EmbeddingConfig controls optional vector generation for stored chunks
type EmbeddingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"`
	CacheSize int    `mapstructure:"cache_size"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// envBindings maps config keys to environment variables (without prefix)
var envBindings = map[string]string{
	"chunk.max_tokens":          "CHUNK_MAX_TOKENS",
	"chunk.min_tokens":          "CHUNK_MIN_TOKENS",
	"indexing.incremental":      "ENABLE_INCREMENTAL_INDEXING",
	"indexing.ignore_patterns":  "INDEXING_IGNORE_PATTERNS",
	"indexing.max_file_size_mb": "MAX_FILE_SIZE_MB",
	"indexing.batch_size":       "INDEXING_BATCH_SIZE",
	"indexing.workers":          "INDEXING_WORKERS",
	"indexing.snapshot_dir":     "SNAPSHOT_DIR",
	"obfuscation.enabled":       "ENABLE_PATH_OBFUSCATION",
	"obfuscation.key":           "PATH_OBFUSCATION_KEY",
	"obfuscation.mapping_file":  "PATH_MAPPING_FILE",
	"storage.db_path":           "DB_PATH",
	"embedding.enabled":         "ENABLE_EMBEDDINGS",
	"embedding.provider":        "EMBEDDING_PROVIDER",
	"embedding.cache_size":      "EMBEDDING_CACHE_SIZE",
	"log.level":                 "LOG_LEVEL",
}

// Load reads configuration. configFile may be empty; when set it must exist
// and may be YAML or JSON.
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	for key, env := range envBindings {
		if err := v.BindEnv(key, EnvPrefix+"_"+env); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration Load produces with no file and no environment
func Default() Config {
	dir := DataDir()
	return Config{
		Chunk: ChunkConfig{MaxTokens: 800, MinTokens: 100},
		Indexing: IndexingConfig{
			Incremental:   true,
			MaxFileSizeMB: 10,
			BatchSize:     100,
			SnapshotDir:   filepath.Join(dir, "snapshots"),
		},
		Obfuscation: ObfuscationConfig{MappingFile: filepath.Join(dir, "path-mapping.json")},
		Storage:     StorageConfig{DBPath: filepath.Join(dir, "index.db")},
		Embedding:   EmbeddingConfig{Provider: "local", CacheSize: 1000},
		Log:         LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("chunk.max_tokens", d.Chunk.MaxTokens)
	v.SetDefault("chunk.min_tokens", d.Chunk.MinTokens)
	v.SetDefault("indexing.incremental", d.Indexing.Incremental)
	v.SetDefault("indexing.ignore_patterns", []string{})
	v.SetDefault("indexing.max_file_size_mb", d.Indexing.MaxFileSizeMB)
	v.SetDefault("indexing.batch_size", d.Indexing.BatchSize)
	v.SetDefault("indexing.workers", d.Indexing.Workers)
	v.SetDefault("indexing.snapshot_dir", d.Indexing.SnapshotDir)
	v.SetDefault("obfuscation.enabled", d.Obfuscation.Enabled)
	v.SetDefault("obfuscation.key", d.Obfuscation.Key)
	v.SetDefault("obfuscation.mapping_file", d.Obfuscation.MappingFile)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("embedding.enabled", d.Embedding.Enabled)
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)
	v.SetDefault("log.level", d.Log.Level)
}

// DataDir is the default home of snapshots, the mapping file and the database
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codeindex"
	}
	return filepath.Join(home, ".codeindex")
}

// Validate checks the configuration for values the engine cannot run with
func (c Config) Validate() error {
	if c.Chunk.MinTokens <= 0 || c.Chunk.MinTokens > c.Chunk.MaxTokens || c.Chunk.MaxTokens > MaxChunkTokens {
		return fmt.Errorf("%w: chunk tokens must satisfy 0 < min (%d) <= max (%d) <= %d",
			ErrInvalid, c.Chunk.MinTokens, c.Chunk.MaxTokens, MaxChunkTokens)
	}
	if c.Indexing.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalid, c.Indexing.BatchSize)
	}
	if c.Indexing.MaxFileSizeMB < 1 {
		return fmt.Errorf("%w: max file size must be at least 1 MB, got %d", ErrInvalid, c.Indexing.MaxFileSizeMB)
	}
	if c.Indexing.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	if c.Indexing.SnapshotDir == "" {
		return fmt.Errorf("%w: snapshot dir is required", ErrInvalid)
	}
	if c.Obfuscation.Enabled {
		if c.Obfuscation.Key == "" {
			return fmt.Errorf("%w: path obfuscation is enabled but no key is set", ErrInvalid)
		}
		if c.Obfuscation.MappingFile == "" {
			return fmt.Errorf("%w: path obfuscation is enabled but no mapping file is set", ErrInvalid)
		}
	}
	if c.Embedding.Enabled && c.Embedding.Provider != "local" {
		return fmt.Errorf("%w: unsupported embedding provider %q", ErrInvalid, c.Embedding.Provider)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log level: %v", ErrInvalid, err)
	}
	return nil
}

// MaxFileSizeBytes returns the file size limit in bytes
func (c Config) MaxFileSizeBytes() int64 {
	return int64(c.Indexing.MaxFileSizeMB) << 20
}

// LogLevel returns the parsed log level, defaulting to info
func (c Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
