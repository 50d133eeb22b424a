// Package engine wires configuration into a ready indexer: storage, the
// snapshot store, the optional obfuscator and embedder. The CLI and the MCP
// server both drive indexing through it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/codeindex/internal/chunker"
	"github.com/dshills/codeindex/internal/config"
	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/hasher"
	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/merkle"
	"github.com/dshills/codeindex/internal/obfuscator"
	"github.com/dshills/codeindex/internal/parser"
	"github.com/dshills/codeindex/internal/snapshot"
	"github.com/dshills/codeindex/internal/storage"
	"github.com/dshills/codeindex/pkg/types"
)

var (
	// ErrObfuscationDisabled is returned by mapping operations when no key is configured
	ErrObfuscationDisabled = errors.New("path obfuscation is not enabled")
	// ErrNotDirectory is returned when the index root is not a directory
	ErrNotDirectory = errors.New("path is not a directory")
)

// Engine owns every component of an indexing setup
type Engine struct {
	logger     zerolog.Logger
	ignore     *merkle.Matcher
	store      *storage.SQLiteStorage
	snapshots  *snapshot.Store
	obfuscator *obfuscator.Obfuscator
	embedder   embedder.Embedder
	indexer    *indexer.Indexer
}

// Open builds an Engine from cfg. The database and snapshot directories are
// created when missing.
func Open(cfg config.Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{logger: logger}

	m, err := merkle.NewMatcher(cfg.Indexing.IgnorePatterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ignore patterns: %w", err)
	}
	e.ignore = m

	c, err := chunker.New(parser.DefaultRegistry(),
		chunker.Config{MaxTokens: cfg.Chunk.MaxTokens, MinTokens: cfg.Chunk.MinTokens},
		chunker.WithLogger(logger.With().Str("component", "chunker").Logger()))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	e.store, err = storage.NewSQLiteStorage(cfg.Storage.DBPath,
		storage.WithLogger(logger.With().Str("component", "storage").Logger()))
	if err != nil {
		return nil, err
	}

	e.snapshots = snapshot.NewStore(cfg.Indexing.SnapshotDir)

	var sink indexer.Sink = e.store
	if cfg.Embedding.Enabled {
		e.embedder, err = embedder.New(embedder.Config{Provider: cfg.Embedding.Provider, CacheSize: cfg.Embedding.CacheSize})
		if err != nil {
			_ = e.store.Close()
			return nil, err
		}
		sink = storage.NewEmbeddingSink(e.store, e.embedder,
			storage.WithSinkLogger(logger.With().Str("component", "embeddings").Logger()))
	}

	opts := []indexer.Option{indexer.WithLogger(logger.With().Str("component", "indexer").Logger())}
	if cfg.Obfuscation.Enabled {
		e.obfuscator, err = obfuscator.Open([]byte(cfg.Obfuscation.Key), cfg.Obfuscation.MappingFile,
			obfuscator.WithLogger(logger.With().Str("component", "obfuscator").Logger()))
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		opts = append(opts, indexer.WithObfuscator(e.obfuscator))
	}

	builder := merkle.NewBuilder(
		merkle.WithIgnore(m),
		merkle.WithMaxFileSize(cfg.MaxFileSizeBytes()),
		merkle.WithWorkers(cfg.Indexing.Workers),
		merkle.WithLogger(logger.With().Str("component", "merkle").Logger()),
	)
	e.indexer, err = indexer.New(indexer.Config{
		Incremental: cfg.Indexing.Incremental,
		BatchSize:   cfg.Indexing.BatchSize,
		Workers:     cfg.Indexing.Workers,
	}, builder, c, e.snapshots, sink, opts...)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the database and the embedder
func (e *Engine) Close() error {
	var errs []error
	if e.embedder != nil {
		errs = append(errs, e.embedder.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

// CollectionName derives a stable collection name from an absolute root.
// The name is a digest so it never reveals the path.
func CollectionName(root string) string {
	return "code-" + hasher.Sum([]byte(filepath.Clean(root))).Hex()[:16]
}

// IndexRequest describes one index run
type IndexRequest struct {
	Root       string
	Collection string // derived from Root when empty
	Full       bool
}

// Index indexes the directory at req.Root
func (e *Engine) Index(ctx context.Context, req IndexRequest) (*indexer.Result, error) {
	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", req.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	collection := req.Collection
	if collection == "" {
		collection = CollectionName(root)
	}

	src := merkle.NewDirSource(root, merkle.WithDirIgnore(e.ignore))
	return e.indexer.Index(ctx, src, indexer.IndexOptions{Collection: collection, ForceFull: req.Full})
}

// Status combines the persisted snapshot with what the sink holds
type Status struct {
	Collection string
	Indexed    bool // a snapshot exists
	Indexing   bool // a run is in progress
	Obfuscated bool

	BuildID  string
	BuiltAt  time.Time
	RootHash types.Digest
	Files    int

	Storage *storage.CollectionStatus // nil when the sink has never seen the collection
}

// Status reports the state of collection. A corrupt snapshot is reported as
// not indexed, matching how the next run will treat it.
func (e *Engine) Status(ctx context.Context, collection string) (*Status, error) {
	st := &Status{
		Collection: collection,
		Indexing:   e.indexer.Running(),
		Obfuscated: e.indexer.Obfuscating(),
	}

	snap, err := e.snapshots.Load(collection)
	switch {
	case err == nil:
		st.Indexed = true
		st.BuildID = snap.BuildID
		st.BuiltAt = snap.BuiltAt
		st.RootHash = snap.RootHash
		st.Files = len(snap.Entries)
	case errors.Is(err, snapshot.ErrInvalidCollection):
		return nil, err
	case errors.Is(err, snapshot.ErrNotFound), errors.Is(err, snapshot.ErrCorrupt):
	default:
		return nil, err
	}

	cs, err := e.store.GetStatus(ctx, collection)
	switch {
	case err == nil:
		st.Storage = cs
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, err
	}
	return st, nil
}

// Collections lists every collection with a snapshot
func (e *Engine) Collections() ([]string, error) {
	return e.snapshots.List()
}

// Deobfuscate maps an obfuscated path back to the original. It is a local
// operation and is never exposed over MCP.
func (e *Engine) Deobfuscate(obf string) (string, error) {
	if e.obfuscator == nil {
		return "", ErrObfuscationDisabled
	}
	return e.obfuscator.Deobfuscate(obf)
}

// CompactMapping drops mapping entries for paths no snapshot references any
// more and returns how many were removed
func (e *Engine) CompactMapping() (int, error) {
	if e.obfuscator == nil {
		return 0, ErrObfuscationDisabled
	}
	if e.indexer.Running() {
		return 0, indexer.ErrIndexingInProgress
	}

	collections, err := e.snapshots.List()
	if err != nil {
		return 0, err
	}
	var keep []string
	for _, name := range collections {
		snap, err := e.snapshots.Load(name)
		if err != nil {
			// an unreadable snapshot may still reference paths; keep everything
			return 0, fmt.Errorf("snapshot %s: %w", name, err)
		}
		keep = append(keep, snap.Paths()...)
	}

	removed, err := e.obfuscator.Compact(keep)
	if err != nil {
		return 0, err
	}
	e.logger.Info().Int("removed", removed).Int("kept", e.obfuscator.Len()).Msg("mapping compacted")
	return removed, nil
}

// Obfuscating reports whether paths leave the engine obfuscated
func (e *Engine) Obfuscating() bool {
	return e.obfuscator != nil
}
