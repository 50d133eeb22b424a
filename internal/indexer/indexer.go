package indexer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeindex/internal/chunker"
	"github.com/dshills/codeindex/internal/hasher"
	"github.com/dshills/codeindex/internal/merkle"
	"github.com/dshills/codeindex/internal/obfuscator"
	"github.com/dshills/codeindex/internal/snapshot"
	"github.com/dshills/codeindex/pkg/types"
)

var (
	// ErrIndexingInProgress is returned when Index is called while another run is active
	ErrIndexingInProgress = errors.New("indexing already in progress")
	// ErrBuildFailed wraps every failure that aborts a run
	ErrBuildFailed = errors.New("index build failed")
)

// Sink receives the output of an index run. Paths are obfuscated when the
// indexer has an obfuscator.
type Sink interface {
	// Reset drops everything stored for collection
	Reset(ctx context.Context, collection string) error
	// Remove drops the chunks of the given source paths
	Remove(ctx context.Context, collection string, paths []string) error
	// Emit stores a batch of chunks
	Emit(ctx context.Context, collection string, chunks []types.Chunk) error
}

// SnapshotStore loads and saves the per-collection snapshot
type SnapshotStore interface {
	Load(collection string) (*types.Snapshot, error)
	Save(collection string, snap *types.Snapshot) error
}

// Config holds the indexer settings. It is copied into the Indexer and
// never changes afterwards.
type Config struct {
	Incremental bool // compare against the previous snapshot
	BatchSize   int  // chunks per Sink.Emit call
	Workers     int  // chunking pool size; 0 means one per CPU
}

// IndexOptions selects what a single run indexes
type IndexOptions struct {
	Collection string
	ForceFull  bool // ignore the previous snapshot and reset the sink
}

// Option configures an Indexer
type Option func(*Indexer)

// WithObfuscator enables path obfuscation for everything sent to the sink
func WithObfuscator(o *obfuscator.Obfuscator) Option {
	return func(idx *Indexer) { idx.obfuscator = o }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithClock replaces time.Now, for deterministic snapshots in tests
func WithClock(now func() time.Time) Option {
	return func(idx *Indexer) { idx.now = now }
}

// Indexer runs incremental index builds: detect changed files, chunk only
// those, hand the chunks to a Sink and record what was indexed.
type Indexer struct {
	cfg        Config
	builder    *merkle.Builder
	chunker    *chunker.Chunker
	snapshots  SnapshotStore
	sink       Sink
	obfuscator *obfuscator.Obfuscator
	logger     zerolog.Logger
	now        func() time.Time
	lock       IndexLock
}

// New creates an Indexer
func New(cfg Config, builder *merkle.Builder, c *chunker.Chunker, snapshots SnapshotStore, sink Sink, opts ...Option) (*Indexer, error) {
	if builder == nil || c == nil || snapshots == nil || sink == nil {
		return nil, errors.New("indexer requires a builder, chunker, snapshot store and sink")
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", cfg.BatchSize)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	idx := &Indexer{
		cfg:       cfg,
		builder:   builder,
		chunker:   c,
		snapshots: snapshots,
		sink:      sink,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Running reports whether an Index call is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// Obfuscating reports whether sink paths are obfuscated
func (idx *Indexer) Obfuscating() bool {
	return idx.obfuscator != nil
}

// Index runs one build of src into opts.Collection. The returned Result is
// non-nil whenever the run started, including failed runs; on failure the
// error wraps ErrBuildFailed and the previous snapshot is left in place.
func (idx *Indexer) Index(ctx context.Context, src merkle.Source, opts IndexOptions) (*Result, error) {
	if opts.Collection == "" {
		return nil, errors.New("collection is required")
	}
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	r := &run{
		idx:  idx,
		opts: opts,
		res: &Result{
			BuildID:    uuid.NewString(),
			Collection: opts.Collection,
			State:      StateIdle,
		},
		start: idx.now(),
	}
	r.log = idx.logger.With().Str("build", r.res.BuildID).Str("collection", opts.Collection).Logger()

	err := r.execute(ctx, src)
	r.res.Duration = idx.now().Sub(r.start)
	if err != nil {
		r.transition(StateFailed)
		if idx.obfuscator != nil {
			idx.obfuscator.Discard()
		}
		r.log.Error().Err(err).Str("failed_in", string(r.failedIn)).Msg("index build failed")
		return r.res, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	r.transition(StateDone)
	r.log.Info().
		Str("changes", r.res.Changes.Summary()).
		Int("files_chunked", r.res.FilesChunked).
		Int("chunks", r.res.ChunksEmitted).
		Dur("duration", r.res.Duration).
		Msg("index build complete")
	return r.res, nil
}

// run carries the state of one Index call
type run struct {
	idx      *Indexer
	opts     IndexOptions
	res      *Result
	log      zerolog.Logger
	start    time.Time
	failedIn State

	prev    *types.Snapshot
	tree    *merkle.Tree
	changes *types.ChangeSet
	chunks  []types.Chunk
	stale   []string
	unread  []string // changed files that could not be read this run
}

func (r *run) transition(to State) {
	from := r.res.State
	r.res.Transitions = append(r.res.Transitions, Transition{From: from, To: to, At: r.idx.now()})
	r.res.State = to
	r.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("state transition")
}

func (r *run) fail(err error) error {
	r.failedIn = r.res.State
	return err
}

func (r *run) execute(ctx context.Context, src merkle.Source) error {
	r.transition(StateLoadSnapshot)
	if err := r.loadSnapshot(); err != nil {
		return r.fail(err)
	}

	r.transition(StateBuildTree)
	tree, err := r.idx.builder.Build(ctx, src)
	if err != nil {
		return r.fail(fmt.Errorf("failed to build tree: %w", err))
	}
	r.tree = tree
	r.res.RootHash = tree.Hash()
	r.res.Warnings = append(r.res.Warnings, tree.Warnings...)

	r.transition(StateDiff)
	r.changes = merkle.Diff(r.prev, tree)
	r.res.Changes = r.changes
	if r.prev != nil && !r.changes.HasChanges() {
		r.res.NoChanges = true
		return nil
	}

	r.transition(StateChunkChangedFiles)
	if err := r.chunkChangedFiles(ctx); err != nil {
		return r.fail(err)
	}

	r.transition(StateObfuscate)
	if err := r.obfuscate(); err != nil {
		return r.fail(err)
	}

	r.transition(StateEmitChunks)
	r.res.Stale = true
	if err := r.emit(ctx); err != nil {
		return r.fail(err)
	}
	if r.idx.obfuscator != nil {
		if err := r.idx.obfuscator.Commit(); err != nil {
			return r.fail(fmt.Errorf("failed to commit path mapping: %w", err))
		}
	}

	r.transition(StatePersistSnapshot)
	snap := tree.Snapshot(r.res.BuildID, r.idx.now())
	forget(snap, r.unread)
	if err := r.idx.snapshots.Save(r.opts.Collection, snap); err != nil {
		return r.fail(fmt.Errorf("failed to persist snapshot: %w", err))
	}
	r.res.Stale = false
	return nil
}

// loadSnapshot reads the previous snapshot. A missing or unreadable
// snapshot degrades to a full rebuild.
func (r *run) loadSnapshot() error {
	switch {
	case r.opts.ForceFull:
		r.log.Info().Msg("full rebuild requested")
		r.res.FullRebuild = true
		return nil
	case !r.idx.cfg.Incremental:
		r.log.Debug().Msg("incremental indexing disabled")
		r.res.FullRebuild = true
		return nil
	}

	prev, err := r.idx.snapshots.Load(r.opts.Collection)
	switch {
	case err == nil:
		r.prev = prev
	case errors.Is(err, snapshot.ErrInvalidCollection):
		return err
	case errors.Is(err, snapshot.ErrNotFound):
		r.log.Info().Msg("no previous snapshot, indexing everything")
		r.res.FullRebuild = true
	default:
		r.log.Warn().Err(err).Msg("previous snapshot unusable, indexing everything")
		r.res.Warnings = append(r.res.Warnings, types.Warning{Path: r.opts.Collection, Reason: err.Error()})
		r.res.FullRebuild = true
	}
	return nil
}

// chunkChangedFiles chunks added and modified files with a bounded pool.
// Unreadable and binary files become warnings.
func (r *run) chunkChangedFiles(ctx context.Context) error {
	paths := r.changes.Changed()
	sort.Strings(paths)

	perFile := make([][]types.Chunk, len(paths))
	var (
		mu       sync.Mutex
		warnings []types.Warning
		unread   []string
	)
	warn := func(p, reason string, readFailed bool) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, types.Warning{Path: p, Reason: reason})
		if readFailed {
			unread = append(unread, p)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.idx.cfg.Workers)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := r.tree.Files[p].ReadAll()
			if err != nil {
				warn(p, err.Error(), true)
				return nil
			}
			if entry, ok := r.tree.Entries[p]; ok && hasher.Sum(content) != entry.ContentHash {
				warn(p, "file changed while indexing", false)
			}

			chunks, err := r.idx.chunker.Chunk(gctx, content, p)
			switch {
			case errors.Is(err, chunker.ErrBinary):
				warn(p, "binary content skipped", false)
				return nil
			case err != nil:
				return fmt.Errorf("failed to chunk %s: %w", p, err)
			}
			perFile[i] = chunks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Path < warnings[j].Path })
	r.res.Warnings = append(r.res.Warnings, warnings...)
	r.unread = unread

	for _, chunks := range perFile {
		if len(chunks) > 0 {
			r.res.FilesChunked++
		}
		r.chunks = append(r.chunks, chunks...)
	}
	r.stale = r.changes.Stale()
	r.log.Debug().Int("files", len(paths)).Int("chunks", len(r.chunks)).Msg("chunked changed files")
	return nil
}

// obfuscate rewrites every path bound for the sink
func (r *run) obfuscate() error {
	o := r.idx.obfuscator
	if o == nil {
		return nil
	}

	cache := make(map[string]string)
	hide := func(p string) (string, error) {
		if obf, ok := cache[p]; ok {
			return obf, nil
		}
		obf, err := o.Obfuscate(p)
		if err != nil {
			return "", fmt.Errorf("failed to obfuscate path: %w", err)
		}
		cache[p] = obf
		return obf, nil
	}

	for i := range r.chunks {
		obf, err := hide(r.chunks[i].SourcePath)
		if err != nil {
			return err
		}
		r.chunks[i].SourcePath = obf
	}
	for i, p := range r.stale {
		obf, err := hide(p)
		if err != nil {
			return err
		}
		r.stale[i] = obf
	}
	r.log.Debug().Int("paths", len(cache)).Int("staged", o.Pending()).Msg("obfuscated paths")
	return nil
}

// emit resets or prunes the sink, then sends chunks in BatchSize batches
func (r *run) emit(ctx context.Context) error {
	sink, collection := r.idx.sink, r.opts.Collection

	if r.res.FullRebuild {
		if err := sink.Reset(ctx, collection); err != nil {
			return fmt.Errorf("failed to reset sink: %w", err)
		}
	} else if len(r.stale) > 0 {
		if err := sink.Remove(ctx, collection, r.stale); err != nil {
			return fmt.Errorf("failed to remove stale chunks: %w", err)
		}
	}

	for start := 0; start < len(r.chunks); start += r.idx.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+r.idx.cfg.BatchSize, len(r.chunks))
		if err := sink.Emit(ctx, collection, r.chunks[start:end]); err != nil {
			return fmt.Errorf("failed to emit chunks: %w", err)
		}
		r.res.ChunksEmitted += end - start
		r.res.Batches++
	}
	return nil
}

// forget removes paths from snap so the next run treats them as added.
// Their ancestor directory hashes are dropped so pruning cannot skip them,
// and the root hash is replaced by a digest of the remaining entries, which
// no tree that still contains the forgotten files can reproduce.
func forget(snap *types.Snapshot, paths []string) {
	if len(paths) == 0 {
		return
	}
	for _, p := range paths {
		delete(snap.Entries, p)
		for d := path.Dir(p); ; d = path.Dir(d) {
			if d == "." {
				delete(snap.Directories, "")
				break
			}
			delete(snap.Directories, d)
		}
	}

	children := make([]hasher.Child, 0, len(snap.Entries))
	for p, e := range snap.Entries {
		children = append(children, hasher.Child{Name: p, Hash: e.Hash})
	}
	snap.RootHash = hasher.Combine(children)
}
