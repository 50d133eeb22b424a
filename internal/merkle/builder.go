package merkle

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeindex/internal/hasher"
	"github.com/dshills/codeindex/pkg/types"
)

// Builder builds Merkle trees from a Source
type Builder struct {
	ignore      *Matcher
	maxFileSize int64
	workers     int
	logger      zerolog.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithIgnore sets the ignore matcher. Without it only DefaultIgnorePatterns apply.
func WithIgnore(m *Matcher) BuilderOption {
	return func(b *Builder) { b.ignore = m }
}

// WithMaxFileSize excludes files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) BuilderOption {
	return func(b *Builder) { b.maxFileSize = n }
}

// WithWorkers bounds the hashing worker pool
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithLogger sets the logger used for skip and warning messages
func WithLogger(l zerolog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		workers: runtime.NumCPU(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.ignore == nil {
		b.ignore, _ = NewMatcher()
	}
	return b
}

// Build lists src, hashes every indexable file and aggregates directory
// hashes bottom-up. Ignored and oversized files are left out of the tree;
// unreadable entries become warnings. The only errors returned are listing
// failures at the root and context cancellation.
func (b *Builder) Build(ctx context.Context, src Source) (*Tree, error) {
	tree := &Tree{
		Entries: make(map[string]types.FileEntry),
		Dirs:    make(map[string]types.Digest),
		Files:   make(map[string]SourceFile),
	}

	files, err := b.list(ctx, src, tree)
	if err != nil {
		return nil, err
	}

	entries, err := b.hashFiles(ctx, files, tree)
	if err != nil {
		return nil, err
	}

	root, err := b.assemble(ctx, entries, tree)
	if err != nil {
		return nil, err
	}
	tree.Root = root

	b.logger.Debug().
		Str("root", src.Root()).
		Int("files", len(tree.Entries)).
		Int("skipped", tree.Skipped).
		Int("warnings", len(tree.Warnings)).
		Str("hash", root.Hash.Hex()).
		Msg("merkle tree built")

	return tree, nil
}

// list collects the files to hash, applying ignore and size filters
func (b *Builder) list(ctx context.Context, src Source, tree *Tree) ([]SourceFile, error) {
	var files []SourceFile
	err := src.Walk(ctx, func(f SourceFile) error {
		if f.Err != nil {
			b.logger.Warn().Str("path", f.Path).Err(f.Err).Msg("skipping entry")
			tree.warn(f.Path, f.Err.Error())
			return nil
		}

		p, err := cleanPath(f.Path)
		if err != nil {
			tree.warn(f.Path, err.Error())
			return nil
		}
		if b.ignore.Match(p) {
			tree.Skipped++
			return nil
		}
		if b.maxFileSize > 0 && f.Size > b.maxFileSize {
			b.logger.Debug().Str("path", p).Int64("size", f.Size).Msg("file exceeds max size")
			tree.Skipped++
			return nil
		}
		if _, dup := tree.Files[p]; dup {
			tree.warn(p, "duplicate path")
			return nil
		}

		f.Path = p
		tree.Files[p] = f
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list source: %w", err)
	}
	return files, nil
}

// hashFiles hashes files with a bounded pool. Cancellation is observed
// between files; a file that has started hashing is always finished.
func (b *Builder) hashFiles(ctx context.Context, files []SourceFile, tree *Tree) ([]types.FileEntry, error) {
	results := make([]*types.FileEntry, len(files))
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := hashFile(files[i])
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]types.FileEntry, 0, len(files))
	for i, f := range files {
		if failures[i] != nil {
			b.logger.Warn().Str("path", f.Path).Err(failures[i]).Msg("skipping unreadable file")
			tree.warn(f.Path, failures[i].Error())
			delete(tree.Files, f.Path)
			continue
		}
		entries = append(entries, *results[i])
	}
	return entries, nil
}

func hashFile(f SourceFile) (*types.FileEntry, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	digest, n, err := hasher.SumReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return &types.FileEntry{
		Path:         f.Path,
		Size:         n,
		ModifiedTime: f.ModTime,
		ContentHash:  digest,
	}, nil
}

// assemble links file leaves under their directories and computes directory
// hashes level by level, deepest first. Each level is a barrier: a
// directory is only hashed once every directory below it is done.
func (b *Builder) assemble(ctx context.Context, entries []types.FileEntry, tree *Tree) (*Node, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	dirPaths := make(map[string]bool)
	for _, e := range entries {
		for d := parentDir(e.Path); d != ""; d = parentDir(d) {
			dirPaths[d] = true
		}
	}

	root := &Node{Kind: NodeDir}
	dirs := map[string]*Node{"": root}
	var ensureDir func(p string) *Node
	ensureDir = func(p string) *Node {
		if n, ok := dirs[p]; ok {
			return n
		}
		parent := ensureDir(parentDir(p))
		n := &Node{Kind: NodeDir, Name: path.Base(p), Path: p}
		parent.Children = append(parent.Children, n)
		dirs[p] = n
		return n
	}

	for i := range entries {
		e := entries[i]
		if dirPaths[e.Path] {
			tree.warn(e.Path, "file shadows a directory of the same name")
			delete(tree.Files, e.Path)
			continue
		}
		parent := ensureDir(parentDir(e.Path))
		parent.Children = append(parent.Children, &Node{
			Kind:  NodeFile,
			Name:  path.Base(e.Path),
			Path:  e.Path,
			Hash:  e.ContentHash,
			Entry: &e,
		})
		tree.Entries[e.Path] = e
	}

	levels := make(map[int][]*Node)
	maxDepth := 0
	for p, n := range dirs {
		d := depth(p)
		levels[d] = append(levels[d], n)
		if d > maxDepth {
			maxDepth = d
		}
	}

	for d := maxDepth; d >= 0; d-- {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.workers)
		for _, n := range levels[d] {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].Name < n.Children[j].Name })
				children := make([]hasher.Child, len(n.Children))
				for i, c := range n.Children {
					children[i] = hasher.Child{Name: c.Name, Hash: c.Hash}
				}
				n.Hash = hasher.Combine(children)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for p, n := range dirs {
		tree.Dirs[p] = n.Hash
	}
	return root, nil
}

// cleanPath normalizes a source path to a clean, relative, slash-separated form
func cleanPath(p string) (string, error) {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == "" || strings.HasPrefix(p, "/") || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return p, nil
}

func parentDir(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}
	return d
}

func depth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}
