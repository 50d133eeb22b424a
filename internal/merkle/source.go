package merkle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// SourceFile is one file offered by a Source. Path is slash separated and
// relative to the source root. A non-nil Err marks an entry that could not
// be listed (unreadable directory, symlink cycle); the builder records it as
// a warning and moves on.
type SourceFile struct {
	Path    string
	Size    int64
	ModTime time.Time
	Err     error

	open func() (io.ReadCloser, error)
}

// NewSourceFile creates a SourceFile whose content is produced by open
func NewSourceFile(p string, size int64, modTime time.Time, open func() (io.ReadCloser, error)) SourceFile {
	return SourceFile{Path: p, Size: size, ModTime: modTime, open: open}
}

// Open returns a reader over the file content. The caller must close it.
func (f SourceFile) Open() (io.ReadCloser, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.open == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, f.Path)
	}
	return f.open()
}

// ReadAll reads the entire file content
func (f SourceFile) ReadAll() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// Source is the acquisition boundary: a declared root plus a finite,
// possibly lazy sequence of files. Walk stops at the first error returned by
// fn or by the context.
type Source interface {
	Root() string
	Walk(ctx context.Context, fn func(SourceFile) error) error
}

// MemFile is an in-memory (path, content) pair
type MemFile struct {
	Path    string
	Content []byte
	ModTime time.Time
}

// MemSource serves files from memory, in insertion order
type MemSource struct {
	root  string
	files []MemFile
}

// NewMemSource creates a MemSource over the given files
func NewMemSource(root string, files ...MemFile) *MemSource {
	return &MemSource{root: root, files: files}
}

// Add appends a file
func (s *MemSource) Add(p string, content []byte) {
	s.files = append(s.files, MemFile{Path: p, Content: content})
}

// Root implements Source
func (s *MemSource) Root() string { return s.root }

// Walk implements Source
func (s *MemSource) Walk(ctx context.Context, fn func(SourceFile) error) error {
	for _, f := range s.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		content := f.Content
		sf := NewSourceFile(f.Path, int64(len(content)), f.ModTime, func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		})
		if err := fn(sf); err != nil {
			return err
		}
	}
	return nil
}

// DirSource walks a directory on disk. Symlinks are followed; a symlink
// that leads back into one of its own ancestors is reported as a cycle
// instead of being descended.
type DirSource struct {
	root   string
	ignore *Matcher
}

// DirOption configures a DirSource
type DirOption func(*DirSource)

// WithDirIgnore prunes ignored directories during the walk
func WithDirIgnore(m *Matcher) DirOption {
	return func(s *DirSource) { s.ignore = m }
}

// NewDirSource creates a source rooted at dir
func NewDirSource(dir string, opts ...DirOption) *DirSource {
	s := &DirSource{root: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root implements Source
func (s *DirSource) Root() string { return s.root }

// Walk implements Source. Entries are produced in lexical order per directory.
func (s *DirSource) Walk(ctx context.Context, fn func(SourceFile) error) error {
	real, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, s.root)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("failed to read root: %w", err)
	}
	return s.walkEntries(ctx, s.root, "", entries, map[string]bool{real: true}, fn)
}

func (s *DirSource) walkDir(ctx context.Context, abs, real, rel string, ancestors map[string]bool, fn func(SourceFile) error) error {
	if ancestors[real] {
		return fn(SourceFile{Path: rel, Err: ErrSymlinkCycle})
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fn(SourceFile{Path: rel, Err: fmt.Errorf("unreadable directory: %w", err)})
	}

	ancestors[real] = true
	defer delete(ancestors, real)
	return s.walkEntries(ctx, abs, rel, entries, ancestors, fn)
}

func (s *DirSource) walkEntries(ctx context.Context, abs, rel string, entries []fs.DirEntry, ancestors map[string]bool, fn func(SourceFile) error) error {
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		childRel := path.Join(rel, e.Name())
		if s.ignore.Match(childRel) {
			continue
		}
		childAbs := filepath.Join(abs, e.Name())

		if e.Type()&fs.ModeSymlink != 0 {
			if err := s.walkSymlink(ctx, childAbs, childRel, ancestors, fn); err != nil {
				return err
			}
			continue
		}

		if e.IsDir() {
			real, err := filepath.EvalSymlinks(childAbs)
			if err != nil {
				real = childAbs
			}
			if err := s.walkDir(ctx, childAbs, real, childRel, ancestors, fn); err != nil {
				return err
			}
			continue
		}

		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if err := fn(SourceFile{Path: childRel, Err: err}); err != nil {
				return err
			}
			continue
		}
		if err := fn(fileFromInfo(childAbs, childRel, info)); err != nil {
			return err
		}
	}
	return nil
}

func (s *DirSource) walkSymlink(ctx context.Context, abs, rel string, ancestors map[string]bool, fn func(SourceFile) error) error {
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fn(SourceFile{Path: rel, Err: fmt.Errorf("broken symlink: %w", err)})
	}
	info, err := os.Stat(target)
	if err != nil {
		return fn(SourceFile{Path: rel, Err: err})
	}
	if info.IsDir() {
		return s.walkDir(ctx, abs, target, rel, ancestors, fn)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return fn(fileFromInfo(abs, rel, info))
}

func fileFromInfo(abs, rel string, info fs.FileInfo) SourceFile {
	return NewSourceFile(rel, info.Size(), info.ModTime(), func() (io.ReadCloser, error) {
		return os.Open(abs)
	})
}
