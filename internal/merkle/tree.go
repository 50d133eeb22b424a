package merkle

import (
	"errors"
	"sort"
	"time"

	"github.com/dshills/codeindex/pkg/types"
)

var (
	ErrInvalidPattern = errors.New("invalid ignore pattern")
	ErrInvalidPath    = errors.New("invalid source path")
	ErrNotDirectory   = errors.New("source root is not a directory")
	ErrSymlinkCycle   = errors.New("symlink cycle")
	ErrNoContent      = errors.New("source file has no content reader")
)

// NodeKind distinguishes file leaves from directories
type NodeKind int

const (
	NodeFile NodeKind = iota
	NodeDir
)

// Node is a Merkle tree node. File nodes carry Entry; directory nodes carry
// Children sorted by name and a Hash derived from them.
type Node struct {
	Kind     NodeKind
	Name     string
	Path     string // "" for the root
	Hash     types.Digest
	Entry    *types.FileEntry
	Children []*Node
}

// IsDir reports whether n is a directory
func (n *Node) IsDir() bool {
	return n.Kind == NodeDir
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Files returns the paths of all file leaves under n
func (n *Node) Files() []string {
	var out []string
	n.Walk(func(c *Node) bool {
		if !c.IsDir() {
			out = append(out, c.Path)
		}
		return true
	})
	return out
}

// Tree is the result of a build: the root node plus flat views of it
type Tree struct {
	Root     *Node
	Entries  map[string]types.FileEntry
	Dirs     map[string]types.Digest
	Files    map[string]SourceFile
	Warnings []types.Warning
	Skipped  int
}

// Hash returns the root hash
func (t *Tree) Hash() types.Digest {
	return t.Root.Hash
}

// Paths returns every file path in sorted order
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.Entries))
	for p := range t.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot flattens the tree into its persisted form
func (t *Tree) Snapshot(buildID string, builtAt time.Time) *types.Snapshot {
	s := &types.Snapshot{
		Version:     types.SnapshotVersion,
		BuildID:     buildID,
		RootHash:    t.Root.Hash,
		BuiltAt:     builtAt.UTC(),
		Entries:     make(map[string]types.SnapshotEntry, len(t.Entries)),
		Directories: make(map[string]types.Digest, len(t.Dirs)),
	}
	for p, e := range t.Entries {
		s.Entries[p] = types.SnapshotEntry{
			Hash:         e.ContentHash,
			Size:         e.Size,
			ModifiedTime: e.ModifiedTime.UTC(),
		}
	}
	for p, h := range t.Dirs {
		s.Directories[p] = h
	}
	return s
}

func (t *Tree) warn(p, reason string) {
	t.Warnings = append(t.Warnings, types.Warning{Path: p, Reason: reason})
}
