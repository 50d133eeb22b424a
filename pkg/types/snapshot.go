package types

import (
	"sort"
	"time"
)

// SnapshotVersion is the current persisted snapshot format version
const SnapshotVersion = 1

// FileEntry is the leaf unit of the Merkle tree
type FileEntry struct {
	Path         string
	Size         int64
	ModifiedTime time.Time
	ContentHash  Digest
}

// SnapshotEntry is the persisted form of a FileEntry
type SnapshotEntry struct {
	Hash         Digest    `json:"hash"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// Snapshot is the flat record of a successful index build.
// Directories is optional; when present it lets the differ prune unchanged subtrees.
type Snapshot struct {
	Version     int                      `json:"version"`
	BuildID     string                   `json:"buildId,omitempty"`
	RootHash    Digest                   `json:"rootHash"`
	BuiltAt     time.Time                `json:"builtAt"`
	Entries     map[string]SnapshotEntry `json:"entries"`
	Directories map[string]Digest        `json:"directories,omitempty"`
}

// Paths returns the snapshot's file paths in sorted order
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Entries))
	for p := range s.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entry returns the FileEntry recorded for path
func (s *Snapshot) Entry(path string) (FileEntry, bool) {
	e, ok := s.Entries[path]
	if !ok {
		return FileEntry{}, false
	}
	return FileEntry{
		Path:         path,
		Size:         e.Size,
		ModifiedTime: e.ModifiedTime,
		ContentHash:  e.Hash,
	}, true
}
