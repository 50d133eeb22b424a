// Package snapshot persists one Merkle snapshot per collection.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dshills/codeindex/internal/fsutil"
	"github.com/dshills/codeindex/pkg/types"
)

const fileSuffix = ".snapshot.json"

var (
	// ErrNotFound is returned when no snapshot exists for a collection
	ErrNotFound = errors.New("snapshot not found")
	// ErrCorrupt is returned when a snapshot exists but cannot be decoded
	ErrCorrupt = errors.New("snapshot is corrupt")
	// ErrInvalidCollection is returned for names that are not safe file names
	ErrInvalidCollection = errors.New("invalid collection name")
)

var collectionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Store reads and writes snapshots under a directory,
// one file per collection: <dir>/<collection>.snapshot.json
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the snapshot file path for a collection
func (s *Store) Path(collection string) (string, error) {
	if !collectionPattern.MatchString(collection) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	return filepath.Join(s.dir, collection+fileSuffix), nil
}

// Load reads the snapshot for collection. It returns ErrNotFound when there
// is none and ErrCorrupt when the document cannot be trusted; callers treat
// both as "no prior state".
func (s *Store) Load(collection string) (*types.Snapshot, error) {
	p, err := s.Path(collection)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Version != types.SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, snap.Version)
	}
	if snap.RootHash.IsZero() || snap.Entries == nil {
		return nil, fmt.Errorf("%w: missing root hash or entries", ErrCorrupt)
	}
	return &snap, nil
}

// Save atomically replaces the snapshot for collection. If Save fails the
// previous snapshot is left as it was.
func (s *Store) Save(collection string, snap *types.Snapshot) error {
	p, err := s.Path(collection)
	if err != nil {
		return err
	}
	if err := fsutil.WriteJSONAtomic(p, 0o644, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot for collection. Deleting a missing snapshot is not an error.
func (s *Store) Delete(collection string) error {
	p, err := s.Path(collection)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns the collections that have a snapshot, sorted by name
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	var out []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), fileSuffix)
		if !ok || e.IsDir() || !collectionPattern.MatchString(name) {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}
