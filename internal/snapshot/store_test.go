package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/hasher"
	"github.com/dshills/codeindex/pkg/types"
)

func sampleSnapshot() *types.Snapshot {
	return &types.Snapshot{
		Version:  types.SnapshotVersion,
		BuildID:  "build-1",
		RootHash: hasher.Sum([]byte("root")),
		BuiltAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Entries: map[string]types.SnapshotEntry{
			"main.py": {
				Hash:         hasher.Sum([]byte("print(1)\n")),
				Size:         9,
				ModifiedTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		Directories: map[string]types.Digest{"": hasher.Sum([]byte("root"))},
	}
}

func TestSaveLoad(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "snapshots"))
	snap := sampleSnapshot()

	require.NoError(t, store.Save("project", snap))

	loaded, err := store.Load("project")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	p, err := store.Path("project")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rootHash": "`+snap.RootHash.Hex()+`"`)
}

func TestLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load("nothing-here")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"version": 1, "rootHash": "ab`},
		{"bad digest", `{"version": 1, "rootHash": "zz", "entries": {}}`},
		{"wrong version", `{"version": 99, "rootHash": "` + hasher.Sum(nil).Hex() + `", "entries": {}}`},
		{"missing entries", `{"version": 1, "rootHash": "` + hasher.Sum(nil).Hex() + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(t.TempDir())
			p, err := store.Path("project")
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(p, []byte(tt.content), 0o644))

			_, err = store.Load("project")
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestSaveReplacesPrevious(t *testing.T) {
	store := NewStore(t.TempDir())
	first := sampleSnapshot()
	require.NoError(t, store.Save("project", first))

	second := sampleSnapshot()
	second.BuildID = "build-2"
	second.RootHash = hasher.Sum([]byte("other"))
	require.NoError(t, store.Save("project", second))

	loaded, err := store.Load("project")
	require.NoError(t, err)
	assert.Equal(t, "build-2", loaded.BuildID)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveFailureKeepsPrevious(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save("project", sampleSnapshot()))

	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	next := sampleSnapshot()
	next.BuildID = "build-2"
	require.Error(t, store.Save("project", next))

	loaded, err := store.Load("project")
	require.NoError(t, err)
	assert.Equal(t, "build-1", loaded.BuildID)
}

func TestCollectionNames(t *testing.T) {
	store := NewStore(t.TempDir())

	for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
		_, err := store.Path(name)
		assert.ErrorIs(t, err, ErrInvalidCollection, name)
	}
	for _, name := range []string{"project", "my-repo_v2.1"} {
		_, err := store.Path(name)
		assert.NoError(t, err, name)
	}
}

func TestDelete(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("project", sampleSnapshot()))

	require.NoError(t, store.Delete("project"))
	require.NoError(t, store.Delete("project"))

	_, err := store.Load("project")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	store := NewStore(dir)

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Save("zeta", sampleSnapshot()))
	require.NoError(t, store.Save("alpha", sampleSnapshot()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}
