package merkle

import (
	"sort"

	"github.com/dshills/codeindex/pkg/types"
)

// Diff classifies every path of prev and tree into a ChangeSet.
//
// A nil prev means there is no usable prior state and every file is added.
// Equal root hashes short-circuit to all-unchanged. Otherwise the new tree
// is walked and any directory whose hash matches prev.Directories is taken
// as unchanged wholesale; only the remaining files are compared against
// prev.Entries.
func Diff(prev *types.Snapshot, tree *Tree) *types.ChangeSet {
	cs := &types.ChangeSet{}

	if prev == nil {
		cs.Added = tree.Paths()
		return cs
	}
	if prev.RootHash == tree.Hash() {
		cs.Unchanged = tree.Paths()
		return cs
	}

	tree.Root.Walk(func(n *Node) bool {
		if n.IsDir() {
			if old, ok := prev.Directories[n.Path]; ok && old == n.Hash {
				cs.Unchanged = append(cs.Unchanged, n.Files()...)
				return false
			}
			return true
		}

		old, ok := prev.Entries[n.Path]
		switch {
		case !ok:
			cs.Added = append(cs.Added, n.Path)
		case old.Hash != n.Entry.ContentHash:
			cs.Modified = append(cs.Modified, n.Path)
		default:
			cs.Unchanged = append(cs.Unchanged, n.Path)
		}
		return true
	})

	for p := range prev.Entries {
		if _, ok := tree.Entries[p]; !ok {
			cs.Deleted = append(cs.Deleted, p)
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	sort.Strings(cs.Unchanged)
	return cs
}
