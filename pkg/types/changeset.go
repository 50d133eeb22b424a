package types

import "fmt"

// ChangeSet partitions the union of old and new paths.
// Every slice is sorted; no path appears in more than one bucket.
type ChangeSet struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// HasChanges reports whether anything was added, modified, or deleted
func (c *ChangeSet) HasChanges() bool {
	return len(c.Added)+len(c.Modified)+len(c.Deleted) > 0
}

// Changed returns the paths that need chunking (added then modified)
func (c *ChangeSet) Changed() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	return append(out, c.Modified...)
}

// Stale returns the paths whose downstream chunks are no longer valid
func (c *ChangeSet) Stale() []string {
	out := make([]string, 0, len(c.Modified)+len(c.Deleted))
	out = append(out, c.Modified...)
	return append(out, c.Deleted...)
}

// Total returns the number of paths across all buckets
func (c *ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted) + len(c.Unchanged)
}

// Summary returns a one-line human readable description
func (c *ChangeSet) Summary() string {
	if !c.HasChanges() {
		return fmt.Sprintf("no changes (%d unchanged)", len(c.Unchanged))
	}
	return fmt.Sprintf("%d added, %d modified, %d deleted, %d unchanged",
		len(c.Added), len(c.Modified), len(c.Deleted), len(c.Unchanged))
}
