// Package hasher computes the content digests used by the Merkle tree.
package hasher

import (
	"crypto/sha256"
	"io"
	"sort"

	"github.com/dshills/codeindex/pkg/types"
)

// Child is one named input to a directory hash
type Child struct {
	Name string
	Hash types.Digest
}

// Sum returns the SHA-256 digest of b
func Sum(b []byte) types.Digest {
	return sha256.Sum256(b)
}

// SumReader streams r into a SHA-256 digest and returns the number of bytes read
func SumReader(r io.Reader) (types.Digest, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return types.Digest{}, n, err
	}
	var d types.Digest
	copy(d[:], h.Sum(nil))
	return d, n, nil
}

// Combine hashes the children of a directory. Children are sorted by name
// first, so the result does not depend on enumeration order. Each child
// contributes name || 0x00 || hash; the separator keeps names from bleeding
// into the fixed-width hash that follows.
func Combine(children []Child) types.Digest {
	sorted := make([]Child, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, c := range sorted {
		_, _ = io.WriteString(h, c.Name)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(c.Hash[:])
	}
	var d types.Digest
	copy(d[:], h.Sum(nil))
	return d
}
