package types

import (
	"crypto/sha256"
)

// Chunk is a contiguous, token-bounded byte range of one source file plus
// the metadata derived from its structure. Chunks are never mutated after
// the chunker returns them, except for SourcePath which the indexer may
// replace with an obfuscated path before emission.
type Chunk struct {
	// Location
	SourcePath  string
	StartOffset int
	EndOffset   int

	// Content
	Content     string
	ContentHash Digest
	TokenCount  int

	// Structure
	Language        Language
	ChunkType       string
	Name            string // empty when the chunk has no single declared name
	SymbolsDefined  []string
	ImportsUsed     []string
	ComplexityScore int
	ParentContext   string // empty at top level
}

// Len returns the byte length of the chunk
func (c *Chunk) Len() int {
	return c.EndOffset - c.StartOffset
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// Validate performs structural validation of the chunk
func (c *Chunk) Validate() error {
	if c.SourcePath == "" {
		return ErrEmptyPath
	}
	if c.StartOffset < 0 || c.EndOffset <= c.StartOffset {
		return ErrInvalidRange
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if len(c.Content) != c.Len() {
		return ErrContentMismatch
	}
	if c.ContentHash.IsZero() {
		return ErrMissingHash
	}
	return nil
}
