package embedder

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/codeindex/internal/hasher"
	"github.com/dshills/codeindex/pkg/types"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrProviderFailed   = errors.New("embedding provider failed")
	ErrUnknownProvider  = errors.New("unknown embedding provider")
	ErrEmptyText        = errors.New("text cannot be empty")
	ErrBatchTooLarge    = errors.New("batch size exceeds limit")
	ErrDimensionInvalid = errors.New("embedding dimension mismatch")
)

// Embedding is one vector plus the model that produced it
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      types.Digest // SHA-256 of the embedded text
}

// Embedder turns chunk texts into vectors. Implementations return one
// embedding per input text, in input order.
type Embedder interface {
	GenerateBatch(ctx context.Context, texts []string) ([]*Embedding, error)
	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// DefaultCacheSize is used when a cache is requested without a size
const DefaultCacheSize = 10000

// Cache is an LRU of embeddings keyed by text digest. Chunks already carry
// their content digest, so unchanged chunks re-emitted after a full rebuild
// hit the cache without being hashed again.
type Cache struct {
	cache *lru.Cache[types.Digest, *Embedding]
}

// NewCache creates a cache holding at most maxLen embeddings
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[types.Digest, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[types.Digest, *Embedding](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached embedding so callers cannot mutate it
func (c *Cache) Get(hash types.Digest) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	cp := *emb
	cp.Vector = append([]float32(nil), emb.Vector...)
	return &cp, true
}

func (c *Cache) Set(hash types.Digest, emb *Embedding) {
	c.cache.Add(hash, emb)
}

func (c *Cache) Size() int {
	return c.cache.Len()
}

func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash returns the cache key for text
func ComputeHash(text string) types.Digest {
	return hasher.Sum([]byte(text))
}

// ValidateBatch rejects empty batches, empty texts and batches over MaxBatchSize
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(texts) > MaxBatchSize {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(texts), MaxBatchSize)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d: %w", ErrInvalidInput, i, ErrEmptyText)
		}
	}
	return nil
}
