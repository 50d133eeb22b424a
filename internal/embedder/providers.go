package embedder

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

const (
	ProviderLocal = "local"

	DefaultLocalModel = "hashed-identifiers-v1"
	LocalDimension    = 384

	DefaultBatchSize = 50
	MaxBatchSize     = 1000

	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// LocalProvider embeds text without a model or network access. Each
// identifier and each lowercased sub-word of it (split at camelCase and
// snake_case boundaries) is hashed with xxh3 into one of LocalDimension
// buckets with a hash-derived sign; the result is L2 normalized. Texts that
// share identifiers end up close under cosine similarity.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a local embedder. cache may be nil.
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{model: DefaultLocalModel, cache: cache}
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := ValidateBatch(texts); err != nil {
		return nil, err
	}

	out := make([]*Embedding, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embed(text)
	}
	return out, nil
}

func (l *LocalProvider) embed(text string) *Embedding {
	hash := ComputeHash(text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb
		}
	}

	vector := make([]float32, LocalDimension)
	for _, word := range identifiers(text) {
		addFeature(vector, word)
		lower := strings.ToLower(word)
		for _, part := range subwords(word) {
			if part != lower {
				addFeature(vector, part)
			}
		}
	}

	emb := &Embedding{
		Vector:    NormalizeVector(vector),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb
}

func addFeature(vector []float32, feature string) {
	h := xxh3.HashString(strings.ToLower(feature))
	idx := h % uint64(len(vector))
	if h&(1<<63) != 0 {
		vector[idx]--
	} else {
		vector[idx]++
	}
}

// identifiers returns the runs of letters, digits and underscores in text
func identifiers(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// subwords splits an identifier at underscores and lower-to-upper case changes
func subwords(word string) []string {
	var parts []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	var prev rune
	for _, r := range word {
		switch {
		case r == '_':
			flush()
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()
	return parts
}

func (l *LocalProvider) Dimension() int   { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return l.model }
func (l *LocalProvider) Close() error     { return nil }

// NormalizeVector returns v scaled to unit length. A zero vector is returned as is.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
