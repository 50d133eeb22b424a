package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/pkg/types"
)

// EmbeddingSink stores chunks together with their embeddings. A batch is
// embedded before anything is written, so a provider failure leaves the
// collection untouched.
type EmbeddingSink struct {
	store     *SQLiteStorage
	embedder  embedder.Embedder
	batchSize int
	logger    zerolog.Logger
}

// SinkOption configures an EmbeddingSink
type SinkOption func(*EmbeddingSink)

// WithSinkLogger sets the logger
func WithSinkLogger(l zerolog.Logger) SinkOption {
	return func(s *EmbeddingSink) { s.logger = l }
}

// WithEmbedBatchSize sets how many texts go to the embedder per call
func WithEmbedBatchSize(n int) SinkOption {
	return func(s *EmbeddingSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewEmbeddingSink creates a sink that embeds through e
func NewEmbeddingSink(store *SQLiteStorage, e embedder.Embedder, opts ...SinkOption) *EmbeddingSink {
	s := &EmbeddingSink{
		store:     store,
		embedder:  e,
		batchSize: embedder.DefaultBatchSize,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EmbeddingSink) Reset(ctx context.Context, collection string) error {
	return s.store.Reset(ctx, collection)
}

func (s *EmbeddingSink) Remove(ctx context.Context, collection string, paths []string) error {
	return s.store.Remove(ctx, collection, paths)
}

// Emit embeds chunks in sub-batches and stores chunks and vectors together
func (s *EmbeddingSink) Emit(ctx context.Context, collection string, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embs := make([]*embedder.Embedding, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		batch, err := s.embedder.GenerateBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: %w", embedder.ErrProviderFailed, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("%w: provider returned %d of %d", ErrEmbeddingMismatch, len(batch), len(texts))
		}
		for _, e := range batch {
			if len(e.Vector) != s.embedder.Dimension() {
				return fmt.Errorf("%w: got %d, want %d", embedder.ErrDimensionInvalid, len(e.Vector), s.embedder.Dimension())
			}
		}
		embs = append(embs, batch...)
	}

	s.logger.Debug().Str("collection", collection).Int("chunks", len(chunks)).Str("model", s.embedder.Model()).Msg("embedded batch")
	return s.store.emit(ctx, collection, chunks, embs)
}
