package storage

import (
	"context"
	"time"

	"github.com/dshills/codeindex/pkg/types"
)

// Storage persists the chunks of each collection. It is the indexer's Sink
// plus the read side used by status reporting.
type Storage interface {
	// Sink operations
	Reset(ctx context.Context, collection string) error
	Remove(ctx context.Context, collection string, paths []string) error
	Emit(ctx context.Context, collection string, chunks []types.Chunk) error

	// Read operations
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)
	ListChunks(ctx context.Context, collection, sourcePath string) ([]*Chunk, error)
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)
	GetStatus(ctx context.Context, collection string) (*CollectionStatus, error)

	Close() error
}

// Collection is one independently indexed codebase
type Collection struct {
	ID          int64
	Name        string
	TotalChunks int
	LastEmitAt  time.Time // zero until the first Emit
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is a stored chunk. Key identifies it within its collection.
type Chunk struct {
	ID           int64
	CollectionID int64
	Key          ChunkKey
	types.Chunk
	CreatedAt time.Time
}

// Embedding is the stored vector of one chunk
type Embedding struct {
	ChunkID   int64
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// CollectionStatus summarizes what is stored for a collection
type CollectionStatus struct {
	Collection      *Collection
	FilesCount      int
	ChunksCount     int
	EmbeddingsCount int
	IndexSizeMB     float64 // whole database, shared by all collections
	Health          HealthStatus
}

// HealthStatus reports what the store can currently serve
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
}
