package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingMismatch is returned when embeddings and chunks do not pair up
	ErrEmbeddingMismatch = errors.New("embeddings do not match chunks")
)

// maxParams bounds the number of bound parameters per statement
const maxParams = 500

// Option configures a SQLiteStorage
type Option func(*SQLiteStorage)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) { s.now = now }
}

// SQLiteStorage implements Storage on a single SQLite database
type SQLiteStorage struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// openDatabase opens a SQLite database with WAL and foreign keys enabled
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// single writer; also keeps PRAGMA foreign_keys on the only connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens dbPath and brings its schema up to date
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStorage{db: db, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug().Str("path", dbPath).Str("driver", DriverName).Msg("storage opened")
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is implemented by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction, rolling back on error
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Collection operations

func (s *SQLiteStorage) ensureCollection(ctx context.Context, q querier, name string) (int64, error) {
	now := s.now().UTC()
	_, err := q.ExecContext(ctx, `
		INSERT INTO collections (name, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up collection: %w", err)
	}
	return id, nil
}

func (s *SQLiteStorage) collectionID(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, "SELECT id FROM collections WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

// touch recounts a collection's chunks after a write
func (s *SQLiteStorage) touch(ctx context.Context, q querier, id int64, emitted bool) error {
	now := s.now().UTC()
	query := `
		UPDATE collections
		SET total_chunks = (SELECT COUNT(*) FROM chunks WHERE collection_id = ?), updated_at = ?
	`
	args := []any{id, now}
	if emitted {
		query += ", last_emit_at = ?"
		args = append(args, now)
	}
	query += " WHERE id = ?"
	args = append(args, id)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	return nil
}

const collectionColumns = "id, name, total_chunks, last_emit_at, created_at, updated_at"

func scanCollection(row interface{ Scan(...any) error }) (*Collection, error) {
	var c Collection
	var lastEmit sql.NullTime
	if err := row.Scan(&c.ID, &c.Name, &c.TotalChunks, &lastEmit, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if lastEmit.Valid {
		c.LastEmitAt = lastEmit.Time
	}
	return &c, nil
}

// GetCollection returns the named collection or ErrNotFound
func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*Collection, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+collectionColumns+" FROM collections WHERE name = ?", name)
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

// ListCollections returns every collection ordered by name
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+collectionColumns+" FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Sink operations

// Reset deletes every chunk of collection, creating the collection if needed
func (s *SQLiteStorage) Reset(ctx context.Context, collection string) error {
	return s.inTx(ctx, func(q querier) error {
		id, err := s.ensureCollection(ctx, q, collection)
		if err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE collection_id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to reset collection: %w", err)
		}
		n, _ := res.RowsAffected()
		s.logger.Debug().Str("collection", collection).Int64("deleted", n).Msg("collection reset")
		return s.touch(ctx, q, id, false)
	})
}

// Remove deletes the chunks of paths. Unknown collections and paths are ignored.
func (s *SQLiteStorage) Remove(ctx context.Context, collection string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.inTx(ctx, func(q querier) error {
		id, err := s.collectionID(ctx, q, collection)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var deleted int64
		for start := 0; start < len(paths); start += maxParams {
			batch := paths[start:min(start+maxParams, len(paths))]
			args := make([]any, 0, len(batch)+1)
			args = append(args, id)
			for _, p := range batch {
				args = append(args, p)
			}
			query := "DELETE FROM chunks WHERE collection_id = ? AND source_path IN (?" + strings.Repeat(",?", len(batch)-1) + ")"
			res, err := q.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to remove chunks: %w", err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		s.logger.Debug().Str("collection", collection).Int("paths", len(paths)).Int64("deleted", deleted).Msg("chunks removed")
		return s.touch(ctx, q, id, false)
	})
}

// Emit stores chunks in one transaction. Re-emitting a chunk with the same
// key replaces it.
func (s *SQLiteStorage) Emit(ctx context.Context, collection string, chunks []types.Chunk) error {
	return s.emit(ctx, collection, chunks, nil)
}

// emit stores chunks and, when embs is non-nil, embs[i] as the vector of chunks[i]
func (s *SQLiteStorage) emit(ctx context.Context, collection string, chunks []types.Chunk, embs []*embedder.Embedding) error {
	if embs != nil && len(embs) != len(chunks) {
		return fmt.Errorf("%w: %d embeddings for %d chunks", ErrEmbeddingMismatch, len(embs), len(chunks))
	}
	return s.inTx(ctx, func(q querier) error {
		id, err := s.ensureCollection(ctx, q, collection)
		if err != nil {
			return err
		}
		for i := range chunks {
			chunkID, err := s.upsertChunk(ctx, q, id, &chunks[i])
			if err != nil {
				return err
			}
			if embs != nil {
				if err := s.upsertEmbedding(ctx, q, chunkID, embs[i]); err != nil {
					return err
				}
			}
		}
		return s.touch(ctx, q, id, true)
	})
}

func (s *SQLiteStorage) upsertChunk(ctx context.Context, q querier, collectionID int64, c *types.Chunk) (int64, error) {
	symbols, err := json.Marshal(c.SymbolsDefined)
	if err != nil {
		return 0, err
	}
	imports, err := json.Marshal(c.ImportsUsed)
	if err != nil {
		return 0, err
	}
	key := KeyOf(c)

	query := `
		INSERT INTO chunks (collection_id, chunk_key, source_path, start_offset, end_offset, content,
		                    content_hash, token_count, language, chunk_type, name, symbols, imports,
		                    complexity, parent_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, chunk_key) DO UPDATE SET
			token_count = excluded.token_count,
			language = excluded.language,
			chunk_type = excluded.chunk_type,
			name = excluded.name,
			symbols = excluded.symbols,
			imports = excluded.imports,
			complexity = excluded.complexity,
			parent_context = excluded.parent_context
	`
	_, err = q.ExecContext(ctx, query,
		collectionID, key[:], c.SourcePath, c.StartOffset, c.EndOffset, c.Content,
		c.ContentHash[:], c.TokenCount, string(c.Language), c.ChunkType, c.Name, string(symbols), string(imports),
		c.ComplexityScore, c.ParentContext, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to store chunk %s: %w", c.SourcePath, err)
	}

	var id int64
	err = q.QueryRowContext(ctx, "SELECT id FROM chunks WHERE collection_id = ? AND chunk_key = ?", collectionID, key[:]).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read chunk id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStorage) upsertEmbedding(ctx context.Context, q querier, chunkID int64, e *embedder.Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
	`
	_, err := q.ExecContext(ctx, query, chunkID, serializeVector(e.Vector), e.Dimension, e.Provider, e.Model, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Read operations

// ListChunks returns the chunks of one source path in offset order
func (s *SQLiteStorage) ListChunks(ctx context.Context, collection, sourcePath string) ([]*Chunk, error) {
	query := `
		SELECT c.id, c.collection_id, c.chunk_key, c.source_path, c.start_offset, c.end_offset, c.content,
		       c.content_hash, c.token_count, c.language, c.chunk_type, c.name, c.symbols, c.imports,
		       c.complexity, c.parent_context, c.created_at
		FROM chunks c
		JOIN collections col ON c.collection_id = col.id
		WHERE col.name = ? AND c.source_path = ?
		ORDER BY c.start_offset
	`
	rows, err := s.db.QueryContext(ctx, query, collection, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChunk(rows *sql.Rows) (*Chunk, error) {
	var (
		c                        Chunk
		key, hash                []byte
		language, name           sql.NullString
		symbols, imports, parent sql.NullString
	)
	err := rows.Scan(&c.ID, &c.CollectionID, &key, &c.SourcePath, &c.StartOffset, &c.EndOffset, &c.Content,
		&hash, &c.TokenCount, &language, &c.ChunkType, &name, &symbols, &imports,
		&c.ComplexityScore, &parent, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}
	copy(c.Key[:], key)
	copy(c.ContentHash[:], hash)
	c.Language = types.Language(language.String)
	c.Name = name.String
	c.ParentContext = parent.String
	if symbols.Valid {
		if err := json.Unmarshal([]byte(symbols.String), &c.SymbolsDefined); err != nil {
			return nil, fmt.Errorf("failed to decode symbols: %w", err)
		}
	}
	if imports.Valid {
		if err := json.Unmarshal([]byte(imports.String), &c.ImportsUsed); err != nil {
			return nil, fmt.Errorf("failed to decode imports: %w", err)
		}
	}
	return &c, nil
}

// GetEmbedding returns the vector stored for a chunk
func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	var e Embedding
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings WHERE chunk_id = ?
	`, chunkID).Scan(&e.ChunkID, &blob, &e.Dimension, &e.Provider, &e.Model, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	e.Vector = deserializeVector(blob)
	return &e, nil
}

// GetStatus counts what is stored for collection
func (s *SQLiteStorage) GetStatus(ctx context.Context, collection string) (*CollectionStatus, error) {
	col, err := s.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	status := &CollectionStatus{Collection: col}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT source_path), COUNT(*) FROM chunks WHERE collection_id = ?
	`, col.ID).Scan(&status.FilesCount, &status.ChunksCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM embeddings e
		JOIN chunks c ON e.chunk_id = c.id
		WHERE c.collection_id = ?
	`, col.ID).Scan(&status.EmbeddingsCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
	}
	return status, nil
}
