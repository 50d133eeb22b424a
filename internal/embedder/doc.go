// Package embedder turns chunk text into vectors for the storage sink.
//
// The only provider is LocalProvider, a deterministic feature-hashing
// embedder: identifiers and their camelCase/snake_case parts are hashed into
// a fixed number of signed buckets. It needs no model files and no network,
// so indexing never sends source text anywhere.
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := emb.GenerateBatch(ctx, texts)
//
// New wraps the provider with WithRetry, so transient failures are retried
// with exponential backoff. Invalid input fails immediately.
//
// # Caching
//
// Cache is an LRU keyed by the SHA-256 digest of the text, the same digest
// chunks carry as ContentHash.
package embedder
