package embedder

import (
	"fmt"
	"strings"
)

// Config selects and sizes an embedder
type Config struct {
	Provider  string
	CacheSize int // 0 disables the cache
	Retry     *RetryConfig
}

// New creates the configured embedder wrapped with retry. Only the local
// provider exists; chunk text never leaves the machine.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	var e Embedder
	switch strings.ToLower(cfg.Provider) {
	case ProviderLocal, "":
		e = NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	return WithRetry(e, retry), nil
}
