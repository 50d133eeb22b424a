package embedder

import (
	"context"
	"errors"
	"time"
)

// RetryConfig configures exponential backoff
type RetryConfig struct {
	MaxRetries int           // total attempts, including the first
	BaseDelay  time.Duration // delay after the first failure
	MaxDelay   time.Duration // cap on the delay
	Multiplier float64       // growth factor between attempts
}

// DefaultRetryConfig returns the defaults used by WithRetry
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// retryWithBackoff calls fn until it succeeds, MaxRetries attempts are used
// up, or ctx is done. Invalid input is never retried.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, ErrInvalidInput) {
			return zero, err
		}

		if attempt < config.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}

// retrying wraps an Embedder so every batch is retried with backoff
type retrying struct {
	Embedder
	config RetryConfig
}

// WithRetry wraps e so GenerateBatch is retried according to config
func WithRetry(e Embedder, config RetryConfig) Embedder {
	return &retrying{Embedder: e, config: config}
}

func (r *retrying) GenerateBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	return retryWithBackoff(ctx, r.config, func() ([]*Embedding, error) {
		return r.Embedder.GenerateBatch(ctx, texts)
	})
}
