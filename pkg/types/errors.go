package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidDigest   = errors.New("invalid digest")
	ErrEmptyPath       = errors.New("path cannot be empty")
	ErrInvalidRange    = errors.New("chunk range is invalid")
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrMissingHash     = errors.New("content hash must be computed")
	ErrContentMismatch = errors.New("content length does not match chunk range")
)
