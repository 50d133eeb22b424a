package types

import (
	"encoding/hex"
	"fmt"
)

// DigestSize is the size of a content digest in bytes (SHA-256)
const DigestSize = 32

// Digest is a fixed-size content hash
type Digest [DigestSize]byte

// Hex returns the lowercase hex encoding of the digest
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether the digest was never computed
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText encodes the digest as hex so it serializes as a JSON string
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText decodes a hex digest
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses a 64-character hex string into a Digest
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != DigestSize*2 {
		return d, fmt.Errorf("%w: expected %d hex chars, got %d", ErrInvalidDigest, DigestSize*2, len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	return d, nil
}
