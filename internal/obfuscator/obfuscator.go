package obfuscator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/codeindex/internal/fsutil"
	"github.com/dshills/codeindex/pkg/types"
)

const (
	// MappingVersion is the current mapping file format
	MappingVersion = 1

	tokenBytes       = 5
	fingerprintLabel = "codeindex/path-obfuscation/v1"
	mappingPerm      = 0o600
)

var (
	// ErrNoKey is returned when obfuscation is requested without a key
	ErrNoKey = errors.New("obfuscation key is empty")
	// ErrKeyMismatch is returned when a mapping file was written under another key
	ErrKeyMismatch = errors.New("mapping file was written with a different key")
	// ErrCollision is returned when two different segments produce the same token
	ErrCollision = errors.New("obfuscation token collision")
	// ErrUnknownPath is returned by Deobfuscate for paths with no mapping
	ErrUnknownPath = errors.New("no mapping for obfuscated path")
	// ErrCorrupt is returned when the mapping file cannot be decoded
	ErrCorrupt = errors.New("mapping file is corrupt")
)

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Transform obfuscates path under key. It is pure: the same key and path
// always give the same result.
func Transform(key []byte, p string) string {
	tokens, _ := transform(key, p)
	return strings.Join(tokens, "/")
}

// transform returns the obfuscated segments of p and the original segments
// they were derived from
func transform(key []byte, p string) (tokens, segments []string) {
	segments = strings.Split(p, "/")
	tokens = make([]string, len(segments))
	for i, seg := range segments {
		tokens[i] = segmentToken(key, seg)
		if i == len(segments)-1 {
			tokens[i] += extension(seg)
		}
	}
	return tokens, segments
}

func segmentToken(key []byte, segment string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(segment))
	sum := mac.Sum(nil)
	return strings.ToLower(tokenEncoding.EncodeToString(sum[:tokenBytes]))
}

// extension returns the final extension of a file name. Dotfiles such as
// ".env" have none.
func extension(name string) string {
	ext := path.Ext(name)
	if ext == name {
		return ""
	}
	return ext
}

// Fingerprint identifies a key without revealing it
func Fingerprint(key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(fingerprintLabel))
	return hex.EncodeToString(mac.Sum(nil))
}

// mappingFile is the persisted form of the mapping
type mappingFile struct {
	Version        int               `json:"version"`
	KeyFingerprint string            `json:"keyFingerprint"`
	Paths          map[string]string `json:"paths"` // obfuscated -> original
}

// Option configures an Obfuscator
type Option func(*Obfuscator)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *Obfuscator) { o.logger = l }
}

// Obfuscator applies Transform and remembers every mapping it hands out.
// New mappings are staged until Commit persists them or Discard drops them,
// so a failed index build never leaves a half-written mapping behind.
type Obfuscator struct {
	mu     sync.Mutex
	key    []byte
	file   string
	logger zerolog.Logger

	forward  map[string]string // original -> obfuscated, committed
	reverse  map[string]string // obfuscated -> original, committed
	segments map[string]string // token -> segment, committed and staged

	pending         map[string]string // original -> obfuscated, staged
	pendingSegments map[string]string // tokens first seen in staged paths
}

// Open loads the mapping at file, creating an empty mapping if it does not
// exist. An empty file name keeps the mapping in memory only.
func Open(key []byte, file string, opts ...Option) (*Obfuscator, error) {
	if len(key) == 0 {
		return nil, ErrNoKey
	}

	o := &Obfuscator{
		key:             append([]byte(nil), key...),
		file:            file,
		logger:          zerolog.Nop(),
		forward:         make(map[string]string),
		reverse:         make(map[string]string),
		segments:        make(map[string]string),
		pending:         make(map[string]string),
		pendingSegments: make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	if file == "" {
		return o, nil
	}
	if err := o.load(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Obfuscator) load() error {
	data, err := os.ReadFile(o.file)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read mapping: %w", err)
	}

	var m mappingFile
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.Version != MappingVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, m.Version)
	}
	if !hmac.Equal([]byte(m.KeyFingerprint), []byte(Fingerprint(o.key))) {
		return ErrKeyMismatch
	}

	for obf, orig := range m.Paths {
		if Transform(o.key, orig) != obf {
			return fmt.Errorf("%w: entry for %q does not match key", ErrCorrupt, obf)
		}
		o.forward[orig] = obf
		o.reverse[obf] = orig
		o.indexSegments(orig)
	}
	o.logger.Debug().Int("paths", len(m.Paths)).Str("file", o.file).Msg("loaded path mapping")
	return nil
}

// extensionOf returns the extension appended to token i, if any
func extensionOf(i int, segs []string) string {
	if i == len(segs)-1 {
		return extension(segs[i])
	}
	return ""
}

// Obfuscate returns the obfuscated form of p, staging a new mapping if p
// has not been seen before.
func (o *Obfuscator) Obfuscate(p string) (string, error) {
	if p == "" {
		return "", types.ErrEmptyPath
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if obf, ok := o.forward[p]; ok {
		return obf, nil
	}
	if obf, ok := o.pending[p]; ok {
		return obf, nil
	}

	tokens, segs := transform(o.key, p)
	fresh := make(map[string]string)
	for i, tok := range tokens {
		tok = strings.TrimSuffix(tok, extensionOf(i, segs))
		seen, ok := o.segments[tok]
		if !ok {
			seen, ok = fresh[tok]
		}
		if ok && seen != segs[i] {
			return "", fmt.Errorf("%w: %q and %q", ErrCollision, seen, segs[i])
		}
		fresh[tok] = segs[i]
	}

	for tok, seg := range fresh {
		if _, ok := o.segments[tok]; !ok {
			o.segments[tok] = seg
			o.pendingSegments[tok] = seg
		}
	}
	obf := strings.Join(tokens, "/")
	o.pending[p] = obf
	return obf, nil
}

// Deobfuscate returns the original path for a committed obfuscated path
func (o *Obfuscator) Deobfuscate(obf string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if orig, ok := o.reverse[obf]; ok {
		return orig, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPath, obf)
}

// Pending returns the number of staged mappings
func (o *Obfuscator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Len returns the number of committed mappings
func (o *Obfuscator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.forward)
}

// Commit persists staged mappings atomically. If the write fails nothing
// is committed and the staged mappings remain for a retry or Discard.
func (o *Obfuscator) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.pending) == 0 {
		return nil
	}

	reverse := make(map[string]string, len(o.reverse)+len(o.pending))
	for obf, orig := range o.reverse {
		reverse[obf] = orig
	}
	for orig, obf := range o.pending {
		reverse[obf] = orig
	}
	if err := o.write(reverse); err != nil {
		return err
	}

	for orig, obf := range o.pending {
		o.forward[orig] = obf
	}
	o.reverse = reverse
	o.logger.Debug().Int("added", len(o.pending)).Int("total", len(o.forward)).Msg("committed path mapping")
	o.pending = make(map[string]string)
	o.pendingSegments = make(map[string]string)
	return nil
}

// Discard drops staged mappings
func (o *Obfuscator) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for tok := range o.pendingSegments {
		delete(o.segments, tok)
	}
	o.pending = make(map[string]string)
	o.pendingSegments = make(map[string]string)
}

// Compact removes committed mappings whose original path is not in keep and
// persists the result. It is the only operation that shrinks the mapping.
// Staged mappings are unaffected.
func (o *Obfuscator) Compact(keep []string) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	keepSet := make(map[string]bool, len(keep))
	for _, p := range keep {
		keepSet[p] = true
	}

	reverse := make(map[string]string)
	for obf, orig := range o.reverse {
		if keepSet[orig] {
			reverse[obf] = orig
		}
	}
	removed := len(o.reverse) - len(reverse)
	if removed == 0 {
		return 0, nil
	}
	if err := o.write(reverse); err != nil {
		return 0, err
	}

	o.reverse = reverse
	o.forward = make(map[string]string, len(reverse))
	o.segments = make(map[string]string)
	for obf, orig := range reverse {
		o.forward[orig] = obf
		o.indexSegments(orig)
	}
	for orig := range o.pending {
		o.indexSegments(orig)
	}
	return removed, nil
}

func (o *Obfuscator) indexSegments(orig string) {
	tokens, segs := transform(o.key, orig)
	for i, tok := range tokens {
		o.segments[strings.TrimSuffix(tok, extensionOf(i, segs))] = segs[i]
	}
}

// Originals returns the committed original paths in sorted order
func (o *Obfuscator) Originals() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]string, 0, len(o.forward))
	for orig := range o.forward {
		out = append(out, orig)
	}
	sort.Strings(out)
	return out
}

func (o *Obfuscator) write(reverse map[string]string) error {
	if o.file == "" {
		return nil
	}
	m := mappingFile{
		Version:        MappingVersion,
		KeyFingerprint: Fingerprint(o.key),
		Paths:          reverse,
	}
	if err := fsutil.WriteJSONAtomic(o.file, mappingPerm, m); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	return nil
}
