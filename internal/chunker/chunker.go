package chunker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dshills/codeindex/internal/parser"
	"github.com/dshills/codeindex/pkg/types"
)

const (
	// DefaultMaxTokens is the default upper bound on tokens per chunk
	DefaultMaxTokens = 800

	// DefaultMinTokens is the default size below which chunks are merged
	DefaultMinTokens = 100

	// TextChunkType is the type of chunks produced by the line-based split
	TextChunkType = "text"

	forcedSuffix = ":forced"
)

var (
	// ErrInvalidConfig is returned by New for unusable token bounds
	ErrInvalidConfig = errors.New("invalid chunker config")
	// ErrBinary is returned for content that contains NUL bytes
	ErrBinary = errors.New("binary content")
)

// ForcedSplitType marks a chunk cut at line or rune boundaries because the
// structure node of kind had no smaller children to split on
func ForcedSplitType(kind string) string {
	return kind + forcedSuffix
}

// Config bounds chunk sizes in tokens
type Config struct {
	MaxTokens int
	MinTokens int
}

// DefaultConfig returns the default token bounds
func DefaultConfig() Config {
	return Config{MaxTokens: DefaultMaxTokens, MinTokens: DefaultMinTokens}
}

// Validate checks that 0 <= MinTokens <= MaxTokens and MaxTokens > 0
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	if c.MinTokens < 0 || c.MinTokens > c.MaxTokens {
		return fmt.Errorf("%w: min tokens %d not in [0, %d]", ErrInvalidConfig, c.MinTokens, c.MaxTokens)
	}
	return nil
}

// Option configures a Chunker
type Option func(*Chunker)

// WithTokenizer replaces the default WordPieceTokenizer
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) { c.tokenizer = t }
}

// WithLogger sets the logger used for fallback diagnostics
func WithLogger(l zerolog.Logger) Option {
	return func(c *Chunker) { c.logger = l }
}

// Chunker splits source files into token-bounded chunks along their
// structure. It holds no per-call state and is safe for concurrent use.
type Chunker struct {
	registry  *parser.Registry
	cfg       Config
	tokenizer Tokenizer
	logger    zerolog.Logger
}

// New creates a Chunker that looks grammars up in registry
func New(registry *parser.Registry, cfg Config, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = parser.NewRegistry()
	}
	c := &Chunker{
		registry:  registry,
		cfg:       cfg,
		tokenizer: WordPieceTokenizer{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the chunker's token bounds
func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk splits content into chunks that tile [0, len(content)) exactly.
// Files without a registered grammar, or that fail to parse, take the
// line-based split. Empty content yields no chunks; binary content yields
// ErrBinary.
func (c *Chunker) Chunk(ctx context.Context, content []byte, path string) ([]types.Chunk, error) {
	if len(content) == 0 {
		return nil, nil
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrBinary)
	}

	count := func(start, end int) int { return c.tokenizer.Count(content[start:end]) }

	g, err := c.registry.Lookup(path)
	if err != nil {
		return c.chunkText(content, path, count), nil
	}

	tree, err := g.Parse(ctx, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Debug().Err(err).Str("path", path).Msg("parse failed, using line split")
		return c.chunkText(content, path, count), nil
	}

	s := &splitter{tree: tree, grammar: g, count: count, limit: c.cfg.MaxTokens}
	pieces := s.node(tree.Root(), 0, len(content), "")
	pieces = Merge(pieces, c.cfg.MinTokens, c.cfg.MaxTokens, count)

	return newMetadata(tree, g).chunks(pieces, path), nil
}

// chunkText splits content at line boundaries only
func (c *Chunker) chunkText(content []byte, path string, count CountFunc) []types.Chunk {
	var pieces []Piece
	for _, r := range splitLines(content, 0, len(content), c.cfg.MaxTokens, count) {
		pieces = append(pieces, Piece{Start: r[0], End: r[1], Tokens: count(r[0], r[1]), Type: TextChunkType})
	}
	pieces = Merge(pieces, c.cfg.MinTokens, c.cfg.MaxTokens, count)

	lang := types.DetectLanguage(path)
	chunks := make([]types.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, newChunk(content, path, lang, p))
	}
	return chunks
}

func newChunk(content []byte, path string, lang types.Language, p Piece) types.Chunk {
	chunk := types.Chunk{
		SourcePath:      path,
		StartOffset:     p.Start,
		EndOffset:       p.End,
		Content:         string(content[p.Start:p.End]),
		TokenCount:      p.Tokens,
		Language:        lang,
		ChunkType:       p.Type,
		Name:            p.Name,
		ComplexityScore: 1,
		ParentContext:   p.Context,
	}
	chunk.ComputeContentHash()
	return chunk
}

// splitter performs the recursive structural split of one tree
type splitter struct {
	tree    *parser.Tree
	grammar parser.Grammar
	count   CountFunc
	limit   int
}

// node splits the extended span [start, end) of id. The extended span
// covers the node plus the gap before it, and for a last child the gap
// after it, so the pieces of all children tile the parent's span.
func (s *splitter) node(id parser.NodeID, start, end int, scope string) []Piece {
	n := s.tree.Node(id)
	if tokens := s.count(start, end); tokens <= s.limit {
		return []Piece{{Start: start, End: end, Tokens: tokens, Type: n.Kind, Name: n.Name, Context: scope}}
	}

	children := s.tree.Children(id)
	if len(children) == 0 {
		return s.forced(start, end, n.Kind, scope)
	}

	childScope := scope
	if n.Name != "" && s.grammar.ContainerKinds().Has(n.Kind) {
		childScope = n.Name
	}

	var pieces []Piece
	cursor := start
	for i, c := range children {
		childEnd := s.tree.Node(c).End
		if i == len(children)-1 {
			childEnd = end
		}
		pieces = append(pieces, s.node(c, cursor, childEnd, childScope)...)
		cursor = childEnd
	}
	return pieces
}

// forced splits an oversized leaf at line boundaries, cutting single lines
// at rune boundaries when they alone exceed the budget
func (s *splitter) forced(start, end int, kind, scope string) []Piece {
	typ := ForcedSplitType(kind)
	var pieces []Piece
	for _, r := range splitLines(s.tree.Source, start, end, s.limit, s.count) {
		if tokens := s.count(r[0], r[1]); tokens <= s.limit {
			pieces = append(pieces, Piece{Start: r[0], End: r[1], Tokens: tokens, Type: typ, Context: scope})
			continue
		}
		for _, cut := range splitRunes(s.tree.Source, r[0], r[1], s.limit, s.count) {
			pieces = append(pieces, Piece{Start: cut[0], End: cut[1], Tokens: s.count(cut[0], cut[1]), Type: typ, Context: scope})
		}
	}
	return pieces
}

// splitLines greedily packs whole lines of src[start:end] into ranges of at
// most limit tokens. A line that alone exceeds limit becomes its own range.
func splitLines(src []byte, start, end, limit int, count CountFunc) [][2]int {
	var out [][2]int
	cur := start
	lineStart := start
	for lineStart < end {
		lineEnd := end
		if nl := bytes.IndexByte(src[lineStart:end], '\n'); nl >= 0 {
			lineEnd = lineStart + nl + 1
		}
		if lineStart > cur && count(cur, lineEnd) > limit {
			out = append(out, [2]int{cur, lineStart})
			cur = lineStart
		}
		lineStart = lineEnd
	}
	if cur < end {
		out = append(out, [2]int{cur, end})
	}
	return out
}

// splitRunes cuts src[start:end] into the longest rune-aligned prefixes of
// at most limit tokens. Each range holds at least one rune.
func splitRunes(src []byte, start, end, limit int, count CountFunc) [][2]int {
	var out [][2]int
	for start < end {
		lo, hi := start, end
		for lo < hi {
			mid := lo + (hi-lo+1)/2
			if count(start, mid) <= limit {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		cut := lo
		for cut > start && cut < end && !utf8.RuneStart(src[cut]) {
			cut--
		}
		if cut == start {
			_, size := utf8.DecodeRune(src[start:end])
			cut = start + size
		}
		out = append(out, [2]int{start, cut})
		start = cut
	}
	return out
}
