package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/parser"
	"github.com/dshills/codeindex/pkg/types"
)

const greeterGo = `package demo

import (
	"fmt"
	"strings"
)

type Greeter struct{ name string }

func (g *Greeter) Greet(loud bool) string {
	if loud && g.name != "" {
		return strings.ToUpper(g.name)
	}
	for i := 0; i < 2; i++ {
		fmt.Println(i)
	}
	return g.name
}
`

func newTestChunker(t *testing.T, max, min int) *Chunker {
	t.Helper()
	c, err := New(parser.DefaultRegistry(), Config{MaxTokens: max, MinTokens: min})
	require.NoError(t, err)
	return c
}

// requireTiling checks chunks cover content exactly, in order, without gaps
func requireTiling(t *testing.T, content []byte, chunks []types.Chunk) {
	t.Helper()
	require.NotEmpty(t, chunks)

	var b strings.Builder
	pos := 0
	for _, c := range chunks {
		require.Equal(t, pos, c.StartOffset, "chunks are contiguous")
		require.NoError(t, c.Validate())
		b.WriteString(c.Content)
		pos = c.EndOffset
	}
	require.Equal(t, len(content), pos)
	require.Equal(t, string(content), b.String())
}

func bigFunction(lines int) string {
	var b strings.Builder
	b.WriteString("package demo\n\nfunc big() {\n")
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "\tvalue%04d := compute(%d, 2)\n", i, i)
	}
	b.WriteString("}\n")
	return b.String()
}

func TestNewValidatesConfig(t *testing.T) {
	for _, cfg := range []Config{
		{MaxTokens: 0, MinTokens: 0},
		{MaxTokens: 10, MinTokens: 11},
		{MaxTokens: 10, MinTokens: -1},
	} {
		_, err := New(nil, cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}

	c, err := New(nil, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c.Config())
}

func TestSmallFileIsOneChunk(t *testing.T) {
	c := newTestChunker(t, 800, 100)
	content := []byte(greeterGo)

	chunks, err := c.Chunk(context.Background(), content, "demo/greeter.go")
	require.NoError(t, err)
	requireTiling(t, content, chunks)
	require.Len(t, chunks, 1)

	chunk := chunks[0]
	assert.Equal(t, "demo/greeter.go", chunk.SourcePath)
	assert.Equal(t, types.LanguageGo, chunk.Language)
	assert.Equal(t, "source_file", chunk.ChunkType)
	assert.Equal(t, []string{"Greeter", "Greeter.Greet"}, chunk.SymbolsDefined)
	assert.Equal(t, []string{"import (\n\t\"fmt\"\n\t\"strings\"\n)"}, chunk.ImportsUsed)
	assert.Equal(t, 4, chunk.ComplexityScore, "if, &&, for")
	assert.Empty(t, chunk.ParentContext)
	assert.Equal(t, WordPieceTokenizer{}.Count(content), chunk.TokenCount)
}

func TestLargeFunctionIsSplit(t *testing.T) {
	content := []byte(bigFunction(200))
	require.GreaterOrEqual(t, WordPieceTokenizer{}.Count(content), 2000)

	c := newTestChunker(t, 800, 100)
	chunks, err := c.Chunk(context.Background(), content, "big.go")
	require.NoError(t, err)
	requireTiling(t, content, chunks)

	assert.GreaterOrEqual(t, len(chunks), 2)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 800)
		assert.NotEqual(t, TextChunkType, chunk.ChunkType)
	}
	assert.Contains(t, chunks[0].Content, "func big() {")
	assert.Equal(t, []string{"big"}, chunks[0].SymbolsDefined)
}

func TestTilingAcrossBounds(t *testing.T) {
	sources := map[string]string{
		"greeter.go": greeterGo,
		"big.go":     bigFunction(60),
		"notes.txt":  strings.Repeat("some prose that wraps\nand keeps going for a while\n\n", 20),
		"README.md":  "# Title\n\nNo trailing newline",
	}
	bounds := []Config{
		{MaxTokens: 800, MinTokens: 100},
		{MaxTokens: 50, MinTokens: 10},
		{MaxTokens: 10, MinTokens: 5},
		{MaxTokens: 1, MinTokens: 0},
	}

	for path, src := range sources {
		for _, cfg := range bounds {
			t.Run(fmt.Sprintf("%s/%d-%d", path, cfg.MaxTokens, cfg.MinTokens), func(t *testing.T) {
				c := newTestChunker(t, cfg.MaxTokens, cfg.MinTokens)
				content := []byte(src)
				chunks, err := c.Chunk(context.Background(), content, path)
				require.NoError(t, err)
				requireTiling(t, content, chunks)

				if strings.HasSuffix(path, ".go") {
					for _, chunk := range chunks {
						assert.LessOrEqual(t, chunk.TokenCount, cfg.MaxTokens)
					}
				}
			})
		}
	}
}

func TestForcedSplitIsMarked(t *testing.T) {
	content := []byte("package demo\n\nvar s = \"" + strings.Repeat("a", 4000) + "\"\n")
	c := newTestChunker(t, 100, 10)

	chunks, err := c.Chunk(context.Background(), content, "long.go")
	require.NoError(t, err)
	requireTiling(t, content, chunks)

	forced := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 100)
		if strings.HasSuffix(chunk.ChunkType, ForcedSplitType("")) {
			forced++
		}
	}
	assert.Greater(t, forced, 1)
}

func TestSymbolsAttributedOnce(t *testing.T) {
	content := []byte(greeterGo)
	c := newTestChunker(t, 20, 5)

	chunks, err := c.Chunk(context.Background(), content, "greeter.go")
	require.NoError(t, err)
	requireTiling(t, content, chunks)
	require.Greater(t, len(chunks), 1)

	seen := map[string]int{}
	complexity := 0
	for _, chunk := range chunks {
		for _, s := range chunk.SymbolsDefined {
			seen[s]++
		}
		complexity += chunk.ComplexityScore - 1
	}
	assert.Equal(t, map[string]int{"Greeter": 1, "Greeter.Greet": 1}, seen)
	assert.Equal(t, 3, complexity, "decision points are counted once across chunks")
}

func TestFallbackNeverSplitsLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "line %d with some words here\n", i)
	}
	content := []byte(b.String())

	c := newTestChunker(t, 20, 0)
	chunks, err := c.Chunk(context.Background(), content, "notes.txt")
	require.NoError(t, err)
	requireTiling(t, content, chunks)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks {
		assert.Equal(t, TextChunkType, chunk.ChunkType)
		assert.Equal(t, types.LanguageText, chunk.Language)
		assert.True(t, strings.HasSuffix(chunk.Content, "\n"), "chunk ends at a line boundary")
		assert.LessOrEqual(t, chunk.TokenCount, 20)
		assert.Equal(t, 1, chunk.ComplexityScore)
		assert.Empty(t, chunk.SymbolsDefined)
	}
}

func TestFallbackKeepsLongLineWhole(t *testing.T) {
	long := strings.Repeat("word ", 100)
	content := []byte("short\n" + long + "\nshort\n")

	c := newTestChunker(t, 20, 0)
	chunks, err := c.Chunk(context.Background(), content, "notes.txt")
	require.NoError(t, err)
	requireTiling(t, content, chunks)

	require.Len(t, chunks, 3)
	assert.Equal(t, long+"\n", chunks[1].Content)
	assert.Greater(t, chunks[1].TokenCount, 20)
}

func TestParseErrorFallsBack(t *testing.T) {
	content := []byte("package demo\n\nfunc {\n")
	c := newTestChunker(t, 800, 100)

	chunks, err := c.Chunk(context.Background(), content, "broken.go")
	require.NoError(t, err)
	requireTiling(t, content, chunks)
	for _, chunk := range chunks {
		assert.Equal(t, TextChunkType, chunk.ChunkType)
		assert.Equal(t, types.LanguageGo, chunk.Language)
	}
}

func TestEmptyAndBinaryContent(t *testing.T) {
	c := newTestChunker(t, 800, 100)

	chunks, err := c.Chunk(context.Background(), nil, "empty.go")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, err = c.Chunk(context.Background(), []byte("GIF89a\x00\x01"), "image.gif")
	assert.ErrorIs(t, err, ErrBinary)
}

func TestChunkingIsDeterministic(t *testing.T) {
	content := []byte(bigFunction(80))
	c := newTestChunker(t, 100, 20)

	first, err := c.Chunk(context.Background(), content, "big.go")
	require.NoError(t, err)
	second, err := c.Chunk(context.Background(), content, "big.go")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
