//go:build cgo

package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/pkg/types"
)

const greeterPy = `import os


class Greeter:
    def greet(self, name):
        if name and os.environ.get("LOUD"):
            return name.upper()
        return name

    def wave(self):
        return "wave"
`

func TestPythonMetadata(t *testing.T) {
	content := []byte(greeterPy)
	c := newTestChunker(t, 800, 100)

	chunks, err := c.Chunk(context.Background(), content, "app/greeter.py")
	require.NoError(t, err)
	requireTiling(t, content, chunks)
	require.Len(t, chunks, 1)

	chunk := chunks[0]
	assert.Equal(t, types.LanguagePython, chunk.Language)
	assert.Equal(t, "module", chunk.ChunkType)
	assert.Equal(t, []string{"Greeter", "Greeter.greet", "Greeter.wave"}, chunk.SymbolsDefined)
	assert.Equal(t, []string{"import os"}, chunk.ImportsUsed)
	assert.Equal(t, 3, chunk.ComplexityScore, "if, and")
}

func TestPythonParentContext(t *testing.T) {
	content := []byte(greeterPy)
	c := newTestChunker(t, 20, 0)

	chunks, err := c.Chunk(context.Background(), content, "app/greeter.py")
	require.NoError(t, err)
	requireTiling(t, content, chunks)

	var wave *types.Chunk
	for i := range chunks {
		if strings.Contains(chunks[i].Content, "def wave") {
			wave = &chunks[i]
		}
	}
	require.NotNil(t, wave)
	assert.Equal(t, "Greeter", wave.ParentContext)
	assert.Equal(t, []string{"Greeter.wave"}, wave.SymbolsDefined)
	assert.Equal(t, "function_definition", wave.ChunkType)
	assert.Equal(t, "wave", wave.Name)
}

func TestPythonTopLevelFunction(t *testing.T) {
	content := []byte("def helper():\n    return 1\n")
	c := newTestChunker(t, 800, 100)

	var chunks []types.Chunk
	require.NotPanics(t, func() {
		var err error
		chunks, err = c.Chunk(context.Background(), content, "utils.py")
		require.NoError(t, err)
	})
	requireTiling(t, content, chunks)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"helper"}, chunks[0].SymbolsDefined)
}
