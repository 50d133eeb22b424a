package hasher

import (
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	content := []byte("package main\n")
	assert.Equal(t, [32]byte(sha256.Sum256(content)), [32]byte(Sum(content)))
	assert.Equal(t, Sum(content), Sum([]byte("package main\n")), "hash must be deterministic")
	assert.NotEqual(t, Sum(content), Sum([]byte("package other\n")))
}

func TestSumReader(t *testing.T) {
	content := strings.Repeat("hello world\n", 1000)

	d, n, err := SumReader(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, Sum([]byte(content)), d)
}

func TestCombine(t *testing.T) {
	a := Child{Name: "a.py", Hash: Sum([]byte("a"))}
	b := Child{Name: "b.py", Hash: Sum([]byte("b"))}
	c := Child{Name: "lib", Hash: Sum([]byte("c"))}

	t.Run("order independent", func(t *testing.T) {
		assert.Equal(t, Combine([]Child{a, b, c}), Combine([]Child{c, a, b}))
	})

	t.Run("does not reorder input", func(t *testing.T) {
		in := []Child{c, a, b}
		Combine(in)
		assert.Equal(t, "lib", in[0].Name)
	})

	t.Run("names participate", func(t *testing.T) {
		renamed := Child{Name: "z.py", Hash: a.Hash}
		assert.NotEqual(t, Combine([]Child{a, b}), Combine([]Child{renamed, b}))
	})

	t.Run("child hash participates", func(t *testing.T) {
		edited := Child{Name: "a.py", Hash: Sum([]byte("a2"))}
		assert.NotEqual(t, Combine([]Child{a, b}), Combine([]Child{edited, b}))
	})

	t.Run("empty directory", func(t *testing.T) {
		assert.Equal(t, Combine(nil), Combine([]Child{}))
	})
}
