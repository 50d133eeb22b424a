package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/dshills/codeindex/internal/chunker"
	"github.com/dshills/codeindex/internal/merkle"
	"github.com/dshills/codeindex/internal/parser"
	"github.com/dshills/codeindex/internal/snapshot"
	"github.com/dshills/codeindex/pkg/types"
)

// discardSink accepts everything
type discardSink struct{}

func (discardSink) Reset(context.Context, string) error               { return nil }
func (discardSink) Remove(context.Context, string, []string) error    { return nil }
func (discardSink) Emit(context.Context, string, []types.Chunk) error { return nil }

// syntheticProject returns n Go files spread over ten packages
func syntheticProject(n int, variant string) *merkle.MemSource {
	src := merkle.NewMemSource("/bench")
	for i := 0; i < n; i++ {
		body := fmt.Sprintf(`package pkg%d

import "fmt"

type Service%d struct{ name string }

func (s *Service%d) Run(items []int) int {
	total := 0
	for _, it := range items {
		if it > 0 && it%%2 == 0 {
			total += it
		}
	}
	fmt.Println(s.name, %q)
	return total
}
`, i%10, i, i, variant)
		src.Add(fmt.Sprintf("pkg%d/file%d.go", i%10, i), []byte(body))
	}
	return src
}

func newBenchIndexer(b *testing.B, workers int) *Indexer {
	b.Helper()
	c, err := chunker.New(parser.DefaultRegistry(), chunker.DefaultConfig())
	if err != nil {
		b.Fatal(err)
	}
	idx, err := New(Config{Incremental: true, BatchSize: 100, Workers: workers},
		merkle.NewBuilder(), c, snapshot.NewStore(b.TempDir()), discardSink{})
	if err != nil {
		b.Fatal(err)
	}
	return idx
}

func BenchmarkFullIndex(b *testing.B) {
	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("%d_workers", workers), func(b *testing.B) {
			idx := newBenchIndexer(b, workers)
			src := syntheticProject(200, "v1")
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := idx.Index(ctx, src, IndexOptions{Collection: "bench", ForceFull: true}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkNoChangeIndex(b *testing.B) {
	idx := newBenchIndexer(b, 4)
	src := syntheticProject(200, "v1")
	ctx := context.Background()
	if _, err := idx.Index(ctx, src, IndexOptions{Collection: "bench"}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := idx.Index(ctx, src, IndexOptions{Collection: "bench"})
		if err != nil {
			b.Fatal(err)
		}
		if !res.NoChanges {
			b.Fatal("expected no changes")
		}
	}
}

func BenchmarkIncrementalIndex(b *testing.B) {
	idx := newBenchIndexer(b, 4)
	ctx := context.Background()
	sources := []*merkle.MemSource{syntheticProject(200, "v1"), syntheticProject(200, "v2")}
	if _, err := idx.Index(ctx, sources[0], IndexOptions{Collection: "bench"}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Index(ctx, sources[(i+1)%2], IndexOptions{Collection: "bench"}); err != nil {
			b.Fatal(err)
		}
	}
}
