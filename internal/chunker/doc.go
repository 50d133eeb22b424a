// Package chunker splits source files into token-bounded chunks that follow
// the code's structure.
//
// # Basic Usage
//
//	c, err := chunker.New(parser.DefaultRegistry(), chunker.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	chunks, err := c.Chunk(ctx, content, "pkg/server.go")
//
// # Chunking Strategy
//
// The file is parsed into a structure tree. If the whole file fits in
// MaxTokens it becomes one chunk. Otherwise the chunker descends into
// children in source order; every child also takes the whitespace and
// comments before it, so the resulting chunks tile the file byte for byte.
// A leaf that is still too large is cut at line boundaries, and a single
// line at rune boundaries; such chunks are typed "<kind>:forced".
//
// Chunks below MinTokens are then merged into a neighbour, forward first,
// as long as the result stays within MaxTokens and both sides share the
// same enclosing container.
//
// Files with no registered grammar, or that fail to parse, are split on
// line boundaries only and typed "text".
//
// # Metadata
//
// Each chunk reports the symbols it defines (dotted through enclosing
// definitions, e.g. "Greeter.greet"), the import statements it contains,
// a cyclomatic complexity of one plus its decision points, and the name of
// its enclosing class or namespace.
package chunker
