// Package parser turns source files into structure trees for the chunker.
//
// A Tree is an arena of nodes laid out breadth-first, so the children of
// any node are contiguous and ordered by start offset. Sibling spans never
// overlap and the root always spans the whole source. Gaps between siblings
// (whitespace, comments, punctuation) belong to no node; the chunker assigns
// them to neighbouring pieces.
//
// Grammars are looked up by file extension through a Registry:
//
//	reg := parser.DefaultRegistry()
//	g, err := reg.Lookup("service/handler.py")
//	if errors.Is(err, parser.ErrNoGrammar) {
//	    // line-based fallback
//	}
//	tree, err := g.Parse(ctx, src)
//
// Go is parsed with go/parser and is always available. Python, JavaScript,
// TypeScript, Java and C# use tree-sitter and are only compiled into cgo
// builds.
package parser
