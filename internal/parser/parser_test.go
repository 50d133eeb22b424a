package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/pkg/types"
)

const goSource = `package demo

import "fmt"

// Server serves things.
type Server struct{}

func (s *Server) Start() error {
	if s == nil && true {
		return fmt.Errorf("nil")
	}
	for i := 0; i < 3; i++ {
	}
	return nil
}

func helper() {}
`

// checkArena verifies the layout guarantees every grammar must uphold
func checkArena(t *testing.T, tree *Tree) {
	t.Helper()
	root := tree.Node(tree.Root())
	assert.Equal(t, 0, root.Start)
	assert.Equal(t, len(tree.Source), root.End)
	assert.Equal(t, NoNode, root.Parent)

	for id := range tree.Nodes {
		n := tree.Nodes[id]
		cursor := n.Start
		for _, c := range tree.Children(NodeID(id)) {
			child := tree.Node(c)
			assert.Equal(t, NodeID(id), child.Parent)
			assert.GreaterOrEqual(t, child.Start, cursor, "children are ordered and disjoint")
			assert.Less(t, child.Start, child.End, "children are non-empty")
			assert.LessOrEqual(t, child.End, n.End, "children stay inside the parent")
			cursor = child.End
		}
	}
}

func findKind(tree *Tree, kind string) []NodeID {
	var out []NodeID
	for id := range tree.Nodes {
		if tree.Nodes[id].Kind == kind {
			out = append(out, NodeID(id))
		}
	}
	return out
}

func TestGoGrammarParse(t *testing.T) {
	g := NewGoGrammar()
	tree, err := g.Parse(context.Background(), []byte(goSource))
	require.NoError(t, err)
	checkArena(t, tree)

	assert.Equal(t, "source_file", tree.Node(tree.Root()).Kind)

	methods := findKind(tree, "method_declaration")
	require.Len(t, methods, 1)
	assert.Equal(t, "Server.Start", tree.Node(methods[0]).Name)
	assert.Contains(t, tree.Text(methods[0]), "func (s *Server) Start() error {")

	funcs := findKind(tree, "function_declaration")
	require.Len(t, funcs, 1)
	assert.Equal(t, "helper", tree.Node(funcs[0]).Name)

	specs := findKind(tree, "type_spec")
	require.Len(t, specs, 1)
	assert.Equal(t, "Server", tree.Node(specs[0]).Name)

	imports := findKind(tree, "import_declaration")
	require.Len(t, imports, 1)
	assert.Equal(t, `import "fmt"`, tree.Text(imports[0]))

	assert.Len(t, findKind(tree, "if_statement"), 1)
	assert.Len(t, findKind(tree, "for_statement"), 1)
	assert.Len(t, findKind(tree, "logical_expression"), 1)
}

func TestGoGrammarAncestors(t *testing.T) {
	tree, err := NewGoGrammar().Parse(context.Background(), []byte(goSource))
	require.NoError(t, err)

	ifs := findKind(tree, "if_statement")
	require.Len(t, ifs, 1)

	var kinds []string
	tree.Ancestors(ifs[0], func(id NodeID) bool {
		kinds = append(kinds, tree.Node(id).Kind)
		return true
	})
	assert.Equal(t, []string{"block", "method_declaration", "source_file"}, kinds)

	var first []string
	tree.Ancestors(ifs[0], func(id NodeID) bool {
		first = append(first, tree.Node(id).Kind)
		return false
	})
	assert.Equal(t, []string{"block"}, first)
}

func TestGoGrammarSyntaxError(t *testing.T) {
	_, err := NewGoGrammar().Parse(context.Background(), []byte("package demo\nfunc {"))
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestGoGrammarCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGoGrammar().Parse(ctx, []byte(goSource))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGoGrammarKindSets(t *testing.T) {
	g := NewGoGrammar()
	assert.True(t, g.DecisionPointKinds().Has("if_statement"))
	assert.True(t, g.DecisionPointKinds().Has("logical_expression"))
	assert.False(t, g.DecisionPointKinds().Has("default_case"))
	assert.True(t, g.DefinitionKinds().Has("method_declaration"))
	assert.True(t, g.ImportKinds().Has("import_declaration"))
	assert.Empty(t, g.ContainerKinds())
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()

	g, err := reg.Lookup("cmd/server/MAIN.GO")
	require.NoError(t, err)
	assert.Equal(t, types.LanguageGo, g.Language())

	_, err = reg.Lookup("README")
	assert.ErrorIs(t, err, ErrNoGrammar)

	_, err = reg.Lookup("notes.txt")
	assert.ErrorIs(t, err, ErrNoGrammar)

	assert.Contains(t, reg.Languages(), types.LanguageGo)
}

func TestRegistryLaterGrammarWins(t *testing.T) {
	first := NewGoGrammar()
	second := &stubGrammar{lang: types.LanguageText, exts: []string{".go"}}
	reg := NewRegistry(first, second)

	g, err := reg.Lookup("x.go")
	require.NoError(t, err)
	assert.Equal(t, types.LanguageText, g.Language())
}

func TestPackNormalizesChildren(t *testing.T) {
	src := []byte("0123456789")
	root := &protoNode{kind: "root", start: 3, end: 4, children: []*protoNode{
		{kind: "late", start: 6, end: 12},
		{kind: "early", start: 0, end: 4},
		{kind: "overlap", start: 2, end: 5},
		{kind: "swallowed", start: 1, end: 3},
		{kind: "empty", start: 8, end: 8},
	}}

	tree := pack(root, src)
	checkArena(t, tree)

	var got []string
	for _, c := range tree.Children(tree.Root()) {
		n := tree.Node(c)
		got = append(got, n.Kind)
	}
	assert.Equal(t, []string{"early", "overlap", "late"}, got)

	overlap := tree.Node(tree.Children(tree.Root())[1])
	assert.Equal(t, 4, overlap.Start)
	assert.Equal(t, 5, overlap.End)

	late := tree.Node(tree.Children(tree.Root())[2])
	assert.Equal(t, 10, late.End)
}

type stubGrammar struct {
	lang types.Language
	exts []string
}

func (s *stubGrammar) Language() types.Language { return s.lang }
func (s *stubGrammar) Extensions() []string     { return s.exts }
func (s *stubGrammar) Parse(context.Context, []byte) (*Tree, error) {
	return nil, ErrSyntax
}
func (s *stubGrammar) DecisionPointKinds() KindSet { return NewKindSet() }
func (s *stubGrammar) DefinitionKinds() KindSet    { return NewKindSet() }
func (s *stubGrammar) ContainerKinds() KindSet     { return NewKindSet() }
func (s *stubGrammar) ImportKinds() KindSet        { return NewKindSet() }
