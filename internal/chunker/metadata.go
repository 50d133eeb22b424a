package chunker

import (
	"sort"
	"strings"

	"github.com/dshills/codeindex/internal/parser"
	"github.com/dshills/codeindex/pkg/types"
)

// metadata derives per-chunk structure facts from the parse tree. A node
// is attributed to the chunk containing its start byte.
type metadata struct {
	tree    *parser.Tree
	grammar parser.Grammar
	byStart []parser.NodeID
}

func newMetadata(tree *parser.Tree, g parser.Grammar) *metadata {
	ids := make([]parser.NodeID, len(tree.Nodes))
	for i := range ids {
		ids[i] = parser.NodeID(i)
	}
	// BFS ids already put outer nodes before inner ones at equal offsets
	sort.SliceStable(ids, func(i, j int) bool {
		return tree.Nodes[ids[i]].Start < tree.Nodes[ids[j]].Start
	})
	return &metadata{tree: tree, grammar: g, byStart: ids}
}

func (m *metadata) chunks(pieces []Piece, path string) []types.Chunk {
	decisions := m.grammar.DecisionPointKinds()
	definitions := m.grammar.DefinitionKinds()
	imports := m.grammar.ImportKinds()

	out := make([]types.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunk := newChunk(m.tree.Source, path, m.grammar.Language(), p)

		first := sort.Search(len(m.byStart), func(i int) bool {
			return m.tree.Nodes[m.byStart[i]].Start >= p.Start
		})
		for _, id := range m.byStart[first:] {
			n := m.tree.Node(id)
			if n.Start >= p.End {
				break
			}
			switch {
			case decisions.Has(n.Kind):
				chunk.ComplexityScore++
			case definitions.Has(n.Kind) && n.Name != "":
				chunk.SymbolsDefined = append(chunk.SymbolsDefined, m.qualifiedName(id))
			case imports.Has(n.Kind):
				chunk.ImportsUsed = append(chunk.ImportsUsed, strings.TrimSpace(m.tree.Text(id)))
			}
		}
		out = append(out, chunk)
	}
	return out
}

// qualifiedName joins the names of enclosing definitions and containers
// with dots, outermost first
func (m *metadata) qualifiedName(id parser.NodeID) string {
	parts := []string{m.tree.Node(id).Name}
	m.tree.Ancestors(id, func(a parser.NodeID) bool {
		n := m.tree.Node(a)
		if n.Name != "" && (m.grammar.DefinitionKinds().Has(n.Kind) || m.grammar.ContainerKinds().Has(n.Kind)) {
			parts = append(parts, n.Name)
		}
		return true
	})
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}
