package parser

import (
	"sort"
)

// NodeID addresses a node inside a Tree's arena
type NodeID int32

// NoNode is the parent of the root
const NoNode NodeID = -1

// Node is one structural node. Children are stored contiguously in the
// arena: Nodes[FirstChild : FirstChild+ChildCount].
type Node struct {
	Kind       string
	Name       string // declared name for definitions and containers
	Start      int    // byte offset, inclusive
	End        int    // byte offset, exclusive
	Parent     NodeID
	FirstChild NodeID
	ChildCount int32
}

// Tree is a parsed structure tree stored as an arena of nodes. The root is
// always Nodes[0].
type Tree struct {
	Nodes  []Node
	Source []byte
}

// Root returns the root node ID
func (t *Tree) Root() NodeID {
	return 0
}

// Node returns the node with the given ID
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Children returns the child IDs of id in source order
func (t *Tree) Children(id NodeID) []NodeID {
	n := t.Nodes[id]
	out := make([]NodeID, n.ChildCount)
	for i := range out {
		out[i] = n.FirstChild + NodeID(i)
	}
	return out
}

// Text returns the source text spanned by id
func (t *Tree) Text(id NodeID) string {
	n := t.Nodes[id]
	return string(t.Source[n.Start:n.End])
}

// Ancestors calls fn for each strict ancestor of id, nearest first, until fn returns false
func (t *Tree) Ancestors(id NodeID, fn func(NodeID) bool) {
	for p := t.Nodes[id].Parent; p != NoNode; p = t.Nodes[p].Parent {
		if !fn(p) {
			return
		}
	}
}

// protoNode is the pointer-based intermediate form grammars produce before
// the tree is packed into an arena.
type protoNode struct {
	kind     string
	name     string
	start    int
	end      int
	children []*protoNode
}

// pack lays out proto in breadth-first order so each node's children are
// contiguous. Children are sorted by start offset, clipped to their parent
// and stripped of overlaps so every level is an ordered, disjoint sequence.
func pack(root *protoNode, src []byte) *Tree {
	root.start = 0
	root.end = len(src)

	t := &Tree{Source: src, Nodes: []Node{{
		Kind:   root.kind,
		Name:   root.name,
		Start:  root.start,
		End:    root.end,
		Parent: NoNode,
	}}}

	queue := []*protoNode{root}
	for head := 0; head < len(queue); head++ {
		p := queue[head]
		id := NodeID(head)
		parent := t.Nodes[id]

		children := normalizeChildren(p.children, parent.Start, parent.End)
		t.Nodes[id].FirstChild = NodeID(len(t.Nodes))
		t.Nodes[id].ChildCount = int32(len(children))
		for _, c := range children {
			t.Nodes = append(t.Nodes, Node{
				Kind:   c.kind,
				Name:   c.name,
				Start:  c.start,
				End:    c.end,
				Parent: id,
			})
			queue = append(queue, c)
		}
	}
	return t
}

func normalizeChildren(children []*protoNode, start, end int) []*protoNode {
	sort.SliceStable(children, func(i, j int) bool { return children[i].start < children[j].start })

	out := children[:0]
	cursor := start
	for _, c := range children {
		if c.start < cursor {
			c.start = cursor
		}
		if c.end > end {
			c.end = end
		}
		if c.end <= c.start {
			continue
		}
		out = append(out, c)
		cursor = c.end
	}
	return out
}
