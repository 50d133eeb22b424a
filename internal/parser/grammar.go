package parser

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/dshills/codeindex/pkg/types"
)

var (
	// ErrNoGrammar is returned when no grammar is registered for a file
	ErrNoGrammar = errors.New("no grammar registered")
	// ErrSyntax is returned when a grammar cannot produce a clean tree
	ErrSyntax = errors.New("syntax error")
)

// KindSet is a set of node kinds
type KindSet map[string]struct{}

// NewKindSet creates a KindSet from kinds
func NewKindSet(kinds ...string) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether kind is in the set
func (s KindSet) Has(kind string) bool {
	_, ok := s[kind]
	return ok
}

// Grammar is the per-language parsing capability used by the chunker.
//
// Parse returns a structure tree whose root spans the whole source.
// The kind sets classify node kinds for metadata extraction: decision points
// feed cyclomatic complexity, definitions produce symbol names, containers
// provide parent context and imports are reported verbatim.
type Grammar interface {
	Language() types.Language
	Extensions() []string
	Parse(ctx context.Context, src []byte) (*Tree, error)
	DecisionPointKinds() KindSet
	DefinitionKinds() KindSet
	ContainerKinds() KindSet
	ImportKinds() KindSet
}

// Registry maps file extensions to grammars. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	byExt map[string]Grammar
}

// NewRegistry creates a registry from grammars. Later grammars win on
// conflicting extensions.
func NewRegistry(grammars ...Grammar) *Registry {
	r := &Registry{byExt: make(map[string]Grammar)}
	for _, g := range grammars {
		for _, ext := range g.Extensions() {
			r.byExt[strings.ToLower(ext)] = g
		}
	}
	return r
}

// DefaultRegistry returns a registry with every grammar compiled into this build
func DefaultRegistry() *Registry {
	return NewRegistry(builtinGrammars()...)
}

// Lookup returns the grammar for a file path
func (r *Registry) Lookup(p string) (Grammar, error) {
	ext := strings.ToLower(path.Ext(p))
	if g, ok := r.byExt[ext]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("%w for %q", ErrNoGrammar, ext)
}

// Languages lists the registered languages in sorted order
func (r *Registry) Languages() []types.Language {
	seen := make(map[types.Language]bool)
	var out []types.Language
	for _, g := range r.byExt {
		if !seen[g.Language()] {
			seen[g.Language()] = true
			out = append(out, g.Language())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
