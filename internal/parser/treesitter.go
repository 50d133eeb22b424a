//go:build cgo

package parser

// Tree-sitter grammars need cgo. Builds without it fall back to the Go
// grammar alone (see builtin_nocgo.go); every other language then takes the
// chunker's line-based path.

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/dshills/codeindex/pkg/types"
)

// logicalKind is the kind given to binary expressions whose operator short-circuits
const logicalKind = "logical_expression"

// SitterGrammar adapts a tree-sitter language to the Grammar interface
type SitterGrammar struct {
	lang        types.Language
	exts        []string
	language    *sitter.Language
	decisions   KindSet
	definitions KindSet
	containers  KindSet
	imports     KindSet
	logicalOps  map[string]bool
}

func (g *SitterGrammar) Language() types.Language    { return g.lang }
func (g *SitterGrammar) Extensions() []string        { return g.exts }
func (g *SitterGrammar) DecisionPointKinds() KindSet { return g.decisions }
func (g *SitterGrammar) DefinitionKinds() KindSet    { return g.definitions }
func (g *SitterGrammar) ContainerKinds() KindSet     { return g.containers }
func (g *SitterGrammar) ImportKinds() KindSet        { return g.imports }

// Parse parses src with a fresh tree-sitter parser. Parsers are not safe for
// concurrent use, and chunking runs one file per worker.
func (g *SitterGrammar) Parse(ctx context.Context, src []byte) (*Tree, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(g.language)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s source has parse errors", ErrSyntax, g.lang)
	}
	return pack(g.convert(root, src), src), nil
}

// convert copies the named nodes of a tree-sitter tree into proto nodes.
// src must be the buffer the tree was parsed from; names are sliced out of it.
func (g *SitterGrammar) convert(n *sitter.Node, src []byte) *protoNode {
	p := &protoNode{
		kind:  n.Type(),
		start: int(n.StartByte()),
		end:   int(n.EndByte()),
	}
	if p.kind == "binary_expression" && g.logicalOps != nil {
		if op := n.ChildByFieldName("operator"); op != nil && g.logicalOps[op.Type()] {
			p.kind = logicalKind
		}
	}
	if g.definitions.Has(p.kind) || g.containers.Has(p.kind) {
		if name := n.ChildByFieldName("name"); name != nil {
			p.name = name.Content(src)
		}
	}

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c == nil || !c.IsNamed() {
			continue
		}
		p.children = append(p.children, g.convert(c, src))
	}
	return p
}

var cLikeLogicalOps = map[string]bool{"&&": true, "||": true, "??": true}

// NewPythonGrammar returns the tree-sitter Python grammar
func NewPythonGrammar() *SitterGrammar {
	return &SitterGrammar{
		lang:     types.LanguagePython,
		exts:     []string{".py", ".pyi"},
		language: python.GetLanguage(),
		decisions: NewKindSet("if_statement", "elif_clause", "for_statement", "while_statement",
			"except_clause", "conditional_expression", "boolean_operator", "case_clause",
			"for_in_clause", "if_clause"),
		definitions: NewKindSet("function_definition", "class_definition"),
		containers:  NewKindSet("class_definition"),
		imports:     NewKindSet("import_statement", "import_from_statement", "future_import_statement"),
	}
}

func jsDecisions(extra ...string) KindSet {
	kinds := append([]string{"if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "catch_clause", "ternary_expression", "switch_case", logicalKind}, extra...)
	return NewKindSet(kinds...)
}

// NewJavaScriptGrammar returns the tree-sitter JavaScript grammar
func NewJavaScriptGrammar() *SitterGrammar {
	return &SitterGrammar{
		lang:        types.LanguageJavaScript,
		exts:        []string{".js", ".jsx", ".mjs", ".cjs"},
		language:    javascript.GetLanguage(),
		decisions:   jsDecisions(),
		definitions: NewKindSet("function_declaration", "generator_function_declaration", "class_declaration", "method_definition"),
		containers:  NewKindSet("class_declaration", "class"),
		imports:     NewKindSet("import_statement"),
		logicalOps:  cLikeLogicalOps,
	}
}

func typeScriptGrammar(lang *sitter.Language, exts ...string) *SitterGrammar {
	return &SitterGrammar{
		lang:      types.LanguageTypeScript,
		exts:      exts,
		language:  lang,
		decisions: jsDecisions(),
		definitions: NewKindSet("function_declaration", "generator_function_declaration", "class_declaration",
			"abstract_class_declaration", "method_definition", "interface_declaration", "enum_declaration",
			"type_alias_declaration"),
		containers: NewKindSet("class_declaration", "abstract_class_declaration", "class",
			"interface_declaration", "internal_module", "module"),
		imports:    NewKindSet("import_statement"),
		logicalOps: cLikeLogicalOps,
	}
}

// NewTypeScriptGrammar returns the tree-sitter TypeScript grammar
func NewTypeScriptGrammar() *SitterGrammar {
	return typeScriptGrammar(typescript.GetLanguage(), ".ts", ".mts", ".cts")
}

// NewTSXGrammar returns the tree-sitter TSX grammar
func NewTSXGrammar() *SitterGrammar {
	return typeScriptGrammar(tsx.GetLanguage(), ".tsx")
}

// NewJavaGrammar returns the tree-sitter Java grammar
func NewJavaGrammar() *SitterGrammar {
	return &SitterGrammar{
		lang:     types.LanguageJava,
		exts:     []string{".java"},
		language: java.GetLanguage(),
		decisions: NewKindSet("if_statement", "for_statement", "enhanced_for_statement", "while_statement",
			"do_statement", "catch_clause", "ternary_expression", "switch_label", logicalKind),
		definitions: NewKindSet("class_declaration", "interface_declaration", "enum_declaration",
			"record_declaration", "method_declaration", "constructor_declaration"),
		containers: NewKindSet("class_declaration", "interface_declaration", "enum_declaration", "record_declaration"),
		imports:    NewKindSet("import_declaration"),
		logicalOps: map[string]bool{"&&": true, "||": true},
	}
}

// NewCSharpGrammar returns the tree-sitter C# grammar
func NewCSharpGrammar() *SitterGrammar {
	return &SitterGrammar{
		lang:     types.LanguageCSharp,
		exts:     []string{".cs"},
		language: csharp.GetLanguage(),
		decisions: NewKindSet("if_statement", "for_statement", "for_each_statement", "while_statement",
			"do_statement", "catch_clause", "conditional_expression", "switch_section", logicalKind),
		definitions: NewKindSet("class_declaration", "interface_declaration", "struct_declaration",
			"enum_declaration", "record_declaration", "method_declaration", "constructor_declaration"),
		containers: NewKindSet("namespace_declaration", "file_scoped_namespace_declaration", "class_declaration",
			"interface_declaration", "struct_declaration", "record_declaration"),
		imports:    NewKindSet("using_directive"),
		logicalOps: cLikeLogicalOps,
	}
}

func builtinGrammars() []Grammar {
	return []Grammar{
		NewGoGrammar(),
		NewPythonGrammar(),
		NewJavaScriptGrammar(),
		NewTypeScriptGrammar(),
		NewTSXGrammar(),
		NewJavaGrammar(),
		NewCSharpGrammar(),
	}
}
