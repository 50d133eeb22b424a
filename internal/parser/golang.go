package parser

import (
	"context"
	"fmt"
	"go/ast"
	goparser "go/parser"
	"go/token"
	"strings"
	"unicode"

	"github.com/dshills/codeindex/pkg/types"
)

// GoGrammar parses Go source with the standard library parser. It is
// available in every build, with or without cgo.
type GoGrammar struct{}

// NewGoGrammar creates the Go grammar
func NewGoGrammar() *GoGrammar {
	return &GoGrammar{}
}

var (
	goDecisionKinds   = NewKindSet("if_statement", "for_statement", "expression_case", "communication_case", "logical_expression")
	goDefinitionKinds = NewKindSet("function_declaration", "method_declaration", "type_spec")
	goContainerKinds  = NewKindSet()
	goImportKinds     = NewKindSet("import_declaration")
)

func (g *GoGrammar) Language() types.Language    { return types.LanguageGo }
func (g *GoGrammar) Extensions() []string        { return []string{".go"} }
func (g *GoGrammar) DecisionPointKinds() KindSet { return goDecisionKinds }
func (g *GoGrammar) DefinitionKinds() KindSet    { return goDefinitionKinds }
func (g *GoGrammar) ContainerKinds() KindSet     { return goContainerKinds }
func (g *GoGrammar) ImportKinds() KindSet        { return goImportKinds }

// Parse parses src into a structure tree. Syntax errors are reported as
// ErrSyntax even though go/parser can return a partial AST; a partial tree
// would misplace chunk boundaries.
func (g *GoGrammar) Parse(ctx context.Context, src []byte) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	file, err := goparser.ParseFile(fset, "", src, goparser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	b := &goTreeBuilder{fset: fset}
	ast.Inspect(file, b.visit)
	return pack(b.root, src), nil
}

// goTreeBuilder converts an AST into proto nodes during ast.Inspect
type goTreeBuilder struct {
	fset  *token.FileSet
	root  *protoNode
	stack []*protoNode
}

func (b *goTreeBuilder) visit(n ast.Node) bool {
	if n == nil {
		b.stack = b.stack[:len(b.stack)-1]
		return false
	}

	switch n.(type) {
	case *ast.CommentGroup, *ast.Comment:
		return false
	}

	kind, name := goKind(n)
	p := &protoNode{
		kind:  kind,
		name:  name,
		start: b.offset(n.Pos()),
		end:   b.offset(n.End()),
	}

	if len(b.stack) == 0 {
		b.root = p
	} else {
		parent := b.stack[len(b.stack)-1]
		parent.children = append(parent.children, p)
	}
	b.stack = append(b.stack, p)
	return true
}

func (b *goTreeBuilder) offset(p token.Pos) int {
	if !p.IsValid() {
		return 0
	}
	return b.fset.Position(p).Offset
}

// goKind names AST nodes after the tree-sitter Go grammar where one exists
func goKind(n ast.Node) (kind, name string) {
	switch n := n.(type) {
	case *ast.File:
		return "source_file", ""
	case *ast.FuncDecl:
		if n.Recv != nil && len(n.Recv.List) > 0 {
			recv := receiverType(n.Recv.List[0].Type)
			return "method_declaration", recv + "." + n.Name.Name
		}
		return "function_declaration", n.Name.Name
	case *ast.GenDecl:
		switch n.Tok {
		case token.IMPORT:
			return "import_declaration", ""
		case token.TYPE:
			return "type_declaration", ""
		case token.CONST:
			return "const_declaration", ""
		default:
			return "var_declaration", ""
		}
	case *ast.TypeSpec:
		return "type_spec", n.Name.Name
	case *ast.FuncLit:
		return "func_literal", ""
	case *ast.BlockStmt:
		return "block", ""
	case *ast.IfStmt:
		return "if_statement", ""
	case *ast.ForStmt, *ast.RangeStmt:
		return "for_statement", ""
	case *ast.SwitchStmt:
		return "expression_switch_statement", ""
	case *ast.TypeSwitchStmt:
		return "type_switch_statement", ""
	case *ast.SelectStmt:
		return "select_statement", ""
	case *ast.CaseClause:
		if n.List == nil {
			return "default_case", ""
		}
		return "expression_case", ""
	case *ast.CommClause:
		if n.Comm == nil {
			return "default_case", ""
		}
		return "communication_case", ""
	case *ast.BinaryExpr:
		if n.Op == token.LAND || n.Op == token.LOR {
			return "logical_expression", ""
		}
		return "binary_expression", ""
	}
	return snakeCase(strings.TrimPrefix(fmt.Sprintf("%T", n), "*ast.")), ""
}

// receiverType extracts the receiver type name from a receiver expression
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return ""
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
