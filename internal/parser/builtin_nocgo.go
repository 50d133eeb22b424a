//go:build !cgo

package parser

func builtinGrammars() []Grammar {
	return []Grammar{NewGoGrammar()}
}
