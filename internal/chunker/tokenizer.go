package chunker

import (
	"unicode"
	"unicode/utf8"
)

// Tokenizer counts model tokens in a byte range. Implementations must be
// deterministic and monotonic: extending a range never lowers its count.
type Tokenizer interface {
	Count(text []byte) int
}

// identRunesPerToken approximates how many identifier characters a
// subword vocabulary packs into one token
const identRunesPerToken = 4

// WordPieceTokenizer approximates a subword tokenizer without a vocabulary.
// Each run of identifier characters (letters, digits, underscore) costs
// ceil(runes/4) tokens and every other non-space rune costs one.
type WordPieceTokenizer struct{}

// Count returns the token count of text
func (WordPieceTokenizer) Count(text []byte) int {
	tokens, run := 0, 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRune(text[i:])
		i += size

		if isIdentRune(r) {
			run++
			continue
		}
		if run > 0 {
			tokens += (run + identRunesPerToken - 1) / identRunesPerToken
			run = 0
		}
		if !unicode.IsSpace(r) {
			tokens++
		}
	}
	if run > 0 {
		tokens += (run + identRunesPerToken - 1) / identRunesPerToken
	}
	return tokens
}

// CountString is Count for strings, for callers that tokenize queries
func (t WordPieceTokenizer) CountString(s string) int {
	return t.Count([]byte(s))
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
