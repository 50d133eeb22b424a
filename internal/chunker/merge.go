package chunker

// Piece is a candidate chunk before metadata is attached
type Piece struct {
	Start   int
	End     int
	Tokens  int
	Type    string
	Name    string
	Context string // nearest enclosing named container
}

// CountFunc returns the token count of the byte range [start, end)
type CountFunc func(start, end int) int

// Merge folds undersized pieces into their neighbours. A piece with fewer
// than minTokens joins the following piece when the combined range counts
// at most maxTokens and both share a parent context; failing that it joins
// the preceding piece under the same rule; failing both it stays alone.
// Pieces must tile a contiguous range in order. The input is not modified.
func Merge(pieces []Piece, minTokens, maxTokens int, count CountFunc) []Piece {
	out := append([]Piece(nil), pieces...)

	for i := 0; i < len(out); {
		p := out[i]
		if p.Tokens >= minTokens {
			i++
			continue
		}

		if i+1 < len(out) && out[i+1].Context == p.Context {
			if n := count(p.Start, out[i+1].End); n <= maxTokens {
				out[i] = combine(p, out[i+1], n)
				out = append(out[:i+1], out[i+2:]...)
				continue
			}
		}
		if i > 0 && out[i-1].Context == p.Context {
			if n := count(out[i-1].Start, p.End); n <= maxTokens {
				out[i-1] = combine(out[i-1], p, n)
				out = append(out[:i], out[i+1:]...)
				continue
			}
		}
		i++
	}
	return out
}

// combine joins adjacent pieces a and b. The result keeps the type and
// name of whichever carried more tokens.
func combine(a, b Piece, tokens int) Piece {
	keep := a
	if b.Tokens > a.Tokens {
		keep = b
	}
	return Piece{
		Start:   a.Start,
		End:     b.End,
		Tokens:  tokens,
		Type:    keep.Type,
		Name:    keep.Name,
		Context: a.Context,
	}
}
