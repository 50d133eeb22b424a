package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func byteCount(start, end int) int { return end - start }

func piece(start, end int, typ, scope string) Piece {
	return Piece{Start: start, End: end, Tokens: end - start, Type: typ, Context: scope}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		pieces   []Piece
		min, max int
		want     []Piece
	}{
		{
			name:   "small piece merges forward",
			pieces: []Piece{piece(0, 2, "a", ""), piece(2, 10, "b", "")},
			min:    5, max: 20,
			want: []Piece{piece(0, 10, "b", "")},
		},
		{
			name:   "backward when forward would exceed max",
			pieces: []Piece{piece(0, 10, "a", ""), piece(10, 12, "b", ""), piece(12, 30, "c", "")},
			min:    5, max: 15,
			want: []Piece{piece(0, 12, "a", ""), piece(12, 30, "c", "")},
		},
		{
			name:   "forward wins when both directions fit",
			pieces: []Piece{piece(0, 10, "a", ""), piece(10, 12, "b", ""), piece(12, 20, "c", "")},
			min:    5, max: 20,
			want: []Piece{piece(0, 10, "a", ""), piece(10, 20, "c", "")},
		},
		{
			name:   "different parent context stays standalone",
			pieces: []Piece{piece(0, 10, "a", "X"), piece(10, 12, "b", "Y"), piece(12, 20, "c", "Z")},
			min:    5, max: 20,
			want: []Piece{piece(0, 10, "a", "X"), piece(10, 12, "b", "Y"), piece(12, 20, "c", "Z")},
		},
		{
			name:   "body tail merges into the next declaration in the same context",
			pieces: []Piece{piece(0, 18, "block", ""), piece(18, 20, "}", ""), piece(20, 30, "function_declaration", "")},
			min:    5, max: 20,
			want: []Piece{piece(0, 18, "block", ""), piece(18, 30, "function_declaration", "")},
		},
		{
			name:   "merged piece keeps merging while undersized",
			pieces: []Piece{piece(0, 1, "a", ""), piece(1, 2, "b", ""), piece(2, 3, "c", ""), piece(3, 4, "d", "")},
			min:    3, max: 10,
			want: []Piece{piece(0, 4, "a", "")},
		},
		{
			name:   "nothing fits",
			pieces: []Piece{piece(0, 9, "a", ""), piece(9, 10, "b", ""), piece(10, 19, "c", "")},
			min:    5, max: 9,
			want: []Piece{piece(0, 9, "a", ""), piece(9, 10, "b", ""), piece(10, 19, "c", "")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.pieces, tt.min, tt.max, byteCount)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeDoesNotModifyInput(t *testing.T) {
	in := []Piece{piece(0, 2, "a", ""), piece(2, 10, "b", "")}
	orig := append([]Piece(nil), in...)

	Merge(in, 5, 20, byteCount)
	assert.Equal(t, orig, in)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil, 5, 20, byteCount))
}

func TestWordPieceTokenizer(t *testing.T) {
	tok := WordPieceTokenizer{}
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"  \n\t", 0},
		{"foo_bar baz", 3},
		{"a+b", 3},
		{"abcdefgh", 2},
		{"abcdefghi", 3},
		{"héllo", 2},
		{"x := compute(1, 2)", 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tok.CountString(tt.text), tt.text)
	}
}
