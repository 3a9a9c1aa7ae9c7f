package token

import "fmt"

// Position is a location in SQL text. Line and Column are 1-based,
// Offset is the 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// String formats the position as used in parse errors.
func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// Span is the range of source text a node was parsed from.
type Span struct {
	Start Position
	End   Position
}

// Text returns the part of src the span covers, or "" if the span does
// not lie within src.
func (s Span) Text(src string) string {
	if s.Start.Offset < 0 || s.End.Offset > len(src) || s.Start.Offset > s.End.Offset {
		return ""
	}
	return src[s.Start.Offset:s.End.Offset]
}
