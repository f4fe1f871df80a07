package nav

import "fmt"

// Mark is a half-open character range [Start, End) into the original query
// text. Every syntax and binding node carries one so that errors can point
// at the offending fragment.
type Mark struct {
	Text  string
	Start int
	End   int
}

// EmptyMark is used for nodes synthesized by the translator itself.
var EmptyMark = Mark{}

// NewMark creates a mark over text[start:end).
func NewMark(text string, start, end int) Mark {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if end < start {
		end = start
	}
	return Mark{Text: text, Start: start, End: end}
}

// Union returns the smallest mark covering both m and other. Marks over
// different texts cannot be merged; the receiver wins.
func (m Mark) Union(other Mark) Mark {
	if m.Text == "" {
		return other
	}
	if other.Text != m.Text {
		return m
	}
	start, end := m.Start, m.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Mark{Text: m.Text, Start: start, End: end}
}

// Excerpt returns the marked fragment of the query text.
func (m Mark) Excerpt() string {
	if m.Text == "" {
		return ""
	}
	return m.Text[m.Start:m.End]
}

// IsEmpty reports whether the mark carries no source text.
func (m Mark) IsEmpty() bool {
	return m.Text == ""
}

func (m Mark) String() string {
	if m.IsEmpty() {
		return "<no mark>"
	}
	return fmt.Sprintf("%q [%d:%d]", m.Excerpt(), m.Start, m.End)
}
