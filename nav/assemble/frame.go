package assemble

import (
	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/space"
)

// Frame is one SQL query block or FROM entry. Frame tags coincide with
// the tags of the terms they realize, so the routing tables built by the
// compiler keep working here.
type Frame interface {
	Tag() int
	Space() space.Space
	Baseline() space.Space
}

type frameBase struct {
	tag      int
	space    space.Space
	baseline space.Space
}

func (f frameBase) Tag() int              { return f.tag }
func (f frameBase) Space() space.Space    { return f.space }
func (f frameBase) Baseline() space.Space { return f.baseline }

// Anchor attaches a frame to the FROM clause of its parent. The first
// anchor of a frame has no condition; later anchors join on theirs.
type Anchor struct {
	Frame     Frame
	Condition Phrase
	IsLeft    bool
	IsRight   bool
}

// TableFrame scans one table.
type TableFrame struct {
	frameBase
	Table *nav.Table
}

// ScalarFrame produces a single row with no FROM clause.
type ScalarFrame struct {
	frameBase
}

// NestedFrame is a subquery: FROM anchors, an optional WHERE, GROUP BY
// for projections, ORDER BY with an optional clip, and the select list
// its parent references by position.
type NestedFrame struct {
	frameBase
	Include []*Anchor
	Embed   []*NestedFrame
	Select  []Phrase
	Where   Phrase
	Group   []Phrase
	Having  Phrase
	Order   []OrderPhrase
	Limit   *int
	Offset  *int
	// Permanent frames are never collapsed into their parent; correlated
	// subqueries must survive as syntactic units.
	Permanent bool
}

// SegmentFrame is the outermost query block. It starts with only a
// select list and ordering; the collapser moves WHERE, GROUP BY and the
// clip up into it when that provably keeps the same rows.
type SegmentFrame struct {
	frameBase
	Include []*Anchor
	Embed   []*NestedFrame
	Select  []Phrase
	Where   Phrase
	Group   []Phrase
	Having  Phrase
	Order   []OrderPhrase
	Limit   *int
	Offset  *int
}

// anchors returns the FROM entries of a frame.
func anchors(f Frame) []*Anchor {
	switch n := f.(type) {
	case *NestedFrame:
		return n.Include
	case *SegmentFrame:
		return n.Include
	}
	return nil
}
