// Package compile translates spaces into a term tree: relational-algebra
// operators annotated with routing tables that record which descendant
// term is responsible for producing each unit or axis. Terms are built
// bottom-up and never mutated; threading new routes through an existing
// term clones it with a replacement table.
package compile

import (
	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/space"
)

// Routes maps units and axis spaces to the tag of the term responsible
// for producing them. The assembler consumes this contract.
type Routes struct {
	units  map[uint64]int
	spaces map[uint64]int
}

// NewRoutes creates an empty routing table.
func NewRoutes() *Routes {
	return &Routes{units: map[uint64]int{}, spaces: map[uint64]int{}}
}

// Clone copies the table.
func (r *Routes) Clone() *Routes {
	out := NewRoutes()
	for k, v := range r.units {
		out.units[k] = v
	}
	for k, v := range r.spaces {
		out.spaces[k] = v
	}
	return out
}

// Merge returns the union of r and other. On a conflict the receiver
// wins: when a trunk and a shoot both export a unit, claims above the
// join must keep resolving against the trunk.
func (r *Routes) Merge(other *Routes) *Routes {
	out := r.Clone()
	for k, v := range other.units {
		if _, ok := out.units[k]; !ok {
			out.units[k] = v
		}
	}
	for k, v := range other.spaces {
		if _, ok := out.spaces[k]; !ok {
			out.spaces[k] = v
		}
	}
	return out
}

// AddUnit routes a unit to the term with the given tag.
func (r *Routes) AddUnit(u space.Unit, tag int) { r.units[u.Hash()] = tag }

// AddSpace routes an axis space to the term with the given tag.
func (r *Routes) AddSpace(s space.Space, tag int) { r.spaces[s.Hash()] = tag }

// UnitTag finds the term responsible for a unit.
func (r *Routes) UnitTag(u space.Unit) (int, bool) {
	tag, ok := r.units[u.Hash()]
	return tag, ok
}

// SpaceTag finds the term exporting an axis space.
func (r *Routes) SpaceTag(s space.Space) (int, bool) {
	tag, ok := r.spaces[s.Hash()]
	return tag, ok
}

// Joint is one equality pair of a tie: the left code is evaluated against
// the left (trunk) side of an attach, the right code against the shoot.
type Joint struct {
	Left  space.Code
	Right space.Code
}

// Term is a relational-algebra node.
type Term interface {
	Tag() int
	Space() space.Space
	Baseline() space.Space
	Routes() *Routes
	Children() []Term
	// WithRoutes clones the term with a replacement routing table.
	WithRoutes(*Routes) Term
}

type termBase struct {
	tag      int
	space    space.Space
	baseline space.Space
	routes   *Routes
}

func (t termBase) Tag() int              { return t.tag }
func (t termBase) Space() space.Space    { return t.space }
func (t termBase) Baseline() space.Space { return t.baseline }
func (t termBase) Routes() *Routes       { return t.routes }

// ScalarTerm produces the one row of a scalar space.
type ScalarTerm struct {
	termBase
}

func (t *ScalarTerm) Children() []Term { return nil }

func (t *ScalarTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// TableTerm produces the rows of one table axis.
type TableTerm struct {
	termBase
	TableRef *nav.Table
}

func (t *TableTerm) Children() []Term { return nil }

func (t *TableTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// FilterTerm keeps the child rows satisfying a predicate.
type FilterTerm struct {
	termBase
	Child  Term
	Filter space.Code
}

func (t *FilterTerm) Children() []Term { return []Term{t.Child} }

func (t *FilterTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// JoinTerm attaches a shoot to a trunk over tie conditions. IsLeft and
// IsRight carry the outer-join flags; they are computed purely from
// whether one side dominates the other, so an attach never changes the
// trunk's row cardinality unless domination says it cannot.
type JoinTerm struct {
	termBase
	Left    Term
	Right   Term
	Ties    []Joint
	IsLeft  bool
	IsRight bool
}

func (t *JoinTerm) Children() []Term { return []Term{t.Left, t.Right} }

func (t *JoinTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// CorrelationTerm is the inner side of an embedding: a shoot attached by
// correlation conditions instead of a join.
type CorrelationTerm struct {
	termBase
	Child Term
	Ties  []Joint
}

func (t *CorrelationTerm) Children() []Term { return []Term{t.Child} }

func (t *CorrelationTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// EmbeddingTerm attaches a correlated subquery to a trunk.
type EmbeddingTerm struct {
	termBase
	Left  Term
	Right *CorrelationTerm
	// Op is the aggregate realized by the embedding.
	Op      string
	Operand space.Code
	Unit    space.Unit
}

func (t *EmbeddingTerm) Children() []Term { return []Term{t.Left, t.Right} }

func (t *EmbeddingTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// ProjectionTerm groups the child rows by a kernel basis: SQL GROUP BY.
type ProjectionTerm struct {
	termBase
	Child Term
	// Kernel is the projection basis: the tie columns connecting the
	// projection to its base plus the explicit kernel expressions.
	Kernel []space.Code
	// Aggregates are the reduced values the projection exports, keyed by
	// the unit they realize.
	Aggregates []*space.AggregateUnit
}

func (t *ProjectionTerm) Children() []Term { return []Term{t.Child} }

func (t *ProjectionTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// OrderTerm orders and optionally clips the child rows.
type OrderTerm struct {
	termBase
	Child  Term
	Order  []space.OrderItem
	Limit  *int
	Offset *int
}

func (t *OrderTerm) Children() []Term { return []Term{t.Child} }

func (t *OrderTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// WrapperTerm is a no-op relabeling of its child: same rows, new routes.
type WrapperTerm struct {
	termBase
	Child Term
}

func (t *WrapperTerm) Children() []Term { return []Term{t.Child} }

func (t *WrapperTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}

// SegmentTerm is the top of the tree: the output codes and ordering of
// the whole query.
type SegmentTerm struct {
	termBase
	Child Term
	Codes []space.Code
	Order []space.OrderItem
}

func (t *SegmentTerm) Children() []Term { return []Term{t.Child} }

func (t *SegmentTerm) WithRoutes(r *Routes) Term {
	c := *t
	c.routes = r
	return &c
}
