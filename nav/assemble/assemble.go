// Package assemble turns a term tree into a frame tree: SQL query blocks
// with explicit select lists, join anchors and correlated embeddings.
// Units travel by a claim protocol: a frame demands a unit, the routing
// table names the frame that supplies it, and the phrase is lifted
// through every intermediate select list on the way back. A unit nobody
// can supply is a compiler bug and panics.
package assemble

import (
	"fmt"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/compile"
	"github.com/weftql/weft/nav/space"
)

// Claim records one demand: the broker frame asked for the unit, the
// target frame is responsible for producing it.
type Claim struct {
	Unit   space.Unit
	Broker int
	Target int
}

type claimKey struct {
	unit  uint64
	frame int
}

// Result is the assembled frame tree plus the claim ledger.
type Result struct {
	Frame *SegmentFrame

	claims   []Claim
	supplied map[claimKey]Phrase
}

type assembler struct {
	routes   map[int]*compile.Routes
	frames   map[int]Frame
	cover    map[int]map[int]bool
	claims   []Claim
	supplied map[claimKey]Phrase
	special  map[claimKey]Phrase
}

// Assemble builds the frame tree of a segment term.
func Assemble(seg *compile.SegmentTerm) *Result {
	a := &assembler{
		routes:   map[int]*compile.Routes{},
		frames:   map[int]Frame{},
		cover:    map[int]map[int]bool{},
		supplied: map[claimKey]Phrase{},
		special:  map[claimKey]Phrase{},
	}

	child := a.frame(seg.Child)
	sf := &SegmentFrame{
		frameBase: frameBase{seg.Tag(), seg.Space(), seg.Baseline()},
		Include:   []*Anchor{{Frame: child}},
	}
	a.enroll(sf, seg, child)

	for _, code := range seg.Codes {
		sf.Select = append(sf.Select, a.evaluate(code, sf))
	}
	for _, o := range seg.Order {
		sf.Order = append(sf.Order, OrderPhrase{
			Phrase:     a.evaluate(o.Code, sf),
			Descending: o.Descending,
		})
	}

	fillSelects(sf)
	return &Result{Frame: sf, claims: a.claims, supplied: a.supplied}
}

func (a *assembler) frame(t compile.Term) Frame {
	switch n := t.(type) {
	case *compile.ScalarTerm:
		f := &ScalarFrame{frameBase{n.Tag(), n.Space(), n.Baseline()}}
		a.enroll(f, n)
		return f

	case *compile.TableTerm:
		f := &TableFrame{
			frameBase: frameBase{n.Tag(), n.Space(), n.Baseline()},
			Table:     n.TableRef,
		}
		a.enroll(f, n)
		return f

	case *compile.FilterTerm:
		child := a.frame(n.Child)
		f := &NestedFrame{
			frameBase: frameBase{n.Tag(), n.Space(), n.Baseline()},
			Include:   []*Anchor{{Frame: child}},
		}
		a.enroll(f, n, child)
		f.Where = a.evaluate(n.Filter, f)
		return f

	case *compile.JoinTerm:
		left := a.frame(n.Left)
		right := a.frame(n.Right)
		f := &NestedFrame{
			frameBase: frameBase{n.Tag(), n.Space(), n.Baseline()},
		}
		a.enroll(f, n, left, right)
		leftAnchor := &Anchor{Frame: left}
		rightAnchor := &Anchor{Frame: right, IsLeft: n.IsLeft, IsRight: n.IsRight}
		rightAnchor.Condition = a.tieCondition(n.Ties, leftAnchor, rightAnchor)
		f.Include = []*Anchor{leftAnchor, rightAnchor}
		return f

	case *compile.OrderTerm:
		child := a.frame(n.Child)
		f := &NestedFrame{
			frameBase: frameBase{n.Tag(), n.Space(), n.Baseline()},
			Include:   []*Anchor{{Frame: child}},
			Limit:     n.Limit,
			Offset:    n.Offset,
		}
		a.enroll(f, n, child)
		for _, o := range n.Order {
			f.Order = append(f.Order, OrderPhrase{
				Phrase:     a.evaluate(o.Code, f),
				Descending: o.Descending,
			})
		}
		return f

	case *compile.WrapperTerm:
		child := a.frame(n.Child)
		f := &NestedFrame{
			frameBase: frameBase{n.Tag(), n.Space(), n.Baseline()},
			Include:   []*Anchor{{Frame: child}},
		}
		a.enroll(f, n, child)
		return f

	case *compile.ProjectionTerm:
		child := a.frame(n.Child)
		f := &NestedFrame{
			frameBase: frameBase{n.Tag(), n.Space(), n.Baseline()},
			Include:   []*Anchor{{Frame: child}},
		}
		a.enroll(f, n, child)
		for _, k := range n.Kernel {
			f.Group = append(f.Group, a.evaluate(k, f))
		}
		return f

	case *compile.EmbeddingTerm:
		return a.embeddingFrame(n)
	}
	panic(fmt.Sprintf("assemble: cannot frame term %T", t))
}

// embeddingFrame realizes an existence test: the correlated subframe is
// permanent and references the trunk through its WHERE clause.
func (a *assembler) embeddingFrame(n *compile.EmbeddingTerm) Frame {
	left := a.frame(n.Left)
	corr := n.Right
	seed := a.frame(corr.Child)
	sub := &NestedFrame{
		frameBase: frameBase{corr.Tag(), corr.Space(), corr.Baseline()},
		Include:   []*Anchor{{Frame: seed}},
		Permanent: true,
	}
	a.enroll(sub, corr, seed)

	f := &NestedFrame{
		frameBase: frameBase{n.Tag(), n.Space(), n.Baseline()},
		Include:   []*Anchor{{Frame: left}},
		Embed:     []*NestedFrame{sub},
	}
	a.enroll(f, n, left)

	leftAnchor := f.Include[0]
	var conds []Phrase
	for _, tie := range corr.Ties {
		lp := a.lift(a.evaluate(tie.Left, left), leftAnchor)
		rp := a.evaluate(tie.Right, sub)
		conds = append(conds, NewFormulaPhrase(nav.Boolean, space.OpEqual, lp, rp))
	}
	operand := a.evaluate(n.Operand, sub)
	if lit, ok := operand.(*LiteralPhrase); !ok || !lit.IsTrue() {
		conds = append(conds, operand)
	}
	sub.Where = conjoin(conds)
	sub.Select = []Phrase{TruePhrase()}

	a.special[claimKey{n.Unit.Hash(), f.Tag()}] = NewEmbeddingPhrase(sub)
	return f
}

// tieCondition joins the tie pairs into one condition usable at the
// parent scope: each side is evaluated against its own child frame and
// lifted through that child's select list when it is a subquery.
func (a *assembler) tieCondition(ties []compile.Joint, left, right *Anchor) Phrase {
	var conds []Phrase
	for _, tie := range ties {
		lp := a.lift(a.evaluate(tie.Left, left.Frame), left)
		rp := a.lift(a.evaluate(tie.Right, right.Frame), right)
		conds = append(conds, NewFormulaPhrase(nav.Boolean, space.OpEqual, lp, rp))
	}
	return conjoin(conds)
}

// enroll registers a frame: its routing table, its subtree cover, and
// its place in the tag index.
func (a *assembler) enroll(f Frame, t compile.Term, children ...Frame) {
	a.routes[f.Tag()] = t.Routes()
	a.frames[f.Tag()] = f
	set := map[int]bool{f.Tag(): true}
	for _, c := range children {
		for tag := range a.cover[c.Tag()] {
			set[tag] = true
		}
	}
	a.cover[f.Tag()] = set
}

// evaluate turns a code into a phrase valid in the given frame.
func (a *assembler) evaluate(code space.Code, f Frame) Phrase {
	switch n := code.(type) {
	case *space.LiteralCode:
		return NewLiteralPhrase(n.Domain(), n.Value())

	case *space.ReferenceCode:
		return NewPlaceholderPhrase(n.Name(), n.Domain(), n.Value())

	case *space.CastCode:
		return NewCastPhrase(n.Domain(), a.evaluate(n.Base(), f))

	case *space.FormulaCode:
		args := make([]Phrase, len(n.Args()))
		for i, arg := range n.Args() {
			args[i] = a.evaluate(arg, f)
		}
		return NewFormulaPhrase(n.Domain(), n.Op(), args...)
	}
	if u, ok := code.(space.Unit); ok {
		return a.demandUnit(u, f)
	}
	panic(fmt.Sprintf("assemble: cannot evaluate code %T", code))
}

// demandUnit claims a unit at the given frame and resolves the supply.
func (a *assembler) demandUnit(u space.Unit, f Frame) Phrase {
	key := claimKey{u.Hash(), f.Tag()}
	if p, ok := a.supplied[key]; ok {
		return p
	}
	routes, ok := a.routes[f.Tag()]
	if !ok {
		panic(fmt.Sprintf("assemble: frame t%d has no routing table", f.Tag()))
	}
	target, ok := routes.UnitTag(u)
	if !ok {
		panic(fmt.Sprintf("assemble: no route for unit %s at frame t%d", u, f.Tag()))
	}
	a.claims = append(a.claims, Claim{Unit: u, Broker: f.Tag(), Target: target})

	p := a.resolve(u, target, f)

	// A count crossing back over its outer join reports 0, not NULL, for
	// rows without a group.
	if agg, isAgg := u.(*space.AggregateUnit); isAgg &&
		agg.Op() == space.AggCount && target != f.Tag() {
		p = NewFormulaPhrase(nav.Integer, space.OpIfNull, p, NewLiteralPhrase(nav.Integer, int64(0)))
	}

	a.supplied[key] = p
	return p
}

// resolve walks down the anchor containing the target frame, supplies
// the unit there, and lifts the phrase back up level by level.
func (a *assembler) resolve(u space.Unit, target int, f Frame) Phrase {
	if f.Tag() == target {
		return a.supplyHere(u, f)
	}
	for _, anc := range anchors(f) {
		if a.cover[anc.Frame.Tag()][target] {
			inner := a.resolve(u, target, anc.Frame)
			return a.lift(inner, anc)
		}
	}
	panic(fmt.Sprintf("assemble: unit %s routed to unreachable frame t%d", u, target))
}

// supplyHere produces the phrase of a unit at its responsible frame.
func (a *assembler) supplyHere(u space.Unit, f Frame) Phrase {
	if p, ok := a.special[claimKey{u.Hash(), f.Tag()}]; ok {
		return p
	}
	switch n := u.(type) {
	case *space.ColumnUnit:
		return NewColumnPhrase(f.Tag(), n.Column(), n.Column().IsNullable)

	case *space.ScalarUnit:
		return a.evaluate(n.Code(), f)

	case *space.ComplementUnit:
		return a.evaluate(n.Code(), f)

	case *space.KernelUnit:
		return a.evaluate(n.Quotient().Kernels()[n.Index()], f)

	case *space.AggregateUnit:
		arg := a.evaluate(n.Operand(), f)
		return NewAggregatePhrase(n.Domain(), n.Op(), arg)
	}
	panic(fmt.Sprintf("assemble: frame t%d cannot supply unit %s", f.Tag(), u))
}

// lift carries a phrase from a child scope into its parent's. Phrases of
// table and scalar anchors are visible directly; subquery phrases are
// exported through the select list and referenced by position.
func (a *assembler) lift(p Phrase, anc *Anchor) Phrase {
	outer := anc.IsLeft || anc.IsRight
	switch child := anc.Frame.(type) {
	case *NestedFrame:
		idx := addSelect(child, p)
		return NewReferencePhrase(child.Tag(), idx, p.Domain(), p.IsNullable() || outer)
	default:
		if outer {
			if cp, ok := p.(*ColumnPhrase); ok && !cp.IsNullable() {
				return NewColumnPhrase(cp.Tag(), cp.Column(), true)
			}
		}
		return p
	}
}

// addSelect appends a phrase to a select list, deduplicating by value.
func addSelect(f *NestedFrame, p Phrase) int {
	for i, s := range f.Select {
		if s.Hash() == p.Hash() {
			return i
		}
	}
	f.Select = append(f.Select, p)
	return len(f.Select) - 1
}

func conjoin(conds []Phrase) Phrase {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	}
	return NewFormulaPhrase(nav.Boolean, space.OpAnd, conds...)
}

// fillSelects gives every frame that exports nothing a single TRUE item,
// keeping the SQL well-formed.
func fillSelects(f Frame) {
	if nf, ok := f.(*NestedFrame); ok {
		if len(nf.Select) == 0 {
			nf.Select = []Phrase{TruePhrase()}
		}
		for _, sub := range nf.Embed {
			fillSelects(sub)
		}
	}
	for _, anc := range anchors(f) {
		fillSelects(anc.Frame)
	}
}
