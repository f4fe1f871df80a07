// Package reduce simplifies an assembled frame tree in place: nested
// subqueries collapse into their parents where the rows provably stay
// the same, and phrases fold constants under SQL's three-valued logic.
package reduce

import (
	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/assemble"
	"github.com/weftql/weft/nav/space"
)

// Reduce collapses and simplifies the segment frame. The frame tree is
// modified in place and returned for convenience.
func Reduce(sf *assemble.SegmentFrame) *assemble.SegmentFrame {
	collapse(sf)
	simplifyFrame(sf)
	return sf
}

// view is a uniform handle over the two collapsible frame kinds.
type view struct {
	include *[]*assemble.Anchor
	embed   *[]*assemble.NestedFrame
	sel     *[]assemble.Phrase
	where   *assemble.Phrase
	group   *[]assemble.Phrase
	having  *assemble.Phrase
	order   *[]assemble.OrderPhrase
	limit   **int
	offset  **int
	space   space.Space
	base    space.Space
}

func viewOf(f assemble.Frame) (view, bool) {
	switch n := f.(type) {
	case *assemble.SegmentFrame:
		return view{&n.Include, &n.Embed, &n.Select, &n.Where, &n.Group,
			&n.Having, &n.Order, &n.Limit, &n.Offset, n.Space(), n.Baseline()}, true
	case *assemble.NestedFrame:
		return view{&n.Include, &n.Embed, &n.Select, &n.Where, &n.Group,
			&n.Having, &n.Order, &n.Limit, &n.Offset, n.Space(), n.Baseline()}, true
	}
	return view{}, false
}

// collapse flattens first anchors bottom-up.
func collapse(f assemble.Frame) {
	v, ok := viewOf(f)
	if !ok {
		return
	}
	for _, anc := range *v.include {
		collapse(anc.Frame)
	}
	for _, sub := range *v.embed {
		collapse(sub)
	}
	for absorb(v) {
	}
}

// absorb merges the first anchor of the frame into the frame itself when
// doing so cannot change the rows. It reports whether a merge happened.
func absorb(v view) bool {
	if len(*v.include) == 0 {
		return false
	}
	h, ok := (*v.include)[0].Frame.(*assemble.NestedFrame)
	if !ok || h.Permanent {
		return false
	}
	// A RIGHT-joined sibling preserves rows of whatever the first anchor
	// is; changing its shape is not safe.
	for _, anc := range (*v.include)[1:] {
		if anc.IsRight {
			return false
		}
	}

	single := len(*v.include) == 1

	if h.Limit != nil || h.Offset != nil {
		// A clip is only hoistable when the outer block selects the same
		// rows in the same order and applies nothing else of its own.
		if !single || *v.where != nil || len(*v.group) > 0 ||
			*v.limit != nil || *v.offset != nil {
			return false
		}
		if !space.Conforms(v.space, h.Space()) || !v.base.Equal(h.Baseline()) {
			return false
		}
		outer := substOrder(*v.order, h.Tag(), h.Select)
		if len(outer) > 0 && !equalOrder(outer, h.Order) {
			return false
		}
	}

	if len(h.Group) > 0 {
		// GROUP BY moves up only into a trivial block: the outer WHERE
		// becomes HAVING, so nothing else may depend on pre-group rows.
		if !single || len(*v.group) > 0 {
			return false
		}
	}

	// Commit: substitute references to h, then splice its parts.
	substFrame(v, h.Tag(), h.Select)

	*v.include = append(append([]*assemble.Anchor{}, h.Include...), (*v.include)[1:]...)
	*v.embed = append(h.Embed, *v.embed...)

	if len(h.Group) > 0 {
		*v.having = conjoin(*v.where, h.Having)
		*v.where = h.Where
		*v.group = h.Group
	} else {
		*v.where = conjoin(*v.where, h.Where)
		*v.having = conjoin(*v.having, h.Having)
	}
	if len(*v.order) == 0 {
		*v.order = h.Order
	}
	if h.Limit != nil {
		*v.limit = h.Limit
		*v.order = h.Order
	}
	if h.Offset != nil {
		*v.offset = h.Offset
		*v.order = h.Order
	}
	return true
}

func conjoin(a, b assemble.Phrase) assemble.Phrase {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return assemble.NewFormulaPhrase(nav.Boolean, space.OpAnd, a, b)
}

// substFrame replaces every reference to the absorbed frame by the
// phrase it exported.
func substFrame(v view, tag int, sel []assemble.Phrase) {
	for i, p := range *v.sel {
		(*v.sel)[i] = subst(p, tag, sel)
	}
	if *v.where != nil {
		*v.where = subst(*v.where, tag, sel)
	}
	for i, p := range *v.group {
		(*v.group)[i] = subst(p, tag, sel)
	}
	if *v.having != nil {
		*v.having = subst(*v.having, tag, sel)
	}
	*v.order = substOrder(*v.order, tag, sel)
	for _, anc := range (*v.include)[1:] {
		if anc.Condition != nil {
			anc.Condition = subst(anc.Condition, tag, sel)
		}
	}
	for _, sub := range *v.embed {
		if sub.Where != nil {
			sub.Where = subst(sub.Where, tag, sel)
		}
	}
}

func substOrder(order []assemble.OrderPhrase, tag int, sel []assemble.Phrase) []assemble.OrderPhrase {
	out := make([]assemble.OrderPhrase, len(order))
	for i, o := range order {
		out[i] = assemble.OrderPhrase{Phrase: subst(o.Phrase, tag, sel), Descending: o.Descending}
	}
	return out
}

func subst(p assemble.Phrase, tag int, sel []assemble.Phrase) assemble.Phrase {
	switch n := p.(type) {
	case *assemble.ReferencePhrase:
		if n.Tag() == tag {
			return sel[n.Index()]
		}
		return n

	case *assemble.CastPhrase:
		base := subst(n.Base(), tag, sel)
		if base == n.Base() {
			return n
		}
		return assemble.NewCastPhrase(n.Domain(), base)

	case *assemble.FormulaPhrase:
		changed := false
		args := make([]assemble.Phrase, len(n.Args()))
		for i, a := range n.Args() {
			args[i] = subst(a, tag, sel)
			if args[i] != n.Args()[i] {
				changed = true
			}
		}
		if !changed {
			return n
		}
		f := assemble.NewFormulaPhrase(n.Domain(), n.Op(), args...)
		return f

	case *assemble.EmbeddingPhrase:
		// Correlated conditions may reference the absorbed frame.
		if n.Sub().Where != nil {
			n.Sub().Where = subst(n.Sub().Where, tag, sel)
		}
		return n
	}
	return p
}

func equalOrder(a, b []assemble.OrderPhrase) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Descending != b[i].Descending || a[i].Phrase.Hash() != b[i].Phrase.Hash() {
			return false
		}
	}
	return true
}

// simplifyFrame folds constants across the whole tree and drops WHERE
// and HAVING clauses that reduced to TRUE.
func simplifyFrame(f assemble.Frame) {
	v, ok := viewOf(f)
	if !ok {
		return
	}
	for i, p := range *v.sel {
		(*v.sel)[i] = simplify(p)
	}
	if *v.where != nil {
		*v.where = dropTrue(simplify(*v.where))
	}
	for i, p := range *v.group {
		(*v.group)[i] = simplify(p)
	}
	if *v.having != nil {
		*v.having = dropTrue(simplify(*v.having))
	}
	for i, o := range *v.order {
		(*v.order)[i] = assemble.OrderPhrase{Phrase: simplify(o.Phrase), Descending: o.Descending}
	}
	for _, anc := range *v.include {
		if anc.Condition != nil {
			anc.Condition = dropTrue(simplify(anc.Condition))
		}
		simplifyFrame(anc.Frame)
	}
	for _, sub := range *v.embed {
		if sub.Where != nil {
			sub.Where = dropTrue(simplify(sub.Where))
		}
		simplifyFrame(sub)
	}
}

func dropTrue(p assemble.Phrase) assemble.Phrase {
	if lit, ok := p.(*assemble.LiteralPhrase); ok && lit.IsTrue() {
		return nil
	}
	return p
}

// simplify rebuilds a phrase with constant folding. Boolean folding only
// applies to the Boolean domain; NULL propagates per SQL semantics with
// total equality as the one null-safe exception.
func simplify(p assemble.Phrase) assemble.Phrase {
	n, ok := p.(*assemble.FormulaPhrase)
	if !ok {
		if c, isCast := p.(*assemble.CastPhrase); isCast {
			base := simplify(c.Base())
			if base.Domain().Equal(c.Domain()) {
				return base
			}
			return assemble.NewCastPhrase(c.Domain(), base)
		}
		return p
	}

	args := make([]assemble.Phrase, len(n.Args()))
	for i, a := range n.Args() {
		args[i] = simplify(a)
	}

	switch n.Op() {
	case space.OpAnd, space.OpOr:
		return simplifyConnective(n.Op(), args)

	case space.OpNot:
		if lit, ok := args[0].(*assemble.LiteralPhrase); ok {
			switch {
			case lit.IsTrue():
				return assemble.NewLiteralPhrase(nav.Boolean, false)
			case lit.IsFalse():
				return assemble.TruePhrase()
			case lit.Value() == nil:
				return assemble.NullPhrase(nav.Boolean)
			}
		}
		if inner, ok := args[0].(*assemble.FormulaPhrase); ok && inner.Op() == space.OpNot {
			return inner.Args()[0]
		}

	case space.OpIsNull:
		if !args[0].IsNullable() {
			return assemble.NewLiteralPhrase(nav.Boolean, false)
		}
		if lit, ok := args[0].(*assemble.LiteralPhrase); ok && lit.Value() == nil {
			return assemble.TruePhrase()
		}

	case space.OpIfNull:
		if !args[0].IsNullable() {
			return args[0]
		}
		if lit, ok := args[0].(*assemble.LiteralPhrase); ok && lit.Value() == nil {
			return args[1]
		}

	case space.OpTotalEqual:
		// With no nulls possible, total equality is plain equality, which
		// serializes without the null-compensating conditional.
		if !args[0].IsNullable() && !args[1].IsNullable() {
			return simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpEqual, args...))
		}

	case space.OpTotalNot:
		if !args[0].IsNullable() && !args[1].IsNullable() {
			return simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpNotEqual, args...))
		}

	case space.OpEqual, space.OpNotEqual:
		la, aok := args[0].(*assemble.LiteralPhrase)
		lb, bok := args[1].(*assemble.LiteralPhrase)
		if (aok && la.Value() == nil) || (bok && lb.Value() == nil) {
			return assemble.NullPhrase(nav.Boolean)
		}
		// Only boolean values fold statically; comparisons in other
		// domains follow the database's own collation and coercion.
		if aok && bok &&
			la.Domain().Equal(nav.Boolean) && lb.Domain().Equal(nav.Boolean) {
			eq := la.Hash() == lb.Hash()
			if n.Op() == space.OpNotEqual {
				eq = !eq
			}
			return assemble.NewLiteralPhrase(nav.Boolean, eq)
		}
	}

	return assemble.NewFormulaPhrase(n.Domain(), n.Op(), args...)
}

// simplifyConnective flattens and folds AND and OR chains. Folding away
// a constant is always null-safe here: AND(FALSE, x) is FALSE and
// OR(TRUE, x) is TRUE even when x is NULL.
func simplifyConnective(op string, args []assemble.Phrase) assemble.Phrase {
	identity := op == space.OpAnd // TRUE for AND, FALSE for OR
	var terms []assemble.Phrase
	var walk func(p assemble.Phrase)
	walk = func(p assemble.Phrase) {
		if inner, ok := p.(*assemble.FormulaPhrase); ok && inner.Op() == op {
			for _, a := range inner.Args() {
				walk(a)
			}
			return
		}
		terms = append(terms, p)
	}
	for _, a := range args {
		walk(a)
	}

	var flat []assemble.Phrase
	seen := map[uint64]bool{}
	for _, a := range terms {
		if lit, ok := a.(*assemble.LiteralPhrase); ok && (lit.IsTrue() || lit.IsFalse()) {
			if lit.IsTrue() == identity {
				continue // the identity element drops out
			}
			return assemble.NewLiteralPhrase(nav.Boolean, !identity)
		}
		if seen[a.Hash()] {
			continue
		}
		seen[a.Hash()] = true
		flat = append(flat, a)
	}
	switch len(flat) {
	case 0:
		return assemble.NewLiteralPhrase(nav.Boolean, identity)
	case 1:
		return flat[0]
	}
	return assemble.NewFormulaPhrase(nav.Boolean, op, flat...)
}
