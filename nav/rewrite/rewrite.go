// Package rewrite is the mask-aware simplification pass over the space
// algebra: any filter or ordering already implied by an enclosing mask
// space is pruned before compilation. The pass is idempotent:
// Rewrite(Rewrite(x, m), m) == Rewrite(x, m).
package rewrite

import (
	"github.com/weftql/weft/nav/space"
)

// Rewrite prunes the operations of s that the mask already guarantees.
// The mask is an ambient space known to be present at the current scope.
func Rewrite(s, mask space.Space) space.Space {
	switch n := s.(type) {
	case *space.RootSpace:
		return n

	case *space.FilteredSpace:
		if Prune(n, mask).Equal(Prune(n.Base(), mask)) {
			return Rewrite(n.Base(), mask)
		}
		inner := mask
		if !space.Dominates(n.Base(), mask) {
			inner = n.Base()
		}
		return space.NewFilteredSpace(
			Rewrite(n.Base(), mask), RewriteCode(n.Filter(), inner))

	case *space.OrderedSpace:
		if !n.IsClipped() && Prune(n, mask).Equal(Prune(n.Base(), mask)) {
			return Rewrite(n.Base(), mask)
		}
		inner := mask
		if !space.Dominates(n.Base(), mask) {
			inner = n.Base()
		}
		order := make([]space.OrderItem, len(n.Order()))
		for i, o := range n.Order() {
			order[i] = space.OrderItem{
				Code:       RewriteCode(o.Code, inner),
				Descending: o.Descending,
			}
		}
		return space.NewOrderedSpace(Rewrite(n.Base(), mask), order, n.Limit(), n.Offset())

	case *space.TableSpace:
		return space.NewTableSpace(Rewrite(n.Base(), mask), n.Table())

	case *space.FiberSpace:
		return space.NewFiberSpace(Rewrite(n.Base(), mask), n.Join())

	case *space.QuotientSpace:
		base := Rewrite(n.Base(), mask)
		seed := Rewrite(n.Seed(), base)
		kernels := make([]space.Code, len(n.Kernels()))
		for i, k := range n.Kernels() {
			kernels[i] = RewriteCode(k, seed)
		}
		return space.NewQuotientSpace(base, seed, kernels)

	case *space.ComplementSpace:
		base := Rewrite(n.Base(), mask)
		quotient := findQuotient(base)
		if quotient == nil {
			quotient = n.Quotient()
		}
		return space.NewComplementSpace(base, quotient)

	case *space.MonikerSpace:
		base := Rewrite(n.Base(), mask)
		return space.NewMonikerSpace(base, Rewrite(n.Seed(), base))

	case *space.ForkedSpace:
		base := Rewrite(n.Base(), mask)
		kernels := make([]space.Code, len(n.Kernels()))
		for i, k := range n.Kernels() {
			kernels[i] = RewriteCode(k, base)
		}
		return space.NewForkedSpace(base, kernels)

	case *space.LinkedSpace:
		base := Rewrite(n.Base(), mask)
		seed := Rewrite(n.Seed(), base)
		ties := make([]space.Tie, len(n.Ties()))
		for i, t := range n.Ties() {
			ties[i] = space.Tie{
				Left:  RewriteCode(t.Left, base),
				Right: RewriteCode(t.Right, seed),
			}
		}
		return space.NewLinkedSpace(base, seed, ties)
	}
	return s
}

// RewriteCode rewrites the spaces of every unit inside a code.
func RewriteCode(c space.Code, mask space.Space) space.Code {
	switch n := c.(type) {
	case *space.LiteralCode, *space.ReferenceCode:
		return n

	case *space.CastCode:
		return space.NewCastCode(n.Domain(), RewriteCode(n.Base(), mask))

	case *space.FormulaCode:
		args := make([]space.Code, len(n.Args()))
		for i, a := range n.Args() {
			args[i] = RewriteCode(a, mask)
		}
		return space.NewFormulaCode(n.Domain(), n.Op(), args...)

	case *space.ColumnUnit:
		return space.NewColumnUnit(n.Column(), Rewrite(n.Space(), mask))

	case *space.ScalarUnit:
		sp := Rewrite(n.Space(), mask)
		return space.NewScalarUnit(RewriteCode(n.Code(), sp), sp)

	case *space.AggregateUnit:
		sp := Rewrite(n.Space(), mask)
		plural := Rewrite(n.PluralSpace(), sp)
		return space.NewAggregateUnit(n.Op(), RewriteCode(n.Operand(), plural), plural, sp)

	case *space.CorrelatedUnit:
		sp := Rewrite(n.Space(), mask)
		plural := Rewrite(n.PluralSpace(), sp)
		return space.NewCorrelatedUnit(n.Op(), RewriteCode(n.Operand(), plural), plural, sp)

	case *space.KernelUnit:
		sp := Rewrite(n.Quotient(), mask)
		if quotient, ok := sp.(*space.QuotientSpace); ok {
			return space.NewKernelUnit(n.Index(), quotient)
		}
		return n

	case *space.ComplementUnit:
		sp := Rewrite(n.Space(), mask)
		if complement, ok := sp.(*space.ComplementSpace); ok {
			seed := complement.Quotient().Seed()
			return space.NewComplementUnit(RewriteCode(n.Code(), seed), complement)
		}
		return n
	}
	return c
}

// Prune discards the non-axis operations of a that also appear,
// structurally, in the chain of b, stopping at the first axis. The result
// is the smallest space equivalent to a under the assumption of b.
func Prune(a, b space.Space) space.Space {
	if a.IsInflated() {
		return a
	}
	// Collect the non-axis tail above the first axis ancestor.
	var tail []space.Space
	node := a
	for node != nil && !node.IsAxis() {
		tail = append(tail, node)
		node = node.Base()
	}
	result := node
	for i := len(tail) - 1; i >= 0; i-- {
		candidate := rebuildNonAxis(tail[i], result)
		if !inChain(b, candidate) {
			result = candidate
		}
	}
	return result
}

// rebuildNonAxis clones a filter or ordering onto a replacement base.
func rebuildNonAxis(op, base space.Space) space.Space {
	switch n := op.(type) {
	case *space.FilteredSpace:
		return space.NewFilteredSpace(base, n.Filter())
	case *space.OrderedSpace:
		return space.NewOrderedSpace(base, n.Order(), n.Limit(), n.Offset())
	}
	return op
}

func inChain(b space.Space, node space.Space) bool {
	for _, cand := range space.Unfold(b) {
		if cand.Equal(node) {
			return true
		}
	}
	return false
}

func findQuotient(s space.Space) *space.QuotientSpace {
	for _, node := range space.Unfold(s) {
		if q, ok := node.(*space.QuotientSpace); ok {
			return q
		}
	}
	return nil
}
