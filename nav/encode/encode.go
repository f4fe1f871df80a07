// Package encode lowers a Binding tree into the space algebra: Relate
// produces the Space a flow describes, Encode produces the Code of an
// expression. The two are mutually recursive and purely constructive.
package encode

import (
	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/bind"
	"github.com/weftql/weft/nav/space"
)

// State carries the per-translation interner and the root space.
type State struct {
	Root     *space.RootSpace
	interner *space.Interner
}

// NewState creates the encoding state for one translation.
func NewState() *State {
	return &State{Root: space.Root(), interner: space.NewInterner()}
}

// Relate produces the Space of a flow binding.
func (st *State) Relate(b bind.Binding) (space.Space, error) {
	switch n := b.(type) {
	case *bind.RootBinding:
		return st.intern(st.Root), nil

	case *bind.TableBinding:
		base, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		if n.Join == nil {
			return st.intern(space.NewTableSpace(base, n.Table)), nil
		}
		return st.intern(space.NewFiberSpace(base, n.Join)), nil

	case *bind.SieveBinding:
		base, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		filter, err := st.Encode(n.Filter)
		if err != nil {
			return nil, err
		}
		return st.intern(space.NewFilteredSpace(base, filter)), nil

	case *bind.SortBinding:
		base, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		var order []space.OrderItem
		for _, o := range n.Order {
			key, err := st.encodeOrderKey(o.Key, base)
			if err != nil {
				return nil, err
			}
			order = append(order, space.OrderItem{Code: key, Descending: o.Descending})
		}
		return st.intern(space.NewOrderedSpace(base, order, nil, nil)), nil

	case *bind.ClipBinding:
		base, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		return st.intern(space.NewOrderedSpace(base, nil, n.Limit, n.Offset)), nil

	case *bind.QuotientBinding:
		base, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		seed, err := st.Relate(n.Seed)
		if err != nil {
			return nil, err
		}
		kernels := make([]space.Code, len(n.Kernels))
		for i, k := range n.Kernels {
			code, err := st.Encode(k)
			if err != nil {
				return nil, err
			}
			kernels[i] = code
		}
		return st.intern(space.NewQuotientSpace(base, seed, kernels)), nil

	case *bind.ComplementBinding:
		base, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		quotient := findQuotient(base)
		if quotient == nil {
			return nil, nav.NewError(
				nav.ErrSyntax.New("a complement requires an enclosing grouping"), n.Mark())
		}
		return st.intern(space.NewComplementSpace(base, quotient)), nil

	case *bind.ForkBinding:
		base, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		kernels := make([]space.Code, len(n.Kernels))
		for i, k := range n.Kernels {
			code, err := st.Encode(k)
			if err != nil {
				return nil, err
			}
			kernels[i] = code
		}
		return st.intern(space.NewForkedSpace(base, kernels)), nil

	case *bind.SelectionBinding:
		return st.Relate(n.Base)
	}
	return nil, nav.NewError(
		nav.ErrSyntax.New("expected a flow expression"), b.Mark())
}

// Encode produces the Code of an expression binding.
func (st *State) Encode(b bind.Binding) (space.Code, error) {
	switch n := b.(type) {
	case *bind.LiteralBinding:
		return st.internCode(space.NewLiteralCode(n.Domain(), n.Value)), nil

	case *bind.ReferenceBinding:
		return st.internCode(space.NewReferenceCode(n.Domain(), n.Name, n.Value)), nil

	case *bind.CastBinding:
		base, err := st.Encode(n.Base)
		if err != nil {
			return nil, err
		}
		return st.internCode(space.NewCastCode(n.Domain(), base)), nil

	case *bind.FormulaBinding:
		args := make([]space.Code, len(n.Args))
		for i, a := range n.Args {
			arg, err := st.Encode(a)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		return st.internCode(space.NewFormulaCode(n.Domain(), n.Op, args...)), nil

	case *bind.ColumnBinding:
		sp, err := st.Relate(n.Base)
		if err != nil {
			return nil, err
		}
		if complement, ok := sp.(*space.ComplementSpace); ok {
			inner := space.NewColumnUnit(n.Column, complement.Quotient().Seed())
			return st.internCode(space.NewComplementUnit(inner, complement)), nil
		}
		return st.internCode(space.NewColumnUnit(n.Column, sp)), nil

	case *bind.KernelBinding:
		sp, err := st.Relate(n.Quotient)
		if err != nil {
			return nil, err
		}
		quotient, ok := sp.(*space.QuotientSpace)
		if !ok {
			quotient = findQuotient(sp)
		}
		if quotient == nil {
			return nil, nav.NewError(
				nav.ErrSyntax.New("a kernel requires an enclosing grouping"), n.Mark())
		}
		return st.internCode(space.NewKernelUnit(n.Index, quotient)), nil

	case *bind.AggregateBinding:
		return st.encodeAggregate(n)
	}
	return nil, nav.NewError(
		nav.ErrSyntax.New("expected a scalar expression"), b.Mark())
}

// encodeAggregate picks the plural space of an aggregate per the
// convergence rules: the smallest space among the operand's units that
// spans the base without being spanned back.
func (st *State) encodeAggregate(n *bind.AggregateBinding) (space.Code, error) {
	base, err := st.Relate(n.Base)
	if err != nil {
		return nil, err
	}

	var operand space.Code
	var candidates []space.Space

	if n.Operand.Domain().Equal(nav.Void) {
		// A flow operand: the aggregate ranges over its rows.
		opSpace, err := st.Relate(n.Operand)
		if err != nil {
			return nil, err
		}
		operand = st.internCode(space.NewLiteralCode(nav.Boolean, true))
		candidates = []space.Space{opSpace}
	} else {
		operand, err = st.Encode(n.Operand)
		if err != nil {
			return nil, err
		}
		for _, u := range operand.Units() {
			dup := false
			for _, c := range candidates {
				if c.Equal(u.Space()) {
					dup = true
					break
				}
			}
			if !dup {
				candidates = append(candidates, u.Space())
			}
		}
	}

	// Keep only candidates that are plural relative to the base.
	var plural []space.Space
	for _, c := range candidates {
		if space.Spans(c, base) && !space.Spans(base, c) {
			plural = append(plural, c)
		}
	}
	if len(plural) == 0 {
		return nil, nav.NewError(nav.ErrPluralOperandRequired.New(), n.Mark())
	}

	// The plural space is the smallest candidate: the one every other
	// candidate spans. Incomparable candidates are an error.
	var chosen space.Space
	for _, c := range plural {
		smallest := true
		for _, o := range plural {
			if !space.Spans(o, c) {
				smallest = false
				break
			}
		}
		if smallest {
			chosen = c
			break
		}
	}
	if chosen == nil {
		return nil, nav.NewError(nav.ErrInvalidPluralOperand.New(), n.Mark())
	}

	if n.Op == space.AggExists {
		return st.internCode(space.NewCorrelatedUnit(n.Op, operand, chosen, base)), nil
	}
	return st.internCode(space.NewAggregateUnit(n.Op, operand, chosen, base)), nil
}

// encodeOrderKey encodes a sort key, wrapping computed expressions into a
// scalar unit over the flow they order.
func (st *State) encodeOrderKey(b bind.Binding, flow space.Space) (space.Code, error) {
	code, err := st.Encode(b)
	if err != nil {
		return nil, err
	}
	if _, isUnit := code.(space.Unit); !isUnit && len(code.Units()) > 0 {
		code = st.internCode(space.NewScalarUnit(code, flow))
	}
	return code, nil
}

func (st *State) intern(s space.Space) space.Space {
	return st.interner.Space(s)
}

func (st *State) internCode(c space.Code) space.Code {
	return st.interner.Code(c)
}

// findQuotient walks the chain of s for its innermost quotient axis.
func findQuotient(s space.Space) *space.QuotientSpace {
	for _, node := range space.Unfold(s) {
		if q, ok := node.(*space.QuotientSpace); ok {
			return q
		}
	}
	return nil
}
