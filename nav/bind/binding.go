// Package bind resolves a syntax tree against the catalog into a Binding
// tree: an attributed AST where every navigational step names a concrete
// table, column, link or function. Binding is a pure transform; it fails
// with a nav.Error carrying the source mark of the offending fragment.
package bind

import (
	"github.com/weftql/weft/nav"
)

// Binding is an attributed syntax node. Flow bindings (root, table,
// sieve, sort, quotient, ...) have the Void domain; expression bindings
// carry the domain of their value.
type Binding interface {
	Mark() nav.Mark
	Domain() nav.Domain
}

// RootBinding is the scope the whole query starts in.
type RootBinding struct {
	Catalog *nav.Catalog
	mark    nav.Mark
}

func (b *RootBinding) Mark() nav.Mark     { return b.mark }
func (b *RootBinding) Domain() nav.Domain { return nav.Void }

// TableBinding is a navigation to a table: free (from the root) or
// attached over a foreign-key join.
type TableBinding struct {
	Base  Binding
	Table *nav.Table
	// Join is nil for a free attach from the root scope.
	Join nav.Join
	mark nav.Mark
}

func (b *TableBinding) Mark() nav.Mark     { return b.mark }
func (b *TableBinding) Domain() nav.Domain { return nav.Void }

// SieveBinding filters the base flow by a boolean expression.
type SieveBinding struct {
	Base   Binding
	Filter Binding
	mark   nav.Mark
}

func (b *SieveBinding) Mark() nav.Mark     { return b.mark }
func (b *SieveBinding) Domain() nav.Domain { return nav.Void }

// OrderBinding is one sort key.
type OrderBinding struct {
	Key        Binding
	Descending bool
}

// SortBinding orders the base flow.
type SortBinding struct {
	Base  Binding
	Order []OrderBinding
	mark  nav.Mark
}

func (b *SortBinding) Mark() nav.Mark     { return b.mark }
func (b *SortBinding) Domain() nav.Domain { return nav.Void }

// ClipBinding applies LIMIT and optionally OFFSET to the base flow.
type ClipBinding struct {
	Base   Binding
	Limit  *int
	Offset *int
	mark   nav.Mark
}

func (b *ClipBinding) Mark() nav.Mark     { return b.mark }
func (b *ClipBinding) Domain() nav.Domain { return nav.Void }

// QuotientBinding groups the seed flow by kernel expressions.
type QuotientBinding struct {
	Base        Binding
	Seed        Binding
	Kernels     []Binding
	KernelNames []string
	// SeedName is the name the complement is reachable under inside the
	// quotient scope, usually the seed table's name.
	SeedName string
	mark     nav.Mark
}

func (b *QuotientBinding) Mark() nav.Mark     { return b.mark }
func (b *QuotientBinding) Domain() nav.Domain { return nav.Void }

// KernelBinding references one kernel expression of an enclosing quotient.
type KernelBinding struct {
	Quotient *QuotientBinding
	Index    int
	mark     nav.Mark
}

func (b *KernelBinding) Mark() nav.Mark     { return b.mark }
func (b *KernelBinding) Domain() nav.Domain { return b.Quotient.Kernels[b.Index].Domain() }

// ComplementBinding opens the seed rows of an enclosing quotient.
type ComplementBinding struct {
	Base     Binding
	Quotient *QuotientBinding
	mark     nav.Mark
}

func (b *ComplementBinding) Mark() nav.Mark     { return b.mark }
func (b *ComplementBinding) Domain() nav.Domain { return nav.Void }

// ForkBinding attaches the sibling rows sharing the same kernel values:
// fork() and fork(expr, ...).
type ForkBinding struct {
	Base    Binding
	Kernels []Binding
	mark    nav.Mark
}

func (b *ForkBinding) Mark() nav.Mark     { return b.mark }
func (b *ForkBinding) Domain() nav.Domain { return nav.Void }

// SelectionBinding is a segment: the flow plus the output expressions.
type SelectionBinding struct {
	Base     Binding
	Elements []Binding
	Names    []string
	mark     nav.Mark
}

func (b *SelectionBinding) Mark() nav.Mark     { return b.mark }
func (b *SelectionBinding) Domain() nav.Domain { return nav.Void }

// ColumnBinding reads a column in the scope of its base flow.
type ColumnBinding struct {
	Base   Binding
	Column *nav.Column
	mark   nav.Mark
}

func (b *ColumnBinding) Mark() nav.Mark     { return b.mark }
func (b *ColumnBinding) Domain() nav.Domain { return b.Column.Domain }

// LiteralBinding is a typed constant.
type LiteralBinding struct {
	Value  interface{}
	domain nav.Domain
	mark   nav.Mark
}

func (b *LiteralBinding) Mark() nav.Mark     { return b.mark }
func (b *LiteralBinding) Domain() nav.Domain { return b.domain }

// CastBinding converts an expression to another domain.
type CastBinding struct {
	Base   Binding
	domain nav.Domain
	mark   nav.Mark
}

func (b *CastBinding) Mark() nav.Mark     { return b.mark }
func (b *CastBinding) Domain() nav.Domain { return b.domain }

// FormulaBinding applies a scalar operator to arguments.
type FormulaBinding struct {
	Op     string
	Args   []Binding
	domain nav.Domain
	mark   nav.Mark
}

func (b *FormulaBinding) Mark() nav.Mark     { return b.mark }
func (b *FormulaBinding) Domain() nav.Domain { return b.domain }

// AggregateBinding applies an aggregate function: the operand is plural
// relative to the base flow the result lives on.
type AggregateBinding struct {
	Op      string
	Base    Binding
	Operand Binding
	mark    nav.Mark
}

func (b *AggregateBinding) Mark() nav.Mark { return b.mark }

func (b *AggregateBinding) Domain() nav.Domain {
	switch b.Op {
	case "count":
		return nav.Integer
	case "exists", "every", "some":
		return nav.Boolean
	}
	return b.Operand.Domain()
}

// ReferenceBinding is an environment parameter.
type ReferenceBinding struct {
	Name   string
	Value  interface{}
	domain nav.Domain
	mark   nav.Mark
}

func (b *ReferenceBinding) Mark() nav.Mark     { return b.mark }
func (b *ReferenceBinding) Domain() nav.Domain { return b.domain }
