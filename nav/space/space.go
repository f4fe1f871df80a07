package space

import (
	"fmt"
	"strings"

	"github.com/weftql/weft/nav"
)

// Family tags the row shape of a space.
type Family int

const (
	ScalarFamily Family = iota
	TableFamily
	KernelFamily
)

// Space describes a multiset of rows as a chain of operations applied one
// per step from the unique Root. Chains are persistent, shared and
// acyclic: a node owns its base and a parent never points at a child.
//
// IsContracting and IsExpanding are relative to the base:
//
//	contracting: every base row yields at most one row here.
//	expanding:   every base row yields at least one row here.
//
// An axis operation changes row shape; non-axis operations (filter,
// order) keep the base shape. IsInflated holds when the node and every
// ancestor up to Root is an axis.
type Space interface {
	Base() Space
	Family() Family
	// Table returns the attached table for table-family spaces, nil
	// otherwise.
	Table() *nav.Table
	IsAxis() bool
	IsContracting() bool
	IsExpanding() bool
	IsInflated() bool
	Hash() uint64
	Equal(Space) bool
	String() string

	// rebase clones the node onto a replacement base. Only inflate and
	// prune use it; the clone keeps every own field.
	rebase(base Space) Space
}

// OrderItem is one sort key with its direction.
type OrderItem struct {
	Code       Code
	Descending bool
}

// Tie is one equality pair linking a space to its seed.
type Tie struct {
	Left  Code
	Right Code
}

// RootSpace is the origin of every chain: the one-row scalar space.
type RootSpace struct {
	hash uint64
}

// Root returns the root space.
func Root() *RootSpace {
	return &RootSpace{hash: hashVector(struct{ Kind string }{"root"})}
}

func (s *RootSpace) Base() Space         { return nil }
func (s *RootSpace) Family() Family      { return ScalarFamily }
func (s *RootSpace) Table() *nav.Table   { return nil }
func (s *RootSpace) IsAxis() bool        { return true }
func (s *RootSpace) IsContracting() bool { return false }
func (s *RootSpace) IsExpanding() bool   { return false }
func (s *RootSpace) IsInflated() bool    { return true }
func (s *RootSpace) Hash() uint64        { return s.hash }

func (s *RootSpace) Equal(other Space) bool {
	_, ok := other.(*RootSpace)
	return ok
}

func (s *RootSpace) String() string       { return "I" }
func (s *RootSpace) rebase(b Space) Space { return s }

// TableSpace attaches a table to a scalar base: every base row pairs with
// every table row. Axis.
type TableSpace struct {
	base  Space
	table *nav.Table
	hash  uint64
}

// NewTableSpace attaches table to base.
func NewTableSpace(base Space, table *nav.Table) *TableSpace {
	return &TableSpace{
		base:  base,
		table: table,
		hash: hashVector(struct {
			Kind  string
			Base  uint64
			Table string
		}{"table", base.Hash(), table.String()}),
	}
}

func (s *TableSpace) Base() Space         { return s.base }
func (s *TableSpace) Family() Family      { return TableFamily }
func (s *TableSpace) Table() *nav.Table   { return s.table }
func (s *TableSpace) IsAxis() bool        { return true }
func (s *TableSpace) IsContracting() bool { return false }
func (s *TableSpace) IsExpanding() bool   { return false }
func (s *TableSpace) IsInflated() bool    { return s.base.IsInflated() }
func (s *TableSpace) Hash() uint64        { return s.hash }

func (s *TableSpace) Equal(other Space) bool {
	o, ok := other.(*TableSpace)
	return ok && s.hash == o.hash && s.table == o.table && s.base.Equal(o.base)
}

func (s *TableSpace) String() string {
	return s.base.String() + " x " + s.table.Name
}

func (s *TableSpace) rebase(b Space) Space { return NewTableSpace(b, s.table) }

// FiberSpace attaches a table reached over a foreign-key join. Axis; its
// cardinality flags come straight off the join.
type FiberSpace struct {
	base Space
	join nav.Join
	hash uint64
}

// NewFiberSpace attaches the target of join to base.
func NewFiberSpace(base Space, join nav.Join) *FiberSpace {
	return &FiberSpace{
		base: base,
		join: join,
		hash: hashVector(struct {
			Kind string
			Base uint64
			Join string
		}{"fiber", base.Hash(), join.String()}),
	}
}

func (s *FiberSpace) Base() Space         { return s.base }
func (s *FiberSpace) Family() Family      { return TableFamily }
func (s *FiberSpace) Table() *nav.Table   { return s.join.Target() }
func (s *FiberSpace) Join() nav.Join      { return s.join }
func (s *FiberSpace) IsAxis() bool        { return true }
func (s *FiberSpace) IsContracting() bool { return s.join.IsContracting() }
func (s *FiberSpace) IsExpanding() bool   { return s.join.IsExpanding() }
func (s *FiberSpace) IsInflated() bool    { return s.base.IsInflated() }
func (s *FiberSpace) Hash() uint64        { return s.hash }

func (s *FiberSpace) Equal(other Space) bool {
	o, ok := other.(*FiberSpace)
	return ok && s.hash == o.hash && s.join.Equal(o.join) && s.base.Equal(o.base)
}

func (s *FiberSpace) String() string {
	return s.base.String() + " . " + s.join.Target().Name
}

func (s *FiberSpace) rebase(b Space) Space { return NewFiberSpace(b, s.join) }

// QuotientSpace groups the rows of a seed space by kernel expressions:
// one row per distinct kernel value. Axis.
type QuotientSpace struct {
	base    Space
	seed    Space
	kernels []Code
	hash    uint64
}

// NewQuotientSpace groups seed (an extension of base) by the kernel codes.
func NewQuotientSpace(base, seed Space, kernels []Code) *QuotientSpace {
	hashes := make([]uint64, len(kernels))
	for i, k := range kernels {
		hashes[i] = k.Hash()
	}
	return &QuotientSpace{
		base:    base,
		seed:    seed,
		kernels: kernels,
		hash: hashVector(struct {
			Kind    string
			Base    uint64
			Seed    uint64
			Kernels []uint64
		}{"quotient", base.Hash(), seed.Hash(), hashes}),
	}
}

func (s *QuotientSpace) Base() Space         { return s.base }
func (s *QuotientSpace) Family() Family      { return KernelFamily }
func (s *QuotientSpace) Table() *nav.Table   { return nil }
func (s *QuotientSpace) Seed() Space         { return s.seed }
func (s *QuotientSpace) Kernels() []Code     { return s.kernels }
func (s *QuotientSpace) IsAxis() bool        { return true }
func (s *QuotientSpace) IsContracting() bool { return false }
func (s *QuotientSpace) IsExpanding() bool   { return false }
func (s *QuotientSpace) IsInflated() bool    { return s.base.IsInflated() }
func (s *QuotientSpace) Hash() uint64        { return s.hash }

func (s *QuotientSpace) Equal(other Space) bool {
	o, ok := other.(*QuotientSpace)
	if !ok || s.hash != o.hash || len(s.kernels) != len(o.kernels) {
		return false
	}
	for i := range s.kernels {
		if !s.kernels[i].Equal(o.kernels[i]) {
			return false
		}
	}
	return s.seed.Equal(o.seed) && s.base.Equal(o.base)
}

func (s *QuotientSpace) String() string {
	kernels := make([]string, len(s.kernels))
	for i, k := range s.kernels {
		kernels[i] = k.String()
	}
	return fmt.Sprintf("%s ^ {%s}", s.seed, strings.Join(kernels, ","))
}

func (s *QuotientSpace) rebase(b Space) Space {
	return NewQuotientSpace(b, s.seed, s.kernels)
}

// ComplementSpace recovers the seed rows of an enclosing quotient: every
// group row expands back to the rows it was built from. Axis; expanding
// because every group has at least one seed row by construction.
type ComplementSpace struct {
	base     Space
	quotient *QuotientSpace
	hash     uint64
}

// NewComplementSpace opens the complement of the quotient reachable from
// base. base must have a QuotientSpace among its axes.
func NewComplementSpace(base Space, quotient *QuotientSpace) *ComplementSpace {
	return &ComplementSpace{
		base:     base,
		quotient: quotient,
		hash: hashVector(struct {
			Kind     string
			Base     uint64
			Quotient uint64
		}{"complement", base.Hash(), quotient.Hash()}),
	}
}

func (s *ComplementSpace) Base() Space              { return s.base }
func (s *ComplementSpace) Family() Family           { return s.quotient.Seed().Family() }
func (s *ComplementSpace) Table() *nav.Table        { return s.quotient.Seed().Table() }
func (s *ComplementSpace) Quotient() *QuotientSpace { return s.quotient }
func (s *ComplementSpace) IsAxis() bool             { return true }
func (s *ComplementSpace) IsContracting() bool      { return false }
func (s *ComplementSpace) IsExpanding() bool        { return true }
func (s *ComplementSpace) IsInflated() bool         { return s.base.IsInflated() }
func (s *ComplementSpace) Hash() uint64             { return s.hash }

func (s *ComplementSpace) Equal(other Space) bool {
	o, ok := other.(*ComplementSpace)
	return ok && s.hash == o.hash && s.quotient.Equal(o.quotient) && s.base.Equal(o.base)
}

func (s *ComplementSpace) String() string { return s.base.String() + " ^-1" }

func (s *ComplementSpace) rebase(b Space) Space {
	return NewComplementSpace(b, s.quotient)
}

// MonikerSpace wraps a correlated seed under a fresh name, isolating it
// from outer rewrites. Axis.
type MonikerSpace struct {
	base Space
	seed Space
	hash uint64
}

// NewMonikerSpace wraps seed relative to base.
func NewMonikerSpace(base, seed Space) *MonikerSpace {
	return &MonikerSpace{
		base: base,
		seed: seed,
		hash: hashVector(struct {
			Kind string
			Base uint64
			Seed uint64
		}{"moniker", base.Hash(), seed.Hash()}),
	}
}

func (s *MonikerSpace) Base() Space         { return s.base }
func (s *MonikerSpace) Family() Family      { return s.seed.Family() }
func (s *MonikerSpace) Table() *nav.Table   { return s.seed.Table() }
func (s *MonikerSpace) Seed() Space         { return s.seed }
func (s *MonikerSpace) IsAxis() bool        { return true }
func (s *MonikerSpace) IsContracting() bool { return false }
func (s *MonikerSpace) IsExpanding() bool   { return false }
func (s *MonikerSpace) IsInflated() bool    { return s.base.IsInflated() }
func (s *MonikerSpace) Hash() uint64        { return s.hash }

func (s *MonikerSpace) Equal(other Space) bool {
	o, ok := other.(*MonikerSpace)
	return ok && s.hash == o.hash && s.seed.Equal(o.seed) && s.base.Equal(o.base)
}

func (s *MonikerSpace) String() string { return s.base.String() + " (" + s.seed.String() + ")" }

func (s *MonikerSpace) rebase(b Space) Space { return NewMonikerSpace(b, s.seed) }

// ForkedSpace attaches the rows of the base axis that share the same
// kernel values with the current row: a self-join used by fork(). Axis;
// expanding because each row matches at least itself.
type ForkedSpace struct {
	base    Space
	kernels []Code
	hash    uint64
}

// NewForkedSpace forks base over the kernel codes. With no kernels the
// fork covers the whole axis.
func NewForkedSpace(base Space, kernels []Code) *ForkedSpace {
	hashes := make([]uint64, len(kernels))
	for i, k := range kernels {
		hashes[i] = k.Hash()
	}
	return &ForkedSpace{
		base:    base,
		kernels: kernels,
		hash: hashVector(struct {
			Kind    string
			Base    uint64
			Kernels []uint64
		}{"forked", base.Hash(), hashes}),
	}
}

func (s *ForkedSpace) Base() Space         { return s.base }
func (s *ForkedSpace) Family() Family      { return s.base.Family() }
func (s *ForkedSpace) Table() *nav.Table   { return s.base.Table() }
func (s *ForkedSpace) Kernels() []Code     { return s.kernels }
func (s *ForkedSpace) IsAxis() bool        { return true }
func (s *ForkedSpace) IsContracting() bool { return false }
func (s *ForkedSpace) IsExpanding() bool   { return true }
func (s *ForkedSpace) IsInflated() bool    { return s.base.IsInflated() }
func (s *ForkedSpace) Hash() uint64        { return s.hash }

func (s *ForkedSpace) Equal(other Space) bool {
	o, ok := other.(*ForkedSpace)
	if !ok || s.hash != o.hash || len(s.kernels) != len(o.kernels) {
		return false
	}
	for i := range s.kernels {
		if !s.kernels[i].Equal(o.kernels[i]) {
			return false
		}
	}
	return s.base.Equal(o.base)
}

func (s *ForkedSpace) String() string { return s.base.String() + " fork" }

func (s *ForkedSpace) rebase(b Space) Space { return NewForkedSpace(b, s.kernels) }

// LinkedSpace attaches a seed space correlated to the base over explicit
// tie conditions. Axis.
type LinkedSpace struct {
	base Space
	seed Space
	ties []Tie
	hash uint64
}

// NewLinkedSpace links seed to base over the given ties.
func NewLinkedSpace(base, seed Space, ties []Tie) *LinkedSpace {
	hashes := make([][2]uint64, len(ties))
	for i, t := range ties {
		hashes[i] = [2]uint64{t.Left.Hash(), t.Right.Hash()}
	}
	return &LinkedSpace{
		base: base,
		seed: seed,
		ties: ties,
		hash: hashVector(struct {
			Kind string
			Base uint64
			Seed uint64
			Ties [][2]uint64
		}{"linked", base.Hash(), seed.Hash(), hashes}),
	}
}

func (s *LinkedSpace) Base() Space         { return s.base }
func (s *LinkedSpace) Family() Family      { return s.seed.Family() }
func (s *LinkedSpace) Table() *nav.Table   { return s.seed.Table() }
func (s *LinkedSpace) Seed() Space         { return s.seed }
func (s *LinkedSpace) Ties() []Tie         { return s.ties }
func (s *LinkedSpace) IsAxis() bool        { return true }
func (s *LinkedSpace) IsContracting() bool { return false }
func (s *LinkedSpace) IsExpanding() bool   { return false }
func (s *LinkedSpace) IsInflated() bool    { return s.base.IsInflated() }
func (s *LinkedSpace) Hash() uint64        { return s.hash }

func (s *LinkedSpace) Equal(other Space) bool {
	o, ok := other.(*LinkedSpace)
	if !ok || s.hash != o.hash || len(s.ties) != len(o.ties) {
		return false
	}
	for i := range s.ties {
		if !s.ties[i].Left.Equal(o.ties[i].Left) || !s.ties[i].Right.Equal(o.ties[i].Right) {
			return false
		}
	}
	return s.seed.Equal(o.seed) && s.base.Equal(o.base)
}

func (s *LinkedSpace) String() string { return s.base.String() + " -> " + s.seed.String() }

func (s *LinkedSpace) rebase(b Space) Space { return NewLinkedSpace(b, s.seed, s.ties) }

// FilteredSpace keeps the base rows satisfying a predicate. Non-axis;
// contracting.
type FilteredSpace struct {
	base   Space
	filter Code
	hash   uint64
}

// NewFilteredSpace sieves base by filter.
func NewFilteredSpace(base Space, filter Code) *FilteredSpace {
	return &FilteredSpace{
		base:   base,
		filter: filter,
		hash: hashVector(struct {
			Kind   string
			Base   uint64
			Filter uint64
		}{"filtered", base.Hash(), filter.Hash()}),
	}
}

func (s *FilteredSpace) Base() Space         { return s.base }
func (s *FilteredSpace) Family() Family      { return s.base.Family() }
func (s *FilteredSpace) Table() *nav.Table   { return s.base.Table() }
func (s *FilteredSpace) Filter() Code        { return s.filter }
func (s *FilteredSpace) IsAxis() bool        { return false }
func (s *FilteredSpace) IsContracting() bool { return true }
func (s *FilteredSpace) IsExpanding() bool   { return false }
func (s *FilteredSpace) IsInflated() bool    { return false }
func (s *FilteredSpace) Hash() uint64        { return s.hash }

func (s *FilteredSpace) Equal(other Space) bool {
	o, ok := other.(*FilteredSpace)
	return ok && s.hash == o.hash && s.filter.Equal(o.filter) && s.base.Equal(o.base)
}

func (s *FilteredSpace) String() string {
	return s.base.String() + " ? " + s.filter.String()
}

func (s *FilteredSpace) rebase(b Space) Space { return NewFilteredSpace(b, s.filter) }

// OrderedSpace reorders the base rows and optionally clips them. Non-axis.
// Without a clip it is a bijection of the base; with LIMIT or OFFSET the
// row count becomes observable and the space stops being expanding.
type OrderedSpace struct {
	base   Space
	order  []OrderItem
	limit  *int
	offset *int
	hash   uint64
}

// NewOrderedSpace orders base; limit and offset may be nil.
func NewOrderedSpace(base Space, order []OrderItem, limit, offset *int) *OrderedSpace {
	type orderVector struct {
		Code       uint64
		Descending bool
	}
	vec := make([]orderVector, len(order))
	for i, o := range order {
		vec[i] = orderVector{o.Code.Hash(), o.Descending}
	}
	lim, off := -1, -1
	if limit != nil {
		lim = *limit
	}
	if offset != nil {
		off = *offset
	}
	return &OrderedSpace{
		base:   base,
		order:  order,
		limit:  limit,
		offset: offset,
		hash: hashVector(struct {
			Kind   string
			Base   uint64
			Order  []orderVector
			Limit  int
			Offset int
		}{"ordered", base.Hash(), vec, lim, off}),
	}
}

func (s *OrderedSpace) Base() Space         { return s.base }
func (s *OrderedSpace) Family() Family      { return s.base.Family() }
func (s *OrderedSpace) Table() *nav.Table   { return s.base.Table() }
func (s *OrderedSpace) Order() []OrderItem  { return s.order }
func (s *OrderedSpace) Limit() *int         { return s.limit }
func (s *OrderedSpace) Offset() *int        { return s.offset }
func (s *OrderedSpace) IsAxis() bool        { return false }
func (s *OrderedSpace) IsContracting() bool { return true }
func (s *OrderedSpace) IsExpanding() bool   { return s.limit == nil && s.offset == nil }
func (s *OrderedSpace) IsInflated() bool    { return false }
func (s *OrderedSpace) Hash() uint64        { return s.hash }

// IsClipped reports whether the space applies LIMIT or OFFSET.
func (s *OrderedSpace) IsClipped() bool { return s.limit != nil || s.offset != nil }

func (s *OrderedSpace) Equal(other Space) bool {
	o, ok := other.(*OrderedSpace)
	if !ok || s.hash != o.hash || len(s.order) != len(o.order) {
		return false
	}
	for i := range s.order {
		if s.order[i].Descending != o.order[i].Descending ||
			!s.order[i].Code.Equal(o.order[i].Code) {
			return false
		}
	}
	if !intPtrEqual(s.limit, o.limit) || !intPtrEqual(s.offset, o.offset) {
		return false
	}
	return s.base.Equal(o.base)
}

func (s *OrderedSpace) String() string {
	return s.base.String() + " [sort]"
}

func (s *OrderedSpace) rebase(b Space) Space {
	return NewOrderedSpace(b, s.order, s.limit, s.offset)
}

func intPtrEqual(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
