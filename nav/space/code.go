package space

import (
	"fmt"
	"strings"

	"github.com/weftql/weft/nav"
)

// Operator names shared by codes, phrases and the serializer.
const (
	OpEqual      = "="
	OpNotEqual   = "!="
	OpTotalEqual = "=="
	OpTotalNot   = "!=="
	OpLess       = "<"
	OpLessEq     = "<="
	OpGreater    = ">"
	OpGreaterEq  = ">="
	OpAdd        = "+"
	OpSubtract   = "-"
	OpMultiply   = "*"
	OpDivide     = "/"
	OpAnd        = "and"
	OpOr         = "or"
	OpNot        = "not"
	OpNegate     = "neg"
	OpIsNull     = "is_null"
	OpIfNull     = "ifnull"
	OpConcat     = "concat"
	OpLength     = "length"
)

// Aggregate operator names.
const (
	AggCount  = "count"
	AggSum    = "sum"
	AggMin    = "min"
	AggMax    = "max"
	AggAvg    = "avg"
	AggExists = "exists"
	AggEvery  = "every"
	AggSome   = "some"
)

// Code is a scalar or aggregate function over one or more spaces. Codes
// are immutable and compared by structural value. Every code knows the
// full set of units it transitively contains.
type Code interface {
	Domain() nav.Domain
	// Units lists every unit the code transitively contains.
	Units() []Unit
	Hash() uint64
	Equal(Code) bool
	String() string
}

// Unit is an indivisible per-row function over a space. A unit's space is
// the space whose rows the unit is evaluated against.
type Unit interface {
	Code
	Space() Space
}

// LiteralCode is a constant.
type LiteralCode struct {
	domain nav.Domain
	value  interface{}
	hash   uint64
}

// NewLiteralCode creates a constant of the given domain. A nil value is
// the typed NULL.
func NewLiteralCode(domain nav.Domain, value interface{}) *LiteralCode {
	return &LiteralCode{
		domain: domain,
		value:  value,
		hash: hashVector(struct {
			Kind   string
			Domain string
			Value  interface{}
		}{"literal", domain.String(), value}),
	}
}

func (c *LiteralCode) Domain() nav.Domain { return c.domain }
func (c *LiteralCode) Value() interface{} { return c.value }
func (c *LiteralCode) Units() []Unit      { return nil }
func (c *LiteralCode) Hash() uint64       { return c.hash }

func (c *LiteralCode) Equal(other Code) bool {
	o, ok := other.(*LiteralCode)
	return ok && c.hash == o.hash && c.domain.Equal(o.domain) && c.value == o.value
}

func (c *LiteralCode) String() string {
	if c.value == nil {
		return "null"
	}
	return fmt.Sprintf("%v", c.value)
}

// CastCode converts its base to another domain.
type CastCode struct {
	domain nav.Domain
	base   Code
	hash   uint64
}

// NewCastCode converts base to domain.
func NewCastCode(domain nav.Domain, base Code) *CastCode {
	return &CastCode{
		domain: domain,
		base:   base,
		hash: hashVector(struct {
			Kind   string
			Domain string
			Base   uint64
		}{"cast", domain.String(), base.Hash()}),
	}
}

func (c *CastCode) Domain() nav.Domain { return c.domain }
func (c *CastCode) Base() Code         { return c.base }
func (c *CastCode) Units() []Unit      { return c.base.Units() }
func (c *CastCode) Hash() uint64       { return c.hash }

func (c *CastCode) Equal(other Code) bool {
	o, ok := other.(*CastCode)
	return ok && c.hash == o.hash && c.domain.Equal(o.domain) && c.base.Equal(o.base)
}

func (c *CastCode) String() string {
	return fmt.Sprintf("%s(%s)", c.domain, c.base)
}

// FormulaCode applies a named operator to an ordered argument list.
type FormulaCode struct {
	domain nav.Domain
	op     string
	args   []Code
	hash   uint64
}

// NewFormulaCode applies op to args.
func NewFormulaCode(domain nav.Domain, op string, args ...Code) *FormulaCode {
	hashes := make([]uint64, len(args))
	for i, a := range args {
		hashes[i] = a.Hash()
	}
	return &FormulaCode{
		domain: domain,
		op:     op,
		args:   args,
		hash: hashVector(struct {
			Kind   string
			Domain string
			Op     string
			Args   []uint64
		}{"formula", domain.String(), op, hashes}),
	}
}

func (c *FormulaCode) Domain() nav.Domain { return c.domain }
func (c *FormulaCode) Op() string         { return c.op }
func (c *FormulaCode) Args() []Code       { return c.args }
func (c *FormulaCode) Hash() uint64       { return c.hash }

func (c *FormulaCode) Units() []Unit {
	var units []Unit
	for _, a := range c.args {
		units = append(units, a.Units()...)
	}
	return units
}

func (c *FormulaCode) Equal(other Code) bool {
	o, ok := other.(*FormulaCode)
	if !ok || c.hash != o.hash || c.op != o.op || len(c.args) != len(o.args) {
		return false
	}
	for i := range c.args {
		if !c.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return c.domain.Equal(o.domain)
}

func (c *FormulaCode) String() string {
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.op, strings.Join(args, ","))
}

// ReferenceCode is an externally supplied parameter value. It never
// becomes an inline literal in the generated SQL.
type ReferenceCode struct {
	domain nav.Domain
	name   string
	value  interface{}
	hash   uint64
}

// NewReferenceCode creates a parameter reference.
func NewReferenceCode(domain nav.Domain, name string, value interface{}) *ReferenceCode {
	return &ReferenceCode{
		domain: domain,
		name:   name,
		value:  value,
		hash: hashVector(struct {
			Kind   string
			Domain string
			Name   string
		}{"reference", domain.String(), name}),
	}
}

func (c *ReferenceCode) Domain() nav.Domain { return c.domain }
func (c *ReferenceCode) Name() string       { return c.name }
func (c *ReferenceCode) Value() interface{} { return c.value }
func (c *ReferenceCode) Units() []Unit      { return nil }
func (c *ReferenceCode) Hash() uint64       { return c.hash }

func (c *ReferenceCode) Equal(other Code) bool {
	o, ok := other.(*ReferenceCode)
	return ok && c.hash == o.hash && c.name == o.name && c.domain.Equal(o.domain)
}

func (c *ReferenceCode) String() string { return "$" + c.name }

// ColumnUnit reads a table column: the primitive unit.
type ColumnUnit struct {
	column *nav.Column
	space  Space
	hash   uint64
}

// NewColumnUnit reads column against space.
func NewColumnUnit(column *nav.Column, sp Space) *ColumnUnit {
	return &ColumnUnit{
		column: column,
		space:  sp,
		hash: hashVector(struct {
			Kind   string
			Column string
			Space  uint64
		}{"column-unit", column.String(), sp.Hash()}),
	}
}

func (u *ColumnUnit) Domain() nav.Domain  { return u.column.Domain }
func (u *ColumnUnit) Column() *nav.Column { return u.column }
func (u *ColumnUnit) Space() Space        { return u.space }
func (u *ColumnUnit) Units() []Unit       { return []Unit{u} }
func (u *ColumnUnit) Hash() uint64        { return u.hash }

func (u *ColumnUnit) Equal(other Code) bool {
	o, ok := other.(*ColumnUnit)
	return ok && u.hash == o.hash && u.column == o.column && u.space.Equal(o.space)
}

func (u *ColumnUnit) String() string {
	return fmt.Sprintf("%s@%s", u.column.Name, u.space)
}

// ScalarUnit re-evaluates a non-aggregating expression for every row of a
// target space.
type ScalarUnit struct {
	code  Code
	space Space
	hash  uint64
}

// NewScalarUnit evaluates code per row of sp.
func NewScalarUnit(code Code, sp Space) *ScalarUnit {
	return &ScalarUnit{
		code:  code,
		space: sp,
		hash: hashVector(struct {
			Kind  string
			Code  uint64
			Space uint64
		}{"scalar-unit", code.Hash(), sp.Hash()}),
	}
}

func (u *ScalarUnit) Domain() nav.Domain { return u.code.Domain() }
func (u *ScalarUnit) Code() Code         { return u.code }
func (u *ScalarUnit) Space() Space       { return u.space }
func (u *ScalarUnit) Units() []Unit      { return []Unit{u} }
func (u *ScalarUnit) Hash() uint64       { return u.hash }

func (u *ScalarUnit) Equal(other Code) bool {
	o, ok := other.(*ScalarUnit)
	return ok && u.hash == o.hash && u.code.Equal(o.code) && u.space.Equal(o.space)
}

func (u *ScalarUnit) String() string {
	return fmt.Sprintf("(%s)@%s", u.code, u.space)
}

// AggregateUnit reduces an operand over a plural space down to one value
// per row of its own space. The defining invariant: the plural space
// spans the unit's space, and the unit's space does not span the plural
// space back; that asymmetry is what makes the unit an aggregate.
type AggregateUnit struct {
	op      string
	operand Code
	plural  Space
	space   Space
	hash    uint64
}

// NewAggregateUnit reduces operand over plural per row of sp.
func NewAggregateUnit(op string, operand Code, plural, sp Space) *AggregateUnit {
	return &AggregateUnit{
		op:      op,
		operand: operand,
		plural:  plural,
		space:   sp,
		hash: hashVector(struct {
			Kind    string
			Op      string
			Operand uint64
			Plural  uint64
			Space   uint64
		}{"aggregate-unit", op, operand.Hash(), plural.Hash(), sp.Hash()}),
	}
}

func (u *AggregateUnit) Domain() nav.Domain {
	switch u.op {
	case AggCount:
		return nav.Integer
	case AggExists, AggEvery, AggSome:
		return nav.Boolean
	}
	return u.operand.Domain()
}

func (u *AggregateUnit) Op() string         { return u.op }
func (u *AggregateUnit) Operand() Code      { return u.operand }
func (u *AggregateUnit) PluralSpace() Space { return u.plural }
func (u *AggregateUnit) Space() Space       { return u.space }
func (u *AggregateUnit) Units() []Unit      { return []Unit{u} }
func (u *AggregateUnit) Hash() uint64       { return u.hash }

func (u *AggregateUnit) Equal(other Code) bool {
	o, ok := other.(*AggregateUnit)
	return ok && u.hash == o.hash && u.op == o.op &&
		u.operand.Equal(o.operand) && u.plural.Equal(o.plural) && u.space.Equal(o.space)
}

func (u *AggregateUnit) String() string {
	return fmt.Sprintf("%s(%s)@%s", u.op, u.operand, u.space)
}

// CorrelatedUnit is an aggregate realized as a correlated subquery rather
// than a grouped join.
type CorrelatedUnit struct {
	op      string
	operand Code
	plural  Space
	space   Space
	hash    uint64
}

// NewCorrelatedUnit reduces operand over plural as a correlated subquery.
func NewCorrelatedUnit(op string, operand Code, plural, sp Space) *CorrelatedUnit {
	return &CorrelatedUnit{
		op:      op,
		operand: operand,
		plural:  plural,
		space:   sp,
		hash: hashVector(struct {
			Kind    string
			Op      string
			Operand uint64
			Plural  uint64
			Space   uint64
		}{"correlated-unit", op, operand.Hash(), plural.Hash(), sp.Hash()}),
	}
}

func (u *CorrelatedUnit) Domain() nav.Domain {
	switch u.op {
	case AggCount:
		return nav.Integer
	case AggExists, AggEvery, AggSome:
		return nav.Boolean
	}
	return u.operand.Domain()
}

func (u *CorrelatedUnit) Op() string         { return u.op }
func (u *CorrelatedUnit) Operand() Code      { return u.operand }
func (u *CorrelatedUnit) PluralSpace() Space { return u.plural }
func (u *CorrelatedUnit) Space() Space       { return u.space }
func (u *CorrelatedUnit) Units() []Unit      { return []Unit{u} }
func (u *CorrelatedUnit) Hash() uint64       { return u.hash }

func (u *CorrelatedUnit) Equal(other Code) bool {
	o, ok := other.(*CorrelatedUnit)
	return ok && u.hash == o.hash && u.op == o.op &&
		u.operand.Equal(o.operand) && u.plural.Equal(o.plural) && u.space.Equal(o.space)
}

func (u *CorrelatedUnit) String() string {
	return fmt.Sprintf("%s[%s]@%s", u.op, u.operand, u.space)
}

// KernelUnit projects one kernel expression of a quotient space.
type KernelUnit struct {
	index    int
	quotient *QuotientSpace
	hash     uint64
}

// NewKernelUnit projects kernel #index of quotient.
func NewKernelUnit(index int, quotient *QuotientSpace) *KernelUnit {
	return &KernelUnit{
		index:    index,
		quotient: quotient,
		hash: hashVector(struct {
			Kind     string
			Index    int
			Quotient uint64
		}{"kernel-unit", index, quotient.Hash()}),
	}
}

func (u *KernelUnit) Domain() nav.Domain       { return u.quotient.Kernels()[u.index].Domain() }
func (u *KernelUnit) Index() int               { return u.index }
func (u *KernelUnit) Quotient() *QuotientSpace { return u.quotient }
func (u *KernelUnit) Space() Space             { return u.quotient }
func (u *KernelUnit) Units() []Unit            { return []Unit{u} }
func (u *KernelUnit) Hash() uint64             { return u.hash }

func (u *KernelUnit) Equal(other Code) bool {
	o, ok := other.(*KernelUnit)
	return ok && u.hash == o.hash && u.index == o.index && u.quotient.Equal(o.quotient)
}

func (u *KernelUnit) String() string {
	return fmt.Sprintf("kernel[%d]@%s", u.index, u.quotient)
}

// ComplementUnit evaluates a seed expression against a complement space.
type ComplementUnit struct {
	code  Code
	space *ComplementSpace
	hash  uint64
}

// NewComplementUnit evaluates code per row of the complement.
func NewComplementUnit(code Code, sp *ComplementSpace) *ComplementUnit {
	return &ComplementUnit{
		code:  code,
		space: sp,
		hash: hashVector(struct {
			Kind  string
			Code  uint64
			Space uint64
		}{"complement-unit", code.Hash(), sp.Hash()}),
	}
}

func (u *ComplementUnit) Domain() nav.Domain { return u.code.Domain() }
func (u *ComplementUnit) Code() Code         { return u.code }
func (u *ComplementUnit) Space() Space       { return u.space }
func (u *ComplementUnit) Units() []Unit      { return []Unit{u} }
func (u *ComplementUnit) Hash() uint64       { return u.hash }

func (u *ComplementUnit) Equal(other Code) bool {
	o, ok := other.(*ComplementUnit)
	return ok && u.hash == o.hash && u.code.Equal(o.code) && u.space.Equal(o.space)
}

func (u *ComplementUnit) String() string {
	return fmt.Sprintf("(%s)@%s", u.code, u.space)
}
