package assemble

import (
	"fmt"

	"github.com/mitchellh/hashstructure"

	"github.com/weftql/weft/nav"
)

// Phrase is a SQL scalar expression. Phrases are immutable and compared
// by structural hash; nullability is tracked so the reducer knows which
// simplifications preserve three-valued logic.
type Phrase interface {
	Domain() nav.Domain
	IsNullable() bool
	Hash() uint64
	String() string
}

func hashPhrase(v interface{}) uint64 {
	h, err := hashstructure.Hash(v, nil)
	if err != nil {
		panic(fmt.Sprintf("assemble: cannot hash phrase vector: %v", err))
	}
	return h
}

// LiteralPhrase is a constant; a nil value is SQL NULL.
type LiteralPhrase struct {
	domain nav.Domain
	value  interface{}
	hash   uint64
}

func NewLiteralPhrase(domain nav.Domain, value interface{}) *LiteralPhrase {
	return &LiteralPhrase{
		domain: domain,
		value:  value,
		hash: hashPhrase(struct {
			Kind  string
			Value interface{}
		}{"literal", value}),
	}
}

// TruePhrase is the canonical boolean TRUE.
func TruePhrase() *LiteralPhrase { return NewLiteralPhrase(nav.Boolean, true) }

// NullPhrase is an untyped NULL.
func NullPhrase(domain nav.Domain) *LiteralPhrase { return NewLiteralPhrase(domain, nil) }

func (p *LiteralPhrase) Domain() nav.Domain { return p.domain }
func (p *LiteralPhrase) Value() interface{} { return p.value }
func (p *LiteralPhrase) IsNullable() bool   { return p.value == nil }
func (p *LiteralPhrase) Hash() uint64       { return p.hash }
func (p *LiteralPhrase) String() string     { return fmt.Sprintf("%v", p.value) }

// IsTrue reports whether the phrase is the boolean constant true.
func (p *LiteralPhrase) IsTrue() bool {
	b, ok := p.value.(bool)
	return ok && b
}

// IsFalse reports whether the phrase is the boolean constant false.
func (p *LiteralPhrase) IsFalse() bool {
	b, ok := p.value.(bool)
	return ok && !b
}

// CastPhrase converts its base to another domain.
type CastPhrase struct {
	domain nav.Domain
	base   Phrase
	hash   uint64
}

func NewCastPhrase(domain nav.Domain, base Phrase) *CastPhrase {
	return &CastPhrase{
		domain: domain,
		base:   base,
		hash: hashPhrase(struct {
			Kind   string
			Domain string
			Base   uint64
		}{"cast", domain.String(), base.Hash()}),
	}
}

func (p *CastPhrase) Domain() nav.Domain { return p.domain }
func (p *CastPhrase) Base() Phrase       { return p.base }
func (p *CastPhrase) IsNullable() bool   { return p.base.IsNullable() }
func (p *CastPhrase) Hash() uint64       { return p.hash }
func (p *CastPhrase) String() string     { return fmt.Sprintf("cast(%s as %s)", p.base, p.domain) }

// FormulaPhrase applies an operator or aggregate to arguments.
type FormulaPhrase struct {
	domain   nav.Domain
	op       string
	args     []Phrase
	nullable bool
	hash     uint64
}

func NewFormulaPhrase(domain nav.Domain, op string, args ...Phrase) *FormulaPhrase {
	nullable := false
	hashes := make([]uint64, len(args))
	for i, a := range args {
		hashes[i] = a.Hash()
		if a.IsNullable() {
			nullable = true
		}
	}
	return &FormulaPhrase{
		domain:   domain,
		op:       op,
		args:     args,
		nullable: nullable,
		hash: hashPhrase(struct {
			Kind string
			Op   string
			Args []uint64
		}{"formula", op, hashes}),
	}
}

// NewAggregatePhrase builds an aggregate application; the result is
// always nullable because the group may be empty.
func NewAggregatePhrase(domain nav.Domain, op string, arg Phrase) *FormulaPhrase {
	p := NewFormulaPhrase(domain, op, arg)
	p.nullable = true
	return p
}

func (p *FormulaPhrase) Domain() nav.Domain { return p.domain }
func (p *FormulaPhrase) Op() string         { return p.op }
func (p *FormulaPhrase) Args() []Phrase     { return p.args }
func (p *FormulaPhrase) IsNullable() bool   { return p.nullable }
func (p *FormulaPhrase) Hash() uint64       { return p.hash }

func (p *FormulaPhrase) String() string {
	return fmt.Sprintf("%s/%d", p.op, len(p.args))
}

// ColumnPhrase reads a column of the frame with the given tag.
type ColumnPhrase struct {
	tag      int
	column   *nav.Column
	nullable bool
	hash     uint64
}

func NewColumnPhrase(tag int, column *nav.Column, nullable bool) *ColumnPhrase {
	return &ColumnPhrase{
		tag:      tag,
		column:   column,
		nullable: nullable,
		hash: hashPhrase(struct {
			Kind     string
			Tag      int
			Column   string
			Nullable bool
		}{"column", tag, column.String(), nullable}),
	}
}

func (p *ColumnPhrase) Domain() nav.Domain  { return p.column.Domain }
func (p *ColumnPhrase) Tag() int            { return p.tag }
func (p *ColumnPhrase) Column() *nav.Column { return p.column }
func (p *ColumnPhrase) IsNullable() bool    { return p.nullable }
func (p *ColumnPhrase) Hash() uint64        { return p.hash }
func (p *ColumnPhrase) String() string      { return fmt.Sprintf("t%d.%s", p.tag, p.column.Name) }

// ReferencePhrase reads select item index of the nested frame with the
// given tag.
type ReferencePhrase struct {
	tag      int
	index    int
	domain   nav.Domain
	nullable bool
	hash     uint64
}

func NewReferencePhrase(tag, index int, domain nav.Domain, nullable bool) *ReferencePhrase {
	return &ReferencePhrase{
		tag:      tag,
		index:    index,
		domain:   domain,
		nullable: nullable,
		hash: hashPhrase(struct {
			Kind     string
			Tag      int
			Index    int
			Nullable bool
		}{"reference", tag, index, nullable}),
	}
}

func (p *ReferencePhrase) Domain() nav.Domain { return p.domain }
func (p *ReferencePhrase) Tag() int           { return p.tag }
func (p *ReferencePhrase) Index() int         { return p.index }
func (p *ReferencePhrase) IsNullable() bool   { return p.nullable }
func (p *ReferencePhrase) Hash() uint64       { return p.hash }
func (p *ReferencePhrase) String() string     { return fmt.Sprintf("t%d.c%d", p.tag, p.index+1) }

// EmbeddingPhrase is an EXISTS test over a correlated subframe.
type EmbeddingPhrase struct {
	sub  *NestedFrame
	hash uint64
}

func NewEmbeddingPhrase(sub *NestedFrame) *EmbeddingPhrase {
	return &EmbeddingPhrase{
		sub: sub,
		hash: hashPhrase(struct {
			Kind string
			Tag  int
		}{"embedding", sub.Tag()}),
	}
}

func (p *EmbeddingPhrase) Domain() nav.Domain { return nav.Boolean }
func (p *EmbeddingPhrase) Sub() *NestedFrame  { return p.sub }
func (p *EmbeddingPhrase) IsNullable() bool   { return false }
func (p *EmbeddingPhrase) Hash() uint64       { return p.hash }
func (p *EmbeddingPhrase) String() string     { return fmt.Sprintf("exists(t%d)", p.sub.Tag()) }

// PlaceholderPhrase marks an environment value passed as a query
// argument. Positions are assigned by the serializer in output order;
// the value itself never appears in the SQL text.
type PlaceholderPhrase struct {
	name   string
	domain nav.Domain
	value  interface{}
	hash   uint64
}

func NewPlaceholderPhrase(name string, domain nav.Domain, value interface{}) *PlaceholderPhrase {
	return &PlaceholderPhrase{
		name:   name,
		domain: domain,
		value:  value,
		hash: hashPhrase(struct {
			Kind string
			Name string
		}{"placeholder", name}),
	}
}

func (p *PlaceholderPhrase) Domain() nav.Domain { return p.domain }
func (p *PlaceholderPhrase) Name() string       { return p.name }
func (p *PlaceholderPhrase) Value() interface{} { return p.value }
func (p *PlaceholderPhrase) IsNullable() bool   { return p.value == nil }
func (p *PlaceholderPhrase) Hash() uint64       { return p.hash }
func (p *PlaceholderPhrase) String() string     { return "$" + p.name }

// OrderPhrase is one sort key of a frame.
type OrderPhrase struct {
	Phrase     Phrase
	Descending bool
}
