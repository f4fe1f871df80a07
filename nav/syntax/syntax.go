// Package syntax turns navigational query text into a concrete syntax
// tree. Every node carries a Mark over the original text so that later
// stages can point errors at the offending fragment.
package syntax

import (
	"fmt"
	"strings"

	"github.com/weftql/weft/nav"
)

// Syntax is a concrete syntax tree node.
type Syntax interface {
	Mark() nav.Mark
	String() string
}

// LiteralKind distinguishes literal token shapes.
type LiteralKind int

const (
	StringLiteral LiteralKind = iota
	IntegerLiteral
	DecimalLiteral
	FloatLiteral
	TrueLiteral
	FalseLiteral
	NullLiteral
)

// Identifier is a bare name to be resolved against the current scope.
type Identifier struct {
	Name string
	mark nav.Mark
}

func (s *Identifier) Mark() nav.Mark { return s.mark }
func (s *Identifier) String() string { return s.Name }

// Literal is a constant: a quoted string, a number, or one of the
// reserved words true, false, null.
type Literal struct {
	Text string
	Kind LiteralKind
	mark nav.Mark
}

func (s *Literal) Mark() nav.Mark { return s.mark }

func (s *Literal) String() string {
	if s.Kind == StringLiteral {
		return "'" + strings.ReplaceAll(s.Text, "'", "''") + "'"
	}
	return s.Text
}

// Reference is an environment parameter: $name.
type Reference struct {
	Name string
	mark nav.Mark
}

func (s *Reference) Mark() nav.Mark { return s.mark }
func (s *Reference) String() string { return "$" + s.Name }

// Apply is a function or operator application. Operators are normalized
// to their names, so `a=b` and `equals(a,b)` share a representation.
type Apply struct {
	Name string
	Args []Syntax
	mark nav.Mark
}

func (s *Apply) Mark() nav.Mark { return s.mark }

func (s *Apply) String() string {
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", s.Name, strings.Join(args, ","))
}

// Compose is flow composition: left.right.
type Compose struct {
	Left  Syntax
	Right Syntax
	mark  nav.Mark
}

func (s *Compose) Mark() nav.Mark { return s.mark }
func (s *Compose) String() string { return s.Left.String() + "." + s.Right.String() }

// Filter is a sieve: base?predicate.
type Filter struct {
	Base      Syntax
	Predicate Syntax
	mark      nav.Mark
}

func (s *Filter) Mark() nav.Mark { return s.mark }
func (s *Filter) String() string { return s.Base.String() + "?" + s.Predicate.String() }

// Select is a selection: base{field, ...}.
type Select struct {
	Base   Syntax
	Fields []Syntax
	mark   nav.Mark
}

func (s *Select) Mark() nav.Mark { return s.mark }

func (s *Select) String() string {
	fields := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = f.String()
	}
	base := ""
	if s.Base != nil {
		base = s.Base.String()
	}
	return base + "{" + strings.Join(fields, ",") + "}"
}

// Quotient is grouping: base^kernel.
type Quotient struct {
	Base    Syntax
	Kernels []Syntax
	mark    nav.Mark
}

func (s *Quotient) Mark() nav.Mark { return s.mark }

func (s *Quotient) String() string {
	kernels := make([]string, len(s.Kernels))
	for i, k := range s.Kernels {
		kernels[i] = k.String()
	}
	kernel := strings.Join(kernels, ",")
	if len(s.Kernels) != 1 {
		kernel = "{" + kernel + "}"
	}
	return s.Base.String() + "^" + kernel
}

// Collect is the leading slash: /base.
type Collect struct {
	Base Syntax
	mark nav.Mark
}

func (s *Collect) Mark() nav.Mark { return s.mark }
func (s *Collect) String() string { return "/" + s.Base.String() }

// Polarity marks an explicit sort direction on a sort key: key+ or key-.
type Polarity struct {
	Base       Syntax
	Descending bool
	mark       nav.Mark
}

func (s *Polarity) Mark() nav.Mark { return s.mark }

func (s *Polarity) String() string {
	if s.Descending {
		return s.Base.String() + "-"
	}
	return s.Base.String() + "+"
}
