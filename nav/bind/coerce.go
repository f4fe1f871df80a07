package bind

import (
	"github.com/weftql/weft/nav"
)

// comparable reports whether values of the two domains may be compared
// with the ordering and equality operators.
func comparable(a, b nav.Domain) bool {
	if a.Equal(b) {
		return true
	}
	if a.Kind == nav.UntypedKind || b.Kind == nav.UntypedKind {
		return true
	}
	numeric := func(d nav.Domain) bool {
		return d.Kind == nav.IntegerKind || d.Kind == nav.DecimalKind || d.Kind == nav.FloatKind
	}
	return numeric(a) && numeric(b)
}

// numericResult picks the result domain of an arithmetic operator:
// integer < decimal < float, text + text concatenates.
func numericResult(a, b nav.Domain) (nav.Domain, bool) {
	if a.Kind == nav.TextKind && b.Kind == nav.TextKind {
		return nav.Text, true
	}
	rank := func(d nav.Domain) int {
		switch d.Kind {
		case nav.IntegerKind:
			return 1
		case nav.DecimalKind:
			return 2
		case nav.FloatKind:
			return 3
		case nav.UntypedKind:
			return 1
		}
		return 0
	}
	ra, rb := rank(a), rank(b)
	if ra == 0 || rb == 0 {
		return nav.Domain{}, false
	}
	top := ra
	if rb > top {
		top = rb
	}
	switch top {
	case 1:
		return nav.Integer, true
	case 2:
		return nav.Decimal, true
	}
	return nav.Float, true
}
