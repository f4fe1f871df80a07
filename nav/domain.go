package nav

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// DomainKind enumerates the closed set of scalar type shapes.
type DomainKind int

const (
	BooleanKind DomainKind = iota
	IntegerKind
	FloatKind
	DecimalKind
	TextKind
	DateKind
	TimeKind
	DateTimeKind
	EnumKind
	ListKind
	RecordKind
	IdentityKind
	OpaqueKind
	UntypedKind
	VoidKind
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Domain describes a scalar type. Domains are immutable values compared
// structurally: two domains of the same shape are interchangeable.
//
// Parse and Dump form the text boundary of the type system; for every
// value in a domain's range, Parse(Dump(v)) == v, with Opaque as the one
// documented lossy exception.
type Domain struct {
	Kind   DomainKind
	Labels []string // Enum only
	Item   *Domain  // List only
	Fields []Domain // Record and Identity only
}

var (
	Boolean  = Domain{Kind: BooleanKind}
	Integer  = Domain{Kind: IntegerKind}
	Float    = Domain{Kind: FloatKind}
	Decimal  = Domain{Kind: DecimalKind}
	Text     = Domain{Kind: TextKind}
	Date     = Domain{Kind: DateKind}
	Time     = Domain{Kind: TimeKind}
	DateTime = Domain{Kind: DateTimeKind}
	Opaque   = Domain{Kind: OpaqueKind}
	Untyped  = Domain{Kind: UntypedKind}
	Void     = Domain{Kind: VoidKind}
)

// Enum creates an enumeration domain over the given labels.
func Enum(labels ...string) Domain {
	return Domain{Kind: EnumKind, Labels: labels}
}

// List creates a list domain over the given item domain.
func List(item Domain) Domain {
	return Domain{Kind: ListKind, Item: &item}
}

// Record creates a record domain over the given field domains.
func Record(fields ...Domain) Domain {
	return Domain{Kind: RecordKind, Fields: fields}
}

// Identity creates an identity domain over the given field domains.
func Identity(fields ...Domain) Domain {
	return Domain{Kind: IdentityKind, Fields: fields}
}

// Equal reports structural equality.
func (d Domain) Equal(other Domain) bool {
	if d.Kind != other.Kind {
		return false
	}
	switch d.Kind {
	case EnumKind:
		if len(d.Labels) != len(other.Labels) {
			return false
		}
		for i := range d.Labels {
			if d.Labels[i] != other.Labels[i] {
				return false
			}
		}
	case ListKind:
		if (d.Item == nil) != (other.Item == nil) {
			return false
		}
		if d.Item != nil && !d.Item.Equal(*other.Item) {
			return false
		}
	case RecordKind, IdentityKind:
		if len(d.Fields) != len(other.Fields) {
			return false
		}
		for i := range d.Fields {
			if !d.Fields[i].Equal(other.Fields[i]) {
				return false
			}
		}
	}
	return true
}

func (d Domain) String() string {
	switch d.Kind {
	case BooleanKind:
		return "boolean"
	case IntegerKind:
		return "integer"
	case FloatKind:
		return "float"
	case DecimalKind:
		return "decimal"
	case TextKind:
		return "text"
	case DateKind:
		return "date"
	case TimeKind:
		return "time"
	case DateTimeKind:
		return "datetime"
	case EnumKind:
		return fmt.Sprintf("enum(%s)", strings.Join(d.Labels, ", "))
	case ListKind:
		return fmt.Sprintf("list(%s)", d.Item)
	case RecordKind:
		return "record"
	case IdentityKind:
		return "identity"
	case OpaqueKind:
		return "opaque"
	case UntypedKind:
		return "untyped"
	case VoidKind:
		return "void"
	}
	return "unknown"
}

// Parse converts query or database text into a native value. A nil input
// stays nil for every domain.
func (d Domain) Parse(text string) (interface{}, error) {
	switch d.Kind {
	case BooleanKind:
		switch strings.ToLower(text) {
		case "true", "1", "t":
			return true, nil
		case "false", "0", "f":
			return false, nil
		}
		return nil, ErrInvalidLiteral.New(d, text)
	case IntegerKind:
		v, err := cast.ToInt64E(text)
		if err != nil {
			return nil, ErrInvalidLiteral.New(d, text)
		}
		return v, nil
	case FloatKind:
		v, err := cast.ToFloat64E(text)
		if err != nil {
			return nil, ErrInvalidLiteral.New(d, text)
		}
		return v, nil
	case DecimalKind:
		canon, ok := canonicalDecimal(text)
		if !ok {
			return nil, ErrInvalidLiteral.New(d, text)
		}
		return canon, nil
	case TextKind, UntypedKind, OpaqueKind:
		return text, nil
	case DateKind:
		v, err := time.Parse(dateLayout, text)
		if err != nil {
			return nil, ErrInvalidLiteral.New(d, text)
		}
		return v, nil
	case TimeKind:
		v, err := time.Parse(timeLayout, text)
		if err != nil {
			return nil, ErrInvalidLiteral.New(d, text)
		}
		return v, nil
	case DateTimeKind:
		v, err := time.Parse(dateTimeLayout, text)
		if err != nil {
			return nil, ErrInvalidLiteral.New(d, text)
		}
		return v, nil
	case EnumKind:
		for _, label := range d.Labels {
			if label == text {
				return text, nil
			}
		}
		return nil, ErrInvalidLiteral.New(d, text)
	}
	return nil, ErrInvalidCast.New(Text, d)
}

// Dump renders a native value as text. Opaque is lossy: the value is
// rendered with %v and is not guaranteed to round-trip.
func (d Domain) Dump(value interface{}) (string, error) {
	if value == nil {
		return "", ErrInvalidCast.New(Void, d)
	}
	switch d.Kind {
	case BooleanKind:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return "", ErrInvalidCast.New(Untyped, d)
		}
		if v {
			return "true", nil
		}
		return "false", nil
	case IntegerKind:
		v, err := cast.ToInt64E(value)
		if err != nil {
			return "", ErrInvalidCast.New(Untyped, d)
		}
		return fmt.Sprintf("%d", v), nil
	case FloatKind:
		v, err := cast.ToFloat64E(value)
		if err != nil {
			return "", ErrInvalidCast.New(Untyped, d)
		}
		return cast.ToString(v), nil
	case DecimalKind, TextKind, EnumKind, UntypedKind:
		v, err := cast.ToStringE(value)
		if err != nil {
			return "", ErrInvalidCast.New(Untyped, d)
		}
		return v, nil
	case DateKind:
		v, err := cast.ToTimeE(value)
		if err != nil {
			return "", ErrInvalidCast.New(Untyped, d)
		}
		return v.Format(dateLayout), nil
	case TimeKind:
		v, err := cast.ToTimeE(value)
		if err != nil {
			return "", ErrInvalidCast.New(Untyped, d)
		}
		return v.Format(timeLayout), nil
	case DateTimeKind:
		v, err := cast.ToTimeE(value)
		if err != nil {
			return "", ErrInvalidCast.New(Untyped, d)
		}
		return v.Format(dateTimeLayout), nil
	case OpaqueKind:
		return fmt.Sprintf("%v", value), nil
	}
	return "", ErrInvalidCast.New(d, Text)
}

// canonicalDecimal validates a decimal literal and trims it to a canonical
// form so that Parse(Dump(x)) == x holds.
func canonicalDecimal(text string) (string, bool) {
	r := new(big.Rat)
	if _, ok := r.SetString(text); !ok {
		return "", false
	}
	s := text
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-" {
		s = "0"
	}
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	return s, true
}
