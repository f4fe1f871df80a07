package nav

import (
	"fmt"

	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrUnknownIdentifier is returned when a name cannot be resolved in
	// the current scope.
	ErrUnknownIdentifier = errors.NewKind("unknown identifier %q")

	// ErrAmbiguousIdentifier is returned when a name resolves to two or
	// more distinct, non-dominating targets. It is never acceptable to
	// silently pick one of them.
	ErrAmbiguousIdentifier = errors.NewKind("ambiguous identifier %q: could be %s")

	// ErrUnknownFunction is returned for a call to a function the binder
	// does not know.
	ErrUnknownFunction = errors.NewKind("unknown function %q")

	// ErrArgumentCount is returned when a function is called with the
	// wrong number of arguments.
	ErrArgumentCount = errors.NewKind("function %q expects %d argument(s), got %d")

	// ErrTypeMismatch is returned when an operand has a domain the
	// operator cannot accept.
	ErrTypeMismatch = errors.NewKind("expected %s, got %s")

	// ErrInvalidCast is returned when a value cannot be converted between
	// two domains.
	ErrInvalidCast = errors.NewKind("cannot convert %s to %s")

	// ErrInvalidLiteral is returned when a literal does not parse under
	// its expected domain.
	ErrInvalidLiteral = errors.NewKind("invalid %s literal %q")

	// ErrPluralOperandRequired is returned when an aggregate is applied to
	// an operand that is singular relative to its base.
	ErrPluralOperandRequired = errors.NewKind("a plural operand is required")

	// ErrInvalidPluralOperand is returned when an aggregate operand spans
	// several incomparable plural spaces.
	ErrInvalidPluralOperand = errors.NewKind("invalid plural operand")

	// ErrSingularExpected is returned by the compiler when a unit is
	// required on a space the current term does not span.
	ErrSingularExpected = errors.NewKind("expected a singular expression")

	// ErrNoConnectingKey is returned when a table must be connected to
	// itself but carries neither a primary key nor a total unique key.
	ErrNoConnectingKey = errors.NewKind("unable to connect table %q lacking a primary key")

	// ErrUnknownReference is returned when the query names an environment
	// parameter that was not supplied.
	ErrUnknownReference = errors.NewKind("unknown reference $%s")

	// ErrSyntax is returned by the parser.
	ErrSyntax = errors.NewKind("syntax error: %s")

	// ErrEngine wraps any error raised by the underlying database engine.
	// Raw driver errors must never leak past the Connection boundary.
	ErrEngine = errors.NewKind("engine error: %s")

	// ErrPermission is returned when a read or write capability check
	// fails before a query is issued.
	ErrPermission = errors.NewKind("not enough permissions to %s")
)

// Error is the user-facing translation failure: a kind-instantiated cause
// plus the source range it points at and an optional hint. Translation
// stops at the first Error; no stage suppresses a lower stage's Error.
type Error struct {
	Cause error
	Mark  Mark
	Hint  string
}

// NewError wraps a kind-instantiated cause with the source mark it points at.
func NewError(cause error, mark Mark) *Error {
	return &Error{Cause: cause, Mark: mark}
}

// WithHint attaches a remedial hint to the error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Of reports whether the error's cause belongs to the given kind.
func (e *Error) Of(kind *errors.Kind) bool {
	return kind.Is(e.Cause)
}

func (e *Error) Error() string {
	msg := e.Cause.Error()
	if !e.Mark.IsEmpty() {
		msg = fmt.Sprintf("%s\nWhile translating:\n    %s", msg, e.Mark)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s\n(%s)", msg, e.Hint)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}
