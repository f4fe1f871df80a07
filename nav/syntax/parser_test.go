package syntax

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
)

func TestParseRendering(t *testing.T) {
	cases := map[string]string{
		"/school":                     "/school",
		"/school.program":             "/school.program",
		"/school?campus='north'":      "/school?=(campus,'north')",
		"/school{name,campus}":        "/school{name,campus}",
		"/school.sort(name-)":         "/school.sort(name-)",
		"/school.limit(2)":            "/school.limit(2)",
		"/program^degree":             "/program^degree",
		"/program^{degree,year}":      "/program^{degree,year}",
		"/program^degree{^,count(^)}": "/program^degree{^,count(^)}",
		"/t?a=1|b=2&!c":               "/t?or(=(a,1),and(=(b,2),not(c)))",
		"/t{a+b*2}":                   "/t{+(a,*(b,2))}",
		"/t{(a+b)*2}":                 "/t{*(+(a,b),2)}",
		"/t{-a}":                      "/t{neg(a)}",
		"/t{a-b}":                     "/t{-(a,b)}",
		"/t?code=$c":                  "/t?=(code,$c)",
		"/t?a!==null":                 "/t?!==(a,null)",
		"/t?x>=10&x<20":               "/t?and(>=(x,10),<(x,20))",
	}
	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			require := require.New(t)
			s, err := Parse(input)
			require.NoError(err)
			require.Equal(want, s.String())
		})
	}
}

func TestParseShapes(t *testing.T) {
	require := require.New(t)

	s, err := Parse("/school")
	require.NoError(err)
	collect, ok := s.(*Collect)
	require.True(ok)
	ident, ok := collect.Base.(*Identifier)
	require.True(ok)
	require.Equal("school", ident.Name)

	s, err = Parse("/school?campus='north'")
	require.NoError(err)
	collect = s.(*Collect)
	filter, ok := collect.Base.(*Filter)
	require.True(ok)
	apply, ok := filter.Predicate.(*Apply)
	require.True(ok)
	require.Equal("=", apply.Name)
	require.Len(apply.Args, 2)

	s, err = Parse("/program^degree")
	require.NoError(err)
	quotient, ok := s.(*Collect).Base.(*Quotient)
	require.True(ok)
	require.Len(quotient.Kernels, 1)

	s, err = Parse("/program^{degree,year}")
	require.NoError(err)
	quotient = s.(*Collect).Base.(*Quotient)
	require.Len(quotient.Kernels, 2)
}

func TestParseLiteralKinds(t *testing.T) {
	require := require.New(t)

	literal := func(input string) *Literal {
		s, err := Parse("/t?x=" + input)
		require.NoError(err)
		apply := s.(*Collect).Base.(*Filter).Predicate.(*Apply)
		l, ok := apply.Args[1].(*Literal)
		require.True(ok, "literal %q", input)
		return l
	}

	require.Equal(IntegerLiteral, literal("10").Kind)
	require.Equal(DecimalLiteral, literal("3.14").Kind)
	require.Equal(FloatLiteral, literal("2e3").Kind)
	require.Equal(FloatLiteral, literal("1.5e-2").Kind)
	require.Equal(TrueLiteral, literal("true").Kind)
	require.Equal(FalseLiteral, literal("false").Kind)
	require.Equal(NullLiteral, literal("null").Kind)

	l := literal("'it''s'")
	require.Equal(StringLiteral, l.Kind)
	require.Equal("it's", l.Text)
	require.Equal("'it''s'", l.String())
}

func TestParsePolarity(t *testing.T) {
	require := require.New(t)

	// A trailing sign before a field boundary is a sort direction.
	s, err := Parse("/t.sort(a-,b+)")
	require.NoError(err)
	apply := s.(*Collect).Base.(*Compose).Right.(*Apply)
	require.Len(apply.Args, 2)
	first, ok := apply.Args[0].(*Polarity)
	require.True(ok)
	require.True(first.Descending)
	second, ok := apply.Args[1].(*Polarity)
	require.True(ok)
	require.False(second.Descending)

	// Elsewhere the same sign is subtraction.
	s, err = Parse("/t{a-b}")
	require.NoError(err)
	sel := s.(*Collect).Base.(*Select)
	minus, ok := sel.Fields[0].(*Apply)
	require.True(ok)
	require.Equal("-", minus.Name)
}

func TestParseMarks(t *testing.T) {
	require := require.New(t)

	input := "/school?campus='north'"
	s, err := Parse(input)
	require.NoError(err)
	require.Equal(input, s.Mark().Excerpt())

	pred := s.(*Collect).Base.(*Filter).Predicate
	require.Equal("campus='north'", pred.Mark().Excerpt())
}

func TestParseErrors(t *testing.T) {
	require := require.New(t)

	for _, input := range []string{
		"school",        // missing leading slash
		"/school extra", // trailing input
		"/school{name",  // unclosed selection
		"/school?",      // missing predicate
		"/t?x='oops",    // unterminated string
		"/t?x=$",        // missing reference name
		"/t.",           // dangling composition
		"/t?(a",         // unclosed parenthesis
	} {
		_, err := Parse(input)
		require.Error(err, "input %q", input)
		var terr *nav.Error
		require.ErrorAs(err, &terr, "input %q", input)
		require.True(terr.Of(nav.ErrSyntax), "input %q", input)
	}
}
