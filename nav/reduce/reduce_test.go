package reduce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/assemble"
	"github.com/weftql/weft/nav/bind"
	"github.com/weftql/weft/nav/compile"
	"github.com/weftql/weft/nav/encode"
	"github.com/weftql/weft/nav/space"
	"github.com/weftql/weft/nav/syntax"
)

func campusCatalog() *nav.Catalog {
	catalog := nav.NewCatalog()
	ed := catalog.AddSchema("ed")

	school := ed.AddTable("school")
	school.AddColumn("code", nav.Text, false)
	school.AddColumn("name", nav.Text, false)
	school.AddColumn("campus", nav.Text, true)
	school.AddPrimaryKey("code")

	program := ed.AddTable("program")
	program.AddColumn("school_code", nav.Text, false)
	program.AddColumn("code", nav.Text, false)
	program.AddColumn("degree", nav.Text, true)
	program.AddPrimaryKey("school_code", "code")
	program.AddForeignKey([]string{"school_code"}, school, []string{"code"})

	return catalog
}

func column(name string, domain nav.Domain, nullable bool) *nav.Column {
	table := nav.NewCatalog().AddSchema("x").AddTable("t")
	return table.AddColumn(name, domain, nullable)
}

func frame(t *testing.T, catalog *nav.Catalog, query string) *assemble.SegmentFrame {
	t.Helper()
	s, err := syntax.Parse(query)
	require.NoError(t, err)
	sel, err := bind.Bind(s, catalog, nil)
	require.NoError(t, err)
	st := encode.NewState()
	sp, err := st.Relate(sel)
	require.NoError(t, err)
	codes := make([]space.Code, len(sel.Elements))
	for i, e := range sel.Elements {
		codes[i], err = st.Encode(e)
		require.NoError(t, err)
	}
	seg, err := compile.CompileSegment(sp, codes)
	require.NoError(t, err)
	return assemble.Assemble(seg).Frame
}

func TestReduceFilter(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sf := Reduce(frame(t, catalog, "/school?campus='north'"))

	// The filter block folds into the segment: one base table, the
	// predicate hoisted to WHERE.
	require.Len(sf.Include, 1)
	_, ok := sf.Include[0].Frame.(*assemble.TableFrame)
	require.True(ok)
	cond, ok := sf.Where.(*assemble.FormulaPhrase)
	require.True(ok)
	require.Equal(space.OpEqual, cond.Op())
	for _, s := range sf.Select {
		_, ok := s.(*assemble.ColumnPhrase)
		require.True(ok)
	}
	require.Len(sf.Order, 1)
}

func TestReduceAggregate(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sf := Reduce(frame(t, catalog, "/school{name,count(program)}"))

	// The seed join flattens into the segment; the grouped subquery stays
	// behind its outer join.
	require.Len(sf.Include, 2)
	_, ok := sf.Include[0].Frame.(*assemble.TableFrame)
	require.True(ok)
	require.True(sf.Include[1].IsLeft)
	proj, ok := sf.Include[1].Frame.(*assemble.NestedFrame)
	require.True(ok)
	require.NotEmpty(proj.Group)
	require.Len(proj.Include, 2)
	for _, anc := range proj.Include {
		_, ok := anc.Frame.(*assemble.TableFrame)
		require.True(ok)
	}

	comp, ok := sf.Select[1].(*assemble.FormulaPhrase)
	require.True(ok)
	require.Equal(space.OpIfNull, comp.Op())
}

func TestReduceQuotient(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sf := Reduce(frame(t, catalog, "/program^degree"))

	// The projection and its null-kernel sieve both land in the segment.
	require.Len(sf.Include, 1)
	_, ok := sf.Include[0].Frame.(*assemble.TableFrame)
	require.True(ok)
	require.Len(sf.Group, 1)
	not, ok := sf.Where.(*assemble.FormulaPhrase)
	require.True(ok)
	require.Equal(space.OpNot, not.Op())
	require.Nil(sf.Having)

	col, ok := sf.Select[0].(*assemble.ColumnPhrase)
	require.True(ok)
	require.Equal("degree", col.Column().Name)
}

func TestReduceKeepsPermanentEmbedding(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sf := Reduce(frame(t, catalog, "/school?exists(program)"))

	require.Len(sf.Include, 1)
	_, ok := sf.Include[0].Frame.(*assemble.TableFrame)
	require.True(ok)

	// The correlated subquery survives as a permanent embedded frame.
	require.Len(sf.Embed, 1)
	sub := sf.Embed[0]
	require.True(sub.Permanent)
	require.NotNil(sub.Where)
	require.Len(sub.Include, 2)
	_, ok = sf.Where.(*assemble.EmbeddingPhrase)
	require.True(ok)
}

func TestSimplifyConnective(t *testing.T) {
	require := require.New(t)

	col := column("flag", nav.Boolean, false)
	a := assemble.NewColumnPhrase(1, col, false)
	b := assemble.NewColumnPhrase(2, col, false)

	// AND(TRUE, x) -> x; nested chains flatten and duplicates drop.
	p := simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpAnd,
		assemble.TruePhrase(), a))
	require.Equal(a.Hash(), p.Hash())

	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpAnd,
		assemble.NewFormulaPhrase(nav.Boolean, space.OpAnd, a, b), a))
	f, ok := p.(*assemble.FormulaPhrase)
	require.True(ok)
	require.Equal(space.OpAnd, f.Op())
	require.Len(f.Args(), 2)

	// AND(FALSE, x) -> FALSE, OR(TRUE, x) -> TRUE.
	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpAnd,
		assemble.NewLiteralPhrase(nav.Boolean, false), a))
	lit, ok := p.(*assemble.LiteralPhrase)
	require.True(ok)
	require.True(lit.IsFalse())

	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpOr,
		assemble.TruePhrase(), a))
	lit, ok = p.(*assemble.LiteralPhrase)
	require.True(ok)
	require.True(lit.IsTrue())

	// OR with nothing left yields its identity.
	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpOr,
		assemble.NewLiteralPhrase(nav.Boolean, false),
		assemble.NewLiteralPhrase(nav.Boolean, false)))
	lit, ok = p.(*assemble.LiteralPhrase)
	require.True(ok)
	require.True(lit.IsFalse())
}

func TestSimplifyNot(t *testing.T) {
	require := require.New(t)

	p := simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpNot, assemble.TruePhrase()))
	require.True(p.(*assemble.LiteralPhrase).IsFalse())

	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpNot,
		assemble.NewLiteralPhrase(nav.Boolean, false)))
	require.True(p.(*assemble.LiteralPhrase).IsTrue())

	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpNot,
		assemble.NullPhrase(nav.Boolean)))
	lit := p.(*assemble.LiteralPhrase)
	require.Nil(lit.Value())

	// Double negation unwraps.
	col := column("flag", nav.Boolean, false)
	inner := assemble.NewColumnPhrase(1, col, false)
	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpNot,
		assemble.NewFormulaPhrase(nav.Boolean, space.OpNot, inner)))
	require.Equal(inner.Hash(), p.Hash())
}

func TestSimplifyNullFolds(t *testing.T) {
	require := require.New(t)

	col := column("code", nav.Text, false)
	solid := assemble.NewColumnPhrase(1, col, false)
	fallback := assemble.NewLiteralPhrase(nav.Text, "x")

	// is_null over a non-nullable operand is statically false.
	p := simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpIsNull, solid))
	require.True(p.(*assemble.LiteralPhrase).IsFalse())

	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpIsNull,
		assemble.NullPhrase(nav.Text)))
	require.True(p.(*assemble.LiteralPhrase).IsTrue())

	// ifnull collapses to whichever side is decided.
	p = simplify(assemble.NewFormulaPhrase(nav.Text, space.OpIfNull, solid, fallback))
	require.Equal(solid.Hash(), p.Hash())

	p = simplify(assemble.NewFormulaPhrase(nav.Text, space.OpIfNull,
		assemble.NullPhrase(nav.Text), fallback))
	require.Equal(fallback.Hash(), p.Hash())
}

func TestSimplifyEquality(t *testing.T) {
	require := require.New(t)

	col := column("code", nav.Text, false)
	solid := assemble.NewColumnPhrase(1, col, false)
	loose := assemble.NewColumnPhrase(1, col, true)
	lit := assemble.NewLiteralPhrase(nav.Text, "a")

	// Total equality over non-nullable operands is plain equality.
	p := simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpTotalEqual, solid, lit))
	f := p.(*assemble.FormulaPhrase)
	require.Equal(space.OpEqual, f.Op())

	// With a nullable operand the null-safe form stays.
	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpTotalEqual, loose, lit))
	require.Equal(space.OpTotalEqual, p.(*assemble.FormulaPhrase).Op())

	// Boolean literal comparisons fold.
	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpEqual,
		assemble.TruePhrase(), assemble.NewLiteralPhrase(nav.Boolean, false)))
	require.True(p.(*assemble.LiteralPhrase).IsFalse())

	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpNotEqual,
		assemble.TruePhrase(), assemble.NewLiteralPhrase(nav.Boolean, false)))
	require.True(p.(*assemble.LiteralPhrase).IsTrue())

	// Comparisons of non-boolean literals are left to the database.
	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpEqual, lit,
		assemble.NewLiteralPhrase(nav.Text, "a")))
	require.Equal(space.OpEqual, p.(*assemble.FormulaPhrase).Op())

	// NULL poisons a comparison.
	p = simplify(assemble.NewFormulaPhrase(nav.Boolean, space.OpEqual, lit,
		assemble.NullPhrase(nav.Text)))
	require.Nil(p.(*assemble.LiteralPhrase).Value())
}

func TestSimplifyCast(t *testing.T) {
	require := require.New(t)

	lit := assemble.NewLiteralPhrase(nav.Text, "a")

	// A cast to the operand's own domain is dropped.
	p := simplify(assemble.NewCastPhrase(nav.Text, lit))
	require.Equal(lit.Hash(), p.Hash())

	p = simplify(assemble.NewCastPhrase(nav.Integer, lit))
	cast, ok := p.(*assemble.CastPhrase)
	require.True(ok)
	require.True(cast.Domain().Equal(nav.Integer))
}
