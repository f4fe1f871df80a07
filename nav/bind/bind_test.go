package bind

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
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
	program.AddColumn("title", nav.Text, false)
	program.AddColumn("degree", nav.Text, true)
	program.AddColumn("year", nav.Integer, true)
	program.AddPrimaryKey("school_code", "code")
	program.AddForeignKey([]string{"school_code"}, school, []string{"code"})

	return catalog
}

func mustBind(t *testing.T, catalog *nav.Catalog, query string, env nav.Environment) *SelectionBinding {
	t.Helper()
	s, err := syntax.Parse(query)
	require.NoError(t, err)
	sel, err := Bind(s, catalog, env)
	require.NoError(t, err)
	return sel
}

func bindErr(t *testing.T, catalog *nav.Catalog, query string) *nav.Error {
	t.Helper()
	s, err := syntax.Parse(query)
	require.NoError(t, err)
	_, err = Bind(s, catalog, nil)
	require.Error(t, err)
	var terr *nav.Error
	require.ErrorAs(t, err, &terr)
	return terr
}

func TestDefaultSelection(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sel := mustBind(t, catalog, "/school", nil)
	require.Equal([]string{"code", "name", "campus"}, sel.Names)
	require.Len(sel.Elements, 3)
	for _, e := range sel.Elements {
		_, ok := e.(*ColumnBinding)
		require.True(ok)
	}
	table, ok := sel.Base.(*TableBinding)
	require.True(ok)
	require.Equal("school", table.Table.Name)
	require.Nil(table.Join)
}

func TestExplicitSelection(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sel := mustBind(t, catalog, "/school{name,campus}", nil)
	require.Equal([]string{"name", "campus"}, sel.Names)

	// A trailing polarity both selects and sorts.
	sel = mustBind(t, catalog, "/school{name-,campus}", nil)
	require.Equal([]string{"name", "campus"}, sel.Names)
	sort, ok := sel.Base.(*SortBinding)
	require.True(ok)
	require.Len(sort.Order, 1)
	require.True(sort.Order[0].Descending)
}

func TestLinkResolution(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	// Reverse link: school -> its programs.
	sel := mustBind(t, catalog, "/school.program", nil)
	table, ok := sel.Base.(*TableBinding)
	require.True(ok)
	require.Equal("program", table.Table.Name)
	_, ok = table.Join.(nav.ReverseJoin)
	require.True(ok)
	require.Equal([]string{"school_code", "code", "title", "degree", "year"}, sel.Names)

	// Direct link: program -> its school.
	sel = mustBind(t, catalog, "/program.school", nil)
	table = sel.Base.(*TableBinding)
	require.Equal("school", table.Table.Name)
	_, ok = table.Join.(nav.DirectJoin)
	require.True(ok)
}

func TestSieveAndSort(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sel := mustBind(t, catalog, "/school?campus='north'", nil)
	sieve, ok := sel.Base.(*SieveBinding)
	require.True(ok)
	require.True(sieve.Filter.Domain().Equal(nav.Boolean))

	sel = mustBind(t, catalog, "/school.sort(name-)", nil)
	sort, ok := sel.Base.(*SortBinding)
	require.True(ok)
	require.Len(sort.Order, 1)
	require.True(sort.Order[0].Descending)
	// The transparent sort keeps the table's default selection.
	require.Equal([]string{"code", "name", "campus"}, sel.Names)
}

func TestLimit(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sel := mustBind(t, catalog, "/school.limit(2)", nil)
	clip, ok := sel.Base.(*ClipBinding)
	require.True(ok)
	require.Equal(2, *clip.Limit)
	require.Nil(clip.Offset)

	sel = mustBind(t, catalog, "/school.limit(2,4)", nil)
	clip = sel.Base.(*ClipBinding)
	require.Equal(2, *clip.Limit)
	require.Equal(4, *clip.Offset)

	terr := bindErr(t, catalog, "/school.limit(name)")
	require.True(terr.Of(nav.ErrTypeMismatch))

	terr = bindErr(t, catalog, "/school.limit()")
	require.True(terr.Of(nav.ErrArgumentCount))

	terr = bindErr(t, catalog, "/school.limit(1,2,3)")
	require.True(terr.Of(nav.ErrArgumentCount))

	// An integer literal too large for the platform does not truncate.
	terr = bindErr(t, catalog, "/school.limit(99999999999999999999)")
	require.True(terr.Of(nav.ErrSyntax))
}

func TestQuotientScope(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sel := mustBind(t, catalog, "/program^degree", nil)
	q, ok := sel.Base.(*QuotientBinding)
	require.True(ok)
	require.Equal([]string{"degree"}, q.KernelNames)
	require.Equal("program", q.SeedName)
	// The default selection of a quotient is its kernels.
	require.Equal([]string{"degree"}, sel.Names)
	_, ok = sel.Elements[0].(*KernelBinding)
	require.True(ok)

	// Inside the quotient scope the seed name opens the complement.
	sel = mustBind(t, catalog, "/program^degree{degree,count(program)}", nil)
	agg, ok := sel.Elements[1].(*AggregateBinding)
	require.True(ok)
	_, ok = agg.Operand.(*ComplementBinding)
	require.True(ok)

	// The caret is a synonym for the seed name.
	sel = mustBind(t, catalog, "/program^degree{degree,count(^)}", nil)
	agg = sel.Elements[1].(*AggregateBinding)
	_, ok = agg.Operand.(*ComplementBinding)
	require.True(ok)
}

func TestAggregates(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sel := mustBind(t, catalog, "/school{name,count(program)}", nil)
	agg, ok := sel.Elements[1].(*AggregateBinding)
	require.True(ok)
	require.Equal("count", agg.Op)
	require.True(agg.Domain().Equal(nav.Integer))

	sel = mustBind(t, catalog, "/school{name,exists(program)}", nil)
	agg = sel.Elements[1].(*AggregateBinding)
	require.True(agg.Domain().Equal(nav.Boolean))

	sel = mustBind(t, catalog, "/school{max(program.year)}", nil)
	agg = sel.Elements[0].(*AggregateBinding)
	require.True(agg.Domain().Equal(nav.Integer))

	// A flow operand is only meaningful for count and exists.
	terr := bindErr(t, catalog, "/school{sum(program)}")
	require.True(terr.Of(nav.ErrTypeMismatch))

	terr = bindErr(t, catalog, "/school{count(program,school)}")
	require.True(terr.Of(nav.ErrArgumentCount))
}

func TestOperators(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	// Text + text is concatenation.
	sel := mustBind(t, catalog, "/school{name+campus}", nil)
	f, ok := sel.Elements[0].(*FormulaBinding)
	require.True(ok)
	require.Equal("concat", f.Op)
	require.True(f.Domain().Equal(nav.Text))

	sel = mustBind(t, catalog, "/program{year+1}", nil)
	f = sel.Elements[0].(*FormulaBinding)
	require.Equal("+", f.Op)
	require.True(f.Domain().Equal(nav.Integer))

	sel = mustBind(t, catalog, "/program{text(year)}", nil)
	cast, ok := sel.Elements[0].(*CastBinding)
	require.True(ok)
	require.True(cast.Domain().Equal(nav.Text))

	terr := bindErr(t, catalog, "/school{name*2}")
	require.True(terr.Of(nav.ErrTypeMismatch))

	terr = bindErr(t, catalog, "/school?name")
	require.True(terr.Of(nav.ErrTypeMismatch))

	terr = bindErr(t, catalog, "/school{upper(name)}")
	require.True(terr.Of(nav.ErrUnknownFunction))
}

func TestReferences(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	sel := mustBind(t, catalog, "/school?campus=$c", nav.Environment{"c": "north"})
	sieve := sel.Base.(*SieveBinding)
	f := sieve.Filter.(*FormulaBinding)
	ref, ok := f.Args[1].(*ReferenceBinding)
	require.True(ok)
	require.Equal("north", ref.Value)
	require.True(ref.Domain().Equal(nav.Text))

	terr := bindErr(t, catalog, "/school?campus=$missing")
	require.True(terr.Of(nav.ErrUnknownReference))
}

func TestNameErrors(t *testing.T) {
	require := require.New(t)

	catalog := campusCatalog()
	terr := bindErr(t, catalog, "/cafeteria")
	require.True(terr.Of(nav.ErrUnknownIdentifier))

	terr = bindErr(t, catalog, "/school.title")
	require.True(terr.Of(nav.ErrUnknownIdentifier))

	// A near miss earns a suggestion.
	terr = bindErr(t, catalog, "/shcool")
	require.True(terr.Of(nav.ErrUnknownIdentifier))
	require.Contains(terr.Error(), "maybe you mean school?")

	// The same table name in two schemas cannot be resolved from the root.
	twin := nav.NewCatalog()
	for _, name := range []string{"north", "south"} {
		s := twin.AddSchema(name)
		grade := s.AddTable("grade")
		grade.AddColumn("letter", nav.Text, false)
		grade.AddPrimaryKey("letter")
	}
	terr = bindErr(t, twin, "/grade")
	require.True(terr.Of(nav.ErrAmbiguousIdentifier))
	require.Contains(terr.Error(), "north.grade")
	require.Contains(terr.Error(), "south.grade")
}

func TestBareExpressionSelection(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	// A bare expression query selects it against its own flow.
	sel := mustBind(t, catalog, "/school.name", nil)
	require.Equal([]string{"name"}, sel.Names)
	col, ok := sel.Elements[0].(*ColumnBinding)
	require.True(ok)
	require.Equal("name", col.Column.Name)
}
