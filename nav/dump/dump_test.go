package dump

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/assemble"
	"github.com/weftql/weft/nav/bind"
	"github.com/weftql/weft/nav/compile"
	"github.com/weftql/weft/nav/encode"
	"github.com/weftql/weft/nav/reduce"
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

func sql(t *testing.T, catalog *nav.Catalog, query string, env nav.Environment) (string, []nav.Placeholder) {
	t.Helper()
	s, err := syntax.Parse(query)
	require.NoError(t, err)
	sel, err := bind.Bind(s, catalog, env)
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
	return Dump(reduce.Reduce(assemble.Assemble(seg).Frame))
}

func TestDumpSingleScope(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	// A query over one table renders without aliases or qualification.
	out, params := sql(t, catalog, "/school", nil)
	require.Equal("SELECT code, name, campus FROM school ORDER BY code", out)
	require.Empty(params)

	out, _ = sql(t, catalog, "/school?campus='north'", nil)
	require.Equal("SELECT code, name, campus FROM school"+
		" WHERE (campus = 'north') ORDER BY code", out)

	out, _ = sql(t, catalog, "/school.limit(2)", nil)
	require.Equal("SELECT code, name, campus FROM school ORDER BY code LIMIT 2", out)

	out, _ = sql(t, catalog, "/school.sort(name-)", nil)
	require.Equal("SELECT code, name, campus FROM school ORDER BY name DESC, code", out)
}

func TestDumpJoin(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	out, _ := sql(t, catalog, "/school.program", nil)
	require.Equal("SELECT t2.school_code, t2.code, t2.degree"+
		" FROM school AS t1 JOIN program AS t2 ON (t1.code = t2.school_code)"+
		" ORDER BY t1.code, t2.school_code, t2.code", out)
}

func TestDumpGroupBy(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	out, _ := sql(t, catalog, "/program^degree", nil)
	require.Equal("SELECT degree FROM program WHERE (NOT (degree IS NULL))"+
		" GROUP BY degree ORDER BY degree", out)
}

func TestDumpPlaceholders(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	out, params := sql(t, catalog, "/school?campus=$c", nav.Environment{"c": "north"})
	require.Equal("SELECT code, name, campus FROM school"+
		" WHERE (campus = ?) ORDER BY code", out)
	require.Len(params, 1)
	require.Equal("c", params[0].Name)
	require.Equal("north", params[0].Value)
	require.NotContains(out, "north")
}

func TestQuoteIdent(t *testing.T) {
	require := require.New(t)

	require.Equal("school", quoteIdent("school"))
	require.Equal("school_code", quoteIdent("school_code"))
	require.Equal(`"order"`, quoteIdent("order"))
	require.Equal(`"Weird Name"`, quoteIdent("Weird Name"))
	require.Equal(`"2fast"`, quoteIdent("2fast"))
	require.Equal(`"say ""hi"""`, quoteIdent(`say "hi"`))
}

func TestLiteral(t *testing.T) {
	require := require.New(t)

	require.Equal("NULL", literal(nil))
	require.Equal("TRUE", literal(true))
	require.Equal("FALSE", literal(false))
	require.Equal("'it''s'", literal("it's"))
	require.Equal("42", literal(int64(42)))
	require.Equal("2.5", literal(2.5))
}

func TestSQLType(t *testing.T) {
	require := require.New(t)

	require.Equal("BOOLEAN", sqlType(nav.Boolean))
	require.Equal("INTEGER", sqlType(nav.Integer))
	require.Equal("NUMERIC", sqlType(nav.Decimal))
	require.Equal("REAL", sqlType(nav.Float))
	require.Equal("DATE", sqlType(nav.Date))
	require.Equal("TIME", sqlType(nav.Time))
	require.Equal("TIMESTAMP", sqlType(nav.DateTime))
	require.Equal("TEXT", sqlType(nav.Text))
}
