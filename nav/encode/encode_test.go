package encode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/bind"
	"github.com/weftql/weft/nav/space"
	"github.com/weftql/weft/nav/syntax"
)

func campusCatalog() *nav.Catalog {
	catalog := nav.NewCatalog()
	ed := catalog.AddSchema("ed")

	school := ed.AddTable("school")
	school.AddColumn("code", nav.Text, false)
	school.AddColumn("name", nav.Text, false)
	school.AddPrimaryKey("code")

	program := ed.AddTable("program")
	program.AddColumn("school_code", nav.Text, false)
	program.AddColumn("code", nav.Text, false)
	program.AddColumn("year", nav.Integer, true)
	program.AddPrimaryKey("school_code", "code")
	program.AddForeignKey([]string{"school_code"}, school, []string{"code"})

	department := ed.AddTable("department")
	department.AddColumn("school_code", nav.Text, false)
	department.AddColumn("code", nav.Text, false)
	department.AddColumn("staff", nav.Integer, true)
	department.AddPrimaryKey("school_code", "code")
	department.AddForeignKey([]string{"school_code"}, school, []string{"code"})

	return catalog
}

func relate(t *testing.T, catalog *nav.Catalog, query string) (*State, *bind.SelectionBinding, space.Space) {
	t.Helper()
	s, err := syntax.Parse(query)
	require.NoError(t, err)
	sel, err := bind.Bind(s, catalog, nil)
	require.NoError(t, err)
	st := NewState()
	sp, err := st.Relate(sel)
	require.NoError(t, err)
	return st, sel, sp
}

func TestRelateShapes(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	_, _, sp := relate(t, catalog, "/school")
	ts, ok := sp.(*space.TableSpace)
	require.True(ok)
	require.Equal("school", ts.Table().Name)
	_, ok = ts.Base().(*space.RootSpace)
	require.True(ok)

	_, _, sp = relate(t, catalog, "/school.program")
	fiber, ok := sp.(*space.FiberSpace)
	require.True(ok)
	require.Equal("program", fiber.Table().Name)
	require.False(fiber.IsContracting())

	_, _, sp = relate(t, catalog, "/school?name='x'")
	filtered, ok := sp.(*space.FilteredSpace)
	require.True(ok)
	require.Len(filtered.Filter().Units(), 1)

	_, _, sp = relate(t, catalog, "/school.limit(3)")
	ordered, ok := sp.(*space.OrderedSpace)
	require.True(ok)
	require.True(ordered.IsClipped())
	require.Equal(3, *ordered.Limit())

	_, _, sp = relate(t, catalog, "/program^year")
	quotient, ok := sp.(*space.QuotientSpace)
	require.True(ok)
	require.Len(quotient.Kernels(), 1)
	_, ok = quotient.Seed().(*space.TableSpace)
	require.True(ok)
}

func TestInterning(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	st, sel, sp := relate(t, catalog, "/school{name,code}")
	a, err := st.Encode(sel.Elements[0])
	require.NoError(err)
	b, err := st.Encode(sel.Elements[0])
	require.NoError(err)
	require.Same(a, b)

	// The element's unit space is the canonical flow space.
	unit, ok := a.(*space.ColumnUnit)
	require.True(ok)
	require.Same(space.Space(unit.Space()), sp)
}

func TestEncodeAggregate(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	// A flow operand counts rows of the child space.
	st, sel, sp := relate(t, catalog, "/school{name,count(program)}")
	code, err := st.Encode(sel.Elements[1])
	require.NoError(err)
	agg, ok := code.(*space.AggregateUnit)
	require.True(ok)
	require.Equal(space.AggCount, agg.Op())
	require.True(agg.Space().Equal(sp))
	_, ok = agg.PluralSpace().(*space.FiberSpace)
	require.True(ok)
	lit, ok := agg.Operand().(*space.LiteralCode)
	require.True(ok)
	require.Equal(true, lit.Value())

	// exists() lowers to a correlated subquery unit.
	st, sel, _ = relate(t, catalog, "/school{name,exists(program)}")
	code, err = st.Encode(sel.Elements[1])
	require.NoError(err)
	_, ok = code.(*space.CorrelatedUnit)
	require.True(ok)

	// A scalar operand derives its plural space from its units.
	st, sel, _ = relate(t, catalog, "/school{max(program.year)}")
	code, err = st.Encode(sel.Elements[0])
	require.NoError(err)
	agg = code.(*space.AggregateUnit)
	require.Equal(space.AggMax, agg.Op())
	_, ok = agg.PluralSpace().(*space.FiberSpace)
	require.True(ok)
}

func TestEncodeAggregateErrors(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	// The operand is singular relative to the base.
	st, sel, _ := relate(t, catalog, "/school{count(name)}")
	_, err := st.Encode(sel.Elements[0])
	require.Error(err)
	var terr *nav.Error
	require.ErrorAs(err, &terr)
	require.True(terr.Of(nav.ErrPluralOperandRequired))

	// Units over two incomparable plural spaces cannot converge.
	st, sel, _ = relate(t, catalog, "/school{max(program.year+department.staff)}")
	_, err = st.Encode(sel.Elements[0])
	require.Error(err)
	require.ErrorAs(err, &terr)
	require.True(terr.Of(nav.ErrInvalidPluralOperand))
}

func TestEncodeComplement(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	st, sel, _ := relate(t, catalog, "/program^year{year,count(program)}")
	code, err := st.Encode(sel.Elements[0])
	require.NoError(err)
	_, ok := code.(*space.KernelUnit)
	require.True(ok)

	code, err = st.Encode(sel.Elements[1])
	require.NoError(err)
	agg, ok := code.(*space.AggregateUnit)
	require.True(ok)
	_, ok = agg.PluralSpace().(*space.ComplementSpace)
	require.True(ok)
}

func TestEncodeOrderKey(t *testing.T) {
	require := require.New(t)
	catalog := campusCatalog()

	// A computed sort key is wrapped into a scalar unit over the flow.
	_, _, sp := relate(t, catalog, "/program.sort(year+1)")
	ordered, ok := sp.(*space.OrderedSpace)
	require.True(ok)
	require.Len(ordered.Order(), 1)
	_, ok = ordered.Order()[0].Code.(*space.ScalarUnit)
	require.True(ok)

	// A plain column key stays a column unit.
	_, _, sp = relate(t, catalog, "/program.sort(year-)")
	ordered = sp.(*space.OrderedSpace)
	_, ok = ordered.Order()[0].Code.(*space.ColumnUnit)
	require.True(ok)
	require.True(ordered.Order()[0].Descending)
}
