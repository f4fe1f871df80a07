package assemble

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/compile"
	"github.com/weftql/weft/nav/space"
)

func campusCatalog() (*nav.Table, *nav.Table) {
	catalog := nav.NewCatalog()
	ed := catalog.AddSchema("ed")

	school := ed.AddTable("school")
	school.AddColumn("code", nav.Text, false)
	school.AddColumn("name", nav.Text, false)
	school.AddPrimaryKey("code")

	program := ed.AddTable("program")
	program.AddColumn("school_code", nav.Text, false)
	program.AddColumn("code", nav.Text, false)
	program.AddColumn("degree", nav.Text, true)
	program.AddPrimaryKey("school_code", "code")
	program.AddForeignKey([]string{"school_code"}, school, []string{"code"})

	return school, program
}

// auditClaims verifies the supply ledger: every claim recorded during
// assembly must have produced a phrase.
func auditClaims(t *testing.T, res *Result) {
	t.Helper()
	require.NotEmpty(t, res.claims)
	for _, c := range res.claims {
		_, ok := res.supplied[claimKey{c.Unit.Hash(), c.Broker}]
		require.True(t, ok, "claim for %s at t%d left unsupplied", c.Unit, c.Broker)
	}
}

func TestAssembleTableSegment(t *testing.T) {
	require := require.New(t)
	school, _ := campusCatalog()

	ts := space.NewTableSpace(space.Root(), school)
	codes := []space.Code{
		space.NewColumnUnit(school.Columns[0], ts),
		space.NewColumnUnit(school.Columns[1], ts),
	}
	seg, err := compile.CompileSegment(ts, codes)
	require.NoError(err)

	res := Assemble(seg)
	sf := res.Frame
	require.Len(sf.Select, 2)
	require.Len(sf.Include, 1)
	leaf, ok := sf.Include[0].Frame.(*TableFrame)
	require.True(ok)
	require.Equal(school, leaf.Table)

	// Output columns read the leaf directly.
	col, ok := sf.Select[0].(*ColumnPhrase)
	require.True(ok)
	require.Equal(leaf.Tag(), col.Tag())
	require.Equal("code", col.Column().Name)
	require.False(col.IsNullable())

	require.Len(sf.Order, 1)
	auditClaims(t, res)
}

func TestAssembleJoinTies(t *testing.T) {
	require := require.New(t)
	school, program := campusCatalog()

	root := space.Root()
	ts := space.NewTableSpace(root, school)
	fiber := space.NewFiberSpace(ts, nav.NewReverseJoin(program.ForeignKeys[0]))

	seg, err := compile.CompileSegment(fiber, []space.Code{
		space.NewColumnUnit(program.Columns[2], fiber),
	})
	require.NoError(err)

	res := Assemble(seg)
	join, ok := res.Frame.Include[0].Frame.(*NestedFrame)
	require.True(ok)
	require.Len(join.Include, 2)

	// The first anchor carries no condition; the second joins on the tie.
	require.Nil(join.Include[0].Condition)
	cond, ok := join.Include[1].Condition.(*FormulaPhrase)
	require.True(ok)
	require.Equal(space.OpEqual, cond.Op())
	lp := cond.Args()[0].(*ColumnPhrase)
	rp := cond.Args()[1].(*ColumnPhrase)
	require.Equal("code", lp.Column().Name)
	require.Equal("school_code", rp.Column().Name)
	require.NotEqual(lp.Tag(), rp.Tag())

	auditClaims(t, res)
}

func TestAssembleAggregate(t *testing.T) {
	require := require.New(t)
	school, program := campusCatalog()

	root := space.Root()
	ts := space.NewTableSpace(root, school)
	fiber := space.NewFiberSpace(ts, nav.NewReverseJoin(program.ForeignKeys[0]))
	count := space.NewAggregateUnit(space.AggCount,
		space.NewLiteralCode(nav.Boolean, true), fiber, ts)

	seg, err := compile.CompileSegment(ts, []space.Code{
		space.NewColumnUnit(school.Columns[1], ts), count,
	})
	require.NoError(err)

	res := Assemble(seg)
	sf := res.Frame
	require.Len(sf.Select, 2)

	// A count crossing its outer join is null-compensated to 0.
	comp, ok := sf.Select[1].(*FormulaPhrase)
	require.True(ok)
	require.Equal(space.OpIfNull, comp.Op())
	zero, ok := comp.Args()[1].(*LiteralPhrase)
	require.True(ok)
	require.Equal(int64(0), zero.Value())

	// The projection frame groups by the anchor identity and exports the
	// aggregate through its select list.
	join := sf.Include[0].Frame.(*NestedFrame)
	proj, ok := join.Include[1].Frame.(*NestedFrame)
	require.True(ok)
	require.NotEmpty(proj.Group)
	require.True(join.Include[1].IsLeft)
	var hasAggregate bool
	for _, s := range proj.Select {
		if f, ok := s.(*FormulaPhrase); ok && f.Op() == space.AggCount {
			hasAggregate = true
			require.True(f.IsNullable())
		}
	}
	require.True(hasAggregate)

	auditClaims(t, res)
}

func TestAssembleEmbedding(t *testing.T) {
	require := require.New(t)
	school, program := campusCatalog()

	root := space.Root()
	ts := space.NewTableSpace(root, school)
	fiber := space.NewFiberSpace(ts, nav.NewReverseJoin(program.ForeignKeys[0]))
	exists := space.NewCorrelatedUnit(space.AggExists,
		space.NewLiteralCode(nav.Boolean, true), fiber, ts)
	filtered := space.NewFilteredSpace(ts, exists)

	seg, err := compile.CompileSegment(filtered, []space.Code{
		space.NewColumnUnit(school.Columns[0], ts),
	})
	require.NoError(err)

	res := Assemble(seg)
	filter, ok := res.Frame.Include[0].Frame.(*NestedFrame)
	require.True(ok)
	emb, ok := filter.Include[0].Frame.(*NestedFrame)
	require.True(ok)
	require.Len(emb.Embed, 1)

	sub := emb.Embed[0]
	require.True(sub.Permanent)
	require.NotNil(sub.Where)
	require.Len(sub.Select, 1)
	lit, ok := sub.Select[0].(*LiteralPhrase)
	require.True(ok)
	require.True(lit.IsTrue())

	// The filter's predicate resolves to the EXISTS phrase, exported
	// through the embedding frame's select list.
	ref, ok := filter.Where.(*ReferencePhrase)
	require.True(ok)
	require.Equal(emb.Tag(), ref.Tag())
	_, ok = emb.Select[ref.Index()].(*EmbeddingPhrase)
	require.True(ok)

	auditClaims(t, res)
}

func TestLift(t *testing.T) {
	require := require.New(t)
	school, _ := campusCatalog()

	a := &assembler{supplied: map[claimKey]Phrase{}, special: map[claimKey]Phrase{}}

	// Lifting over an outer join makes a non-nullable column nullable.
	table := &TableFrame{frameBase: frameBase{tag: 7}, Table: school}
	p := NewColumnPhrase(7, school.Columns[0], false)
	lifted := a.lift(p, &Anchor{Frame: table, IsLeft: true})
	require.True(lifted.IsNullable())

	// Lifting through a subquery exports by position and dedups by value.
	nested := &NestedFrame{frameBase: frameBase{tag: 8}}
	first := a.lift(p, &Anchor{Frame: nested})
	again := a.lift(p, &Anchor{Frame: nested})
	require.Len(nested.Select, 1)
	require.Equal(first.Hash(), again.Hash())
	ref := first.(*ReferencePhrase)
	require.Equal(8, ref.Tag())
	require.Equal(0, ref.Index())
}
