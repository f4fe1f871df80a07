package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/space"
)

func schoolTable() *nav.Table {
	catalog := nav.NewCatalog()
	ed := catalog.AddSchema("ed")
	school := ed.AddTable("school")
	school.AddColumn("code", nav.Text, false)
	school.AddColumn("campus", nav.Text, true)
	school.AddPrimaryKey("code")
	return school
}

func TestRewritePrunesMaskedFilter(t *testing.T) {
	require := require.New(t)
	school := schoolTable()

	ts := space.NewTableSpace(space.Root(), school)
	pred := space.NewFormulaCode(nav.Boolean, space.OpEqual,
		space.NewColumnUnit(school.Columns[1], ts),
		space.NewLiteralCode(nav.Text, "north"))
	filtered := space.NewFilteredSpace(ts, pred)

	// The mask already guarantees the filter: it disappears.
	require.True(Rewrite(filtered, filtered).Equal(space.Space(ts)))

	// Without the guarantee the filter survives, rebuilt on the same base.
	kept := Rewrite(filtered, space.Root())
	require.True(kept.Equal(filtered))
}

func TestRewriteCodeNarrowsUnitSpaces(t *testing.T) {
	require := require.New(t)
	school := schoolTable()

	ts := space.NewTableSpace(space.Root(), school)
	pred := space.NewColumnUnit(school.Columns[1], ts)
	filtered := space.NewFilteredSpace(ts, pred)

	// A column evaluated over the filtered flow collapses onto the axis
	// once the filter is ambient.
	unit := space.NewColumnUnit(school.Columns[0], filtered)
	rewritten := RewriteCode(unit, filtered)
	col, ok := rewritten.(*space.ColumnUnit)
	require.True(ok)
	require.True(col.Space().Equal(space.Space(ts)))

	// Formula arguments are rewritten recursively.
	f := space.NewFormulaCode(nav.Boolean, space.OpIsNull, unit)
	rf := RewriteCode(f, filtered).(*space.FormulaCode)
	require.True(rf.Args()[0].(*space.ColumnUnit).Space().Equal(space.Space(ts)))
}

func TestRewriteKeepsClip(t *testing.T) {
	require := require.New(t)
	school := schoolTable()

	ts := space.NewTableSpace(space.Root(), school)
	two := 2
	clipped := space.NewOrderedSpace(ts, nil, &two, nil)

	// A clipped ordering changes cardinality and is never pruned, even
	// against itself.
	out := Rewrite(clipped, clipped)
	ordered, ok := out.(*space.OrderedSpace)
	require.True(ok)
	require.True(ordered.IsClipped())

	// An unclipped ordering against its own mask is dropped.
	key := space.NewColumnUnit(school.Columns[0], ts)
	sorted := space.NewOrderedSpace(ts, []space.OrderItem{{Code: key}}, nil, nil)
	require.True(Rewrite(sorted, sorted).Equal(space.Space(ts)))
}

func TestRewriteIdempotent(t *testing.T) {
	require := require.New(t)
	school := schoolTable()

	ts := space.NewTableSpace(space.Root(), school)
	pred := space.NewColumnUnit(school.Columns[1], ts)
	filtered := space.NewFilteredSpace(ts, pred)
	key := space.NewColumnUnit(school.Columns[0], filtered)
	sorted := space.NewOrderedSpace(filtered, []space.OrderItem{{Code: key}}, nil, nil)

	for _, mask := range []space.Space{space.Root(), filtered, sorted} {
		once := Rewrite(sorted, mask)
		twice := Rewrite(once, mask)
		require.True(once.Equal(twice), "mask %s", mask)
	}
}

func TestPrune(t *testing.T) {
	require := require.New(t)
	school := schoolTable()

	ts := space.NewTableSpace(space.Root(), school)
	pred := space.NewColumnUnit(school.Columns[1], ts)
	filtered := space.NewFilteredSpace(ts, pred)

	require.True(Prune(filtered, filtered).Equal(space.Space(ts)))
	require.True(Prune(filtered, space.Root()).Equal(space.Space(filtered)))
	// Inflated spaces have nothing to prune.
	require.True(Prune(ts, filtered).Equal(space.Space(ts)))
}
