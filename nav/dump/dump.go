// Package dump serializes a frame tree to SQL text. Identifiers are
// quoted only when they need it, aliases appear only when more than one
// scope is in play, and every environment value becomes a positional
// placeholder: values from the environment never leak into the SQL text.
package dump

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/assemble"
	"github.com/weftql/weft/nav/space"
)

// Dump serializes the segment frame. The returned placeholders are in
// positional order, matching the ? markers of the SQL text.
func Dump(sf *assemble.SegmentFrame) (string, []nav.Placeholder) {
	d := &dumper{aliases: map[int]string{}}
	d.assignAliases(sf)
	var sb strings.Builder
	d.segment(&sb, sf)
	return sb.String(), d.params
}

type dumper struct {
	aliases map[int]string
	single  bool
	params  []nav.Placeholder
}

// assignAliases walks every FROM scope in rendering order. A query over
// exactly one table with no embedded subqueries renders without aliases.
func (d *dumper) assignAliases(sf *assemble.SegmentFrame) {
	var scopes []assemble.Frame
	var walk func(f assemble.Frame)
	walk = func(f assemble.Frame) {
		for _, anc := range frameAnchors(f) {
			scopes = append(scopes, anc.Frame)
			walk(anc.Frame)
		}
		for _, sub := range frameEmbeds(f) {
			scopes = append(scopes, sub)
			walk(sub)
		}
	}
	walk(sf)

	if len(scopes) == 1 {
		if _, ok := scopes[0].(*assemble.TableFrame); ok {
			d.single = true
			return
		}
	}
	for i, f := range scopes {
		d.aliases[f.Tag()] = fmt.Sprintf("t%d", i+1)
	}
}

func frameAnchors(f assemble.Frame) []*assemble.Anchor {
	switch n := f.(type) {
	case *assemble.SegmentFrame:
		return n.Include
	case *assemble.NestedFrame:
		return n.Include
	}
	return nil
}

func frameEmbeds(f assemble.Frame) []*assemble.NestedFrame {
	switch n := f.(type) {
	case *assemble.SegmentFrame:
		return n.Embed
	case *assemble.NestedFrame:
		return n.Embed
	}
	return nil
}

func (d *dumper) segment(sb *strings.Builder, sf *assemble.SegmentFrame) {
	sb.WriteString("SELECT ")
	for i, p := range sf.Select {
		if i > 0 {
			sb.WriteString(", ")
		}
		d.phrase(sb, p)
	}
	d.body(sb, sf.Include, sf.Where, sf.Group, sf.Having, sf.Order, sf.Limit, sf.Offset)
}

func (d *dumper) nested(sb *strings.Builder, nf *assemble.NestedFrame) {
	sb.WriteString("SELECT ")
	for i, p := range nf.Select {
		if i > 0 {
			sb.WriteString(", ")
		}
		d.phrase(sb, p)
		fmt.Fprintf(sb, " AS c%d", i+1)
	}
	d.body(sb, nf.Include, nf.Where, nf.Group, nf.Having, nf.Order, nf.Limit, nf.Offset)
}

func (d *dumper) body(sb *strings.Builder, include []*assemble.Anchor,
	where assemble.Phrase, group []assemble.Phrase, having assemble.Phrase,
	order []assemble.OrderPhrase, limit, offset *int) {

	if len(include) > 0 {
		if _, scalar := include[0].Frame.(*assemble.ScalarFrame); !scalar || len(include) > 1 {
			sb.WriteString(" FROM ")
			d.target(sb, include[0].Frame)
			for _, anc := range include[1:] {
				switch {
				case anc.Condition == nil:
					sb.WriteString(" CROSS JOIN ")
				case anc.IsLeft:
					sb.WriteString(" LEFT JOIN ")
				case anc.IsRight:
					sb.WriteString(" RIGHT JOIN ")
				default:
					sb.WriteString(" JOIN ")
				}
				d.target(sb, anc.Frame)
				if anc.Condition != nil {
					sb.WriteString(" ON ")
					d.phrase(sb, anc.Condition)
				}
			}
		}
	}
	if where != nil {
		sb.WriteString(" WHERE ")
		d.phrase(sb, where)
	}
	if len(group) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, p := range group {
			if i > 0 {
				sb.WriteString(", ")
			}
			d.phrase(sb, p)
		}
	}
	if having != nil {
		sb.WriteString(" HAVING ")
		d.phrase(sb, having)
	}
	if len(order) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range order {
			if i > 0 {
				sb.WriteString(", ")
			}
			d.phrase(sb, o.Phrase)
			if o.Descending {
				sb.WriteString(" DESC")
			}
		}
	}
	switch {
	case limit != nil:
		fmt.Fprintf(sb, " LIMIT %d", *limit)
		if offset != nil {
			fmt.Fprintf(sb, " OFFSET %d", *offset)
		}
	case offset != nil:
		fmt.Fprintf(sb, " LIMIT -1 OFFSET %d", *offset)
	}
}

func (d *dumper) target(sb *strings.Builder, f assemble.Frame) {
	switch n := f.(type) {
	case *assemble.TableFrame:
		sb.WriteString(quoteIdent(n.Table.Name))
		if !d.single {
			sb.WriteString(" AS ")
			sb.WriteString(d.aliases[n.Tag()])
		}
	case *assemble.NestedFrame:
		sb.WriteString("(")
		d.nested(sb, n)
		sb.WriteString(") AS ")
		sb.WriteString(d.aliases[n.Tag()])
	case *assemble.ScalarFrame:
		sb.WriteString("(SELECT 1) AS ")
		sb.WriteString(d.aliases[n.Tag()])
	default:
		panic(fmt.Sprintf("dump: cannot serialize frame %T", f))
	}
}

func (d *dumper) phrase(sb *strings.Builder, p assemble.Phrase) {
	switch n := p.(type) {
	case *assemble.LiteralPhrase:
		sb.WriteString(literal(n.Value()))

	case *assemble.ColumnPhrase:
		if !d.single {
			sb.WriteString(d.aliases[n.Tag()])
			sb.WriteString(".")
		}
		sb.WriteString(quoteIdent(n.Column().Name))

	case *assemble.ReferencePhrase:
		fmt.Fprintf(sb, "%s.c%d", d.aliases[n.Tag()], n.Index()+1)

	case *assemble.CastPhrase:
		sb.WriteString("CAST(")
		d.phrase(sb, n.Base())
		sb.WriteString(" AS ")
		sb.WriteString(sqlType(n.Domain()))
		sb.WriteString(")")

	case *assemble.PlaceholderPhrase:
		sb.WriteString("?")
		d.params = append(d.params, nav.Placeholder{
			Name:   n.Name(),
			Domain: n.Domain(),
			Value:  n.Value(),
		})

	case *assemble.EmbeddingPhrase:
		sb.WriteString("EXISTS (")
		d.nested(sb, n.Sub())
		sb.WriteString(")")

	case *assemble.FormulaPhrase:
		d.formula(sb, n)

	default:
		panic(fmt.Sprintf("dump: cannot serialize phrase %T", p))
	}
}

func (d *dumper) formula(sb *strings.Builder, n *assemble.FormulaPhrase) {
	args := n.Args()
	switch n.Op() {
	case space.OpEqual, space.OpLess, space.OpLessEq, space.OpGreater,
		space.OpGreaterEq, space.OpAdd, space.OpSubtract, space.OpMultiply,
		space.OpDivide:
		d.infix(sb, n.Op(), args)

	case space.OpNotEqual:
		d.infix(sb, "<>", args)

	case space.OpTotalEqual:
		d.infix(sb, "IS", args)

	case space.OpTotalNot:
		d.infix(sb, "IS NOT", args)

	case space.OpAnd:
		d.infix(sb, "AND", args)

	case space.OpOr:
		d.infix(sb, "OR", args)

	case space.OpNot:
		sb.WriteString("(NOT ")
		d.phrase(sb, args[0])
		sb.WriteString(")")

	case space.OpNegate:
		sb.WriteString("(- ")
		d.phrase(sb, args[0])
		sb.WriteString(")")

	case space.OpIsNull:
		sb.WriteString("(")
		d.phrase(sb, args[0])
		sb.WriteString(" IS NULL)")

	case space.OpIfNull:
		sb.WriteString("COALESCE(")
		d.phrase(sb, args[0])
		sb.WriteString(", ")
		d.phrase(sb, args[1])
		sb.WriteString(")")

	case space.OpConcat:
		d.infix(sb, "||", args)

	case space.OpLength:
		sb.WriteString("LENGTH(")
		d.phrase(sb, args[0])
		sb.WriteString(")")

	case space.AggCount:
		if lit, ok := args[0].(*assemble.LiteralPhrase); ok && lit.IsTrue() {
			sb.WriteString("COUNT(*)")
			return
		}
		d.aggregate(sb, "COUNT", args[0])

	case space.AggSum:
		d.aggregate(sb, "SUM", args[0])
	case space.AggMin:
		d.aggregate(sb, "MIN", args[0])
	case space.AggMax:
		d.aggregate(sb, "MAX", args[0])
	case space.AggAvg:
		d.aggregate(sb, "AVG", args[0])
	case space.AggEvery:
		d.aggregate(sb, "MIN", args[0])
	case space.AggSome:
		d.aggregate(sb, "MAX", args[0])

	default:
		panic(fmt.Sprintf("dump: unknown operator %q", n.Op()))
	}
}

func (d *dumper) infix(sb *strings.Builder, op string, args []assemble.Phrase) {
	sb.WriteString("(")
	for i, a := range args {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(op)
			sb.WriteString(" ")
		}
		d.phrase(sb, a)
	}
	sb.WriteString(")")
}

func (d *dumper) aggregate(sb *strings.Builder, name string, arg assemble.Phrase) {
	sb.WriteString(name)
	sb.WriteString("(")
	d.phrase(sb, arg)
	sb.WriteString(")")
}

func literal(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", v)
	}
	return "'" + strings.ReplaceAll(fmt.Sprintf("%v", value), "'", "''") + "'"
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var reserved = map[string]bool{
	"select": true, "from": true, "where": true, "group": true,
	"having": true, "order": true, "limit": true, "offset": true,
	"join": true, "left": true, "right": true, "cross": true, "on": true,
	"and": true, "or": true, "not": true, "as": true, "is": true,
	"null": true, "union": true, "by": true, "exists": true,
}

func quoteIdent(name string) string {
	if plainIdent.MatchString(name) && !reserved[name] {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(d nav.Domain) string {
	switch d.Kind {
	case nav.BooleanKind:
		return "BOOLEAN"
	case nav.IntegerKind:
		return "INTEGER"
	case nav.DecimalKind:
		return "NUMERIC"
	case nav.FloatKind:
		return "REAL"
	case nav.DateKind:
		return "DATE"
	case nav.TimeKind:
		return "TIME"
	case nav.DateTimeKind:
		return "TIMESTAMP"
	}
	return "TEXT"
}
