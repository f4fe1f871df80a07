package bind

import (
	"fmt"
	"strings"

	"github.com/weftql/weft/internal/similartext"
	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/syntax"
)

// Bind resolves a parsed query against the catalog and environment. The
// result is always a SelectionBinding: a flow plus the output elements,
// with a default selection synthesized when the query has none.
func Bind(s syntax.Syntax, catalog *nav.Catalog, env nav.Environment) (*SelectionBinding, error) {
	b := &binder{catalog: catalog, env: env}
	collect, ok := s.(*syntax.Collect)
	if !ok {
		return nil, nav.NewError(nav.ErrSyntax.New("a query must start with /"), s.Mark())
	}
	root := &RootBinding{Catalog: catalog, mark: collect.Mark()}
	flow, err := b.bindFlow(root, collect.Base)
	if err != nil {
		return nil, err
	}
	return b.finalize(flow)
}

type binder struct {
	catalog *nav.Catalog
	env     nav.Environment
}

// finalize guarantees the top binding is a selection.
func (b *binder) finalize(flow Binding) (*SelectionBinding, error) {
	switch n := flow.(type) {
	case *SelectionBinding:
		return n, nil
	}
	if !flow.Domain().Equal(nav.Void) {
		// A bare expression: select it against its own flow.
		base := exprFlow(flow)
		if base == nil {
			return nil, nav.NewError(nav.ErrSyntax.New("expected a table expression"), flow.Mark())
		}
		return &SelectionBinding{
			Base:     base,
			Elements: []Binding{flow},
			Names:    []string{elementName(flow)},
			mark:     flow.Mark(),
		}, nil
	}
	home := homeScope(flow)
	switch scope := home.(type) {
	case *TableBinding:
		sel := &SelectionBinding{Base: flow, mark: flow.Mark()}
		for _, c := range scope.Table.Columns {
			sel.Elements = append(sel.Elements, &ColumnBinding{Base: flow, Column: c, mark: flow.Mark()})
			sel.Names = append(sel.Names, c.Name)
		}
		return sel, nil
	case *ComplementBinding:
		sel := &SelectionBinding{Base: flow, mark: flow.Mark()}
		seedHome := homeScope(scope.Quotient.Seed)
		if t, ok := seedHome.(*TableBinding); ok {
			for _, c := range t.Table.Columns {
				sel.Elements = append(sel.Elements, &ColumnBinding{Base: flow, Column: c, mark: flow.Mark()})
				sel.Names = append(sel.Names, c.Name)
			}
			return sel, nil
		}
	case *QuotientBinding:
		sel := &SelectionBinding{Base: flow, mark: flow.Mark()}
		for i := range scope.Kernels {
			sel.Elements = append(sel.Elements, &KernelBinding{Quotient: scope, Index: i, mark: flow.Mark()})
			sel.Names = append(sel.Names, scope.KernelNames[i])
		}
		return sel, nil
	}
	return nil, nav.NewError(nav.ErrSyntax.New("expected a table expression"), flow.Mark())
}

// bindFlow binds a navigation pipeline in the given scope.
func (b *binder) bindFlow(scope Binding, s syntax.Syntax) (Binding, error) {
	switch n := s.(type) {
	case *syntax.Compose:
		left, err := b.bindFlow(scope, n.Left)
		if err != nil {
			return nil, err
		}
		return b.bindStep(left, n.Right)

	case *syntax.Filter:
		base, err := b.bindFlow(scope, n.Base)
		if err != nil {
			return nil, err
		}
		pred, err := b.bindExpr(base, n.Predicate)
		if err != nil {
			return nil, err
		}
		if !pred.Domain().Equal(nav.Boolean) && !pred.Domain().Equal(nav.Untyped) {
			return nil, nav.NewError(nav.ErrTypeMismatch.New(nav.Boolean, pred.Domain()), pred.Mark())
		}
		return &SieveBinding{Base: base, Filter: pred, mark: n.Mark()}, nil

	case *syntax.Select:
		base, err := b.bindFlow(scope, n.Base)
		if err != nil {
			return nil, err
		}
		return b.bindSelection(base, n)

	case *syntax.Quotient:
		seed, err := b.bindFlow(scope, n.Base)
		if err != nil {
			return nil, err
		}
		return b.bindQuotient(scope, seed, n)

	default:
		return b.bindStep(scope, s)
	}
}

// bindStep binds one navigation step (identifier or call) in scope.
func (b *binder) bindStep(scope Binding, s syntax.Syntax) (Binding, error) {
	switch n := s.(type) {
	case *syntax.Identifier:
		return b.resolveName(scope, n.Name, n.Mark())

	case *syntax.Apply:
		switch n.Name {
		case "sort":
			return b.bindSort(scope, n)
		case "limit":
			return b.bindLimit(scope, n)
		case "fork":
			return b.bindFork(scope, n)
		}
		return b.bindExpr(scope, n)

	default:
		return b.bindExpr(scope, s)
	}
}

func (b *binder) bindSelection(base Binding, n *syntax.Select) (Binding, error) {
	var order []OrderBinding
	sel := &SelectionBinding{mark: n.Mark()}
	for _, field := range n.Fields {
		fieldSyntax := field
		descending := false
		sorted := false
		if p, ok := field.(*syntax.Polarity); ok {
			fieldSyntax = p.Base
			descending = p.Descending
			sorted = true
		}
		e, err := b.bindExpr(base, fieldSyntax)
		if err != nil {
			return nil, err
		}
		sel.Elements = append(sel.Elements, e)
		sel.Names = append(sel.Names, elementName(e))
		if sorted {
			order = append(order, OrderBinding{Key: e, Descending: descending})
		}
	}
	if len(order) > 0 {
		base = &SortBinding{Base: base, Order: order, mark: n.Mark()}
	}
	sel.Base = base
	return sel, nil
}

func (b *binder) bindQuotient(scope, seed Binding, n *syntax.Quotient) (Binding, error) {
	q := &QuotientBinding{Base: scope, Seed: seed, mark: n.Mark()}
	for _, ks := range n.Kernels {
		k, err := b.bindExpr(seed, ks)
		if err != nil {
			return nil, err
		}
		if k.Domain().Equal(nav.Void) {
			return nil, nav.NewError(
				nav.ErrTypeMismatch.New("a scalar kernel", "a flow"), ks.Mark())
		}
		q.Kernels = append(q.Kernels, k)
		q.KernelNames = append(q.KernelNames, elementName(k))
	}
	if t, ok := homeScope(seed).(*TableBinding); ok {
		q.SeedName = t.Table.Name
	}
	return q, nil
}

func (b *binder) bindSort(scope Binding, n *syntax.Apply) (Binding, error) {
	if len(n.Args) == 0 {
		return nil, nav.NewError(nav.ErrArgumentCount.New("sort", 1, 0), n.Mark())
	}
	sort := &SortBinding{Base: scope, mark: n.Mark()}
	for _, arg := range n.Args {
		keySyntax := arg
		descending := false
		if p, ok := arg.(*syntax.Polarity); ok {
			keySyntax = p.Base
			descending = p.Descending
		}
		key, err := b.bindExpr(scope, keySyntax)
		if err != nil {
			return nil, err
		}
		sort.Order = append(sort.Order, OrderBinding{Key: key, Descending: descending})
	}
	return sort, nil
}

func (b *binder) bindLimit(scope Binding, n *syntax.Apply) (Binding, error) {
	if len(n.Args) < 1 || len(n.Args) > 2 {
		return nil, nav.NewError(nav.ErrArgumentCount.New("limit", 1, len(n.Args)), n.Mark())
	}
	clip := &ClipBinding{Base: scope, mark: n.Mark()}
	values := make([]*int, 0, 2)
	for _, arg := range n.Args {
		lit, ok := arg.(*syntax.Literal)
		if !ok || lit.Kind != syntax.IntegerLiteral {
			return nil, nav.NewError(
				nav.ErrTypeMismatch.New(nav.Integer, "an expression"), arg.Mark())
		}
		v := 0
		if _, err := fmt.Sscanf(lit.Text, "%d", &v); err != nil {
			return nil, nav.NewError(
				nav.ErrSyntax.New(fmt.Sprintf("limit value %q out of range", lit.Text)),
				arg.Mark())
		}
		value := v
		values = append(values, &value)
	}
	clip.Limit = values[0]
	if len(values) == 2 {
		clip.Offset = values[1]
	}
	return clip, nil
}

func (b *binder) bindFork(scope Binding, n *syntax.Apply) (Binding, error) {
	fork := &ForkBinding{Base: scope, mark: n.Mark()}
	for _, arg := range n.Args {
		k, err := b.bindExpr(scope, arg)
		if err != nil {
			return nil, err
		}
		fork.Kernels = append(fork.Kernels, k)
	}
	return fork, nil
}

var aggregateOps = map[string]bool{
	"count": true, "sum": true, "min": true, "max": true, "avg": true,
	"exists": true, "every": true, "some": true,
}

var castFuncs = map[string]nav.Domain{
	"text": nav.Text, "integer": nav.Integer, "float": nav.Float,
	"decimal": nav.Decimal, "boolean": nav.Boolean, "date": nav.Date,
	"datetime": nav.DateTime,
}

// bindExpr binds an expression in scope.
func (b *binder) bindExpr(scope Binding, s syntax.Syntax) (Binding, error) {
	switch n := s.(type) {
	case *syntax.Literal:
		return bindLiteral(n)

	case *syntax.Reference:
		return b.bindReference(n)

	case *syntax.Identifier:
		return b.resolveName(scope, n.Name, n.Mark())

	case *syntax.Compose:
		left, err := b.bindExpr(scope, n.Left)
		if err != nil {
			return nil, err
		}
		return b.bindStep(left, n.Right)

	case *syntax.Filter:
		return b.bindFlow(scope, n)

	case *syntax.Polarity:
		return nil, nav.NewError(nav.ErrSyntax.New("unexpected sort polarity"), n.Mark())

	case *syntax.Apply:
		return b.bindApply(scope, n)
	}
	return nil, nav.NewError(nav.ErrSyntax.New("expected an expression"), s.Mark())
}

func bindLiteral(n *syntax.Literal) (Binding, error) {
	switch n.Kind {
	case syntax.StringLiteral:
		return &LiteralBinding{Value: n.Text, domain: nav.Text, mark: n.Mark()}, nil
	case syntax.IntegerLiteral:
		v, err := nav.Integer.Parse(n.Text)
		if err != nil {
			return nil, nav.NewError(err, n.Mark())
		}
		return &LiteralBinding{Value: v, domain: nav.Integer, mark: n.Mark()}, nil
	case syntax.DecimalLiteral:
		v, err := nav.Decimal.Parse(n.Text)
		if err != nil {
			return nil, nav.NewError(err, n.Mark())
		}
		return &LiteralBinding{Value: v, domain: nav.Decimal, mark: n.Mark()}, nil
	case syntax.FloatLiteral:
		v, err := nav.Float.Parse(n.Text)
		if err != nil {
			return nil, nav.NewError(err, n.Mark())
		}
		return &LiteralBinding{Value: v, domain: nav.Float, mark: n.Mark()}, nil
	case syntax.TrueLiteral:
		return &LiteralBinding{Value: true, domain: nav.Boolean, mark: n.Mark()}, nil
	case syntax.FalseLiteral:
		return &LiteralBinding{Value: false, domain: nav.Boolean, mark: n.Mark()}, nil
	case syntax.NullLiteral:
		return &LiteralBinding{Value: nil, domain: nav.Untyped, mark: n.Mark()}, nil
	}
	return nil, nav.NewError(nav.ErrInvalidLiteral.New(nav.Untyped, n.Text), n.Mark())
}

func (b *binder) bindReference(n *syntax.Reference) (Binding, error) {
	value, ok := b.env[n.Name]
	if !ok {
		return nil, nav.NewError(nav.ErrUnknownReference.New(n.Name), n.Mark())
	}
	domain := nav.Untyped
	switch value.(type) {
	case string:
		domain = nav.Text
	case int, int32, int64:
		domain = nav.Integer
	case float32, float64:
		domain = nav.Float
	case bool:
		domain = nav.Boolean
	}
	return &ReferenceBinding{Name: n.Name, Value: value, domain: domain, mark: n.Mark()}, nil
}

func (b *binder) bindApply(scope Binding, n *syntax.Apply) (Binding, error) {
	if aggregateOps[n.Name] {
		return b.bindAggregate(scope, n)
	}
	if domain, ok := castFuncs[n.Name]; ok {
		if len(n.Args) != 1 {
			return nil, nav.NewError(nav.ErrArgumentCount.New(n.Name, 1, len(n.Args)), n.Mark())
		}
		arg, err := b.bindExpr(scope, n.Args[0])
		if err != nil {
			return nil, err
		}
		return &CastBinding{Base: arg, domain: domain, mark: n.Mark()}, nil
	}

	args := make([]Binding, len(n.Args))
	for i, a := range n.Args {
		arg, err := b.bindExpr(scope, a)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	switch n.Name {
	case "=", "!=", "==", "!==", "<", "<=", ">", ">=":
		if len(args) != 2 {
			return nil, nav.NewError(nav.ErrArgumentCount.New(n.Name, 2, len(args)), n.Mark())
		}
		if !comparable(args[0].Domain(), args[1].Domain()) {
			return nil, nav.NewError(
				nav.ErrTypeMismatch.New(args[0].Domain(), args[1].Domain()), n.Mark())
		}
		return &FormulaBinding{Op: n.Name, Args: args, domain: nav.Boolean, mark: n.Mark()}, nil

	case "and", "or":
		for _, a := range args {
			if !a.Domain().Equal(nav.Boolean) && !a.Domain().Equal(nav.Untyped) {
				return nil, nav.NewError(nav.ErrTypeMismatch.New(nav.Boolean, a.Domain()), a.Mark())
			}
		}
		return &FormulaBinding{Op: n.Name, Args: args, domain: nav.Boolean, mark: n.Mark()}, nil

	case "not":
		if len(args) != 1 {
			return nil, nav.NewError(nav.ErrArgumentCount.New("not", 1, len(args)), n.Mark())
		}
		if !args[0].Domain().Equal(nav.Boolean) && !args[0].Domain().Equal(nav.Untyped) {
			return nil, nav.NewError(nav.ErrTypeMismatch.New(nav.Boolean, args[0].Domain()), n.Mark())
		}
		return &FormulaBinding{Op: "not", Args: args, domain: nav.Boolean, mark: n.Mark()}, nil

	case "+", "-", "*", "/":
		if len(args) != 2 {
			return nil, nav.NewError(nav.ErrArgumentCount.New(n.Name, 2, len(args)), n.Mark())
		}
		if n.Name == "+" && args[0].Domain().Equal(nav.Text) && args[1].Domain().Equal(nav.Text) {
			return &FormulaBinding{Op: "concat", Args: args, domain: nav.Text, mark: n.Mark()}, nil
		}
		domain, ok := numericResult(args[0].Domain(), args[1].Domain())
		if !ok {
			return nil, nav.NewError(
				nav.ErrTypeMismatch.New("numeric operands", args[0].Domain()), n.Mark())
		}
		return &FormulaBinding{Op: n.Name, Args: args, domain: domain, mark: n.Mark()}, nil

	case "neg":
		if len(args) != 1 {
			return nil, nav.NewError(nav.ErrArgumentCount.New("neg", 1, len(args)), n.Mark())
		}
		domain, ok := numericResult(args[0].Domain(), args[0].Domain())
		if !ok {
			return nil, nav.NewError(
				nav.ErrTypeMismatch.New("a numeric operand", args[0].Domain()), n.Mark())
		}
		return &FormulaBinding{Op: "neg", Args: args, domain: domain, mark: n.Mark()}, nil

	case "length":
		if len(args) != 1 {
			return nil, nav.NewError(nav.ErrArgumentCount.New("length", 1, len(args)), n.Mark())
		}
		return &FormulaBinding{Op: "length", Args: args, domain: nav.Integer, mark: n.Mark()}, nil

	case "concat":
		return &FormulaBinding{Op: "concat", Args: args, domain: nav.Text, mark: n.Mark()}, nil

	case "ifnull":
		if len(args) != 2 {
			return nil, nav.NewError(nav.ErrArgumentCount.New("ifnull", 2, len(args)), n.Mark())
		}
		return &FormulaBinding{Op: "ifnull", Args: args, domain: args[0].Domain(), mark: n.Mark()}, nil

	case "is_null":
		if len(args) != 1 {
			return nil, nav.NewError(nav.ErrArgumentCount.New("is_null", 1, len(args)), n.Mark())
		}
		return &FormulaBinding{Op: "is_null", Args: args, domain: nav.Boolean, mark: n.Mark()}, nil
	}

	return nil, nav.NewError(nav.ErrUnknownFunction.New(n.Name), n.Mark())
}

func (b *binder) bindAggregate(scope Binding, n *syntax.Apply) (Binding, error) {
	if len(n.Args) != 1 {
		return nil, nav.NewError(nav.ErrArgumentCount.New(n.Name, 1, len(n.Args)), n.Mark())
	}
	operand, err := b.bindExpr(scope, n.Args[0])
	if err != nil {
		return nil, err
	}
	if operand.Domain().Equal(nav.Void) {
		// A flow operand: count(child) counts rows, exists(child) tests
		// for one. Other aggregates need a scalar operand.
		if n.Name != "count" && n.Name != "exists" {
			return nil, nav.NewError(
				nav.ErrTypeMismatch.New("a scalar operand", "a flow"), n.Args[0].Mark())
		}
	}
	return &AggregateBinding{Op: n.Name, Base: scope, Operand: operand, mark: n.Mark()}, nil
}

// resolveName looks a name up in the given scope. Two or more distinct
// candidates is an ambiguity error, never a silent pick.
func (b *binder) resolveName(scope Binding, name string, mark nav.Mark) (Binding, error) {
	type candidate struct {
		binding Binding
		label   string
	}
	var candidates []candidate

	home := homeScope(scope)
	switch h := home.(type) {
	case *RootBinding:
		for _, schema := range b.catalog.Schemas {
			if t, ok := schema.Table(name); ok {
				candidates = append(candidates, candidate{
					binding: &TableBinding{Base: scope, Table: t, mark: mark},
					label:   t.String(),
				})
			}
		}

	case *QuotientBinding:
		for i, kname := range h.KernelNames {
			if kname == name {
				candidates = append(candidates, candidate{
					binding: &KernelBinding{Quotient: h, Index: i, mark: mark},
					label:   "kernel " + kname,
				})
			}
		}
		if name == h.SeedName || name == "^" {
			candidates = append(candidates, candidate{
				binding: &ComplementBinding{Base: scope, Quotient: h, mark: mark},
				label:   "complement " + h.SeedName,
			})
		}

	default:
		table := scopeTable(home)
		if table == nil {
			return nil, nav.NewError(nav.ErrUnknownIdentifier.New(name), mark)
		}
		if c, ok := table.Column(name); ok {
			candidates = append(candidates, candidate{
				binding: &ColumnBinding{Base: scope, Column: c, mark: mark},
				label:   "column " + c.String(),
			})
		}
		for _, fk := range table.ForeignKeys {
			if fk.Target.Name == name {
				join := nav.NewDirectJoin(fk)
				candidates = append(candidates, candidate{
					binding: &TableBinding{Base: scope, Table: fk.Target, Join: join, mark: mark},
					label:   "link " + join.String(),
				})
			}
		}
		for _, fk := range table.ReferringForeignKeys {
			if fk.Origin.Name == name {
				join := nav.NewReverseJoin(fk)
				candidates = append(candidates, candidate{
					binding: &TableBinding{Base: scope, Table: fk.Origin, Join: join, mark: mark},
					label:   "link " + join.String(),
				})
			}
		}
	}

	switch len(candidates) {
	case 0:
		err := nav.NewError(nav.ErrUnknownIdentifier.New(name), mark)
		if hint := similartext.Find(b.scopeNames(home), name); hint != "" {
			err.WithHint(hint)
		}
		return nil, err
	case 1:
		return candidates[0].binding, nil
	}
	labels := make([]string, len(candidates))
	for i, c := range candidates {
		labels[i] = c.label
	}
	return nil, nav.NewError(
		nav.ErrAmbiguousIdentifier.New(name, strings.Join(labels, ", ")), mark)
}

// scopeNames lists every name resolvable in the scope, for hints on
// unknown identifiers.
func (b *binder) scopeNames(home Binding) []string {
	var names []string
	switch h := home.(type) {
	case *RootBinding:
		for _, schema := range b.catalog.Schemas {
			for _, t := range schema.Tables {
				names = append(names, t.Name)
			}
		}
	case *QuotientBinding:
		names = append(names, h.KernelNames...)
		if h.SeedName != "" {
			names = append(names, h.SeedName)
		}
	default:
		table := scopeTable(home)
		if table == nil {
			return nil
		}
		for _, c := range table.Columns {
			names = append(names, c.Name)
		}
		for _, fk := range table.ForeignKeys {
			names = append(names, fk.Target.Name)
		}
		for _, fk := range table.ReferringForeignKeys {
			names = append(names, fk.Origin.Name)
		}
	}
	return names
}

// homeScope unwraps the transparent flow operations (sieve, sort, clip,
// selection) down to the node that defines the name scope.
func homeScope(b Binding) Binding {
	for {
		switch n := b.(type) {
		case *SieveBinding:
			b = n.Base
		case *SortBinding:
			b = n.Base
		case *ClipBinding:
			b = n.Base
		case *SelectionBinding:
			b = n.Base
		case *ForkBinding:
			b = n.Base
		default:
			return b
		}
	}
}

// scopeTable returns the table a scope exposes columns of.
func scopeTable(home Binding) *nav.Table {
	switch h := home.(type) {
	case *TableBinding:
		return h.Table
	case *ComplementBinding:
		if t, ok := homeScope(h.Quotient.Seed).(*TableBinding); ok {
			return t.Table
		}
	}
	return nil
}

// exprFlow finds the flow an expression is evaluated against.
func exprFlow(b Binding) Binding {
	switch n := b.(type) {
	case *ColumnBinding:
		return n.Base
	case *AggregateBinding:
		return n.Base
	case *KernelBinding:
		return n.Quotient
	case *CastBinding:
		return exprFlow(n.Base)
	case *FormulaBinding:
		for _, a := range n.Args {
			if f := exprFlow(a); f != nil {
				return f
			}
		}
	}
	return nil
}

// elementName derives the output field name of a selected element.
func elementName(b Binding) string {
	switch n := b.(type) {
	case *ColumnBinding:
		return n.Column.Name
	case *KernelBinding:
		return n.Quotient.KernelNames[n.Index]
	case *CastBinding:
		return elementName(n.Base)
	}
	name := b.Mark().Excerpt()
	if name == "" {
		name = "field"
	}
	return name
}
