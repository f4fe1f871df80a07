package compile

import (
	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/space"
)

// CompileSegment turns the segment space and its output codes into a
// term tree. Every unit the output or the ordering needs is injected
// into the trunk before the segment node is built, so the routing table
// of the result covers the whole demand of the assembler.
func CompileSegment(sp space.Space, codes []space.Code) (*SegmentTerm, error) {
	root := rootOf(sp)
	c := &compiler{baselines: []space.Space{root}}

	trunk, err := c.compile(sp)
	if err != nil {
		return nil, err
	}

	order := Ordering(sp)
	var units []space.Unit
	for _, code := range codes {
		units = append(units, code.Units()...)
	}
	for _, o := range order {
		units = append(units, o.Code.Units()...)
	}
	trunk, err = c.inject(trunk, units)
	if err != nil {
		return nil, err
	}

	return &SegmentTerm{
		termBase: termBase{c.newTag(), sp, root, trunk.Routes()},
		Child:    trunk,
		Codes:    codes,
		Order:    order,
	}, nil
}

// Ordering derives the weak ordering of a space: explicit sort keys
// first, then the connecting key of every table axis Root-ward, then
// kernel values for groupings. Duplicate keys keep their first position.
func Ordering(sp space.Space) []space.OrderItem {
	return dedupeOrder(ordering(sp))
}

func ordering(sp space.Space) []space.OrderItem {
	if sp == nil {
		return nil
	}
	switch n := sp.(type) {
	case *space.RootSpace:
		return nil

	case *space.TableSpace:
		return append(ordering(n.Base()), axisOrder(n)...)

	case *space.FiberSpace:
		return append(ordering(n.Base()), axisOrder(n)...)

	case *space.FilteredSpace:
		return ordering(n.Base())

	case *space.OrderedSpace:
		return append(append([]space.OrderItem{}, n.Order()...), ordering(n.Base())...)

	case *space.QuotientSpace:
		items := ordering(n.Base())
		for i := range n.Kernels() {
			items = append(items, space.OrderItem{Code: space.NewKernelUnit(i, n)})
		}
		return items

	case *space.ComplementSpace:
		return append(ordering(n.Base()), ordering(n.Quotient().Seed())...)

	case *space.MonikerSpace:
		return append(ordering(n.Base()), ordering(n.Seed())...)

	case *space.ForkedSpace:
		return ordering(n.Base())

	case *space.LinkedSpace:
		return append(ordering(n.Base()), ordering(n.Seed())...)
	}
	return nil
}

// axisOrder is the connecting key of a table axis as ascending keys.
// Tables without any total key contribute nothing.
func axisOrder(axis space.Space) []space.OrderItem {
	key, ok := axis.Table().ConnectingKey()
	if !ok {
		return nil
	}
	items := make([]space.OrderItem, len(key.Columns))
	for i, col := range key.Columns {
		items[i] = space.OrderItem{Code: space.NewColumnUnit(col, axis)}
	}
	return items
}

func dedupeOrder(items []space.OrderItem) []space.OrderItem {
	seen := map[uint64]bool{}
	var out []space.OrderItem
	for _, o := range items {
		if seen[o.Code.Hash()] {
			continue
		}
		seen[o.Code.Hash()] = true
		out = append(out, o)
	}
	return out
}

type compiler struct {
	tags int
	// baselines is a stack: the top is the axis the current shoot is
	// fenced at. Compiling an axis equal to the top produces a leaf.
	baselines []space.Space
}

func (c *compiler) newTag() int {
	c.tags++
	return c.tags
}

func (c *compiler) baseline() space.Space {
	return c.baselines[len(c.baselines)-1]
}

func (c *compiler) push(s space.Space) {
	c.baselines = append(c.baselines, s)
}

func (c *compiler) pop() {
	c.baselines = c.baselines[:len(c.baselines)-1]
}

func (c *compiler) compile(sp space.Space) (Term, error) {
	switch n := sp.(type) {
	case *space.RootSpace:
		tag := c.newTag()
		routes := NewRoutes()
		routes.AddSpace(n, tag)
		return &ScalarTerm{termBase{tag, n, c.baseline(), routes}}, nil

	case *space.TableSpace, *space.FiberSpace:
		return c.compileTable(sp)

	case *space.FilteredSpace:
		return c.compileFiltered(n)

	case *space.OrderedSpace:
		return c.compileOrdered(n)

	case *space.QuotientSpace:
		return c.compileQuotient(n)

	case *space.ComplementSpace:
		return c.compileComplement(n)

	case *space.ForkedSpace:
		return c.compileForked(n)

	case *space.MonikerSpace:
		return c.compileSeeded(n, n.Seed(), nil)

	case *space.LinkedSpace:
		return c.compileSeeded(n, n.Seed(), n.Ties())
	}
	return nil, nav.ErrEngine.New("cannot compile space " + sp.String())
}

// compileTable handles both table and fiber axes. When the axis is the
// current baseline the whole chain below it is out of scope and a bare
// table leaf suffices; otherwise the base is compiled and the new axis
// is joined to it.
func (c *compiler) compileTable(sp space.Space) (Term, error) {
	axis := space.Inflate(sp)
	if axis.Equal(c.baseline()) {
		return c.tableLeaf(axis, c.baseline()), nil
	}

	base, err := c.compile(sp.Base())
	if err != nil {
		return nil, err
	}

	if fiber, ok := sp.(*space.FiberSpace); ok {
		baseAxis := space.Inflate(sp.Base())
		var ties []Joint
		var leftUnits, rightUnits []space.Unit
		for _, pair := range fiber.Join().Pairs() {
			left := space.NewColumnUnit(pair[0], baseAxis)
			right := space.NewColumnUnit(pair[1], axis)
			ties = append(ties, Joint{Left: left, Right: right})
			leftUnits = append(leftUnits, left)
			rightUnits = append(rightUnits, right)
		}
		base, err = c.inject(base, leftUnits)
		if err != nil {
			return nil, err
		}
		shoot, err := c.inject(c.tableLeaf(axis, axis), rightUnits)
		if err != nil {
			return nil, err
		}
		tag := c.newTag()
		routes := base.Routes().Merge(shoot.Routes())
		return &JoinTerm{
			termBase: termBase{tag, sp, c.baseline(), routes},
			Left:     base, Right: shoot, Ties: ties,
		}, nil
	}

	// A free attach from the scalar base: the single scalar row is
	// implicit, so the leaf can stand in for the whole chain.
	if scalar, ok := base.(*ScalarTerm); ok {
		leaf := c.tableLeaf(axis, c.baseline())
		routes := leaf.Routes().Clone()
		routes.AddSpace(scalar.Space(), leaf.Tag())
		return leaf.WithRoutes(routes), nil
	}

	// The scalar base carries observable operations: cross-join.
	right := c.tableLeaf(axis, axis)
	tag := c.newTag()
	routes := base.Routes().Merge(right.Routes())
	return &JoinTerm{
		termBase: termBase{tag, sp, c.baseline(), routes},
		Left:     base, Right: right,
	}, nil
}

func (c *compiler) tableLeaf(axis, baseline space.Space) *TableTerm {
	tag := c.newTag()
	routes := NewRoutes()
	routes.AddSpace(axis, tag)
	return &TableTerm{
		termBase: termBase{tag, axis, baseline, routes},
		TableRef: axis.Table(),
	}
}

func (c *compiler) compileFiltered(sp *space.FilteredSpace) (Term, error) {
	child, err := c.compile(sp.Base())
	if err != nil {
		return nil, err
	}
	child, err = c.inject(child, sp.Filter().Units())
	if err != nil {
		return nil, err
	}
	return &FilterTerm{
		termBase: termBase{c.newTag(), sp, c.baseline(), child.Routes()},
		Child:    child,
		Filter:   sp.Filter(),
	}, nil
}

func (c *compiler) compileOrdered(sp *space.OrderedSpace) (Term, error) {
	// A clip makes the row count observable: the subtree below must not
	// be pruned against any wider baseline.
	if sp.IsClipped() {
		c.push(rootOf(sp))
		defer c.pop()
	}
	child, err := c.compile(sp.Base())
	if err != nil {
		return nil, err
	}
	// The frame realizing this node carries the full derived ordering, not
	// just the explicit keys: a clipped subquery must sort exactly the way
	// the segment does for the clip to be hoistable later.
	keys := Ordering(sp)
	var units []space.Unit
	for _, o := range keys {
		units = append(units, o.Code.Units()...)
	}
	child, err = c.inject(child, units)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 && !sp.IsClipped() {
		return &WrapperTerm{
			termBase: termBase{c.newTag(), sp, c.baseline(), child.Routes()},
			Child:    child,
		}, nil
	}
	return &OrderTerm{
		termBase: termBase{c.newTag(), sp, c.baseline(), child.Routes()},
		Child:    child,
		Order:    keys,
		Limit:    sp.Limit(),
		Offset:   sp.Offset(),
	}, nil
}

// compileQuotient builds a projection over the seed shoot. The seed is
// fenced at the base axis; rows whose kernel values are all null never
// form a group.
func (c *compiler) compileQuotient(q *space.QuotientSpace) (Term, error) {
	baseAxis := space.Inflate(q.Base())
	c.push(baseAxis)
	seed, err := c.compile(q.Seed())
	c.pop()
	if err != nil {
		return nil, err
	}

	idents, err := identityCodes(baseAxis)
	if err != nil {
		return nil, err
	}
	var ties []Joint
	for _, id := range idents {
		ties = append(ties, Joint{Left: id, Right: id})
		seed, err = c.inject(seed, id.Units())
		if err != nil {
			return nil, err
		}
	}
	for _, k := range q.Kernels() {
		seed, err = c.inject(seed, k.Units())
		if err != nil {
			return nil, err
		}
	}

	if len(q.Kernels()) > 0 {
		seed = c.filterNullKernels(seed, q.Kernels())
	}

	kernel := append(append([]space.Code{}, idents...), q.Kernels()...)
	ptag := c.newTag()
	proutes := seed.Routes().Clone()
	proutes.AddSpace(q, ptag)
	for i := range q.Kernels() {
		proutes.AddUnit(space.NewKernelUnit(i, q), ptag)
	}
	proj := &ProjectionTerm{
		termBase: termBase{ptag, q, c.baseline(), proutes},
		Child:    seed,
		Kernel:   kernel,
	}

	if _, ok := baseAxis.(*space.RootSpace); ok {
		return proj, nil
	}

	base, err := c.compile(q.Base())
	if err != nil {
		return nil, err
	}
	var leftUnits []space.Unit
	for _, t := range ties {
		leftUnits = append(leftUnits, t.Left.Units()...)
	}
	base, err = c.inject(base, leftUnits)
	if err != nil {
		return nil, err
	}
	tag := c.newTag()
	routes := base.Routes().Merge(proutes)
	return &JoinTerm{
		termBase: termBase{tag, q, c.baseline(), routes},
		Left:     base, Right: proj, Ties: ties,
	}, nil
}

// filterNullKernels keeps the seed rows where at least one kernel value
// is not null.
func (c *compiler) filterNullKernels(seed Term, kernels []space.Code) Term {
	var some space.Code
	for _, k := range kernels {
		notNull := space.NewFormulaCode(nav.Boolean, space.OpNot,
			space.NewFormulaCode(nav.Boolean, space.OpIsNull, k))
		if some == nil {
			some = notNull
		} else {
			some = space.NewFormulaCode(nav.Boolean, space.OpOr, some, notNull)
		}
	}
	return &FilterTerm{
		termBase: termBase{c.newTag(), seed.Space(), seed.Baseline(), seed.Routes()},
		Child:    seed,
		Filter:   some,
	}
}

// compileComplement attaches the seed rows of the quotient back to the
// trunk, tied by kernel equality.
func (c *compiler) compileComplement(sp *space.ComplementSpace) (Term, error) {
	q := sp.Quotient()
	base, err := c.compile(sp.Base())
	if err != nil {
		return nil, err
	}

	qBaseAxis := space.Inflate(q.Base())
	c.push(qBaseAxis)
	seed, err := c.compile(q.Seed())
	c.pop()
	if err != nil {
		return nil, err
	}

	idents, err := identityCodes(qBaseAxis)
	if err != nil {
		return nil, err
	}
	var ties []Joint
	for _, id := range idents {
		ties = append(ties, Joint{Left: id, Right: id})
	}
	for i, k := range q.Kernels() {
		ties = append(ties, Joint{Left: space.NewKernelUnit(i, q), Right: k})
	}
	for _, t := range ties {
		base, err = c.inject(base, t.Left.Units())
		if err != nil {
			return nil, err
		}
		seed, err = c.inject(seed, t.Right.Units())
		if err != nil {
			return nil, err
		}
	}

	tag := c.newTag()
	routes := base.Routes().Merge(seed.Routes())
	return &JoinTerm{
		termBase: termBase{tag, sp, c.baseline(), routes},
		Left:     base, Right: seed, Ties: ties,
	}, nil
}

// compileForked self-joins the base axis on kernel equality. With no
// kernels every row of the axis matches.
func (c *compiler) compileForked(sp *space.ForkedSpace) (Term, error) {
	base, err := c.compile(sp.Base())
	if err != nil {
		return nil, err
	}
	axis := space.Inflate(sp.Base())
	c.push(axis)
	shoot, err := c.compile(axis)
	c.pop()
	if err != nil {
		return nil, err
	}
	var ties []Joint
	for _, k := range sp.Kernels() {
		ties = append(ties, Joint{Left: k, Right: k})
		base, err = c.inject(base, k.Units())
		if err != nil {
			return nil, err
		}
		shoot, err = c.inject(shoot, k.Units())
		if err != nil {
			return nil, err
		}
	}
	tag := c.newTag()
	routes := base.Routes().Merge(shoot.Routes())
	return &JoinTerm{
		termBase: termBase{tag, sp, c.baseline(), routes},
		Left:     base, Right: shoot, Ties: ties,
	}, nil
}

// compileSeeded attaches an arbitrary seed space to the trunk. Explicit
// ties come from linked spaces; with none, the common-axis identity
// connects the two sides.
func (c *compiler) compileSeeded(sp, seed space.Space, explicit []space.Tie) (Term, error) {
	base, err := c.compile(sp.Base())
	if err != nil {
		return nil, err
	}
	anchor := space.CommonAxis(sp.Base(), seed)
	c.push(anchor)
	shoot, err := c.compile(seed)
	c.pop()
	if err != nil {
		return nil, err
	}

	var ties []Joint
	if len(explicit) > 0 {
		for _, t := range explicit {
			ties = append(ties, Joint{Left: t.Left, Right: t.Right})
		}
	} else {
		idents, err := identityCodes(anchor)
		if err != nil {
			return nil, err
		}
		for _, id := range idents {
			ties = append(ties, Joint{Left: id, Right: id})
		}
	}
	for _, t := range ties {
		base, err = c.inject(base, t.Left.Units())
		if err != nil {
			return nil, err
		}
		shoot, err = c.inject(shoot, t.Right.Units())
		if err != nil {
			return nil, err
		}
	}

	tag := c.newTag()
	routes := base.Routes().Merge(shoot.Routes())
	return &JoinTerm{
		termBase: termBase{tag, sp, c.baseline(), routes},
		Left:     base, Right: shoot, Ties: ties,
	}, nil
}

// inject threads every unit through the term, growing shoots where the
// trunk does not yet cover the unit's space.
func (c *compiler) inject(term Term, units []space.Unit) (Term, error) {
	var err error
	for _, u := range units {
		term, err = c.injectUnit(term, u)
		if err != nil {
			return nil, err
		}
	}
	return term, nil
}

func (c *compiler) injectUnit(term Term, u space.Unit) (Term, error) {
	if _, ok := term.Routes().UnitTag(u); ok {
		return term, nil
	}
	switch n := u.(type) {
	case *space.ColumnUnit:
		axis := space.Inflate(n.Space())
		if tag, ok := term.Routes().SpaceTag(axis); ok {
			routes := term.Routes().Clone()
			routes.AddUnit(u, tag)
			return term.WithRoutes(routes), nil
		}
		if !space.Spans(term.Space(), n.Space()) {
			return nil, nav.ErrSingularExpected.New()
		}
		term, err := c.attachAxis(term, axis)
		if err != nil {
			return nil, err
		}
		tag, ok := term.Routes().SpaceTag(axis)
		if !ok {
			return nil, nav.ErrEngine.New("axis not exported after attach: " + axis.String())
		}
		routes := term.Routes().Clone()
		routes.AddUnit(u, tag)
		return term.WithRoutes(routes), nil

	case *space.KernelUnit:
		if tag, ok := term.Routes().SpaceTag(n.Quotient()); ok {
			routes := term.Routes().Clone()
			routes.AddUnit(u, tag)
			return term.WithRoutes(routes), nil
		}
		if !space.Spans(term.Space(), n.Space()) {
			return nil, nav.ErrSingularExpected.New()
		}
		term, err := c.attachAxis(term, n.Quotient())
		if err != nil {
			return nil, err
		}
		tag, _ := term.Routes().SpaceTag(n.Quotient())
		routes := term.Routes().Clone()
		routes.AddUnit(u, tag)
		return term.WithRoutes(routes), nil

	case *space.ScalarUnit:
		return c.injectWrapped(term, u, n.Code())

	case *space.ComplementUnit:
		return c.injectWrapped(term, u, n.Code())

	case *space.AggregateUnit:
		return c.injectAggregate(term, n)

	case *space.CorrelatedUnit:
		return c.injectCorrelated(term, n)
	}
	return nil, nav.ErrEngine.New("cannot inject unit " + u.String())
}

// injectWrapped routes a unit that is evaluated inline once its inner
// units are available: the claim targets a fresh wrapper over the trunk.
func (c *compiler) injectWrapped(term Term, u space.Unit, inner space.Code) (Term, error) {
	if !space.Spans(term.Space(), u.Space()) {
		return nil, nav.ErrSingularExpected.New()
	}
	term, err := c.inject(term, inner.Units())
	if err != nil {
		return nil, err
	}
	tag := c.newTag()
	routes := term.Routes().Clone()
	routes.AddUnit(u, tag)
	return &WrapperTerm{
		termBase: termBase{tag, term.Space(), term.Baseline(), routes},
		Child:    term,
	}, nil
}

// attachAxis grows a shoot covering the given axis and joins it to the
// trunk over the identity of their deepest common axis. The join is LEFT
// unless the shoot is known to cover every trunk row.
func (c *compiler) attachAxis(trunk Term, axis space.Space) (Term, error) {
	anchor := space.CommonAxis(trunk.Space(), axis)
	c.push(anchor)
	shoot, err := c.compile(axis)
	c.pop()
	if err != nil {
		return nil, err
	}

	idents, err := identityCodes(anchor)
	if err != nil {
		return nil, err
	}
	var ties []Joint
	for _, id := range idents {
		ties = append(ties, Joint{Left: id, Right: id})
		trunk, err = c.inject(trunk, id.Units())
		if err != nil {
			return nil, err
		}
		shoot, err = c.inject(shoot, id.Units())
		if err != nil {
			return nil, err
		}
	}

	tag := c.newTag()
	routes := trunk.Routes().Merge(shoot.Routes())
	return &JoinTerm{
		termBase: termBase{tag, trunk.Space(), c.baseline(), routes},
		Left:     trunk, Right: shoot, Ties: ties,
		IsLeft: !space.Dominates(axis, trunk.Space()),
	}, nil
}

// injectAggregate realizes an aggregate as a grouped shoot joined back
// to the trunk on the anchor identity. The join is LEFT because groups
// only exist where seed rows do; count compensates at evaluation.
func (c *compiler) injectAggregate(trunk Term, u *space.AggregateUnit) (Term, error) {
	if !space.Spans(trunk.Space(), u.Space()) {
		return nil, nav.ErrSingularExpected.New()
	}
	anchor := space.CommonAxis(u.Space(), u.PluralSpace())
	c.push(anchor)
	seed, err := c.compile(u.PluralSpace())
	c.pop()
	if err != nil {
		return nil, err
	}
	seed, err = c.inject(seed, u.Operand().Units())
	if err != nil {
		return nil, err
	}

	idents, err := identityCodes(anchor)
	if err != nil {
		return nil, err
	}
	var ties []Joint
	for _, id := range idents {
		ties = append(ties, Joint{Left: id, Right: id})
		trunk, err = c.inject(trunk, id.Units())
		if err != nil {
			return nil, err
		}
		seed, err = c.inject(seed, id.Units())
		if err != nil {
			return nil, err
		}
	}

	projSpace := space.NewQuotientSpace(anchor, u.PluralSpace(), idents)
	ptag := c.newTag()
	proutes := seed.Routes().Clone()
	proutes.AddSpace(projSpace, ptag)
	proj := &ProjectionTerm{
		termBase:   termBase{ptag, projSpace, projSpace, proutes},
		Child:      seed,
		Kernel:     idents,
		Aggregates: []*space.AggregateUnit{u},
	}

	tag := c.newTag()
	routes := trunk.Routes().Clone()
	routes.AddUnit(u, ptag)
	return &JoinTerm{
		termBase: termBase{tag, trunk.Space(), c.baseline(), routes},
		Left:     trunk, Right: proj, Ties: ties,
		IsLeft: !space.Dominates(projSpace, trunk.Space()),
	}, nil
}

// injectCorrelated realizes an existence test as a correlated embedding:
// the seed subquery references the trunk through its tie conditions.
func (c *compiler) injectCorrelated(trunk Term, u *space.CorrelatedUnit) (Term, error) {
	if !space.Spans(trunk.Space(), u.Space()) {
		return nil, nav.ErrSingularExpected.New()
	}
	anchor := space.CommonAxis(u.Space(), u.PluralSpace())
	c.push(anchor)
	seed, err := c.compile(u.PluralSpace())
	c.pop()
	if err != nil {
		return nil, err
	}
	seed, err = c.inject(seed, u.Operand().Units())
	if err != nil {
		return nil, err
	}

	idents, err := identityCodes(anchor)
	if err != nil {
		return nil, err
	}
	var ties []Joint
	for _, id := range idents {
		ties = append(ties, Joint{Left: id, Right: id})
		trunk, err = c.inject(trunk, id.Units())
		if err != nil {
			return nil, err
		}
		seed, err = c.inject(seed, id.Units())
		if err != nil {
			return nil, err
		}
	}

	corr := &CorrelationTerm{
		termBase: termBase{c.newTag(), u.PluralSpace(), anchor, seed.Routes()},
		Child:    seed,
		Ties:     ties,
	}
	etag := c.newTag()
	routes := trunk.Routes().Clone()
	routes.AddUnit(u, etag)
	return &EmbeddingTerm{
		termBase: termBase{etag, trunk.Space(), c.baseline(), routes},
		Left:     trunk, Right: corr,
		Op: u.Op(), Operand: u.Operand(), Unit: u,
	}, nil
}

// identityCodes returns the codes identifying one row of an axis: the
// connecting key for table axes, the kernel values for quotients, and
// nothing for the scalar root.
func identityCodes(axis space.Space) ([]space.Code, error) {
	switch n := axis.(type) {
	case nil, *space.RootSpace:
		return nil, nil
	case *space.QuotientSpace:
		codes := make([]space.Code, len(n.Kernels()))
		for i := range n.Kernels() {
			codes[i] = space.NewKernelUnit(i, n)
		}
		return codes, nil
	}
	if axis.Family() == space.TableFamily {
		key, ok := axis.Table().ConnectingKey()
		if !ok {
			return nil, nav.ErrNoConnectingKey.New(axis.Table().Name)
		}
		codes := make([]space.Code, len(key.Columns))
		for i, col := range key.Columns {
			codes[i] = space.NewColumnUnit(col, axis)
		}
		return codes, nil
	}
	return nil, nil
}

// rootOf walks the chain to its origin.
func rootOf(sp space.Space) space.Space {
	for sp.Base() != nil {
		sp = sp.Base()
	}
	return sp
}
