// Package weft translates navigational queries into SQL. A query names a
// path through the catalog ("/school.program?degree=='ba'"); the engine
// binds it, lowers it through the space and term algebras, assembles SQL
// query blocks, simplifies them and serializes the final text with
// positional placeholders.
package weft

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/weftql/weft/nav"
	"github.com/weftql/weft/nav/assemble"
	"github.com/weftql/weft/nav/bind"
	"github.com/weftql/weft/nav/compile"
	"github.com/weftql/weft/nav/dump"
	"github.com/weftql/weft/nav/encode"
	"github.com/weftql/weft/nav/reduce"
	"github.com/weftql/weft/nav/rewrite"
	"github.com/weftql/weft/nav/space"
	"github.com/weftql/weft/nav/syntax"
)

// Access is the set of capabilities granted to the engine's caller.
// Checks happen once at the Query boundary, never inside the pipeline.
type Access struct {
	Read  bool
	Write bool
}

// Builder configures an Engine.
type Builder struct {
	catalog *nav.Catalog
	logger  *logrus.Entry
	tracer  opentracing.Tracer
	access  Access
	reduce  bool
}

// NewBuilder starts an engine configuration over the given catalog.
func NewBuilder(catalog *nav.Catalog) *Builder {
	return &Builder{
		catalog: catalog,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
		tracer:  opentracing.NoopTracer{},
		access:  Access{Read: true},
		reduce:  true,
	}
}

// WithLogger sets the logger stages report to.
func (b *Builder) WithLogger(logger *logrus.Entry) *Builder {
	b.logger = logger
	return b
}

// WithTracer sets the tracer used for per-stage spans.
func (b *Builder) WithTracer(tracer opentracing.Tracer) *Builder {
	b.tracer = tracer
	return b
}

// WithAccess sets the caller's capabilities.
func (b *Builder) WithAccess(access Access) *Builder {
	b.access = access
	return b
}

// WithoutReduction disables the collapse and simplification pass. The
// generated SQL keeps one subquery per pipeline operation; the rows are
// the same as with reduction on.
func (b *Builder) WithoutReduction() *Builder {
	b.reduce = false
	return b
}

// Build creates the engine.
func (b *Builder) Build() *Engine {
	return &Engine{
		catalog: b.catalog,
		logger:  b.logger,
		tracer:  b.tracer,
		access:  b.access,
		reduce:  b.reduce,
	}
}

// New creates an engine with the default configuration.
func New(catalog *nav.Catalog) *Engine {
	return NewBuilder(catalog).Build()
}

// Engine is the query translator. It is safe for concurrent use: every
// translation owns its own pipeline state.
type Engine struct {
	catalog *nav.Catalog
	logger  *logrus.Entry
	tracer  opentracing.Tracer
	access  Access
	reduce  bool
}

// Catalog returns the catalog the engine translates against.
func (e *Engine) Catalog() *nav.Catalog { return e.catalog }

// Translate turns a query into a Plan without executing it.
func (e *Engine) Translate(ctx context.Context, query string, env nav.Environment) (*nav.Plan, error) {
	id := uuid.NewV4()
	nctx := nav.NewContext(ctx,
		nav.WithTracer(e.tracer),
		nav.WithLogger(e.logger),
	).WithFields(logrus.Fields{"plan": id.String()})

	span, sctx := nctx.Span("bind")
	parsed, err := syntax.Parse(query)
	if err == nil {
		var sel *bind.SelectionBinding
		sel, err = bind.Bind(parsed, e.catalog, env)
		span.Finish()
		if err != nil {
			return nil, err
		}
		return e.lower(sctx, id, query, sel)
	}
	span.Finish()
	return nil, err
}

// lower runs the back half of the pipeline on a bound selection.
func (e *Engine) lower(ctx *nav.Context, id uuid.UUID, query string, sel *bind.SelectionBinding) (*nav.Plan, error) {
	span, _ := ctx.Span("encode")
	st := encode.NewState()
	sp, err := st.Relate(sel.Base)
	if err != nil {
		span.Finish()
		return nil, err
	}
	codes := make([]space.Code, len(sel.Elements))
	profile := &nav.Profile{}
	for i, el := range sel.Elements {
		code, err := st.Encode(el)
		if err != nil {
			span.Finish()
			return nil, err
		}
		codes[i] = code
		profile.Fields = append(profile.Fields, nav.ProfileField{
			Name:   sel.Names[i],
			Domain: code.Domain(),
		})
	}
	span.Finish()

	span, _ = ctx.Span("rewrite")
	sp = rewrite.Rewrite(sp, st.Root)
	for i, code := range codes {
		codes[i] = rewrite.RewriteCode(code, sp)
	}
	span.Finish()

	span, _ = ctx.Span("compile")
	seg, err := compile.CompileSegment(sp, codes)
	span.Finish()
	if err != nil {
		return nil, err
	}

	span, _ = ctx.Span("assemble")
	res := assemble.Assemble(seg)
	span.Finish()

	if e.reduce {
		span, _ = ctx.Span("reduce")
		reduce.Reduce(res.Frame)
		span.Finish()
	}

	span, _ = ctx.Span("dump")
	sql, params := dump.Dump(res.Frame)
	span.Finish()

	ctx.Log().WithFields(logrus.Fields{
		"query": query,
		"sql":   sql,
	}).Debug("translated")

	return &nav.Plan{
		ID:           id,
		SQL:          sql,
		Profile:      profile,
		Placeholders: params,
	}, nil
}

// Query translates and executes in one step.
func (e *Engine) Query(ctx context.Context, conn nav.Connection, query string, env nav.Environment) (*nav.Product, error) {
	if !e.access.Read {
		return nil, nav.ErrPermission.New("read")
	}
	plan, err := e.Translate(ctx, query, env)
	if err != nil {
		return nil, err
	}
	nctx := nav.NewContext(ctx,
		nav.WithTracer(e.tracer),
		nav.WithLogger(e.logger),
	).WithFields(logrus.Fields{"plan": plan.ID.String()})

	cursor, err := conn.Execute(nctx, plan.SQL, plan.Arguments())
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close() }()

	product := &nav.Product{Profile: plan.Profile}
	for {
		row, err := cursor.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		product.Rows = append(product.Rows, row)
	}
	return product, nil
}
