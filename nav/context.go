package nav

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Context carries the per-translation ambient state: the cancellation
// context, the tracer used to open one span per pipeline stage, and the
// logger. It never carries mutable IR state; each translation owns its
// own Context and the pipeline shares nothing across translations.
type Context struct {
	context.Context
	tracer opentracing.Tracer
	logger *logrus.Entry
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithTracer sets the tracer used for stage spans.
func WithTracer(t opentracing.Tracer) ContextOption {
	return func(ctx *Context) { ctx.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) ContextOption {
	return func(ctx *Context) { ctx.logger = l }
}

// NewContext creates a translation context.
func NewContext(ctx context.Context, opts ...ContextOption) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{
		Context: ctx,
		tracer:  opentracing.NoopTracer{},
		logger:  logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Span creates a new tracing span named after a pipeline stage and a child
// context carrying it.
func (ctx *Context) Span(opName string, opts ...opentracing.StartSpanOption) (opentracing.Span, *Context) {
	span := ctx.tracer.StartSpan(opName, opts...)
	return span, &Context{
		Context: opentracing.ContextWithSpan(ctx.Context, span),
		tracer:  ctx.tracer,
		logger:  ctx.logger,
	}
}

// Log returns the context logger.
func (ctx *Context) Log() *logrus.Entry {
	return ctx.logger
}

// WithFields returns a child context whose logger carries extra fields.
func (ctx *Context) WithFields(fields logrus.Fields) *Context {
	return &Context{
		Context: ctx.Context,
		tracer:  ctx.tracer,
		logger:  ctx.logger.WithFields(fields),
	}
}
