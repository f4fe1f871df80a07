package nav

import uuid "github.com/satori/go.uuid"

// Environment holds named parameter values supplied with the query. The
// values never appear inline in the generated SQL; they travel through the
// placeholder table of the Plan.
type Environment map[string]interface{}

// ProfileField describes one field of the output record.
type ProfileField struct {
	Name   string
	Domain Domain
}

// Profile is the output record shape of a translated query: the field
// names and domains in select-list order. It lets the caller decode result
// rows without re-deriving types from the driver's own metadata.
type Profile struct {
	Fields []ProfileField
}

// Domains returns the field domains in select order.
func (p *Profile) Domains() []Domain {
	ds := make([]Domain, len(p.Fields))
	for i, f := range p.Fields {
		ds[i] = f.Domain
	}
	return ds
}

// Placeholder describes one positional parameter of the generated SQL.
type Placeholder struct {
	Name   string
	Domain Domain
	Value  interface{}
}

// Plan is the product of a translation: literal SQL text, the output
// profile, and the positional placeholder table. Plans are built once per
// translation and never cached across queries.
type Plan struct {
	ID           uuid.UUID
	SQL          string
	Profile      *Profile
	Placeholders []Placeholder
}

// PlaceholderMap returns position → domain for every placeholder.
func (p *Plan) PlaceholderMap() map[int]Domain {
	m := make(map[int]Domain, len(p.Placeholders))
	for i, ph := range p.Placeholders {
		m[i] = ph.Domain
	}
	return m
}

// Arguments returns the placeholder values in positional order, ready to
// hand to Connection.Execute.
func (p *Plan) Arguments() []interface{} {
	args := make([]interface{}, len(p.Placeholders))
	for i, ph := range p.Placeholders {
		args[i] = ph.Value
	}
	return args
}

// Product is the decoded result of executing a Plan: the output profile
// plus the row data, or nil Rows when the query produced no rows.
type Product struct {
	Profile *Profile
	Rows    [][]interface{}
}

// Connection is the capability that executes literal query text. Errors
// from the underlying engine must be translated into ErrEngine, never
// leaked as raw driver errors.
type Connection interface {
	Execute(ctx *Context, sql string, args []interface{}) (Cursor, error)
}

// Cursor yields result rows as ordered tuples.
type Cursor interface {
	Next() ([]interface{}, error)
	Close() error
}
