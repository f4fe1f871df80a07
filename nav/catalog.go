package nav

// Catalog is a read-only snapshot of the database schema model. It owns an
// ordered list of schemas and stays immutable for the whole translation;
// the introspection subsystem that produces it is an external collaborator.
type Catalog struct {
	Schemas []*Schema

	byName map[string]*Schema
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: map[string]*Schema{}}
}

// AddSchema appends a schema to the catalog and returns it.
func (c *Catalog) AddSchema(name string) *Schema {
	s := &Schema{Catalog: c, Name: name, byName: map[string]*Table{}}
	c.Schemas = append(c.Schemas, s)
	c.byName[name] = s
	return s
}

// Schema looks a schema up by name.
func (c *Catalog) Schema(name string) (*Schema, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Tables yields every table of every schema in catalog order.
func (c *Catalog) Tables() []*Table {
	var tables []*Table
	for _, s := range c.Schemas {
		tables = append(tables, s.Tables...)
	}
	return tables
}

// Schema owns an ordered list of tables.
type Schema struct {
	Catalog *Catalog
	Name    string
	Tables  []*Table

	byName map[string]*Table
}

// AddTable appends a table to the schema and returns it.
func (s *Schema) AddTable(name string) *Table {
	t := &Table{Schema: s, Name: name, byName: map[string]*Column{}}
	s.Tables = append(s.Tables, t)
	s.byName[name] = t
	return t
}

// Table looks a table up by name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.byName[name]
	return t, ok
}
