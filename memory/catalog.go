// Package memory loads catalog fixtures from YAML and executes plans
// against an in-memory SQLite database seeded with the fixture rows. It
// exists for tests and demos; production callers bring their own
// Connection.
package memory

import (
	"fmt"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/weftql/weft/nav"
)

// Database is a catalog plus the fixture rows of every table.
type Database struct {
	Catalog *nav.Catalog
	rows    map[string][][]interface{}
}

type fixture struct {
	Schemas []schemaFixture `yaml:"schemas"`
}

type schemaFixture struct {
	Name   string         `yaml:"name"`
	Tables []tableFixture `yaml:"tables"`
}

type tableFixture struct {
	Name        string          `yaml:"name"`
	Columns     []columnFixture `yaml:"columns"`
	PrimaryKey  []string        `yaml:"primary_key"`
	UniqueKeys  [][]string      `yaml:"unique_keys"`
	ForeignKeys []fkFixture     `yaml:"foreign_keys"`
	Rows        [][]interface{} `yaml:"rows"`
}

type columnFixture struct {
	Name     string `yaml:"name"`
	Domain   string `yaml:"domain"`
	Nullable bool   `yaml:"nullable"`
}

type fkFixture struct {
	Columns       []string `yaml:"columns"`
	Target        string   `yaml:"target"`
	TargetColumns []string `yaml:"target_columns"`
}

// Load parses a YAML fixture into a Database. Tables are created first,
// foreign keys wired second, so forward references between tables work.
func Load(data []byte) (*Database, error) {
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, nav.ErrEngine.New(err.Error())
	}

	catalog := nav.NewCatalog()
	db := &Database{Catalog: catalog, rows: map[string][][]interface{}{}}

	for _, sf := range fx.Schemas {
		schema := catalog.AddSchema(sf.Name)
		for _, tf := range sf.Tables {
			table := schema.AddTable(tf.Name)
			for _, cf := range tf.Columns {
				domain, err := parseDomain(cf.Domain)
				if err != nil {
					return nil, err
				}
				table.AddColumn(cf.Name, domain, cf.Nullable)
			}
			if len(tf.PrimaryKey) > 0 {
				table.AddPrimaryKey(tf.PrimaryKey...)
			}
			for _, uk := range tf.UniqueKeys {
				table.AddUniqueKey(uk...)
			}
			db.rows[tf.Name] = tf.Rows
		}
	}

	for _, sf := range fx.Schemas {
		schema, _ := catalog.Schema(sf.Name)
		for _, tf := range sf.Tables {
			table, _ := schema.Table(tf.Name)
			for _, fk := range tf.ForeignKeys {
				target, ok := findTable(catalog, fk.Target)
				if !ok {
					return nil, nav.ErrEngine.New(
						fmt.Sprintf("fixture: unknown foreign key target %q", fk.Target))
				}
				table.AddForeignKey(fk.Columns, target, fk.TargetColumns)
			}
		}
	}
	return db, nil
}

// Rows returns the fixture rows of a table.
func (db *Database) Rows(table string) [][]interface{} {
	return db.rows[table]
}

func findTable(catalog *nav.Catalog, name string) (*nav.Table, bool) {
	for _, schema := range catalog.Schemas {
		if table, ok := schema.Table(name); ok {
			return table, true
		}
	}
	return nil, false
}

func parseDomain(name string) (nav.Domain, error) {
	if labels, ok := strings.CutPrefix(name, "enum:"); ok {
		return nav.Enum(strings.Split(labels, ",")...), nil
	}
	switch name {
	case "boolean":
		return nav.Boolean, nil
	case "integer":
		return nav.Integer, nil
	case "float":
		return nav.Float, nil
	case "decimal":
		return nav.Decimal, nil
	case "text", "":
		return nav.Text, nil
	case "date":
		return nav.Date, nil
	case "time":
		return nav.Time, nil
	case "datetime":
		return nav.DateTime, nil
	case "opaque":
		return nav.Opaque, nil
	}
	return nav.Domain{}, nav.ErrEngine.New(fmt.Sprintf("fixture: unknown domain %q", name))
}
