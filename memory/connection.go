package memory

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/weftql/weft/nav"
)

// Connection executes plans against an in-memory SQLite database created
// from a fixture. Driver errors never escape raw; they are wrapped in
// nav.ErrEngine at this boundary.
type Connection struct {
	db *sql.DB
}

// Connect opens a fresh in-memory database, creates the fixture tables
// and seeds their rows.
func Connect(db *Database) (*Connection, error) {
	handle, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, nav.ErrEngine.New(err.Error())
	}
	// The pool must not spawn a second connection: each :memory: handle
	// is its own database.
	handle.SetMaxOpenConns(1)

	c := &Connection{db: handle}
	if err := c.seed(db); err != nil {
		_ = handle.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the database.
func (c *Connection) Close() error {
	if err := c.db.Close(); err != nil {
		return nav.ErrEngine.New(err.Error())
	}
	return nil
}

// Execute runs literal SQL with positional arguments.
func (c *Connection) Execute(ctx *nav.Context, query string, args []interface{}) (nav.Cursor, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nav.ErrEngine.New(err.Error())
	}
	return &cursor{rows: rows}, nil
}

type cursor struct {
	rows *sql.Rows
}

// Next returns the next row, or nil when the result set is exhausted.
func (c *cursor) Next() ([]interface{}, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, nav.ErrEngine.New(err.Error())
		}
		return nil, nil
	}
	cols, err := c.rows.Columns()
	if err != nil {
		return nil, nav.ErrEngine.New(err.Error())
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, nav.ErrEngine.New(err.Error())
	}
	return values, nil
}

func (c *cursor) Close() error {
	if err := c.rows.Close(); err != nil {
		return nav.ErrEngine.New(err.Error())
	}
	return nil
}

func (c *Connection) seed(db *Database) error {
	for _, table := range db.Catalog.Tables() {
		if _, err := c.db.Exec(createTable(table)); err != nil {
			return nav.ErrEngine.New(err.Error())
		}
		rows := db.Rows(table.Name)
		if len(rows) == 0 {
			continue
		}
		marks := make([]string, len(table.Columns))
		for i := range marks {
			marks[i] = "?"
		}
		insert := fmt.Sprintf("INSERT INTO %q VALUES (%s)",
			table.Name, strings.Join(marks, ", "))
		for _, row := range rows {
			if len(row) != len(table.Columns) {
				return nav.ErrEngine.New(fmt.Sprintf(
					"fixture: table %q expects %d values, got %d",
					table.Name, len(table.Columns), len(row)))
			}
			if _, err := c.db.Exec(insert, row...); err != nil {
				return nav.ErrEngine.New(err.Error())
			}
		}
	}
	return nil
}

func createTable(table *nav.Table) string {
	var parts []string
	for _, col := range table.Columns {
		part := fmt.Sprintf("%q %s", col.Name, columnType(col.Domain))
		if !col.IsNullable {
			part += " NOT NULL"
		}
		parts = append(parts, part)
	}
	if table.PrimaryKey != nil {
		parts = append(parts, "PRIMARY KEY ("+keyColumns(table.PrimaryKey.Columns)+")")
	}
	for _, uk := range table.UniqueKeys {
		if uk.IsPrimary {
			continue
		}
		parts = append(parts, "UNIQUE ("+keyColumns(uk.Columns)+")")
	}
	return fmt.Sprintf("CREATE TABLE %q (%s)", table.Name, strings.Join(parts, ", "))
}

func keyColumns(cols []*nav.Column) string {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = fmt.Sprintf("%q", col.Name)
	}
	return strings.Join(names, ", ")
}

func columnType(d nav.Domain) string {
	switch d.Kind {
	case nav.BooleanKind, nav.IntegerKind:
		return "INTEGER"
	case nav.FloatKind:
		return "REAL"
	case nav.DecimalKind:
		return "NUMERIC"
	}
	return "TEXT"
}
