package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weftql/weft/nav"
)

const campusFixture = `
schemas:
  - name: ed
    tables:
      - name: school
        columns:
          - {name: code, domain: text}
          - {name: name, domain: text}
          - {name: campus, domain: text, nullable: true}
        primary_key: [code]
        unique_keys:
          - [name]
        rows:
          - [em, Empty College, ~]
          - [ns, North Science, north]
          - [sa, South Arts, south]
      - name: program
        columns:
          - {name: school_code, domain: text}
          - {name: code, domain: text}
          - {name: degree, domain: "enum:bs,ms", nullable: true}
          - {name: year, domain: integer, nullable: true}
        primary_key: [school_code, code]
        foreign_keys:
          - {columns: [school_code], target: school, target_columns: [code]}
        rows:
          - [ns, gb, bs, 1995]
          - [ns, pm, ms, 2001]
          - [sa, uh, ~, 1988]
`

func TestLoad(t *testing.T) {
	require := require.New(t)

	db, err := Load([]byte(campusFixture))
	require.NoError(err)

	require.Len(db.Catalog.Schemas, 1)
	schema := db.Catalog.Schemas[0]
	require.Equal("ed", schema.Name)

	school, ok := schema.Table("school")
	require.True(ok)
	require.Len(school.Columns, 3)
	code, ok := school.Column("code")
	require.True(ok)
	require.True(code.Domain.Equal(nav.Text))
	require.False(code.IsNullable)
	campus, _ := school.Column("campus")
	require.True(campus.IsNullable)

	// The primary key leads the unique keys; the extra key follows.
	require.NotNil(school.PrimaryKey)
	require.Len(school.UniqueKeys, 2)
	require.True(school.UniqueKeys[0].IsPrimary)
	require.Equal("name", school.UniqueKeys[1].Columns[0].Name)

	program, ok := schema.Table("program")
	require.True(ok)
	degree, _ := program.Column("degree")
	require.True(degree.Domain.Equal(nav.Enum("bs", "ms")))

	// Foreign keys are wired after all tables exist.
	require.Len(program.ForeignKeys, 1)
	fk := program.ForeignKeys[0]
	require.Equal(school, fk.Target)
	require.Len(school.ReferringForeignKeys, 1)
	require.Equal(fk, school.ReferringForeignKeys[0])

	require.Len(db.Rows("school"), 3)
	require.Len(db.Rows("program"), 3)
	require.Empty(db.Rows("cafeteria"))
}

func TestLoadErrors(t *testing.T) {
	require := require.New(t)

	_, err := Load([]byte("schemas: [not a schema"))
	require.Error(err)
	require.True(nav.ErrEngine.Is(err))

	_, err = Load([]byte(`
schemas:
  - name: ed
    tables:
      - name: t
        columns:
          - {name: c, domain: tensor}
`))
	require.Error(err)
	require.True(nav.ErrEngine.Is(err))
	require.Contains(err.Error(), "tensor")

	_, err = Load([]byte(`
schemas:
  - name: ed
    tables:
      - name: t
        columns:
          - {name: c, domain: text}
        foreign_keys:
          - {columns: [c], target: missing, target_columns: [c]}
`))
	require.Error(err)
	require.True(nav.ErrEngine.Is(err))
	require.Contains(err.Error(), "missing")
}

func TestConnectAndExecute(t *testing.T) {
	require := require.New(t)

	db, err := Load([]byte(campusFixture))
	require.NoError(err)
	conn, err := Connect(db)
	require.NoError(err)
	defer func() { require.NoError(conn.Close()) }()

	ctx := nav.NewContext(context.Background())

	cursor, err := conn.Execute(ctx, `SELECT count(*) FROM school`, nil)
	require.NoError(err)
	row, err := cursor.Next()
	require.NoError(err)
	require.Equal([]interface{}{int64(3)}, row)
	// The cursor signals exhaustion with a nil row, repeatably.
	row, err = cursor.Next()
	require.NoError(err)
	require.Nil(row)
	row, err = cursor.Next()
	require.NoError(err)
	require.Nil(row)
	require.NoError(cursor.Close())

	cursor, err = conn.Execute(ctx,
		`SELECT code, campus FROM school ORDER BY code`, nil)
	require.NoError(err)
	var rows [][]interface{}
	for {
		row, err := cursor.Next()
		require.NoError(err)
		if row == nil {
			break
		}
		rows = append(rows, row)
	}
	require.NoError(cursor.Close())
	require.Equal([][]interface{}{
		{"em", nil},
		{"ns", "north"},
		{"sa", "south"},
	}, rows)

	cursor, err = conn.Execute(ctx,
		`SELECT year FROM program WHERE school_code = ?`, []interface{}{"sa"})
	require.NoError(err)
	row, err = cursor.Next()
	require.NoError(err)
	require.Equal([]interface{}{int64(1988)}, row)
	require.NoError(cursor.Close())
}

func TestExecuteError(t *testing.T) {
	require := require.New(t)

	db, err := Load([]byte(campusFixture))
	require.NoError(err)
	conn, err := Connect(db)
	require.NoError(err)
	defer func() { _ = conn.Close() }()

	// Driver errors come back wrapped, never raw.
	_, err = conn.Execute(nav.NewContext(context.Background()),
		`SELECT nothing FROM nowhere`, nil)
	require.Error(err)
	require.True(nav.ErrEngine.Is(err))
}

func TestSeedArityMismatch(t *testing.T) {
	require := require.New(t)

	db, err := Load([]byte(`
schemas:
  - name: ed
    tables:
      - name: t
        columns:
          - {name: a, domain: text}
          - {name: b, domain: text}
        rows:
          - [only]
`))
	require.NoError(err)
	_, err = Connect(db)
	require.Error(err)
	require.True(nav.ErrEngine.Is(err))
}
