package nav

import "fmt"

// Table owns ordered columns, at most one primary key, any number of
// secondary unique keys, and the foreign keys going out of and coming
// into it. Tables are immutable once the catalog is built.
type Table struct {
	Schema      *Schema
	Name        string
	Columns     []*Column
	PrimaryKey  *UniqueKey
	UniqueKeys  []*UniqueKey
	ForeignKeys []*ForeignKey
	// ReferringForeignKeys lists the keys of other tables that target
	// this one; it is maintained by AddForeignKey.
	ReferringForeignKeys []*ForeignKey

	byName map[string]*Column
}

// AddColumn appends a column to the table and returns it.
func (t *Table) AddColumn(name string, domain Domain, isNullable bool) *Column {
	c := &Column{Table: t, Name: name, Domain: domain, IsNullable: isNullable}
	t.Columns = append(t.Columns, c)
	t.byName[name] = c
	return c
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// AddPrimaryKey declares the primary key over the named columns. A primary
// key is also recorded as the first unique key.
func (t *Table) AddPrimaryKey(names ...string) *UniqueKey {
	k := t.newKey(true, names)
	t.PrimaryKey = k
	t.UniqueKeys = append([]*UniqueKey{k}, t.UniqueKeys...)
	return k
}

// AddUniqueKey declares a secondary unique key over the named columns.
func (t *Table) AddUniqueKey(names ...string) *UniqueKey {
	k := t.newKey(false, names)
	t.UniqueKeys = append(t.UniqueKeys, k)
	return k
}

func (t *Table) newKey(primary bool, names []string) *UniqueKey {
	k := &UniqueKey{Origin: t, IsPrimary: primary}
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			panic(fmt.Sprintf("table %s has no column %s", t.Name, name))
		}
		k.Columns = append(k.Columns, c)
	}
	return k
}

// AddForeignKey declares a foreign key from the named origin columns to the
// target table's columns, and registers it on both ends.
func (t *Table) AddForeignKey(names []string, target *Table, targetNames []string) *ForeignKey {
	fk := &ForeignKey{Origin: t, Target: target}
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			panic(fmt.Sprintf("table %s has no column %s", t.Name, name))
		}
		fk.OriginColumns = append(fk.OriginColumns, c)
	}
	for _, name := range targetNames {
		c, ok := target.Column(name)
		if !ok {
			panic(fmt.Sprintf("table %s has no column %s", target.Name, name))
		}
		fk.TargetColumns = append(fk.TargetColumns, c)
	}
	t.ForeignKeys = append(t.ForeignKeys, fk)
	target.ReferringForeignKeys = append(target.ReferringForeignKeys, fk)
	return fk
}

// ConnectingKey returns the key suitable for joining the table to itself:
// the primary key, or failing that the first unique key whose columns are
// all non-nullable. The second value is false when neither exists.
func (t *Table) ConnectingKey() (*UniqueKey, bool) {
	if t.PrimaryKey != nil {
		return t.PrimaryKey, true
	}
	for _, k := range t.UniqueKeys {
		if k.IsTotal() {
			return k, true
		}
	}
	return nil, false
}

func (t *Table) String() string {
	if t.Schema != nil && t.Schema.Name != "" {
		return t.Schema.Name + "." + t.Name
	}
	return t.Name
}

// Column is a typed table attribute.
type Column struct {
	Table      *Table
	Name       string
	Domain     Domain
	IsNullable bool
	HasDefault bool
}

func (c *Column) String() string {
	return c.Table.Name + "." + c.Name
}

// UniqueKey is a set of columns whose combined values are unique per row.
type UniqueKey struct {
	Origin    *Table
	Columns   []*Column
	IsPrimary bool
}

// IsTotal reports whether every key column is non-nullable.
func (k *UniqueKey) IsTotal() bool {
	for _, c := range k.Columns {
		if c.IsNullable {
			return false
		}
	}
	return true
}

// ForeignKey links ordered origin columns to the matching target columns.
type ForeignKey struct {
	Origin        *Table
	OriginColumns []*Column
	Target        *Table
	TargetColumns []*Column
}

// IsTotal reports whether every origin column is non-nullable, i.e. every
// origin row necessarily has a target row.
func (fk *ForeignKey) IsTotal() bool {
	for _, c := range fk.OriginColumns {
		if c.IsNullable {
			return false
		}
	}
	return true
}

// CoversUniqueKey reports whether the origin columns contain some unique
// key of the origin table, i.e. at most one origin row per target row.
func (fk *ForeignKey) CoversUniqueKey() bool {
	for _, k := range fk.Origin.UniqueKeys {
		covered := true
		for _, kc := range k.Columns {
			found := false
			for _, oc := range fk.OriginColumns {
				if oc == kc {
					found = true
					break
				}
			}
			if !found {
				covered = false
				break
			}
		}
		if covered {
			return true
		}
	}
	return false
}
