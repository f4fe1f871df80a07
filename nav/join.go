package nav

// Join is a traversal from one table to another derived from a foreign
// key. The IsExpanding and IsContracting flags are computed once from the
// nullability and uniqueness of the key's columns; the whole space algebra
// leans on them, so they must be exact:
//
//	IsExpanding:   every origin row has at least one target row.
//	IsContracting: every origin row has at most one target row.
type Join interface {
	Origin() *Table
	Target() *Table
	IsExpanding() bool
	IsContracting() bool
	// Pairs yields the (origin column, target column) equality pairs the
	// join is made of.
	Pairs() [][2]*Column
	// Reverse returns the same link walked the other way.
	Reverse() Join
	Equal(Join) bool
	String() string
}

// DirectJoin walks a foreign key from the referencing table to the
// referenced one. It is always contracting (the target columns are
// unique), and expanding exactly when the key is total.
type DirectJoin struct {
	FK *ForeignKey
}

// NewDirectJoin creates the forward traversal of fk.
func NewDirectJoin(fk *ForeignKey) DirectJoin {
	return DirectJoin{FK: fk}
}

func (j DirectJoin) Origin() *Table      { return j.FK.Origin }
func (j DirectJoin) Target() *Table      { return j.FK.Target }
func (j DirectJoin) IsExpanding() bool   { return j.FK.IsTotal() }
func (j DirectJoin) IsContracting() bool { return true }

func (j DirectJoin) Pairs() [][2]*Column {
	pairs := make([][2]*Column, len(j.FK.OriginColumns))
	for i := range j.FK.OriginColumns {
		pairs[i] = [2]*Column{j.FK.OriginColumns[i], j.FK.TargetColumns[i]}
	}
	return pairs
}

func (j DirectJoin) Reverse() Join { return ReverseJoin{FK: j.FK} }

func (j DirectJoin) Equal(other Join) bool {
	o, ok := other.(DirectJoin)
	return ok && o.FK == j.FK
}

func (j DirectJoin) String() string {
	return j.FK.Origin.Name + " -> " + j.FK.Target.Name
}

// ReverseJoin walks a foreign key from the referenced table back to the
// referencing one. It is never expanding (a parent row may have no
// children), and contracting only when the key columns cover a unique key
// of the referencing table.
type ReverseJoin struct {
	FK *ForeignKey
}

// NewReverseJoin creates the backward traversal of fk.
func NewReverseJoin(fk *ForeignKey) ReverseJoin {
	return ReverseJoin{FK: fk}
}

func (j ReverseJoin) Origin() *Table      { return j.FK.Target }
func (j ReverseJoin) Target() *Table      { return j.FK.Origin }
func (j ReverseJoin) IsExpanding() bool   { return false }
func (j ReverseJoin) IsContracting() bool { return j.FK.CoversUniqueKey() }

func (j ReverseJoin) Pairs() [][2]*Column {
	pairs := make([][2]*Column, len(j.FK.OriginColumns))
	for i := range j.FK.OriginColumns {
		pairs[i] = [2]*Column{j.FK.TargetColumns[i], j.FK.OriginColumns[i]}
	}
	return pairs
}

func (j ReverseJoin) Reverse() Join { return DirectJoin{FK: j.FK} }

func (j ReverseJoin) Equal(other Join) bool {
	o, ok := other.(ReverseJoin)
	return ok && o.FK == j.FK
}

func (j ReverseJoin) String() string {
	return j.FK.Target.Name + " <- " + j.FK.Origin.Name
}
