package space

// Interner dedups structurally equal spaces within one translation, so
// that chains built independently by different encoder branches share
// nodes. Keys are the structural hashes; collisions fall back to Equal.
// An Interner belongs to a single translation and is never shared.
type Interner struct {
	spaces map[uint64][]Space
	codes  map[uint64][]Code
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{
		spaces: map[uint64][]Space{},
		codes:  map[uint64][]Code{},
	}
}

// Space returns the canonical instance of s.
func (in *Interner) Space(s Space) Space {
	for _, cand := range in.spaces[s.Hash()] {
		if cand.Equal(s) {
			return cand
		}
	}
	in.spaces[s.Hash()] = append(in.spaces[s.Hash()], s)
	return s
}

// Code returns the canonical instance of c.
func (in *Interner) Code(c Code) Code {
	for _, cand := range in.codes[c.Hash()] {
		if cand.Equal(c) {
			return cand
		}
	}
	in.codes[c.Hash()] = append(in.codes[c.Hash()], c)
	return c
}
