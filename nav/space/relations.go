package space

// Unfold returns the ordered chain [s, s.Base(), ..., Root].
func Unfold(s Space) []Space {
	var chain []Space
	for s != nil {
		chain = append(chain, s)
		s = s.Base()
	}
	return chain
}

// Inflate rebuilds s keeping only its axis ancestors. The result satisfies
// IsInflated, and Inflate is idempotent.
func Inflate(s Space) Space {
	if s.IsInflated() {
		return s
	}
	chain := Unfold(s)
	var out Space
	for i := len(chain) - 1; i >= 0; i-- {
		node := chain[i]
		if !node.IsAxis() {
			continue
		}
		if out == nil {
			out = node
			continue
		}
		out = node.rebase(out)
	}
	return out
}

// axes returns the inflated chain of s ordered Root first.
func axes(s Space) []Space {
	chain := Unfold(Inflate(s))
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// diverge walks the axis chains of a and b Root-ward matching structurally
// equal steps and returns the unmatched suffixes.
func diverge(a, b Space) (restA, restB []Space) {
	as, bs := axes(a), axes(b)
	i := 0
	for i < len(as) && i < len(bs) && as[i].Equal(bs[i]) {
		i++
	}
	return as[i:], bs[i:]
}

// Spans reports whether every row of a determines at most one row of b:
// once the shared axis prefix diverges, every unmatched axis of b must be
// contracting. Spans is reflexive.
func Spans(a, b Space) bool {
	_, restB := diverge(a, b)
	for _, node := range restB {
		if !node.IsContracting() {
			return false
		}
	}
	return true
}

// Dominates is Spans plus the requirement that every unmatched axis of a
// be expanding: the rows of a are a superset cover of b's convergence
// targets. Dominates implies Spans and is reflexive.
func Dominates(a, b Space) bool {
	restA, restB := diverge(a, b)
	for _, node := range restB {
		if !node.IsContracting() {
			return false
		}
	}
	for _, node := range restA {
		if !node.IsExpanding() {
			return false
		}
	}
	return true
}

// Conforms reports mutual domination: the rows of a and b are in
// one-to-one correspondence. Symmetric.
func Conforms(a, b Space) bool {
	return Dominates(a, b) && Dominates(b, a)
}

// Concludes reports whether b appears verbatim in the unfolding of a.
// Purely structural ancestry: independent of the cardinality flags, so it
// implies neither Spans nor Dominates in general.
func Concludes(a, b Space) bool {
	for _, node := range Unfold(a) {
		if node.Equal(b) {
			return true
		}
	}
	return false
}

// CommonAxis returns the deepest axis shared by a and b: the last node of
// the matched Root-ward prefix of their inflated chains.
func CommonAxis(a, b Space) Space {
	as, bs := axes(a), axes(b)
	var last Space
	for i := 0; i < len(as) && i < len(bs) && as[i].Equal(bs[i]); i++ {
		last = as[i]
	}
	return last
}
