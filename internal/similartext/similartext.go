// Package similartext finds the entry of a name list closest to a
// misspelled input, for "maybe you mean" hints on unknown identifiers.
package similartext

import (
	"fmt"
	"strings"
)

// Find returns a hint naming the closest entries of names, or an empty
// string when nothing is close enough to be worth suggesting. Distance
// is measured case-insensitively; a candidate further away than half the
// input length is ignored.
func Find(names []string, src string) string {
	if len(src) == 0 {
		return ""
	}
	minDist := -1
	var matches []string
	for _, name := range names {
		dist := distance(strings.ToLower(name), strings.ToLower(src))
		switch {
		case minDist == -1 || dist < minDist:
			minDist = dist
			matches = []string{name}
		case dist == minDist:
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 || minDist > len(src)/2 {
		return ""
	}
	return fmt.Sprintf("maybe you mean %s?", strings.Join(matches, " or "))
}

// distance is the Levenshtein edit distance.
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
