// Package space holds the algebraic intermediate representation of the
// translator: Space chains describing row sets and Code expressions
// describing scalar and aggregate functions over them.
//
// Spaces, codes and their relations are compared by structural value,
// never by identity: two independently constructed chains describing the
// same operation sequence hash and compare equal.
package space

import (
	"fmt"

	"github.com/mitchellh/hashstructure"
)

// hashVector hashes the equality vector of a node: the tuple of its
// semantically essential fields, excluding provenance such as source
// marks. The vector structs are plain data, so hashing cannot fail.
func hashVector(v interface{}) uint64 {
	h, err := hashstructure.Hash(v, nil)
	if err != nil {
		panic(fmt.Sprintf("space: cannot hash equality vector: %v", err))
	}
	return h
}
