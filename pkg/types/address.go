// Package types holds the small value types shared across the allocator,
// node codec, and B-tree engine: byte offsets into the backing memory.
package types

import "math"

// Address is a 64-bit byte offset into the memory. It addresses either a
// chunk owned by the allocator (a node) or, transiently, a free-list slot.
type Address uint64

// NULL is the sentinel address meaning "no such node" — an empty tree's
// root, an internal node's absent child, or the end of the free list.
const NULL Address = Address(math.MaxUint64)

// IsNull reports whether the address is the NULL sentinel.
func (a Address) IsNull() bool {
	return a == NULL
}
