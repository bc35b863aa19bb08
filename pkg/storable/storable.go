// Package storable declares how user key and value types marshal to and
// from the bytes the B-tree engine persists, and the maximum-size contract
// the engine relies on to size its fixed-capacity nodes. This is an external
// collaborator the engine consumes rather than owns: a Codec pairing a
// ToBytes/FromBytes function with a declared Bound, since the engine never
// holds a live K or V beyond a single call — it only ever needs "turn this
// into bytes" and "turn these bytes back into one", which a pair of
// functions expresses more directly in Go than an interface with a
// self-referential FromBytes method would.
package storable

// Bound declares the maximum serialized size of a key or value type. The
// engine only supports bounded types: an Unbounded declaration is fatal,
// since fixed-capacity node chunks must know every slot's size up front.
type Bound struct {
	// Unbounded, when true, means the type has no declared maximum size.
	// The engine rejects such a declaration with a panic.
	Unbounded bool
	// MaxSize is the maximum number of bytes ToBytes ever returns.
	MaxSize uint32
	// IsFixedSize indicates ToBytes always returns exactly MaxSize bytes.
	IsFixedSize bool
}

// Bounded constructs a Bound for a type with a known maximum size.
func Bounded(maxSize uint32, isFixedSize bool) Bound {
	return Bound{MaxSize: maxSize, IsFixedSize: isFixedSize}
}

// UnboundedBound is the Bound value declared by types with no size limit.
var UnboundedBound = Bound{Unbounded: true}

// Codec marshals a Go value of type T to and from its persisted byte
// representation, together with the Bound the engine needs to size nodes.
type Codec[T any] struct {
	ToBytes   func(T) []byte
	FromBytes func([]byte) T
	Bound     Bound
}
