package btree

import (
	"bytes"

	"github.com/kvstore/btreemap/pkg/node"
	"github.com/kvstore/btreemap/pkg/types"
)

// Bound describes one edge of a Range query: Included, Excluded, or
// Unbounded.
type Bound[K any] struct {
	kind  boundKind
	value K
}

type boundKind uint8

const (
	unbounded boundKind = iota
	included
	excluded
)

// Included builds a Bound that includes key itself.
func Included[K any](key K) Bound[K] { return Bound[K]{kind: included, value: key} }

// Excluded builds a Bound that leaves key itself out: as a lower bound the
// range starts strictly after key, as an upper bound it stops strictly
// before it.
func Excluded[K any](key K) Bound[K] { return Bound[K]{kind: excluded, value: key} }

// Unbounded builds a Bound with no edge in that direction.
func Unbounded[K any]() Bound[K] { return Bound[K]{kind: unbounded} }

// cursor is one frame of the iterator's explicit descent stack: either the
// address of a subtree not yet entered, or a node together with the index
// of the next entry to yield from it.
type cursor struct {
	isAddress bool
	addr      types.Address

	nd   *node.Node
	next uint16
}

// Iterator walks entries of a Map in ascending key order via an explicit
// cursor stack. It holds no lock across steps: concurrent mutation during
// iteration is undefined, matching the underlying storage's single-writer
// expectation.
type Iterator[K any, V any] struct {
	m          *Map[K, V]
	stack      []cursor
	upperBound []byte // exclusive; nil means unbounded
	done       bool
}

// Iter returns an iterator over every entry, ascending by key.
func (m *Map[K, V]) Iter() *Iterator[K, V] {
	it := &Iterator[K, V]{m: m}
	if !m.rootAddr.IsNull() {
		it.stack = []cursor{{isAddress: true, addr: m.rootAddr}}
	}
	return it
}

// IterUpperBound returns an iterator positioned at the greatest key
// strictly less than key; subsequent calls to Next continue ascending
// through the rest of the map with no further cutoff.
func (m *Map[K, V]) IterUpperBound(key K) *Iterator[K, V] {
	keyBytes := m.keyCodec.ToBytes(key)
	return &Iterator[K, V]{m: m, stack: m.upperBoundStack(keyBytes)}
}

// upperBoundStack walks from the root to a leaf, pushing a Node cursor at
// every level for the index Search returns there, then unwinds the stack
// to find the nearest ancestor that still has an entry to its left —
// decrementing that cursor positions it at the predecessor of key.
func (m *Map[K, V]) upperBoundStack(keyBytes []byte) []cursor {
	if m.rootAddr.IsNull() {
		return nil
	}

	var stack []cursor
	addr := m.rootAddr
	for {
		nd := m.loadNode(addr)
		idx, _ := nd.Search(keyBytes)
		stack = append(stack, cursor{nd: nd, next: idx})

		if nd.NodeType() == node.Leaf {
			break
		}
		addr = nd.Child(idx)
	}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next > 0 {
			top.next--
			return stack
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// Range returns an iterator over entries whose key falls within [lo, hi)
// per Included/Excluded/Unbounded semantics, ascending.
func (m *Map[K, V]) Range(lo, hi Bound[K]) *Iterator[K, V] {
	it := &Iterator[K, V]{m: m}

	if hi.kind == included {
		panic("btree: Range upper bound must be Excluded or Unbounded")
	}
	if hi.kind == excluded {
		it.upperBound = m.keyCodec.ToBytes(hi.value)
	}

	if m.rootAddr.IsNull() {
		return it
	}

	switch lo.kind {
	case unbounded:
		it.stack = []cursor{{isAddress: true, addr: m.rootAddr}}
	case included, excluded:
		loBytes := m.keyCodec.ToBytes(lo.value)
		it.stack = m.descendTo(loBytes, lo.kind == excluded)
	}
	return it
}

// descendTo builds the initial cursor stack positioned at the first entry
// greater than (or greater-than-or-equal-to, if !strictGreater) loBytes.
func (m *Map[K, V]) descendTo(loBytes []byte, strictGreater bool) []cursor {
	var stack []cursor
	addr := m.rootAddr

	for !addr.IsNull() {
		nd := m.loadNode(addr)
		idx, found := nd.Search(loBytes)

		if found && !strictGreater {
			stack = append(stack, cursor{nd: nd, next: idx})
			return stack
		}
		if found && strictGreater {
			idx++
		}

		stack = append(stack, cursor{nd: nd, next: idx})

		if nd.NodeType() == node.Leaf {
			return stack
		}
		addr = nd.Child(idx)
	}
	return stack
}

// Next returns the next entry in ascending order, or false when exhausted
// or past the upper bound.
func (it *Iterator[K, V]) Next() (K, V, bool) {
	var zeroK K
	var zeroV V
	if it.done {
		return zeroK, zeroV, false
	}

	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]

		if top.isAddress {
			nd := it.m.loadNode(top.addr)
			it.stack[len(it.stack)-1] = cursor{nd: nd, next: 0}
			if nd.NodeType() == node.Internal {
				it.stack = append(it.stack, cursor{isAddress: true, addr: nd.Child(0)})
			}
			continue
		}

		if top.next >= top.nd.EntriesLen() {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}

		key := top.nd.Key(top.next)
		if it.upperBound != nil && bytes.Compare(key, it.upperBound) >= 0 {
			it.done = true
			it.stack = nil
			return zeroK, zeroV, false
		}

		val := append([]byte(nil), top.nd.Value(top.next)...)
		keyCopy := append([]byte(nil), key...)

		if top.nd.NodeType() == node.Internal {
			childAddr := top.nd.Child(top.next + 1)
			top.next++
			it.stack = append(it.stack, cursor{isAddress: true, addr: childAddr})
		} else {
			top.next++
		}

		return it.m.keyCodec.FromBytes(keyCopy), it.m.valCodec.FromBytes(val), true
	}

	it.done = true
	return zeroK, zeroV, false
}
