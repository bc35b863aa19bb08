// Package btree implements the persistent ordered key/value map: the
// classical Cormen B-tree insert/remove algorithms running against node
// addresses in a caller-supplied Memory, backed by the allocator and node
// packages.
package btree

import (
	"github.com/kvstore/btreemap/pkg/allocator"
	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/node"
	"github.com/kvstore/btreemap/pkg/storable"
	"github.com/kvstore/btreemap/pkg/types"
)

// Map is a persistent ordered key/value map whose state — header,
// allocator, every node — lives entirely inside mem.
type Map[K any, V any] struct {
	mem      memory.Memory
	keyCodec storable.Codec[K]
	valCodec storable.Codec[V]
	alloc    *allocator.Allocator

	rootAddr     types.Address
	length       uint64
	maxKeySize   uint32
	maxValueSize uint32
}

// Init opens an existing map in mem, or creates a new one if mem is empty
// or does not already hold one.
func Init[K any, V any](mem memory.Memory, keyCodec storable.Codec[K], valCodec storable.Codec[V]) *Map[K, V] {
	if mem.Size() == 0 {
		return New(mem, keyCodec, valCodec)
	}
	if hasMagic(mem) {
		return Load(mem, keyCodec, valCodec)
	}
	return New(mem, keyCodec, valCodec)
}

// New constructs a fresh, empty map over mem. It does not inspect mem's
// prior contents: any map already stored there is overwritten.
func New[K any, V any](mem memory.Memory, keyCodec storable.Codec[K], valCodec storable.Codec[V]) *Map[K, V] {
	requireBounded(keyCodec.Bound, valCodec.Bound)

	m := &Map[K, V]{
		mem:          mem,
		keyCodec:     keyCodec,
		valCodec:     valCodec,
		rootAddr:     types.NULL,
		maxKeySize:   keyCodec.Bound.MaxSize,
		maxValueSize: valCodec.Bound.MaxSize,
	}

	chunkSize := node.ChunkSize(m.maxKeySize, m.maxValueSize)
	m.alloc = allocator.New(mem, AllocatorOffset, chunkSize)
	m.persistHeader()
	return m
}

// Load reconstructs a map previously persisted in mem. It is fatal if the
// header's magic or version is wrong, or if the declared key/value bounds
// are larger than what was persisted (shrinking a declared bound is legal;
// growing it is not).
func Load[K any, V any](mem memory.Memory, keyCodec storable.Codec[K], valCodec storable.Codec[V]) *Map[K, V] {
	requireBounded(keyCodec.Bound, valCodec.Bound)

	h := readHeader(mem)
	if keyCodec.Bound.MaxSize > h.maxKeySize {
		panic("btree: declared max key size exceeds persisted bound")
	}
	if valCodec.Bound.MaxSize > h.maxValueSize {
		panic("btree: declared max value size exceeds persisted bound")
	}

	return &Map[K, V]{
		mem:          mem,
		keyCodec:     keyCodec,
		valCodec:     valCodec,
		alloc:        allocator.Load(mem, AllocatorOffset),
		rootAddr:     h.rootAddr,
		length:       h.length,
		maxKeySize:   h.maxKeySize,
		maxValueSize: h.maxValueSize,
	}
}

func requireBounded(bounds ...storable.Bound) {
	for _, b := range bounds {
		if b.Unbounded {
			panic("btree: unbounded key/value types are not supported")
		}
	}
}

func (m *Map[K, V]) persistHeader() {
	header{
		maxKeySize:   m.maxKeySize,
		maxValueSize: m.maxValueSize,
		rootAddr:     m.rootAddr,
		length:       m.length,
	}.write(m.mem)
}

func (m *Map[K, V]) loadNode(addr types.Address) *node.Node {
	return node.Load(m.mem, addr, m.maxKeySize, m.maxValueSize)
}

func (m *Map[K, V]) newNode(typ node.Type) *node.Node {
	nd := node.New(typ, m.maxKeySize, m.maxValueSize)
	nd.SetAddress(m.alloc.Allocate())
	return nd
}

func (m *Map[K, V]) save(nd *node.Node) { nd.Save(m.mem) }

func (m *Map[K, V]) deallocate(nd *node.Node) { m.alloc.Deallocate(nd.Address()) }

// Len returns the number of entries currently stored.
func (m *Map[K, V]) Len() uint64 { return m.length }

// IsEmpty reports whether the map holds no entries.
func (m *Map[K, V]) IsEmpty() bool { return m.length == 0 }

// NumAllocatedChunks exposes the allocator's live-chunk counter, a
// test/observability knob.
func (m *Map[K, V]) NumAllocatedChunks() uint64 { return m.alloc.NumAllocatedChunks() }

// IntoMemory reclaims the memory handle, relinquishing the map's hold on it.
func (m *Map[K, V]) IntoMemory() memory.Memory { return m.mem }

// Clear re-initializes the same memory, discarding every entry.
func (m *Map[K, V]) Clear() *Map[K, V] {
	return New(m.mem, m.keyCodec, m.valCodec)
}

// Get returns the value stored for key, if present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	var zero V
	if m.rootAddr.IsNull() {
		return zero, false
	}

	keyBytes := m.keyCodec.ToBytes(key)
	addr := m.rootAddr
	for {
		nd := m.loadNode(addr)
		idx, found := nd.Search(keyBytes)
		if found {
			return m.valCodec.FromBytes(nd.Value(idx)), true
		}
		if nd.NodeType() == node.Leaf {
			return zero, false
		}
		addr = nd.Child(idx)
	}
}

// ContainsKey reports whether key is present, without copying its value.
func (m *Map[K, V]) ContainsKey(key K) bool {
	if m.rootAddr.IsNull() {
		return false
	}

	keyBytes := m.keyCodec.ToBytes(key)
	addr := m.rootAddr
	for {
		nd := m.loadNode(addr)
		idx, found := nd.Search(keyBytes)
		if found {
			return true
		}
		if nd.NodeType() == node.Leaf {
			return false
		}
		addr = nd.Child(idx)
	}
}

// FirstKeyValue returns the entry with the smallest key, if the map is
// non-empty.
func (m *Map[K, V]) FirstKeyValue() (K, V, bool) {
	var zeroK K
	var zeroV V
	it := m.Iter()
	k, v, ok := it.Next()
	if !ok {
		return zeroK, zeroV, false
	}
	return k, v, true
}

// LastKeyValue returns the entry with the largest key, if the map is
// non-empty.
func (m *Map[K, V]) LastKeyValue() (K, V, bool) {
	var zeroK K
	var zeroV V
	if m.rootAddr.IsNull() {
		return zeroK, zeroV, false
	}
	nd := m.loadNode(m.rootAddr)
	entry := nd.GetMax(m.loadNode)
	return m.keyCodec.FromBytes(entry.Key), m.valCodec.FromBytes(entry.Value), true
}

// TryInsert inserts or updates key/value, returning the previous value if
// one existed. Unlike Insert, it reports an oversized key or value as an
// InsertError instead of panicking.
func (m *Map[K, V]) TryInsert(key K, value V) (V, bool, error) {
	var zero V
	keyBytes := m.keyCodec.ToBytes(key)
	valBytes := m.valCodec.ToBytes(value)

	if uint32(len(keyBytes)) > m.maxKeySize {
		return zero, false, KeyTooLargeError{Given: uint32(len(keyBytes)), Max: m.maxKeySize}
	}
	if uint32(len(valBytes)) > m.maxValueSize {
		return zero, false, ValueTooLargeError{Given: uint32(len(valBytes)), Max: m.maxValueSize}
	}

	if m.rootAddr.IsNull() {
		root := m.newNode(node.Leaf)
		m.rootAddr = root.Address()
		m.save(root)
		m.persistHeader()
	}

	root := m.loadNode(m.rootAddr)

	if idx, found := root.Search(keyBytes); found {
		old := root.SwapEntry(idx, node.Entry{Key: keyBytes, Value: valBytes})
		m.save(root)
		return m.valCodec.FromBytes(old.Value), true, nil
	}

	if root.IsFull() {
		newRoot := m.newNode(node.Internal)
		newRoot.InsertChild(0, root.Address())
		m.rootAddr = newRoot.Address()
		m.persistHeader()

		m.splitChild(newRoot, 0, root)
		m.save(newRoot)
		root = newRoot
	}

	oldVal, hadOld := m.insertNonFull(root, keyBytes, valBytes)
	if hadOld {
		return m.valCodec.FromBytes(oldVal), true, nil
	}

	m.length++
	m.persistHeader()
	return zero, false, nil
}

// Insert inserts or updates key/value, returning the previous value if one
// existed. It panics if key or value exceeds the map's declared bound —
// use TryInsert for a returned-error alternative.
func (m *Map[K, V]) Insert(key K, value V) (V, bool) {
	old, had, err := m.TryInsert(key, value)
	if err != nil {
		panic(err)
	}
	return old, had
}

// splitChild splits the full child at index i of parent, installing the
// median entry and new sibling into parent. parent must not be full.
func (m *Map[K, V]) splitChild(parent *node.Node, i uint16, child *node.Node) {
	sibling := m.newNode(child.NodeType())
	median := child.Split(sibling)

	parent.InsertChild(i+1, sibling.Address())
	parent.InsertEntry(i, median)

	m.save(child)
	m.save(sibling)
}

// insertNonFull inserts key/val into a subtree rooted at a node guaranteed
// not to be full, splitting full children before descending into them.
func (m *Map[K, V]) insertNonFull(nd *node.Node, keyBytes, valBytes []byte) ([]byte, bool) {
	idx, found := nd.Search(keyBytes)
	if found {
		old := nd.SwapEntry(idx, node.Entry{Key: keyBytes, Value: valBytes})
		m.save(nd)
		return old.Value, true
	}

	if nd.NodeType() == node.Leaf {
		nd.InsertEntry(idx, node.Entry{Key: keyBytes, Value: valBytes})
		m.save(nd)
		return nil, false
	}

	child := m.loadNode(nd.Child(idx))
	if child.IsFull() {
		if cidx, cfound := child.Search(keyBytes); cfound {
			old := child.SwapEntry(cidx, node.Entry{Key: keyBytes, Value: valBytes})
			m.save(child)
			return old.Value, true
		}

		m.splitChild(nd, idx, child)
		m.save(nd)

		idx, _ = nd.Search(keyBytes)
		child = m.loadNode(nd.Child(idx))
	}

	return m.insertNonFull(child, keyBytes, valBytes)
}

// Remove deletes key from the map, returning its value if it was present.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	var zero V
	if m.rootAddr.IsNull() {
		return zero, false
	}

	keyBytes := m.keyCodec.ToBytes(key)
	root := m.loadNode(m.rootAddr)

	valBytes, found := m.removeHelper(root, keyBytes)
	// A merge on the way down can move the root even when key is absent.
	m.persistHeader()
	if !found {
		return zero, false
	}
	return m.valCodec.FromBytes(valBytes), true
}

// removeHelper implements the classical Cormen B-tree delete, guaranteeing
// that any non-root node it descends into holds more than MinEntries
// entries by rebalancing (rotation or merge) before the descent.
func (m *Map[K, V]) removeHelper(nd *node.Node, key []byte) ([]byte, bool) {
	idx, found := nd.Search(key)

	if nd.NodeType() == node.Leaf {
		if !found {
			return nil, false
		}
		entry := nd.RemoveEntry(idx)
		m.length--

		if nd.EntriesLen() == 0 {
			if nd.Address() != m.rootAddr {
				panic("btree: non-root leaf emptied outside root collapse")
			}
			m.deallocate(nd)
			m.rootAddr = types.NULL
		} else {
			m.save(nd)
		}
		return entry.Value, true
	}

	if found {
		return m.removeFromInternalFound(nd, idx, key)
	}
	return m.removeDescend(nd, idx, key)
}

// removeFromInternalFound handles case 2: key is entries[idx] of the
// internal node nd.
func (m *Map[K, V]) removeFromInternalFound(nd *node.Node, idx uint16, key []byte) ([]byte, bool) {
	left := m.loadNode(nd.Child(idx))
	right := m.loadNode(nd.Child(idx + 1))

	switch {
	case left.CanRemoveEntryWithoutMerging(): // 2.a: predecessor
		pred := left.GetMax(m.loadNode)
		m.removeHelper(left, pred.Key)

		old := nd.SwapEntry(idx, pred)
		m.save(nd)
		return old.Value, true

	case right.CanRemoveEntryWithoutMerging(): // 2.b: successor
		succ := right.GetMin(m.loadNode)
		m.removeHelper(right, succ.Key)

		old := nd.SwapEntry(idx, succ)
		m.save(nd)
		return old.Value, true

	default: // 2.c: merge left, median, right
		nd.RemoveChild(idx + 1)
		median := nd.RemoveEntry(idx)

		left.Merge(right, median)
		m.deallocate(right)
		m.save(left)

		m.collapseIfEmptyRoot(nd, left)
		return m.removeHelper(left, key)
	}
}

// removeDescend handles case 3: key is not in nd, so it must be in the
// subtree rooted at child(idx). The child is rebalanced to hold more than
// MinEntries entries before the descent, per rotation (3.a) or merge (3.b).
func (m *Map[K, V]) removeDescend(nd *node.Node, idx uint16, key []byte) ([]byte, bool) {
	child := m.loadNode(nd.Child(idx))
	if child.CanRemoveEntryWithoutMerging() {
		return m.removeHelper(child, key)
	}

	hasLeft := idx > 0
	hasRight := idx+1 < nd.ChildrenLen()

	if hasLeft {
		leftSib := m.loadNode(nd.Child(idx - 1))
		if leftSib.CanRemoveEntryWithoutMerging() {
			m.rotateLeft(nd, idx, leftSib, child)
			return m.removeHelper(child, key)
		}
	}

	if hasRight {
		rightSib := m.loadNode(nd.Child(idx + 1))
		if rightSib.CanRemoveEntryWithoutMerging() {
			m.rotateRight(nd, idx, child, rightSib)
			return m.removeHelper(child, key)
		}
	}

	if hasLeft {
		leftSib := m.loadNode(nd.Child(idx - 1))
		m.mergeWithLeft(nd, idx, leftSib, child)
		return m.removeHelper(leftSib, key)
	}

	rightSib := m.loadNode(nd.Child(idx + 1))
	m.mergeWithRight(nd, idx, child, rightSib)
	return m.removeHelper(child, key)
}

// rotateLeft implements case 3.a (left sibling donates): the left
// sibling's last entry/child moves up into the parent, and the parent's
// displaced entry moves down to the front of child.
func (m *Map[K, V]) rotateLeft(nd *node.Node, idx uint16, leftSib, child *node.Node) {
	var poppedChild types.Address
	if leftSib.NodeType() == node.Internal {
		poppedChild = leftSib.PopChild()
	}
	poppedEntry := leftSib.PopEntry()
	m.save(leftSib)

	displaced := nd.SwapEntry(idx-1, poppedEntry)
	m.save(nd)

	if child.NodeType() == node.Internal {
		child.InsertChild(0, poppedChild)
	}
	child.InsertEntry(0, displaced)
	m.save(child)
}

// rotateRight implements case 3.a (right sibling donates): the right
// sibling's first entry/child moves up into the parent, and the parent's
// displaced entry moves down to the end of child.
func (m *Map[K, V]) rotateRight(nd *node.Node, idx uint16, child, rightSib *node.Node) {
	var poppedChild types.Address
	if rightSib.NodeType() == node.Internal {
		poppedChild = rightSib.RemoveChild(0)
	}
	poppedEntry := rightSib.RemoveEntry(0)
	m.save(rightSib)

	displaced := nd.SwapEntry(idx, poppedEntry)
	m.save(nd)

	if child.NodeType() == node.Internal {
		child.PushChild(poppedChild)
	}
	child.PushEntry(displaced)
	m.save(child)
}

// mergeWithLeft implements case 3.b when a left sibling exists: child is
// merged into leftSib, bringing down the separating parent entry.
func (m *Map[K, V]) mergeWithLeft(nd *node.Node, idx uint16, leftSib, child *node.Node) {
	nd.RemoveChild(idx)
	sep := nd.RemoveEntry(idx - 1)

	leftSib.Merge(child, sep)
	m.deallocate(child)
	m.save(leftSib)

	m.collapseIfEmptyRoot(nd, leftSib)
}

// mergeWithRight implements case 3.b when no left sibling exists: the
// right sibling is merged into child, bringing down the separating parent
// entry.
func (m *Map[K, V]) mergeWithRight(nd *node.Node, idx uint16, child, rightSib *node.Node) {
	nd.RemoveChild(idx + 1)
	sep := nd.RemoveEntry(idx)

	child.Merge(rightSib, sep)
	m.deallocate(rightSib)
	m.save(child)

	m.collapseIfEmptyRoot(nd, child)
}

// collapseIfEmptyRoot promotes merged as the new root and deallocates nd
// when a merge has emptied nd. A non-root internal node can never reach
// zero entries here, since removeHelper only descends into non-root nodes
// already holding more than MinEntries.
func (m *Map[K, V]) collapseIfEmptyRoot(nd, merged *node.Node) {
	if nd.EntriesLen() > 0 {
		m.save(nd)
		return
	}
	if nd.Address() != m.rootAddr {
		panic("btree: non-root internal node emptied by merge")
	}
	m.deallocate(nd)
	m.rootAddr = merged.Address()
}
