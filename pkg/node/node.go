// Package node implements the encode/decode layer for a single B-tree node
// — leaf or internal — packed into one allocator chunk: header, entry
// count, fixed-size key and value slots, and (for internal nodes) child
// addresses.
package node

import (
	"bytes"
	"encoding/binary"

	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/types"
)

// CAPACITY is the maximum number of entries a node may hold. It is odd so
// that MinEntries = (CAPACITY-1)/2 gives the classical B-tree minimum-degree
// invariant: every non-root node holds between MinEntries and CAPACITY
// entries.
const CAPACITY = 11

// MinEntries is the fewest entries a non-root node may hold without
// triggering a rebalance (rotation or merge) on removal.
const MinEntries = (CAPACITY - 1) / 2

// Type distinguishes leaf nodes (which hold only entries) from internal
// nodes (which hold entries and CAPACITY+1 child addresses).
type Type uint8

const (
	Leaf     Type = 0
	Internal Type = 1
)

// magic identifies a node chunk. Distinct from the map header's "BTR" and
// the allocator header's "BTA" so a misdirected read fails loudly.
var magic = [3]byte{'B', 'T', 'N'}

const version uint8 = 1

// Header layout within the chunk.
const (
	offMagic   = 0 // 3 bytes
	offVersion = 3 // 1 byte
	offType    = 4 // 1 byte
	offCount   = 5 // 2 bytes, uint16 LE
	headerSize = 7
)

func keySlotSize(maxKeySize uint32) uint32 { return 4 + maxKeySize }
func valSlotSize(maxValSize uint32) uint32 { return 4 + maxValSize }

func keysOffset() uint32 { return headerSize }

func valsOffset(maxKeySize uint32) uint32 {
	return keysOffset() + CAPACITY*keySlotSize(maxKeySize)
}

func childrenOffset(maxKeySize, maxValSize uint32) uint32 {
	return valsOffset(maxKeySize) + CAPACITY*valSlotSize(maxValSize)
}

// ChunkSize returns the fixed allocator chunk size a node with the given
// maximum key/value sizes requires. Every node — leaf or internal — is the
// same size, since the allocator's chunk size is fixed at construction.
func ChunkSize(maxKeySize, maxValSize uint32) uint32 {
	return childrenOffset(maxKeySize, maxValSize) + (CAPACITY+1)*8
}

// Entry is a decoded key/value pair.
type Entry struct {
	Key   []byte
	Value []byte
}

// Node is a single B-tree node decoded from one allocator chunk.
type Node struct {
	addr       types.Address
	buf        []byte
	maxKeySize uint32
	maxValSize uint32
}

// New creates a fresh, empty node of the given type. It is not yet
// associated with an address; the caller sets one (typically via an
// allocator) before calling Save.
func New(typ Type, maxKeySize, maxValSize uint32) *Node {
	buf := make([]byte, ChunkSize(maxKeySize, maxValSize))
	buf[offMagic], buf[offMagic+1], buf[offMagic+2] = magic[0], magic[1], magic[2]
	buf[offVersion] = version
	buf[offType] = uint8(typ)
	binary.LittleEndian.PutUint16(buf[offCount:], 0)

	nd := &Node{addr: types.NULL, buf: buf, maxKeySize: maxKeySize, maxValSize: maxValSize}
	childOff := childrenOffset(maxKeySize, maxValSize)
	for i := uint16(0); i < CAPACITY+1; i++ {
		binary.LittleEndian.PutUint64(buf[childOff+uint32(i)*8:], uint64(types.NULL))
	}
	return nd
}

// Load reads the chunk at addr and decodes it as a node.
func Load(mem memory.Memory, addr types.Address, maxKeySize, maxValSize uint32) *Node {
	buf := make([]byte, ChunkSize(maxKeySize, maxValSize))
	mem.Read(uint64(addr), buf)

	if buf[offMagic] != magic[0] || buf[offMagic+1] != magic[1] || buf[offMagic+2] != magic[2] {
		panic("node: bad magic")
	}
	if buf[offVersion] != version {
		panic("node: unsupported version")
	}

	return &Node{addr: addr, buf: buf, maxKeySize: maxKeySize, maxValSize: maxValSize}
}

// Save writes the node's chunk back to mem at its address.
func (nd *Node) Save(mem memory.Memory) {
	memory.EnsureCapacity(mem, uint64(nd.addr), uint64(len(nd.buf)))
	mem.Write(uint64(nd.addr), nd.buf)
}

// Address returns the node's chunk address.
func (nd *Node) Address() types.Address { return nd.addr }

// SetAddress assigns the node's chunk address, typically right after an
// allocator hands one out.
func (nd *Node) SetAddress(a types.Address) { nd.addr = a }

// NodeType returns whether this is a Leaf or Internal node.
func (nd *Node) NodeType() Type { return Type(nd.buf[offType]) }

// EntriesLen returns the number of entries currently stored.
func (nd *Node) EntriesLen() uint16 { return binary.LittleEndian.Uint16(nd.buf[offCount:]) }

func (nd *Node) setEntriesLen(n uint16) { binary.LittleEndian.PutUint16(nd.buf[offCount:], n) }

// ChildrenLen returns the number of child addresses: EntriesLen()+1 for an
// Internal node, 0 for a Leaf.
func (nd *Node) ChildrenLen() uint16 {
	if nd.NodeType() == Leaf {
		return 0
	}
	return nd.EntriesLen() + 1
}

// IsFull reports whether the node holds CAPACITY entries.
func (nd *Node) IsFull() bool { return nd.EntriesLen() == CAPACITY }

// AtMinimum reports whether the node holds exactly MinEntries entries —
// the fewest a non-root node may hold.
func (nd *Node) AtMinimum() bool { return nd.EntriesLen() == MinEntries }

// CanRemoveEntryWithoutMerging reports whether an entry can be taken from
// this node (rotation or predecessor/successor removal) without violating
// the minimum-entries invariant.
func (nd *Node) CanRemoveEntryWithoutMerging() bool { return nd.EntriesLen() > MinEntries }

func (nd *Node) keySlotOffset(i uint16) uint32 {
	return keysOffset() + uint32(i)*keySlotSize(nd.maxKeySize)
}

func (nd *Node) valSlotOffset(i uint16) uint32 {
	return valsOffset(nd.maxKeySize) + uint32(i)*valSlotSize(nd.maxValSize)
}

func (nd *Node) childOffset(i uint16) uint32 {
	return childrenOffset(nd.maxKeySize, nd.maxValSize) + uint32(i)*8
}

// Key returns the key stored at entry index i.
func (nd *Node) Key(i uint16) []byte {
	off := nd.keySlotOffset(i)
	klen := binary.LittleEndian.Uint32(nd.buf[off:])
	return nd.buf[off+4 : off+4+klen]
}

func (nd *Node) setKey(i uint16, key []byte) {
	off := nd.keySlotOffset(i)
	binary.LittleEndian.PutUint32(nd.buf[off:], uint32(len(key)))
	copy(nd.buf[off+4:off+4+uint32(len(key))], key)
}

// Value returns the value stored at entry index i. Values are read lazily:
// nothing is decoded until this is called.
func (nd *Node) Value(i uint16) []byte {
	off := nd.valSlotOffset(i)
	vlen := binary.LittleEndian.Uint32(nd.buf[off:])
	return nd.buf[off+4 : off+4+vlen]
}

func (nd *Node) setValue(i uint16, val []byte) {
	off := nd.valSlotOffset(i)
	binary.LittleEndian.PutUint32(nd.buf[off:], uint32(len(val)))
	copy(nd.buf[off+4:off+4+uint32(len(val))], val)
}

// Child returns the address of the child at index i (0..ChildrenLen()).
func (nd *Node) Child(i uint16) types.Address {
	off := nd.childOffset(i)
	return types.Address(binary.LittleEndian.Uint64(nd.buf[off:]))
}

func (nd *Node) setChild(i uint16, addr types.Address) {
	off := nd.childOffset(i)
	binary.LittleEndian.PutUint64(nd.buf[off:], uint64(addr))
}

func (nd *Node) copyEntry(src, dst uint16) {
	nd.setKey(dst, nd.Key(src))
	nd.setValue(dst, nd.Value(src))
}

// Search does a binary search for key among the node's entries. It returns
// (idx, true) on an exact match, or (idx, false) with idx being the
// insertion position that preserves order.
func (nd *Node) Search(key []byte) (uint16, bool) {
	n := nd.EntriesLen()
	lo, hi := uint16(0), n
	for lo < hi {
		mid := (lo + hi) / 2
		switch cmp := bytes.Compare(nd.Key(mid), key); {
		case cmp == 0:
			return mid, true
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// InsertEntry shifts entries [i, EntriesLen()) right by one slot and
// writes e at i.
func (nd *Node) InsertEntry(i uint16, e Entry) {
	n := nd.EntriesLen()
	for j := n; j > i; j-- {
		nd.copyEntry(j-1, j)
	}
	nd.setKey(i, e.Key)
	nd.setValue(i, e.Value)
	nd.setEntriesLen(n + 1)
}

// RemoveEntry removes and returns the entry at i, shifting entries
// (i, EntriesLen()) left by one slot.
func (nd *Node) RemoveEntry(i uint16) Entry {
	key := append([]byte(nil), nd.Key(i)...)
	val := append([]byte(nil), nd.Value(i)...)
	n := nd.EntriesLen()
	for j := i; j < n-1; j++ {
		nd.copyEntry(j+1, j)
	}
	nd.setEntriesLen(n - 1)
	return Entry{Key: key, Value: val}
}

// PushEntry appends e as the new last entry.
func (nd *Node) PushEntry(e Entry) { nd.InsertEntry(nd.EntriesLen(), e) }

// PopEntry removes and returns the last entry.
func (nd *Node) PopEntry() Entry { return nd.RemoveEntry(nd.EntriesLen() - 1) }

// SwapEntry replaces the entry at i with e and returns the old value.
func (nd *Node) SwapEntry(i uint16, e Entry) Entry {
	old := Entry{Key: append([]byte(nil), nd.Key(i)...), Value: append([]byte(nil), nd.Value(i)...)}
	nd.setKey(i, e.Key)
	nd.setValue(i, e.Value)
	return old
}

// InsertChild shifts children [i, ChildrenLen()) right by one slot and
// writes addr at i. Called before the paired InsertEntry bumps
// EntriesLen() (and hence ChildrenLen()), so the shift count reflects the
// pre-insert child count.
func (nd *Node) InsertChild(i uint16, addr types.Address) {
	n := nd.ChildrenLen()
	for j := n; j > i; j-- {
		nd.setChild(j, nd.Child(j-1))
	}
	nd.setChild(i, addr)
}

// RemoveChild removes and returns the child address at i, shifting children
// (i, ChildrenLen()) left by one slot. Called before the paired RemoveEntry
// decrements EntriesLen(), mirroring InsertChild's ordering.
func (nd *Node) RemoveChild(i uint16) types.Address {
	addr := nd.Child(i)
	n := nd.ChildrenLen()
	for j := i; j < n-1; j++ {
		nd.setChild(j, nd.Child(j+1))
	}
	return addr
}

// PushChild writes addr at index ChildrenLen(), the slot after the current
// last child; like InsertChild it is called before the paired PushEntry. On
// an internal node with no entries ChildrenLen() is already 1, so this
// writes index 1; the first child of a fresh internal node goes in with
// InsertChild(0, addr).
func (nd *Node) PushChild(addr types.Address) { nd.InsertChild(nd.ChildrenLen(), addr) }

// PopChild removes and returns the last child address.
func (nd *Node) PopChild() types.Address { return nd.RemoveChild(nd.ChildrenLen() - 1) }

// Split moves the upper half of nd's entries (and, for Internal nodes, the
// corresponding children) into sibling, and returns the median entry that
// the caller must insert into the parent. nd must be full (CAPACITY
// entries) before calling Split.
func (nd *Node) Split(sibling *Node) Entry {
	n := nd.EntriesLen()
	mid := uint16(CAPACITY / 2)

	sibling.buf[offType] = nd.buf[offType]

	rightCount := n - (mid + 1)
	for k := uint16(0); k < rightCount; k++ {
		sibling.setKey(k, nd.Key(mid+1+k))
		sibling.setValue(k, nd.Value(mid+1+k))
	}
	sibling.setEntriesLen(rightCount)

	median := Entry{
		Key:   append([]byte(nil), nd.Key(mid)...),
		Value: append([]byte(nil), nd.Value(mid)...),
	}

	if nd.NodeType() == Internal {
		childCount := n - mid
		for k := uint16(0); k < childCount; k++ {
			sibling.setChild(k, nd.Child(mid+1+k))
		}
	}

	nd.setEntriesLen(mid)
	return median
}

// Merge concatenates median and source's entries (and children, for
// Internal nodes) onto the end of nd's own entries, in that order: nd must
// be the logically-left node of the pair being merged. Both nd and source
// must be at minimum before calling Merge; the result is exactly CAPACITY
// entries.
func (nd *Node) Merge(source *Node, median Entry) {
	n := nd.EntriesLen()
	nd.setKey(n, median.Key)
	nd.setValue(n, median.Value)

	sn := source.EntriesLen()
	for k := uint16(0); k < sn; k++ {
		nd.setKey(n+1+k, source.Key(k))
		nd.setValue(n+1+k, source.Value(k))
	}
	nd.setEntriesLen(n + 1 + sn)

	if nd.NodeType() == Internal {
		sc := source.ChildrenLen()
		for k := uint16(0); k < sc; k++ {
			nd.setChild(n+1+k, source.Child(k))
		}
	}
}

// GetMax walks the rightmost spine of children (loaded via load) down to a
// leaf and returns its last entry — the predecessor of a key.
func (nd *Node) GetMax(load func(types.Address) *Node) Entry {
	cur := nd
	for cur.NodeType() == Internal {
		cur = load(cur.Child(cur.EntriesLen()))
	}
	i := cur.EntriesLen() - 1
	return Entry{Key: append([]byte(nil), cur.Key(i)...), Value: append([]byte(nil), cur.Value(i)...)}
}

// GetMin walks the leftmost spine of children (loaded via load) down to a
// leaf and returns its first entry — the successor of a key.
func (nd *Node) GetMin(load func(types.Address) *Node) Entry {
	cur := nd
	for cur.NodeType() == Internal {
		cur = load(cur.Child(0))
	}
	return Entry{Key: append([]byte(nil), cur.Key(0)...), Value: append([]byte(nil), cur.Value(0)...)}
}
