// Package allocator implements the fixed-size chunk allocator the B-tree
// engine carves its node storage from: a bump pointer for first-use
// allocation and a singly-linked free list for recycled chunks, both
// persisted in a small header at a fixed offset in the memory.
package allocator

import (
	"encoding/binary"

	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/types"
)

// magic identifies an allocator header. Distinct from the map header's
// "BTR" and the node codec's "BTN" so a misdirected read fails loudly
// instead of silently misinterpreting bytes.
var magic = [3]byte{'B', 'T', 'A'}

const version uint8 = 1

// Header layout, relative to the allocator's base offset. Unlike the map
// header, this layout is an internal implementation detail with no
// externally committed bit-exact format.
const (
	headerSize = 32

	offMagic       = 0 // 3 bytes
	offVersion     = 3 // 1 byte
	offChunkSize   = 4 // 4 bytes, uint32 LE
	offFreeListPtr = 8 // 8 bytes, uint64 LE (Address)
	offBumpCursor  = 16 // 8 bytes, uint64 LE
	offNumAlloc    = 24 // 8 bytes, uint64 LE
)

// Allocator owns a contiguous chunk region of a Memory, starting at
// baseOffset. Every chunk is chunkSize bytes; allocate/deallocate move
// chunks between the free list and the caller.
type Allocator struct {
	mem        memory.Memory
	baseOffset uint64

	chunkSize          uint32
	freeListHead       types.Address
	bumpCursor         uint64
	numAllocatedChunks uint64
}

// New creates a fresh allocator with the given chunk size at baseOffset and
// persists its header immediately.
func New(mem memory.Memory, baseOffset uint64, chunkSize uint32) *Allocator {
	a := &Allocator{
		mem:          mem,
		baseOffset:   baseOffset,
		chunkSize:    chunkSize,
		freeListHead: types.NULL,
		bumpCursor:   baseOffset + headerSize,
	}
	a.persistHeader()
	return a
}

// Load reconstructs an allocator from the header previously written at
// baseOffset.
func Load(mem memory.Memory, baseOffset uint64) *Allocator {
	buf := make([]byte, headerSize)
	mem.Read(baseOffset, buf)

	if buf[offMagic] != magic[0] || buf[offMagic+1] != magic[1] || buf[offMagic+2] != magic[2] {
		panic("allocator: bad magic")
	}
	if buf[offVersion] != version {
		panic("allocator: unsupported version")
	}

	return &Allocator{
		mem:                mem,
		baseOffset:         baseOffset,
		chunkSize:          binary.LittleEndian.Uint32(buf[offChunkSize:]),
		freeListHead:       types.Address(binary.LittleEndian.Uint64(buf[offFreeListPtr:])),
		bumpCursor:         binary.LittleEndian.Uint64(buf[offBumpCursor:]),
		numAllocatedChunks: binary.LittleEndian.Uint64(buf[offNumAlloc:]),
	}
}

func (a *Allocator) persistHeader() {
	buf := make([]byte, headerSize)
	buf[offMagic], buf[offMagic+1], buf[offMagic+2] = magic[0], magic[1], magic[2]
	buf[offVersion] = version
	binary.LittleEndian.PutUint32(buf[offChunkSize:], a.chunkSize)
	binary.LittleEndian.PutUint64(buf[offFreeListPtr:], uint64(a.freeListHead))
	binary.LittleEndian.PutUint64(buf[offBumpCursor:], a.bumpCursor)
	binary.LittleEndian.PutUint64(buf[offNumAlloc:], a.numAllocatedChunks)
	memory.EnsureCapacity(a.mem, a.baseOffset, headerSize)
	a.mem.Write(a.baseOffset, buf)
}

// ChunkSize returns the fixed chunk size this allocator was constructed with.
func (a *Allocator) ChunkSize() uint32 {
	return a.chunkSize
}

// NumAllocatedChunks returns the number of chunks currently outside the
// free list — a test/observability knob.
func (a *Allocator) NumAllocatedChunks() uint64 {
	return a.numAllocatedChunks
}

// Allocate returns the address of a chunk ready for use: a recycled
// free-list slot if one exists, otherwise a newly carved chunk at the bump
// cursor (growing the memory in page-aligned increments as needed).
func (a *Allocator) Allocate() types.Address {
	if !a.freeListHead.IsNull() {
		addr := a.freeListHead

		link := make([]byte, 8)
		a.mem.Read(uint64(addr), link)
		a.freeListHead = types.Address(binary.LittleEndian.Uint64(link))

		a.numAllocatedChunks++
		a.persistHeader()
		return addr
	}

	addr := types.Address(a.bumpCursor)
	memory.EnsureCapacity(a.mem, a.bumpCursor, uint64(a.chunkSize))
	a.bumpCursor += uint64(a.chunkSize)

	a.numAllocatedChunks++
	a.persistHeader()
	return addr
}

// Deallocate returns a chunk to the free list. It never shrinks the memory.
func (a *Allocator) Deallocate(addr types.Address) {
	link := make([]byte, 8)
	binary.LittleEndian.PutUint64(link, uint64(a.freeListHead))
	a.mem.Write(uint64(addr), link)

	a.freeListHead = addr
	a.numAllocatedChunks--
	a.persistHeader()
}
