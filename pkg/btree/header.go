package btree

import (
	"encoding/binary"

	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/types"
)

// magic and layout constants for the 28-byte packed map header:
//
//	0..3   magic "BTR"
//	3      version
//	4..8   max key size (u32 LE)
//	8..12  max value size (u32 LE)
//	12..20 root address (u64 LE)
//	20..28 length (u64 LE)
//	28..52 reserved (zero)
//	52..   allocator header, then chunks
var headerMagic = [3]byte{'B', 'T', 'R'}

const headerVersion uint8 = 1

const (
	hdrOffMagic        = 0
	hdrOffVersion      = 3
	hdrOffMaxKeySize   = 4
	hdrOffMaxValueSize = 8
	hdrOffRootAddr     = 12
	hdrOffLength       = 20

	// PackedHeaderSize is the sum of all header fields.
	PackedHeaderSize = 28
	// AllocatorOffset is where the allocator's own header begins.
	AllocatorOffset = 52
)

type header struct {
	maxKeySize   uint32
	maxValueSize uint32
	rootAddr     types.Address
	length       uint64
}

// hasMagic peeks at the first 3 bytes of mem to decide whether it already
// holds a map, without requiring the full header to be valid yet.
func hasMagic(mem memory.Memory) bool {
	if mem.Size() == 0 {
		return false
	}
	buf := make([]byte, 3)
	mem.Read(0, buf)
	return buf[0] == headerMagic[0] && buf[1] == headerMagic[1] && buf[2] == headerMagic[2]
}

func readHeader(mem memory.Memory) header {
	buf := make([]byte, PackedHeaderSize)
	mem.Read(0, buf)

	if buf[hdrOffMagic] != headerMagic[0] || buf[hdrOffMagic+1] != headerMagic[1] || buf[hdrOffMagic+2] != headerMagic[2] {
		panic("btree: bad magic")
	}
	if buf[hdrOffVersion] != headerVersion {
		panic("btree: unsupported version")
	}

	return header{
		maxKeySize:   binary.LittleEndian.Uint32(buf[hdrOffMaxKeySize:]),
		maxValueSize: binary.LittleEndian.Uint32(buf[hdrOffMaxValueSize:]),
		rootAddr:     types.Address(binary.LittleEndian.Uint64(buf[hdrOffRootAddr:])),
		length:       binary.LittleEndian.Uint64(buf[hdrOffLength:]),
	}
}

// write persists the header, including the zeroed reserved region, so the
// allocator always begins at exactly AllocatorOffset.
func (h header) write(mem memory.Memory) {
	buf := make([]byte, AllocatorOffset)
	buf[hdrOffMagic], buf[hdrOffMagic+1], buf[hdrOffMagic+2] = headerMagic[0], headerMagic[1], headerMagic[2]
	buf[hdrOffVersion] = headerVersion
	binary.LittleEndian.PutUint32(buf[hdrOffMaxKeySize:], h.maxKeySize)
	binary.LittleEndian.PutUint32(buf[hdrOffMaxValueSize:], h.maxValueSize)
	binary.LittleEndian.PutUint64(buf[hdrOffRootAddr:], uint64(h.rootAddr))
	binary.LittleEndian.PutUint64(buf[hdrOffLength:], h.length)

	memory.EnsureCapacity(mem, 0, uint64(len(buf)))
	mem.Write(0, buf)
}
