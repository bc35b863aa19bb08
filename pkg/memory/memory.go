// Package memory provides the linear, page-addressable byte store that the
// B-tree engine persists itself into: every byte the map ever writes —
// header, allocator bookkeeping, node chunks — goes through one of these
// implementations.
package memory

// PageSize is the growth granularity every implementation rounds up to.
const PageSize = 65536

// Memory is a caller-provided linear byte store. Implementations must grow
// monotonically: once a page has been handed out it is never taken back,
// and reads/writes never range outside the current size.
type Memory interface {
	// Size reports the current size of the memory in pages.
	Size() uint64
	// Grow extends the memory by the given number of pages, returning the
	// previous size in pages. Growth is the only way the store gets bigger;
	// it never shrinks.
	Grow(pages uint64) (prevPages uint64)
	// Read copies len(buf) bytes starting at offset into buf.
	Read(offset uint64, buf []byte)
	// Write copies bytes into the memory starting at offset.
	Write(offset uint64, bytes []byte)
}

// EnsureCapacity grows mem, in whole pages, so that at least size bytes
// starting at offset are addressable. It is the shared bump-to-fit helper
// every Memory-consuming component (allocator, header codec) uses instead
// of hand-rolling page-rounding arithmetic.
func EnsureCapacity(mem Memory, offset, size uint64) {
	need := offset + size
	have := mem.Size() * PageSize
	if need <= have {
		return
	}
	extraBytes := need - have
	extraPages := extraBytes / PageSize
	if extraBytes%PageSize != 0 {
		extraPages++
	}
	mem.Grow(extraPages)
}
