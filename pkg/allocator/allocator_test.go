package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kvstore/btreemap/pkg/memory"
)

func TestAllocateBumpsCursorWhenFreeListEmpty(t *testing.T) {
	mem := memory.NewVecMemory()
	a := New(mem, 0, 64)

	first := a.Allocate()
	second := a.Allocate()

	assert.NotEqual(t, first, second)
	assert.Equal(t, uint64(2), a.NumAllocatedChunks())
}

func TestDeallocateRecyclesChunk(t *testing.T) {
	mem := memory.NewVecMemory()
	a := New(mem, 0, 64)

	addr := a.Allocate()
	a.Deallocate(addr)
	assert.Equal(t, uint64(0), a.NumAllocatedChunks())

	recycled := a.Allocate()
	assert.Equal(t, addr, recycled)
	assert.Equal(t, uint64(1), a.NumAllocatedChunks())
}

func TestLoadReconstructsAllocatorState(t *testing.T) {
	mem := memory.NewVecMemory()
	a := New(mem, 0, 64)

	a.Allocate()
	a.Allocate()
	freed := a.Allocate()
	a.Deallocate(freed)

	loaded := Load(mem, 0)
	assert.Equal(t, a.ChunkSize(), loaded.ChunkSize())
	assert.Equal(t, a.NumAllocatedChunks(), loaded.NumAllocatedChunks())

	next := loaded.Allocate()
	assert.Equal(t, freed, next)
}

func TestLoadBadMagicPanics(t *testing.T) {
	mem := memory.NewVecMemory()
	memory.EnsureCapacity(mem, 0, headerSize)

	assert.Panics(t, func() {
		Load(mem, 0)
	})
}
