package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVecMemoryGrowAndReadWrite(t *testing.T) {
	mem := NewVecMemory()
	assert.Equal(t, uint64(0), mem.Size())

	prev := mem.Grow(2)
	assert.Equal(t, uint64(0), prev)
	assert.Equal(t, uint64(2), mem.Size())

	payload := []byte("hello world")
	mem.Write(10, payload)

	got := make([]byte, len(payload))
	mem.Read(10, got)
	assert.Equal(t, payload, got)
}

func TestVecMemoryShortReadPanics(t *testing.T) {
	mem := NewVecMemory()
	mem.Grow(1)

	require.Panics(t, func() {
		buf := make([]byte, PageSize+1)
		mem.Read(0, buf)
	})
}

func TestEnsureCapacityGrowsInWholePages(t *testing.T) {
	mem := NewVecMemory()
	EnsureCapacity(mem, 0, PageSize+1)
	assert.GreaterOrEqual(t, mem.Size(), uint64(2))
}
