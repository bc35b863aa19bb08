package btree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/types"
)

func TestHeaderWriteReadRoundTrip(t *testing.T) {
	mem := memory.NewVecMemory()
	h := header{
		maxKeySize:   32,
		maxValueSize: 64,
		rootAddr:     types.Address(128),
		length:       7,
	}
	h.write(mem)

	got := readHeader(mem)
	assert.Equal(t, h, got)
}

func TestHasMagicFalseOnEmptyMemory(t *testing.T) {
	mem := memory.NewVecMemory()
	assert.False(t, hasMagic(mem))
}

func TestHasMagicTrueAfterWrite(t *testing.T) {
	mem := memory.NewVecMemory()
	header{maxKeySize: 1, maxValueSize: 1}.write(mem)
	assert.True(t, hasMagic(mem))
}

func TestReadHeaderPanicsOnBadMagic(t *testing.T) {
	mem := memory.NewVecMemory()
	memory.EnsureCapacity(mem, 0, PackedHeaderSize)

	require.Panics(t, func() {
		readHeader(mem)
	})
}
