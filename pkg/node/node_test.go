package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/types"
)

const testMaxKey = 16
const testMaxVal = 32

func entryFor(i int) Entry {
	k := []byte{byte(i)}
	v := []byte{byte(i), byte(i)}
	return Entry{Key: k, Value: v}
}

func TestNewNodeStartsEmpty(t *testing.T) {
	nd := New(Leaf, testMaxKey, testMaxVal)
	assert.Equal(t, uint16(0), nd.EntriesLen())
	assert.Equal(t, uint16(0), nd.ChildrenLen())
	assert.False(t, nd.IsFull())
}

func TestInsertAndSearchEntries(t *testing.T) {
	nd := New(Leaf, testMaxKey, testMaxVal)

	for i := 0; i < 5; i++ {
		idx, found := nd.Search([]byte{byte(i)})
		require.False(t, found)
		nd.InsertEntry(idx, entryFor(i))
	}

	assert.Equal(t, uint16(5), nd.EntriesLen())
	for i := 0; i < 5; i++ {
		idx, found := nd.Search([]byte{byte(i)})
		require.True(t, found)
		assert.Equal(t, entryFor(i).Value, nd.Value(idx))
	}
}

func TestNodeIsFullAtCapacity(t *testing.T) {
	nd := New(Leaf, testMaxKey, testMaxVal)
	for i := 0; i < CAPACITY; i++ {
		nd.InsertEntry(uint16(i), entryFor(i))
	}
	assert.True(t, nd.IsFull())
}

func TestSplitDistributesEntriesAndReturnsMedian(t *testing.T) {
	nd := New(Internal, testMaxKey, testMaxVal)
	nd.InsertChild(0, types.Address(100))
	for i := 0; i < CAPACITY; i++ {
		nd.PushChild(types.Address(i + 101))
		nd.InsertEntry(uint16(i), entryFor(i))
	}

	sibling := New(Internal, testMaxKey, testMaxVal)
	median := nd.Split(sibling)

	mid := CAPACITY / 2
	assert.Equal(t, entryFor(mid).Key, median.Key)
	assert.Equal(t, uint16(mid), nd.EntriesLen())
	assert.Equal(t, uint16(CAPACITY-mid-1), sibling.EntriesLen())
	assert.Equal(t, types.Address(100+mid+1), sibling.Child(0))
}

func TestMergeReassemblesFullCapacity(t *testing.T) {
	left := New(Internal, testMaxKey, testMaxVal)
	right := New(Internal, testMaxKey, testMaxVal)

	for i := 0; i < MinEntries; i++ {
		left.InsertEntry(uint16(i), entryFor(i))
	}
	for i := 0; i < MinEntries+1; i++ {
		left.PushChild(types.Address(i))
	}

	for i := 0; i < MinEntries; i++ {
		right.InsertEntry(uint16(i), entryFor(i+MinEntries+1))
	}
	for i := 0; i < MinEntries+1; i++ {
		right.PushChild(types.Address(i + 1000))
	}

	median := entryFor(MinEntries)
	left.Merge(right, median)

	assert.Equal(t, uint16(CAPACITY), left.EntriesLen())
	assert.Equal(t, uint16(CAPACITY+1), left.ChildrenLen())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	mem := memory.NewVecMemory()
	nd := New(Leaf, testMaxKey, testMaxVal)
	nd.SetAddress(types.Address(0))
	nd.InsertEntry(0, entryFor(1))
	nd.InsertEntry(1, entryFor(2))
	nd.Save(mem)

	loaded := Load(mem, types.Address(0), testMaxKey, testMaxVal)
	assert.Equal(t, uint16(2), loaded.EntriesLen())
	assert.Equal(t, entryFor(1).Value, loaded.Value(0))
}

func TestLoadBadMagicPanics(t *testing.T) {
	mem := memory.NewVecMemory()
	memory.EnsureCapacity(mem, 0, uint64(ChunkSize(testMaxKey, testMaxVal)))

	assert.Panics(t, func() {
		Load(mem, types.Address(0), testMaxKey, testMaxVal)
	})
}

func TestGetMinGetMaxWalkSpine(t *testing.T) {
	mem := memory.NewVecMemory()

	leafLeft := New(Leaf, testMaxKey, testMaxVal)
	leafLeft.SetAddress(types.Address(0))
	leafLeft.InsertEntry(0, entryFor(1))
	leafLeft.Save(mem)

	leafRight := New(Leaf, testMaxKey, testMaxVal)
	leafRight.SetAddress(types.Address(uint64(ChunkSize(testMaxKey, testMaxVal))))
	leafRight.InsertEntry(0, entryFor(9))
	leafRight.Save(mem)

	root := New(Internal, testMaxKey, testMaxVal)
	root.InsertChild(0, leafLeft.Address())
	root.PushChild(leafRight.Address())
	root.PushEntry(entryFor(5))

	load := func(a types.Address) *Node { return Load(mem, a, testMaxKey, testMaxVal) }

	assert.Equal(t, entryFor(1).Key, root.GetMin(load).Key)
	assert.Equal(t, entryFor(9).Key, root.GetMax(load).Key)
}
