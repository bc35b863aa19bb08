package btree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvstore/btreemap/pkg/memory"
	"github.com/kvstore/btreemap/pkg/storable"
)

func collect(it *Iterator[string, string]) []string {
	var out []string
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, k)
	}
	return out
}

func TestIterEmptyMap(t *testing.T) {
	m := newTestMap()
	assert.Empty(t, collect(m.Iter()))
}

func TestIterAscendingOrderAfterSplits(t *testing.T) {
	m := newTestMap()
	for i := 30; i >= 1; i-- {
		m.Insert(fmt.Sprintf("%02d", i), fmt.Sprintf("v%02d", i))
	}

	got := collect(m.Iter())
	require.Len(t, got, 30)
	for i := 1; i <= 30; i++ {
		assert.Equal(t, fmt.Sprintf("%02d", i), got[i-1])
	}
}

func TestIterUpperBoundStartsAtPredecessor(t *testing.T) {
	m := newTestMap()
	for i := 1; i <= 20; i++ {
		m.Insert(fmt.Sprintf("%02d", i), fmt.Sprintf("v%02d", i))
	}

	it := m.IterUpperBound("10")
	k, v, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "09", k)
	assert.Equal(t, "v09", v)

	k, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "10", k)
}

func TestIterUpperBoundEmptyWhenNoPredecessor(t *testing.T) {
	m := newTestMap()
	for i := 1; i <= 5; i++ {
		m.Insert(fmt.Sprintf("%02d", i), fmt.Sprintf("v%02d", i))
	}

	_, _, ok := m.IterUpperBound("00").Next()
	assert.False(t, ok)
}

func TestRangeIncludedExcludedBounds(t *testing.T) {
	m := newTestMap()
	for i := 1; i <= 20; i++ {
		m.Insert(fmt.Sprintf("%02d", i), fmt.Sprintf("v%02d", i))
	}

	got := collect(m.Range(Included[string]("05"), Excluded[string]("10")))
	assert.Equal(t, []string{"05", "06", "07", "08", "09"}, got)

	got = collect(m.Range(Excluded[string]("05"), Excluded[string]("10")))
	assert.Equal(t, []string{"06", "07", "08", "09"}, got)

	got = collect(m.Range(Unbounded[string](), Excluded[string]("03")))
	assert.Equal(t, []string{"01", "02"}, got)
}

func TestRangePanicsOnIncludedUpperBound(t *testing.T) {
	m := newTestMap()
	assert.Panics(t, func() {
		m.Range(Unbounded[string](), Included[string]("x"))
	})
}

func TestIterAfterRemovalsStillAscending(t *testing.T) {
	m := newTestMap()
	for i := 1; i <= 50; i++ {
		m.Insert(fmt.Sprintf("%02d", i), fmt.Sprintf("v%02d", i))
	}
	for i := 1; i <= 50; i += 3 {
		m.Remove(fmt.Sprintf("%02d", i))
	}

	got := collect(m.Iter())
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1], got[i])
	}
}

func TestIterWithBytesCodec(t *testing.T) {
	mem := memory.NewVecMemory()
	m := New(mem, storable.BytesCodec(16), storable.BytesCodec(16))
	m.Insert([]byte("b"), []byte("2"))
	m.Insert([]byte("a"), []byte("1"))

	it := m.Iter()
	k, v, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, []byte("a"), k)
	assert.Equal(t, []byte("1"), v)
}
