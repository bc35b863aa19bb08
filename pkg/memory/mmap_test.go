package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMMapMemoryGrowReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.mmap")

	m, err := NewMMapMemory(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, uint64(0), m.Size())
	m.Grow(1)
	assert.Equal(t, uint64(1), m.Size())

	payload := []byte("mmap roundtrip")
	m.Write(100, payload)

	got := make([]byte, len(payload))
	m.Read(100, got)
	assert.Equal(t, payload, got)
}

func TestMMapMemoryReopensExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.mmap")

	m1, err := NewMMapMemory(path)
	require.NoError(t, err)
	m1.Grow(1)
	m1.Write(0, []byte("persisted"))
	require.NoError(t, m1.Close())

	m2, err := NewMMapMemory(path)
	require.NoError(t, err)
	defer m2.Close()

	assert.Equal(t, uint64(1), m2.Size())
	got := make([]byte, len("persisted"))
	m2.Read(0, got)
	assert.Equal(t, "persisted", string(got))
}
