package storable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesCodecRoundTrip(t *testing.T) {
	c := BytesCodec(16)
	data := []byte("hello")

	encoded := c.ToBytes(data)
	decoded := c.FromBytes(encoded)
	assert.Equal(t, data, decoded)
	assert.Equal(t, uint32(16), c.Bound.MaxSize)
	assert.False(t, c.Bound.Unbounded)
}

func TestStringCodecRoundTrip(t *testing.T) {
	c := StringCodec(32)
	encoded := c.ToBytes("hello world")
	assert.Equal(t, "hello world", c.FromBytes(encoded))
}

func TestBoundedConstructor(t *testing.T) {
	b := Bounded(8, true)
	assert.Equal(t, uint32(8), b.MaxSize)
	assert.True(t, b.IsFixedSize)
	assert.False(t, b.Unbounded)
}
