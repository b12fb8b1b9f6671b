package cache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

const blockSize = 20

func TestCache(t *testing.T) {
	requireT := require.New(t)

	c := New(blockSize, 4)

	_, exists := c.Get(0)
	requireT.False(exists)

	block := bytes.Repeat([]byte{0x01}, blockSize)
	c.Put(blockSize, block)

	cached, exists := c.Get(blockSize)
	requireT.True(exists)
	requireT.Equal(block, cached)

	block2 := bytes.Repeat([]byte{0x02}, blockSize)
	c.Put(blockSize, block2)
	cached, exists = c.Get(blockSize)
	requireT.True(exists)
	requireT.Equal(block2, cached)

	c.Invalidate(blockSize)
	_, exists = c.Get(blockSize)
	requireT.False(exists)
}

func TestInvalidatedSlotIsReused(t *testing.T) {
	requireT := require.New(t)

	c := New(blockSize, 4)

	c.Put(0, bytes.Repeat([]byte{0x01}, blockSize))
	c.Invalidate(0)

	// Block 4 maps to the same slot as block 0.
	c.Put(4*blockSize, bytes.Repeat([]byte{0x04}, blockSize))
	cached, exists := c.Get(4 * blockSize)
	requireT.True(exists)
	requireT.Equal(bytes.Repeat([]byte{0x04}, blockSize), cached)

	_, exists = c.Get(0)
	requireT.False(exists)
}

func TestEviction(t *testing.T) {
	requireT := require.New(t)

	c := New(blockSize, 2)

	for i := int64(0); i < 10; i++ {
		c.Put(i*blockSize, bytes.Repeat([]byte{byte(i)}, blockSize))
	}

	// Whatever is still cached must carry the right content.
	var nCached int
	for i := int64(0); i < 10; i++ {
		cached, exists := c.Get(i * blockSize)
		if !exists {
			continue
		}
		nCached++
		requireT.Equal(bytes.Repeat([]byte{byte(i)}, blockSize), cached)
	}
	requireT.LessOrEqual(nCached, 2)
	requireT.Positive(nCached)
}

func TestReset(t *testing.T) {
	requireT := require.New(t)

	c := New(blockSize, 4)
	c.Put(0, make([]byte, blockSize))
	c.Reset()

	_, exists := c.Get(0)
	requireT.False(exists)
}

func TestDisabledCache(t *testing.T) {
	requireT := require.New(t)

	c := New(blockSize, 0)
	c.Put(0, make([]byte, blockSize))

	_, exists := c.Get(0)
	requireT.False(exists)
}
