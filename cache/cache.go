package cache

import (
	"github.com/outofforest/photon"
)

// Cache keeps encoded blocks of one file in memory. It is write-through, content is never newer than the file.
type Cache struct {
	blockSize       int64
	cachedBlockSize int64
	nBlocks         int64
	data            []byte
}

// New creates new cache able to keep nBlocks blocks of blockSize bytes.
func New(blockSize, nBlocks int64) *Cache {
	if nBlocks < 0 {
		nBlocks = 0
	}
	cachedBlockSize := CacheHeaderSize + ((blockSize-1)/alignment+1)*alignment
	return &Cache{
		blockSize:       blockSize,
		cachedBlockSize: cachedBlockSize,
		nBlocks:         nBlocks,
		data:            make([]byte, nBlocks*cachedBlockSize),
	}
}

// Get returns cached bytes of the block. Returned slice is valid until the next call modifying the cache.
func (c *Cache) Get(address int64) ([]byte, bool) {
	cacheAddress, found := c.findCachedBlock(address)
	if !found {
		return nil, false
	}
	dataOffset := cacheAddress*c.cachedBlockSize + CacheHeaderSize
	return c.data[dataOffset : dataOffset+c.blockSize], true
}

// Put stores bytes of the block.
func (c *Cache) Put(address int64, p []byte) {
	if c.nBlocks == 0 || int64(len(p)) != c.blockSize {
		return
	}

	cacheAddress, _ := c.findCachedBlock(address)
	offset := cacheAddress * c.cachedBlockSize
	h := photon.NewFromBytes[header](c.data[offset:])
	h.V.Address = address
	h.V.State = cachedBlockState
	copy(c.data[offset+CacheHeaderSize:offset+CacheHeaderSize+c.blockSize], p)
}

// Invalidate removes block from the cache.
func (c *Cache) Invalidate(address int64) {
	cacheAddress, found := c.findCachedBlock(address)
	if !found {
		return
	}
	h := photon.NewFromBytes[header](c.data[cacheAddress*c.cachedBlockSize:])
	h.V.State = invalidBlockState
}

// Reset removes all the blocks from the cache.
func (c *Cache) Reset() {
	for cacheAddress := int64(0); cacheAddress < c.nBlocks; cacheAddress++ {
		h := photon.NewFromBytes[header](c.data[cacheAddress*c.cachedBlockSize:])
		h.V.State = freeBlockState
	}
}

// findCachedBlock returns the slot containing the block. If block is not cached, the slot which should be used to
// store it is returned.
func (c *Cache) findCachedBlock(address int64) (int64, bool) {
	if c.nBlocks == 0 {
		return 0, false
	}

	// If there is no free slot found in `MaxCacheTries` tries, the first tried one is replaced.
	selectedCacheAddress := (address / c.blockSize) % c.nBlocks
	var invalidCacheAddressFound bool

	// Multiplying by 3 instead of 2 here is better, because it produces both even and odd addresses.
	for i, cacheAddress := 0, selectedCacheAddress; i < MaxCacheTries; i, cacheAddress = i+1, (cacheAddress*3+1)%c.nBlocks {
		h := photon.NewFromBytes[header](c.data[cacheAddress*c.cachedBlockSize:])

		switch h.V.State {
		case freeBlockState:
			if invalidCacheAddressFound {
				return selectedCacheAddress, false
			}
			return cacheAddress, false
		case invalidBlockState:
			if !invalidCacheAddressFound {
				invalidCacheAddressFound = true
				selectedCacheAddress = cacheAddress
			}
		case cachedBlockState:
			if h.V.Address == address {
				return cacheAddress, true
			}
		}
	}

	return selectedCacheAddress, false
}
