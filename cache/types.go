package cache

import (
	"unsafe"
)

const (
	// alignment specifies the alignment requirements of the architecture
	alignment = 8

	// CacheHeaderSize is the size of the header in cached block.
	// It is rounded up to a multiplication of 8, so block data following the header are correctly aligned.
	CacheHeaderSize = (int64(unsafe.Sizeof(header{})-1)/alignment + 1) * alignment
)

type blockState byte

const (
	freeBlockState blockState = iota
	cachedBlockState
	invalidBlockState
)

type header struct {
	Address int64
	State   blockState
}
