package blocks

import "github.com/pkg/errors"

// HeaderSize is the size of encoded block header: valid count followed by five addresses.
const HeaderSize = 4 + 5*8

// Address is the byte offset of the block in its file.
type Address int64

// InvalidAddress means that address is not set.
const InvalidAddress Address = -1

// Valid tells if address is set.
func (a Address) Valid() bool {
	return a != InvalidAddress
}

// Role is the role in which block is used.
type Role byte

// Block roles.
const (
	// LiveRole is used by blocks reachable from the directory.
	LiveRole Role = iota

	// FreeRole is used by blocks sitting on the free list.
	FreeRole
)

// Chain stores overflow chain links of the live block.
type Chain struct {
	// Head is the first overflow block, used by main blocks only.
	Head Address
	// Next is the next overflow block, used by overflow blocks only.
	Next Address
	// Prev is the previous overflow block, used by overflow blocks only.
	Prev Address
}

// FreeLinks stores free list links of the free block.
type FreeLinks struct {
	Prev Address
	Next Address
}

var (
	// ErrBlockFull is returned if there is no free slot in the block.
	ErrBlockFull = errors.New("block is full")

	// ErrNotFound is returned if record does not exist in the block.
	ErrNotFound = errors.New("record not found in block")

	// ErrCorruptBlock is returned if block bytes can't be decoded.
	ErrCorruptBlock = errors.New("corrupt block")
)

// Size returns the byte size of the block.
func Size(capacity, recordSize int) int64 {
	return HeaderSize + int64(capacity)*int64(recordSize)
}

func emptyChain() Chain {
	return Chain{Head: InvalidAddress, Next: InvalidAddress, Prev: InvalidAddress}
}

func emptyFreeLinks() FreeLinks {
	return FreeLinks{Prev: InvalidAddress, Next: InvalidAddress}
}
