package blocks

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/dynhash/record"
)

// Block is the fixed-capacity array of records stored in the file.
type Block[R record.Record[R]] struct {
	capacity int
	records  []R
	role     Role
	chain    Chain
	free     FreeLinks
}

// New returns new empty live block.
func New[R record.Record[R]](capacity int) *Block[R] {
	return &Block[R]{
		capacity: capacity,
		records:  make([]R, 0, capacity),
		chain:    emptyChain(),
		free:     emptyFreeLinks(),
	}
}

// Capacity returns the blocking factor.
func (b *Block[R]) Capacity() int {
	return b.capacity
}

// ValidCount returns the number of records stored in the block.
func (b *Block[R]) ValidCount() int {
	return len(b.records)
}

// Records returns copy of the stored records.
func (b *Block[R]) Records() []R {
	return append([]R(nil), b.records...)
}

// HasFreeSpace tells if another record fits into the block.
func (b *Block[R]) HasFreeSpace() bool {
	return len(b.records) < b.capacity
}

// IsEmpty tells if there are no records in the block.
func (b *Block[R]) IsEmpty() bool {
	return len(b.records) == 0
}

// Add adds record to the block.
func (b *Block[R]) Add(r R) error {
	if !b.HasFreeSpace() {
		return errors.WithStack(ErrBlockFull)
	}
	b.records = append(b.records, r)
	return nil
}

// Get returns the record having the same key as probe.
func (b *Block[R]) Get(probe R) (R, bool) {
	if i := b.find(probe); i >= 0 {
		return b.records[i], true
	}
	var r R
	return r, false
}

// Replace overwrites the record having the same key.
func (b *Block[R]) Replace(r R) error {
	i := b.find(r)
	if i < 0 {
		return errors.WithStack(ErrNotFound)
	}
	b.records[i] = r
	return nil
}

// Remove removes the record having the same key as probe. The last record takes its slot.
func (b *Block[R]) Remove(probe R) error {
	i := b.find(probe)
	if i < 0 {
		return errors.WithStack(ErrNotFound)
	}
	last := len(b.records) - 1
	b.records[i] = b.records[last]
	var zero R
	b.records[last] = zero
	b.records = b.records[:last]
	return nil
}

// Clear removes all the records, links are kept.
func (b *Block[R]) Clear() {
	var zero R
	for i := range b.records {
		b.records[i] = zero
	}
	b.records = b.records[:0]
}

// Role returns the role of the block.
func (b *Block[R]) Role() Role {
	return b.role
}

// Chain returns overflow chain links.
func (b *Block[R]) Chain() Chain {
	return b.chain
}

// SetChain sets overflow chain links and turns block into the live one.
func (b *Block[R]) SetChain(c Chain) {
	b.role = LiveRole
	b.chain = c
	b.free = emptyFreeLinks()
}

// FreeLinks returns free list links.
func (b *Block[R]) FreeLinks() FreeLinks {
	return b.free
}

// SetFreeLinks sets free list links and turns block into the free one.
func (b *Block[R]) SetFreeLinks(f FreeLinks) {
	b.role = FreeRole
	b.free = f
	b.chain = emptyChain()
}

// Size returns the byte size of the encoded block.
func (b *Block[R]) Size() int64 {
	return Size(b.capacity, record.SizeOf[R]())
}

// Encode encodes block into p, unused slots are filled with tombstones.
func (b *Block[R]) Encode(p []byte) error {
	if int64(len(p)) != b.Size() {
		return errors.Errorf("invalid size of output buffer: %d, expected: %d", len(p), b.Size())
	}

	binary.BigEndian.PutUint32(p, uint32(len(b.records)))
	putAddress(p[4:], b.chain.Head)
	putAddress(p[12:], b.free.Prev)
	putAddress(p[20:], b.free.Next)
	putAddress(p[28:], b.chain.Next)
	putAddress(p[36:], b.chain.Prev)

	var zero R
	tombstone := zero.Tombstone()
	recordSize := zero.Size()
	for i, offset := 0, HeaderSize; i < b.capacity; i, offset = i+1, offset+recordSize {
		if i < len(b.records) {
			b.records[i].Encode(p[offset : offset+recordSize])
			continue
		}
		tombstone.Encode(p[offset : offset+recordSize])
	}
	return nil
}

// Decode decodes block from p.
func (b *Block[R]) Decode(p []byte) error {
	if int64(len(p)) != b.Size() {
		return errors.Wrapf(ErrCorruptBlock, "invalid size of input buffer: %d, expected: %d", len(p), b.Size())
	}

	validCount := int32(binary.BigEndian.Uint32(p))
	if validCount < 0 || int(validCount) > b.capacity {
		return errors.Wrapf(ErrCorruptBlock, "invalid number of records: %d", validCount)
	}

	chain := Chain{
		Head: getAddress(p[4:]),
		Next: getAddress(p[28:]),
		Prev: getAddress(p[36:]),
	}
	free := FreeLinks{
		Prev: getAddress(p[12:]),
		Next: getAddress(p[20:]),
	}
	for _, a := range []Address{chain.Head, chain.Next, chain.Prev, free.Prev, free.Next} {
		if a < InvalidAddress {
			return errors.Wrapf(ErrCorruptBlock, "invalid address: %d", a)
		}
	}

	isLive := chain.Head.Valid() || chain.Next.Valid() || chain.Prev.Valid()
	isFree := free.Prev.Valid() || free.Next.Valid()
	if isLive && isFree {
		return errors.Wrap(ErrCorruptBlock, "block is both live and free")
	}
	if isFree && validCount != 0 {
		return errors.Wrapf(ErrCorruptBlock, "free block contains %d records", validCount)
	}

	var zero R
	recordSize := zero.Size()
	records := make([]R, 0, b.capacity)
	for i, offset := 0, HeaderSize; i < int(validCount); i, offset = i+1, offset+recordSize {
		r, err := zero.Decode(p[offset : offset+recordSize])
		if err != nil {
			return errors.WithMessagef(err, "decoding slot %d", i)
		}
		records = append(records, r)
	}

	b.records = records
	b.chain = chain
	b.free = free
	b.role = LiveRole
	if isFree {
		b.role = FreeRole
	}
	return nil
}

func (b *Block[R]) find(probe R) int {
	key := probe.Key()
	for i := range b.records {
		if b.records[i].Key() == key {
			return i
		}
	}
	return -1
}

func putAddress(p []byte, a Address) {
	binary.BigEndian.PutUint64(p, uint64(a))
}

func getAddress(p []byte) Address {
	return Address(int64(binary.BigEndian.Uint64(p)))
}
