package blockstore

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/dynhash/blocks"
	"github.com/outofforest/dynhash/cache"
	"github.com/outofforest/dynhash/persistence"
	"github.com/outofforest/dynhash/record"
)

var noChain = blocks.Chain{
	Head: blocks.InvalidAddress,
	Next: blocks.InvalidAddress,
	Prev: blocks.InvalidAddress,
}

// Config is the configuration of block store.
type Config struct {
	// Name identifies the store in logs.
	Name string
	// BlockingFactor is the number of records in the block.
	BlockingFactor int
	// CacheBlocks is the number of blocks kept in memory.
	CacheBlocks int64
	// Logger is the logger to use.
	Logger *zap.Logger
}

// Store splits file into array of blocks and manages their allocation.
type Store[R record.Record[R]] struct {
	store          *persistence.Store
	cache          *cache.Cache
	log            *zap.Logger
	blockingFactor int
	blockSize      int64
	freeHead       blocks.Address
	buf            []byte
}

// New returns new block store. Free list is empty, call Rebuild if file contains blocks.
func New[R record.Record[R]](store *persistence.Store, config Config) *Store[R] {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	blockSize := blocks.Size(config.BlockingFactor, record.SizeOf[R]())
	return &Store[R]{
		store:          store,
		cache:          cache.New(blockSize, config.CacheBlocks),
		log:            log.With(zap.String("file", config.Name)),
		blockingFactor: config.BlockingFactor,
		blockSize:      blockSize,
		freeHead:       blocks.InvalidAddress,
		buf:            make([]byte, blockSize),
	}
}

// BlockSize returns the byte size of the block.
func (s *Store[R]) BlockSize() int64 {
	return s.blockSize
}

// BlockingFactor returns the number of records in the block.
func (s *Store[R]) BlockingFactor() int {
	return s.blockingFactor
}

// Size returns the byte size of the file.
func (s *Store[R]) Size() int64 {
	return s.store.Size()
}

// FreeHead returns the head of the free list.
func (s *Store[R]) FreeHead() blocks.Address {
	return s.freeHead
}

// Allocate returns the address of the block which may be used. Block is taken from the free list or the file is
// extended. The content of returned block is undefined until Create or Write is called.
func (s *Store[R]) Allocate() (blocks.Address, error) {
	if !s.freeHead.Valid() {
		address := blocks.Address(s.store.Size())
		if err := s.store.Truncate(int64(address) + s.blockSize); err != nil {
			return blocks.InvalidAddress, err
		}
		s.log.Debug("File extended", zap.Int64("address", int64(address)))
		return address, nil
	}

	address := s.freeHead
	b, err := s.Read(address)
	if err != nil {
		return blocks.InvalidAddress, err
	}
	if !isFree(b) {
		return blocks.InvalidAddress, errors.Errorf("block %d is not free", address)
	}

	next := b.FreeLinks().Next
	if next.Valid() {
		nextBlock, err := s.Read(next)
		if err != nil {
			return blocks.InvalidAddress, err
		}
		links := nextBlock.FreeLinks()
		links.Prev = blocks.InvalidAddress
		nextBlock.SetFreeLinks(links)
		if err := s.Write(next, nextBlock); err != nil {
			return blocks.InvalidAddress, err
		}
	}
	s.freeHead = next

	s.log.Debug("Block taken from free list", zap.Int64("address", int64(address)))
	return address, nil
}

// Create writes empty block at address.
func (s *Store[R]) Create(address blocks.Address) (*blocks.Block[R], error) {
	b := blocks.New[R](s.blockingFactor)
	if err := s.Write(address, b); err != nil {
		return nil, err
	}
	return b, nil
}

// New allocates and creates new empty block.
func (s *Store[R]) New() (blocks.Address, *blocks.Block[R], error) {
	address, err := s.Allocate()
	if err != nil {
		return blocks.InvalidAddress, nil, err
	}
	b, err := s.Create(address)
	if err != nil {
		return blocks.InvalidAddress, nil, err
	}
	return address, b, nil
}

// Read reads block stored at address.
func (s *Store[R]) Read(address blocks.Address) (*blocks.Block[R], error) {
	if err := s.validateAddress(address); err != nil {
		return nil, err
	}

	p, cached := s.cache.Get(int64(address))
	if !cached {
		if err := s.store.Read(int64(address), s.buf); err != nil {
			return nil, err
		}
		p = s.buf
	}

	b := blocks.New[R](s.blockingFactor)
	if err := b.Decode(p); err != nil {
		return nil, errors.WithMessagef(err, "reading block %d", address)
	}
	if !cached {
		s.cache.Put(int64(address), p)
	}
	return b, nil
}

// Write writes block at address.
func (s *Store[R]) Write(address blocks.Address, b *blocks.Block[R]) error {
	if err := s.validateAddress(address); err != nil {
		return err
	}
	if b.Capacity() != s.blockingFactor {
		return errors.Errorf("block capacity %d does not match blocking factor %d", b.Capacity(), s.blockingFactor)
	}

	if err := b.Encode(s.buf); err != nil {
		return err
	}
	if err := s.store.Write(int64(address), s.buf); err != nil {
		s.cache.Invalidate(int64(address))
		return err
	}
	s.cache.Put(int64(address), s.buf)
	return nil
}

// IsLast tells if block is the last one in the file.
func (s *Store[R]) IsLast(address blocks.Address) bool {
	return int64(address)+s.blockSize == s.store.Size()
}

// Free returns block to the file. The last block is truncated, any other is put on the free list.
func (s *Store[R]) Free(address blocks.Address) error {
	if err := s.validateAddress(address); err != nil {
		return err
	}

	if s.IsLast(address) {
		s.cache.Invalidate(int64(address))
		if err := s.store.Truncate(int64(address)); err != nil {
			return err
		}
		s.log.Debug("File truncated", zap.Int64("address", int64(address)))
		return nil
	}

	if s.freeHead.Valid() {
		head, err := s.Read(s.freeHead)
		if err != nil {
			return err
		}
		links := head.FreeLinks()
		links.Prev = address
		head.SetFreeLinks(links)
		if err := s.Write(s.freeHead, head); err != nil {
			return err
		}
	}

	b := blocks.New[R](s.blockingFactor)
	b.SetFreeLinks(blocks.FreeLinks{Prev: blocks.InvalidAddress, Next: s.freeHead})
	if err := s.Write(address, b); err != nil {
		return err
	}
	s.freeHead = address

	s.log.Debug("Block put on free list", zap.Int64("address", int64(address)))
	return nil
}

// FreeList returns addresses of blocks on the free list, starting from the head.
func (s *Store[R]) FreeList() ([]blocks.Address, error) {
	var list []blocks.Address
	prev := blocks.InvalidAddress
	for address := s.freeHead; address.Valid(); {
		b, err := s.Read(address)
		if err != nil {
			return nil, err
		}
		links := b.FreeLinks()
		if !isFree(b) {
			return nil, errors.Errorf("block %d is on free list but it is not free", address)
		}
		if links.Prev != prev {
			return nil, errors.Errorf("block %d points to %d as previous free block, expected: %d",
				address, links.Prev, prev)
		}
		if int64(len(list))*s.blockSize > s.store.Size() {
			return nil, errors.New("free list contains a cycle")
		}
		list = append(list, address)
		prev = address
		address = links.Next
	}
	return list, nil
}

// Walk calls fn for every block in the file.
func (s *Store[R]) Walk(fn func(address blocks.Address, b *blocks.Block[R]) error) error {
	for address := blocks.Address(0); int64(address)+s.blockSize <= s.store.Size(); address += blocks.Address(s.blockSize) {
		b, err := s.Read(address)
		if err != nil {
			return err
		}
		if err := fn(address, b); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild rebuilds the free list from the set of blocks in use. Unused blocks at the end of the file are truncated.
func (s *Store[R]) Rebuild(used map[blocks.Address]struct{}) error {
	if s.store.Size()%s.blockSize != 0 {
		return errors.Errorf("file size %d is not a multiplication of block size %d", s.store.Size(), s.blockSize)
	}

	var unused []blocks.Address
	for address := blocks.Address(0); int64(address) < s.store.Size(); address += blocks.Address(s.blockSize) {
		if _, exists := used[address]; !exists {
			unused = append(unused, address)
		}
	}
	for address := range used {
		if err := s.validateAddress(address); err != nil {
			return err
		}
	}

	s.cache.Reset()
	s.freeHead = blocks.InvalidAddress

	// Free blocks in descending order, so trailing ones are truncated and the lowest address ends up at the head.
	sort.Slice(unused, func(i, j int) bool { return unused[i] > unused[j] })
	for _, address := range unused {
		if err := s.Free(address); err != nil {
			return err
		}
	}

	s.log.Debug("Free list rebuilt", zap.Int("unused", len(unused)), zap.Int64("size", s.store.Size()))
	return nil
}

// Reset removes all the blocks.
func (s *Store[R]) Reset() error {
	s.cache.Reset()
	s.freeHead = blocks.InvalidAddress
	return s.store.Truncate(0)
}

// Close closes the file.
func (s *Store[R]) Close() error {
	s.cache.Reset()
	return s.store.Close()
}

func (s *Store[R]) validateAddress(address blocks.Address) error {
	if address < 0 || int64(address)%s.blockSize != 0 || int64(address)+s.blockSize > s.store.Size() {
		return errors.Errorf("block %d does not exist", address)
	}
	return nil
}

// isFree tells if block may sit on the free list. The only free block has no links set, so it decodes as the live
// one.
func isFree[R record.Record[R]](b *blocks.Block[R]) bool {
	if b.Role() == blocks.FreeRole {
		return true
	}
	return b.IsEmpty() && b.Chain() == noChain
}
