package blockstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/dynhash/blocks"
	"github.com/outofforest/dynhash/entity"
	"github.com/outofforest/dynhash/persistence"
	"github.com/outofforest/dynhash/pkg/memdev"
)

const blockingFactor = 3

func newStore(cacheBlocks int64) *Store[entity.Parcel] {
	return New[entity.Parcel](persistence.OpenStore(memdev.New(0)), Config{
		Name:           "test",
		BlockingFactor: blockingFactor,
		CacheBlocks:    cacheBlocks,
	})
}

func allocate(requireT *require.Assertions, s *Store[entity.Parcel], n int) []blocks.Address {
	addresses := make([]blocks.Address, 0, n)
	for i := 0; i < n; i++ {
		address, _, err := s.New()
		requireT.NoError(err)
		addresses = append(addresses, address)
	}
	return addresses
}

func TestAllocateExtendsFile(t *testing.T) {
	requireT := require.New(t)

	s := newStore(8)
	addresses := allocate(requireT, s, 3)

	requireT.Equal([]blocks.Address{0, blocks.Address(s.BlockSize()), blocks.Address(2 * s.BlockSize())}, addresses)
	requireT.Equal(3*s.BlockSize(), s.Size())
	requireT.True(s.IsLast(addresses[2]))
	requireT.False(s.IsLast(addresses[1]))
}

func TestReadWrite(t *testing.T) {
	for _, cacheBlocks := range []int64{0, 8} {
		requireT := require.New(t)

		s := newStore(cacheBlocks)
		address, b, err := s.New()
		requireT.NoError(err)

		requireT.NoError(b.Add(entity.Parcel{ID: 10}))
		b.SetChain(blocks.Chain{Head: 128, Next: blocks.InvalidAddress, Prev: blocks.InvalidAddress})
		requireT.NoError(s.Write(address, b))

		b2, err := s.Read(address)
		requireT.NoError(err)
		requireT.Equal(b.Records(), b2.Records())
		requireT.EqualValues(128, b2.Chain().Head)

		_, err = s.Read(address + 1)
		requireT.Error(err)
		_, err = s.Read(blocks.Address(s.BlockSize()))
		requireT.Error(err)
	}
}

func TestFreeLastTruncates(t *testing.T) {
	requireT := require.New(t)

	s := newStore(8)
	addresses := allocate(requireT, s, 2)

	requireT.NoError(s.Free(addresses[1]))
	requireT.Equal(s.BlockSize(), s.Size())
	requireT.False(s.FreeHead().Valid())

	// Truncated block is not readable anymore, even if it was cached.
	_, err := s.Read(addresses[1])
	requireT.Error(err)
}

func TestFreeList(t *testing.T) {
	requireT := require.New(t)

	s := newStore(8)
	addresses := allocate(requireT, s, 5)

	requireT.NoError(s.Free(addresses[1]))
	requireT.NoError(s.Free(addresses[3]))
	requireT.NoError(s.Free(addresses[2]))

	list, err := s.FreeList()
	requireT.NoError(err)
	requireT.Equal([]blocks.Address{addresses[2], addresses[3], addresses[1]}, list)
	requireT.Equal(5*s.BlockSize(), s.Size())

	b, err := s.Read(addresses[3])
	requireT.NoError(err)
	requireT.Equal(blocks.FreeRole, b.Role())
	requireT.Equal(blocks.FreeLinks{Prev: addresses[2], Next: addresses[1]}, b.FreeLinks())

	// Allocation pops the head and doesn't extend the file.
	address, nb, err := s.New()
	requireT.NoError(err)
	requireT.Equal(addresses[2], address)
	requireT.Equal(blocks.LiveRole, nb.Role())
	requireT.Equal(5*s.BlockSize(), s.Size())

	list, err = s.FreeList()
	requireT.NoError(err)
	requireT.Equal([]blocks.Address{addresses[3], addresses[1]}, list)

	b, err = s.Read(addresses[3])
	requireT.NoError(err)
	requireT.Equal(blocks.FreeLinks{Prev: blocks.InvalidAddress, Next: addresses[1]}, b.FreeLinks())

	allocate(requireT, s, 2)
	list, err = s.FreeList()
	requireT.NoError(err)
	requireT.Empty(list)
	requireT.Equal(5*s.BlockSize(), s.Size())

	allocate(requireT, s, 1)
	requireT.Equal(6*s.BlockSize(), s.Size())
}

func TestRebuild(t *testing.T) {
	requireT := require.New(t)

	s := newStore(8)
	addresses := allocate(requireT, s, 6)

	requireT.NoError(s.Rebuild(map[blocks.Address]struct{}{
		addresses[0]: {},
		addresses[2]: {},
		addresses[3]: {},
	}))

	// Trailing unused blocks are truncated.
	requireT.Equal(4*s.BlockSize(), s.Size())

	list, err := s.FreeList()
	requireT.NoError(err)
	requireT.Equal([]blocks.Address{addresses[1]}, list)

	requireT.Error(s.Rebuild(map[blocks.Address]struct{}{
		blocks.Address(10 * s.BlockSize()): {},
	}))
}

func TestWalk(t *testing.T) {
	requireT := require.New(t)

	s := newStore(0)
	addresses := allocate(requireT, s, 3)
	requireT.NoError(s.Free(addresses[0]))
	requireT.NoError(s.Free(addresses[1]))

	var walked []blocks.Address
	var roles []blocks.Role
	requireT.NoError(s.Walk(func(address blocks.Address, b *blocks.Block[entity.Parcel]) error {
		walked = append(walked, address)
		roles = append(roles, b.Role())
		return nil
	}))
	requireT.Equal(addresses, walked)
	requireT.Equal([]blocks.Role{blocks.FreeRole, blocks.FreeRole, blocks.LiveRole}, roles)
}

func TestReset(t *testing.T) {
	requireT := require.New(t)

	s := newStore(8)
	addresses := allocate(requireT, s, 3)
	requireT.NoError(s.Free(addresses[0]))

	requireT.NoError(s.Reset())
	requireT.EqualValues(0, s.Size())
	requireT.False(s.FreeHead().Valid())
}
