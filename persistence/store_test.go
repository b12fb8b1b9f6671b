package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/dynhash/pkg/memdev"
)

func TestReadWrite(t *testing.T) {
	requireT := require.New(t)

	store := OpenStore(memdev.New(0))

	requireT.NoError(store.Write(0, []byte{0x01, 0x02, 0x03}))
	requireT.NoError(store.Write(3, []byte{0x04}))
	requireT.EqualValues(4, store.Size())

	buf := make([]byte, 2)
	requireT.NoError(store.Read(1, buf))
	requireT.Equal([]byte{0x02, 0x03}, buf)
}

func TestInvalidAccess(t *testing.T) {
	requireT := require.New(t)

	store := OpenStore(memdev.New(4))

	requireT.Error(store.Read(3, make([]byte, 2)))
	requireT.Error(store.Read(-1, make([]byte, 1)))
	requireT.Error(store.Read(0, nil))
	requireT.Error(store.Write(5, []byte{0x01}))
	requireT.Error(store.Write(0, nil))
}

func TestTruncate(t *testing.T) {
	requireT := require.New(t)

	store := OpenStore(memdev.New(0))
	requireT.NoError(store.Truncate(16))
	requireT.EqualValues(16, store.Size())

	buf := make([]byte, 16)
	requireT.NoError(store.Read(0, buf))
	requireT.Equal(make([]byte, 16), buf)

	requireT.NoError(store.Truncate(8))
	requireT.EqualValues(8, store.Size())
	requireT.Error(store.Read(8, make([]byte, 1)))

	requireT.NoError(store.Close())
}
