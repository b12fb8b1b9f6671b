package record

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// KeyBits is the number of bits available in the routing key.
const KeyBits = 64

// ErrCorruptRecord is returned when record bytes can't be decoded.
var ErrCorruptRecord = errors.New("corrupt record")

// RoutingKey is the bit sequence consumed while descending the directory trie.
type RoutingKey uint64

// Bit returns the i-th bit of the key.
func (k RoutingKey) Bit(i int) bool {
	return (k>>uint(i))&1 == 1
}

// KeyOf derives routing key from the identity key.
func KeyOf(id int32) RoutingKey {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(id))
	return RoutingKey(xxhash.Sum64(b[:]))
}

// Record is the contract implemented by every type stored in the hash file.
// All the methods must work on the zero value of R, so the size and the tombstone are known before
// anything is read from the file.
type Record[R any] interface {
	// Key returns the identity key. Records are equal if their keys are equal.
	Key() int32

	// RoutingKey returns the key used to route record through the directory.
	RoutingKey() RoutingKey

	// Size returns the number of bytes produced by Encode. It is constant for the type.
	Size() int

	// Encode writes record into b, len(b) is equal to Size().
	Encode(b []byte)

	// Decode reads record from b.
	Decode(b []byte) (R, error)

	// Tombstone returns the value used to fill unused block slots.
	Tombstone() R
}

// Equal compares records by identity key.
func Equal[R Record[R]](a, b R) bool {
	return a.Key() == b.Key()
}

// SizeOf returns the encoded size of R.
func SizeOf[R Record[R]]() int {
	var r R
	return r.Size()
}
