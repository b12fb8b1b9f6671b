package entity

import (
	"math"

	"github.com/pkg/errors"

	"github.com/outofforest/dynhash/record"
)

// Kind tags the encoded entity, so bytes of one type are never decoded as another.
type Kind int32

// Entity kinds.
const (
	ParcelKind Kind = iota + 1
	PropertyKind
)

// TombstoneID is the identity key of tombstone entities.
const TombstoneID int32 = math.MinInt32

// ErrTooManyRelated is returned if related list exceeds its limit.
var ErrTooManyRelated = errors.New("too many related entities")

// Coordinates is a GPS position, south and west are negative.
type Coordinates struct {
	Latitude  int32
	Longitude int32
}

// Rectangle is the area covered by an entity.
type Rectangle struct {
	Min Coordinates
	Max Coordinates
}

func putDescription(dst []byte, description string) int32 {
	n := copy(dst, description)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return int32(n)
}

func getDescription(src []byte, length int32) (string, error) {
	if length < 0 || int(length) > len(src) {
		return "", errors.Wrapf(record.ErrCorruptRecord, "invalid description length %d", length)
	}
	return string(src[:length]), nil
}

func putRelated(dst []int32, related []int32) int32 {
	n := copy(dst, related)
	for i := n; i < len(dst); i++ {
		dst[i] = TombstoneID
	}
	return int32(n)
}

func getRelated(src []int32, count int32) ([]int32, error) {
	if count < 0 || int(count) > len(src) {
		return nil, errors.Wrapf(record.ErrCorruptRecord, "invalid number of related entities %d", count)
	}
	if count == 0 {
		return nil, nil
	}
	related := make([]int32, count)
	copy(related, src)
	return related, nil
}
