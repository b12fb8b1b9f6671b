package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/dynhash/record"
)

var shape = Rectangle{
	Min: Coordinates{Latitude: -48123, Longitude: 17001},
	Max: Coordinates{Latitude: -48100, Longitude: 17050},
}

func TestParcelRoundTrip(t *testing.T) {
	requireT := require.New(t)

	for _, id := range []int32{math.MinInt32 + 1, -1, 0, 1, 51345256, math.MaxInt32} {
		p, err := NewParcel(id, "field", shape, 1, 2, 3)
		requireT.NoError(err)

		b := make([]byte, p.Size())
		p.Encode(b)

		p2, err := Parcel{}.Decode(b)
		requireT.NoError(err)
		requireT.Equal(p, p2)
		requireT.True(record.Equal(p, p2))
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	requireT := require.New(t)

	for _, id := range []int32{math.MinInt32 + 1, -1, 0, 1, 945671343, math.MaxInt32} {
		p, err := NewProperty(id, 77, "house", shape, 4, 5, 6, 7, 8, 9)
		requireT.NoError(err)

		b := make([]byte, p.Size())
		p.Encode(b)

		p2, err := Property{}.Decode(b)
		requireT.NoError(err)
		requireT.Equal(p, p2)
	}
}

func TestTombstoneRoundTrip(t *testing.T) {
	requireT := require.New(t)

	p := Parcel{}.Tombstone()
	b := make([]byte, p.Size())
	p.Encode(b)

	p2, err := Parcel{}.Decode(b)
	requireT.NoError(err)
	requireT.Equal(TombstoneID, p2.ID)
	requireT.Empty(p2.Description)
	requireT.Nil(p2.Properties)
}

func TestSizeIsConstant(t *testing.T) {
	requireT := require.New(t)

	p1, err := NewParcel(1, "", Rectangle{})
	requireT.NoError(err)
	p2, err := NewParcel(2, "a long description", shape, 1, 2, 3, 4, 5)
	requireT.NoError(err)

	requireT.Equal(p1.Size(), p2.Size())
	requireT.Equal(record.SizeOf[Parcel](), p1.Size())
	requireT.Equal(record.SizeOf[Property](), Property{}.Size())
}

func TestDescriptionIsTruncated(t *testing.T) {
	requireT := require.New(t)

	p, err := NewParcel(1, "abcdefghijklmnop", shape)
	requireT.NoError(err)
	requireT.Equal("abcdefghijk", p.Description)

	p = Parcel{ID: 2, Description: "abcdefghijklmnop"}
	b := make([]byte, p.Size())
	p.Encode(b)

	p2, err := Parcel{}.Decode(b)
	requireT.NoError(err)
	requireT.Equal("abcdefghijk", p2.Description)
}

func TestTooManyRelated(t *testing.T) {
	requireT := require.New(t)

	_, err := NewParcel(1, "", shape, 1, 2, 3, 4, 5, 6)
	requireT.ErrorIs(err, ErrTooManyRelated)

	_, err = NewProperty(1, 1, "", shape, 1, 2, 3, 4, 5, 6, 7)
	requireT.ErrorIs(err, ErrTooManyRelated)
}

func TestDecodeCorrupt(t *testing.T) {
	requireT := require.New(t)

	p, err := NewParcel(1, "field", shape)
	requireT.NoError(err)
	b := make([]byte, p.Size())
	p.Encode(b)

	_, err = Property{}.Decode(b)
	requireT.ErrorIs(err, record.ErrCorruptRecord)

	_, err = Parcel{}.Decode(b[:len(b)-1])
	requireT.ErrorIs(err, record.ErrCorruptRecord)

	// Zeroed bytes don't carry valid kind.
	_, err = Parcel{}.Decode(make([]byte, p.Size()))
	requireT.ErrorIs(err, record.ErrCorruptRecord)
}
