package entity

import (
	"unsafe"

	"github.com/outofforest/photon"
	"github.com/pkg/errors"

	"github.com/outofforest/dynhash/record"
)

const (
	// MaxParcelDescription is the maximum length of parcel description.
	MaxParcelDescription = 11

	// MaxParcelProperties is the maximum number of properties standing on a parcel.
	MaxParcelProperties = 5
)

var _ record.Record[Parcel] = Parcel{}

// Parcel is a piece of land.
type Parcel struct {
	ID          int32
	Description string
	Shape       Rectangle
	Properties  []int32
}

// NewParcel returns new parcel.
func NewParcel(id int32, description string, shape Rectangle, properties ...int32) (Parcel, error) {
	if len(properties) > MaxParcelProperties {
		return Parcel{}, errors.Wrapf(ErrTooManyRelated, "parcel may hold %d properties, %d provided",
			MaxParcelProperties, len(properties))
	}
	if len(description) > MaxParcelDescription {
		description = description[:MaxParcelDescription]
	}
	return Parcel{
		ID:          id,
		Description: description,
		Shape:       shape,
		Properties:  properties,
	}, nil
}

type parcelWire struct {
	Kind              Kind
	ID                int32
	DescriptionLength int32
	NProperties       int32
	Shape             Rectangle
	Properties        [MaxParcelProperties]int32
	Description       [MaxParcelDescription]byte
}

// Key returns the identity key.
func (p Parcel) Key() int32 {
	return p.ID
}

// RoutingKey returns the routing key.
func (p Parcel) RoutingKey() record.RoutingKey {
	return record.KeyOf(p.ID)
}

// Size returns the encoded size of parcel.
func (p Parcel) Size() int {
	return int(unsafe.Sizeof(parcelWire{}))
}

// Encode encodes parcel. Description and property list are cut to their limits.
func (p Parcel) Encode(b []byte) {
	w := photon.NewFromValue(&parcelWire{
		Kind:  ParcelKind,
		ID:    p.ID,
		Shape: p.Shape,
	})
	w.V.DescriptionLength = putDescription(w.V.Description[:], p.Description)
	w.V.NProperties = putRelated(w.V.Properties[:], p.Properties)
	copy(b, w.B)
}

// Decode decodes parcel.
func (p Parcel) Decode(b []byte) (Parcel, error) {
	if len(b) < p.Size() {
		return Parcel{}, errors.Wrapf(record.ErrCorruptRecord, "parcel requires %d bytes, %d provided", p.Size(), len(b))
	}

	w := photon.NewFromBytes[parcelWire](b[:p.Size()])
	if w.V.Kind != ParcelKind {
		return Parcel{}, errors.Wrapf(record.ErrCorruptRecord, "unexpected kind %d", w.V.Kind)
	}
	description, err := getDescription(w.V.Description[:], w.V.DescriptionLength)
	if err != nil {
		return Parcel{}, err
	}
	properties, err := getRelated(w.V.Properties[:], w.V.NProperties)
	if err != nil {
		return Parcel{}, err
	}

	return Parcel{
		ID:          w.V.ID,
		Description: description,
		Shape:       w.V.Shape,
		Properties:  properties,
	}, nil
}

// Tombstone returns the parcel used to fill unused slots.
func (p Parcel) Tombstone() Parcel {
	return Parcel{ID: TombstoneID}
}
