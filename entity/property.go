package entity

import (
	"unsafe"

	"github.com/outofforest/photon"
	"github.com/pkg/errors"

	"github.com/outofforest/dynhash/record"
)

const (
	// MaxPropertyDescription is the maximum length of property description.
	MaxPropertyDescription = 15

	// MaxPropertyParcels is the maximum number of parcels a property stands on.
	MaxPropertyParcels = 6
)

var _ record.Record[Property] = Property{}

// Property is a building or other real estate registered on parcels.
type Property struct {
	ID                 int32
	RegistrationNumber int32
	Description        string
	Shape              Rectangle
	Parcels            []int32
}

// NewProperty returns new property.
func NewProperty(
	id, registrationNumber int32,
	description string,
	shape Rectangle,
	parcels ...int32,
) (Property, error) {
	if len(parcels) > MaxPropertyParcels {
		return Property{}, errors.Wrapf(ErrTooManyRelated, "property may stand on %d parcels, %d provided",
			MaxPropertyParcels, len(parcels))
	}
	if len(description) > MaxPropertyDescription {
		description = description[:MaxPropertyDescription]
	}
	return Property{
		ID:                 id,
		RegistrationNumber: registrationNumber,
		Description:        description,
		Shape:              shape,
		Parcels:            parcels,
	}, nil
}

type propertyWire struct {
	Kind               Kind
	ID                 int32
	RegistrationNumber int32
	DescriptionLength  int32
	NParcels           int32
	Shape              Rectangle
	Parcels            [MaxPropertyParcels]int32
	Description        [MaxPropertyDescription]byte
}

// Key returns the identity key.
func (p Property) Key() int32 {
	return p.ID
}

// RoutingKey returns the routing key.
func (p Property) RoutingKey() record.RoutingKey {
	return record.KeyOf(p.ID)
}

// Size returns the encoded size of property.
func (p Property) Size() int {
	return int(unsafe.Sizeof(propertyWire{}))
}

// Encode encodes property. Description and parcel list are cut to their limits.
func (p Property) Encode(b []byte) {
	w := photon.NewFromValue(&propertyWire{
		Kind:               PropertyKind,
		ID:                 p.ID,
		RegistrationNumber: p.RegistrationNumber,
		Shape:              p.Shape,
	})
	w.V.DescriptionLength = putDescription(w.V.Description[:], p.Description)
	w.V.NParcels = putRelated(w.V.Parcels[:], p.Parcels)
	copy(b, w.B)
}

// Decode decodes property.
func (p Property) Decode(b []byte) (Property, error) {
	if len(b) < p.Size() {
		return Property{}, errors.Wrapf(record.ErrCorruptRecord, "property requires %d bytes, %d provided",
			p.Size(), len(b))
	}

	w := photon.NewFromBytes[propertyWire](b[:p.Size()])
	if w.V.Kind != PropertyKind {
		return Property{}, errors.Wrapf(record.ErrCorruptRecord, "unexpected kind %d", w.V.Kind)
	}
	description, err := getDescription(w.V.Description[:], w.V.DescriptionLength)
	if err != nil {
		return Property{}, err
	}
	parcels, err := getRelated(w.V.Parcels[:], w.V.NParcels)
	if err != nil {
		return Property{}, err
	}

	return Property{
		ID:                 w.V.ID,
		RegistrationNumber: w.V.RegistrationNumber,
		Description:        description,
		Shape:              w.V.Shape,
		Parcels:            parcels,
	}, nil
}

// Tombstone returns the property used to fill unused slots.
func (p Property) Tombstone() Property {
	return Property{ID: TombstoneID, RegistrationNumber: TombstoneID}
}
