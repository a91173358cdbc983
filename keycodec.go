package mongorepository

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KeyCodec translates between a repository's key type K and the values
// the store sees in the _id field. The codec is chosen once, at
// construction, so the key-handling strategy is fixed per repository
// rather than re-decided on every call.
type KeyCodec[K comparable] interface {
	// FilterValue converts a key into the value used in an _id filter.
	FilterValue(key K) (any, error)

	// Parse converts the canonical string form of a key into K.
	Parse(s string) (K, error)

	// FromStored converts a store-assigned id (as returned by an
	// insert) back into K. The bool reports whether the conversion
	// applies to this codec.
	FromStored(id any) (K, bool)

	// Zero reports whether key is the unassigned value for K.
	Zero(key K) bool
}

// ObjectIDCodec keys entities by the driver's native ObjectID.
type ObjectIDCodec struct{}

func (ObjectIDCodec) FilterValue(key primitive.ObjectID) (any, error) {
	return key, nil
}

func (ObjectIDCodec) Parse(s string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q is not an object id hex string", ErrNotSupportedKey, s)
	}
	return oid, nil
}

func (ObjectIDCodec) FromStored(id any) (primitive.ObjectID, bool) {
	oid, ok := id.(primitive.ObjectID)
	return oid, ok
}

func (ObjectIDCodec) Zero(key primitive.ObjectID) bool {
	return key.IsZero()
}

// HexCodec keys entities by the 24-character hex form of the native
// ObjectID. Filtering parses the hex back into an ObjectID, so a
// malformed key fails with ErrNotSupportedKey instead of silently
// matching nothing.
type HexCodec struct{}

func (HexCodec) FilterValue(key string) (any, error) {
	oid, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an object id hex string", ErrNotSupportedKey, key)
	}
	return oid, nil
}

func (HexCodec) Parse(s string) (string, error) {
	if _, err := primitive.ObjectIDFromHex(s); err != nil {
		return "", fmt.Errorf("%w: %q is not an object id hex string", ErrNotSupportedKey, s)
	}
	return s, nil
}

func (HexCodec) FromStored(id any) (string, bool) {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex(), true
	case string:
		return v, true
	}
	return "", false
}

func (HexCodec) Zero(key string) bool {
	return key == ""
}

// StringCodec keys entities by caller-supplied raw strings. Keys are
// used as filter values verbatim; no ObjectID parsing is involved.
type StringCodec struct{}

func (StringCodec) FilterValue(key string) (any, error) {
	return key, nil
}

func (StringCodec) Parse(s string) (string, error) {
	return s, nil
}

func (StringCodec) FromStored(id any) (string, bool) {
	s, ok := id.(string)
	return s, ok
}

func (StringCodec) Zero(key string) bool {
	return key == ""
}

// RawCodec keys entities by an arbitrary comparable type used verbatim
// as the _id value (ints, custom string kinds, struct keys). There is
// no canonical string form, so Parse always fails.
type RawCodec[K comparable] struct{}

func (RawCodec[K]) FilterValue(key K) (any, error) {
	return key, nil
}

func (RawCodec[K]) Parse(s string) (K, error) {
	var zero K
	return zero, fmt.Errorf("%w: %T keys have no string form", ErrNotSupportedKey, zero)
}

func (RawCodec[K]) FromStored(id any) (K, bool) {
	key, ok := id.(K)
	return key, ok
}

func (RawCodec[K]) Zero(key K) bool {
	var zero K
	return key == zero
}
