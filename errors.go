package mongorepository

import "errors"

var (
	// ErrNotSupportedKey reports a key that cannot be resolved to a
	// store-native id value, e.g. a malformed ObjectID hex string.
	ErrNotSupportedKey = errors.New("mongorepository: key cannot be resolved to a store id")

	// ErrNotKeyed reports an entity type whose pointer form does not
	// implement Keyed for the repository's key type.
	ErrNotKeyed = errors.New("mongorepository: entity type does not implement Keyed")

	// ErrNilFilter reports a nil filter passed to DeleteWhere. Clearing
	// the whole collection must go through DeleteAll.
	ErrNilFilter = errors.New("mongorepository: nil filter")
)
