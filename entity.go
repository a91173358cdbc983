package mongorepository

import (
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Keyed is the capability a repository requires of its entity type:
// access to the identifier under which the entity is stored. SetID must
// be declared on a pointer receiver, otherwise ids assigned by the
// store are written to a copy and lost.
type Keyed[K comparable] interface {
	GetID() K
	SetID(key K)
}

// CollectionNamer lets an entity type name its own collection. Without
// it the collection name is derived from the type name.
type CollectionNamer interface {
	CollectionName() string
}

// Entity is an embeddable base for ObjectID-keyed documents exposed
// through their hex string form. It pairs with HexCodec, the codec the
// string-keyed constructor installs. Embed it inline:
//
//	type Customer struct {
//		mongorepository.Entity `bson:",inline"`
//		Name                   string `bson:"name"`
//	}
type Entity struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
}

// GetID returns the hex form of the id, or "" while unassigned.
func (e *Entity) GetID() string {
	if e.ID.IsZero() {
		return ""
	}
	return e.ID.Hex()
}

// SetID accepts the hex form produced by GetID. Values that do not
// parse as an ObjectID leave the id unchanged.
func (e *Entity) SetID(key string) {
	if oid, err := primitive.ObjectIDFromHex(key); err == nil {
		e.ID = oid
	}
}

// ObjectID returns the native form of the id.
func (e *Entity) ObjectID() primitive.ObjectID {
	return e.ID
}

// collectionNameFor resolves the collection name for T: the entity's
// own CollectionName when it has one, else the lower-cased type name.
func collectionNameFor[T any]() string {
	v := new(T)
	if n, ok := any(v).(CollectionNamer); ok {
		return n.CollectionName()
	}
	t := reflect.TypeOf(v).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
