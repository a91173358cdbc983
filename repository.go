package mongorepository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/idlem1nd/MongoRepository/db/mongodb"
)

// Repository is a generic facade over one MongoDB collection. T is the
// entity struct, K the key type its ids carry. The zero value is not
// usable; construct through New, NewKeyed or NewWithCollection.
//
// Every operation is a stateless request against the bound collection.
// The repository performs no retries and no error translation beyond
// key resolution; driver errors propagate verbatim.
type Repository[T any, K comparable] struct {
	collection CollectionAPI
	codec      KeyCodec[K]
	name       string
}

// Option adjusts repository construction.
type Option func(*repoOptions)

type repoOptions struct {
	collectionName string
}

// WithCollectionName overrides the derived collection name.
func WithCollectionName(name string) Option {
	return func(o *repoOptions) {
		o.collectionName = name
	}
}

// New builds a repository for entities keyed by the hex string form of
// the native ObjectID, the shape the embeddable Entity base provides.
func New[T any](client *mongodb.Client, opts ...Option) (*Repository[T, string], error) {
	return NewKeyed[T, string](client, HexCodec{}, opts...)
}

// NewKeyed builds a repository with an explicit key codec. Use
// ObjectIDCodec for native ids, StringCodec for raw string keys, or
// RawCodec for any other comparable key kind.
func NewKeyed[T any, K comparable](client *mongodb.Client, codec KeyCodec[K], opts ...Option) (*Repository[T, K], error) {
	var o repoOptions
	for _, opt := range opts {
		opt(&o)
	}
	name := o.collectionName
	if name == "" {
		name = collectionNameFor[T]()
	}
	return NewWithCollection[T, K](client.Collection(name), name, codec)
}

// NewWithCollection binds a repository to an explicit collection
// handle. This is also the seam tests use to substitute the driver.
func NewWithCollection[T any, K comparable](collection CollectionAPI, name string, codec KeyCodec[K]) (*Repository[T, K], error) {
	if _, ok := any(new(T)).(Keyed[K]); !ok {
		return nil, fmt.Errorf("%w: *%T does not implement Keyed[%T]", ErrNotKeyed, *new(T), *new(K))
	}
	return &Repository[T, K]{
		collection: collection,
		codec:      codec,
		name:       name,
	}, nil
}

// Name returns the bound collection name.
func (r *Repository[T, K]) Name() string {
	return r.name
}

// Collection returns the raw collection handle for operations the
// facade does not cover.
func (r *Repository[T, K]) Collection() CollectionAPI {
	return r.collection
}

// GetByID returns the entity stored under id, or (nil, nil) when no
// document matches. A key the codec cannot resolve fails with
// ErrNotSupportedKey.
func (r *Repository[T, K]) GetByID(ctx context.Context, id K) (*T, error) {
	value, err := r.codec.FilterValue(id)
	if err != nil {
		return nil, err
	}
	return r.getByFilterValue(ctx, value)
}

// GetByObjectID looks up by the native id directly, bypassing the
// codec.
func (r *Repository[T, K]) GetByObjectID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return r.getByFilterValue(ctx, id)
}

func (r *Repository[T, K]) getByFilterValue(ctx context.Context, value any) (*T, error) {
	var entity T
	err := r.collection.FindOne(ctx, bson.M{"_id": value}).Decode(&entity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Add inserts the entity. An id assigned by the store is written back
// through SetID.
func (r *Repository[T, K]) Add(ctx context.Context, entity *T) error {
	result, err := r.collection.InsertOne(ctx, entity)
	if err != nil {
		return err
	}
	r.assignStoredID(entity, result.InsertedID)
	return nil
}

// AddMany inserts the entities in order. Assigned ids are written back
// per entity. An empty slice is a no-op.
func (r *Repository[T, K]) AddMany(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	documents := make([]interface{}, len(entities))
	for i, entity := range entities {
		documents[i] = entity
	}
	result, err := r.collection.InsertMany(ctx, documents)
	if err != nil {
		return err
	}
	for i, inserted := range result.InsertedIDs {
		r.assignStoredID(entities[i], inserted)
	}
	return nil
}

// assignStoredID writes a store-assigned id back into the entity when
// the codec recognises it.
func (r *Repository[T, K]) assignStoredID(entity *T, inserted any) {
	if inserted == nil {
		return
	}
	key, ok := r.codec.FromStored(inserted)
	if !ok {
		return
	}
	any(entity).(Keyed[K]).SetID(key)
}

// Find returns a lazy cursor over the documents matching filter. A nil
// filter matches everything.
func (r *Repository[T, K]) Find(ctx context.Context, filter interface{}) (*Cursor[T], error) {
	cursor, err := r.collection.Find(ctx, normalizeFilter(filter))
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{cursor: cursor}, nil
}

// FindAll materializes every document matching filter.
func (r *Repository[T, K]) FindAll(ctx context.Context, filter interface{}) ([]T, error) {
	cursor, err := r.collection.Find(ctx, normalizeFilter(filter))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			_ = err
		}
	}()

	var results []T
	for cursor.Next(ctx) {
		var entity T
		if err := cursor.Decode(&entity); err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// All materializes the whole collection. Memory cost is the caller's
// risk.
func (r *Repository[T, K]) All(ctx context.Context) ([]T, error) {
	return r.FindAll(ctx, bson.M{})
}

// Update replaces the document stored under the entity's id, inserting
// it when absent (upsert). The entity must carry a resolvable id.
func (r *Repository[T, K]) Update(ctx context.Context, entity *T) error {
	value, err := r.codec.FilterValue(any(entity).(Keyed[K]).GetID())
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	_, err = r.collection.ReplaceOne(ctx, bson.M{"_id": value}, entity, opts)
	return err
}

// UpdateMany upserts the entities concurrently and waits for all calls
// to finish. Failures are joined into one error; updates already
// applied stay applied, there is no rollback.
func (r *Repository[T, K]) UpdateMany(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	errs := make([]error, len(entities))
	var wg sync.WaitGroup
	for i, entity := range entities {
		wg.Add(1)
		go func(i int, entity *T) {
			defer wg.Done()
			errs[i] = r.Update(ctx, entity)
		}(i, entity)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Delete removes the document stored under id. Deleting a missing id
// is not an error.
func (r *Repository[T, K]) Delete(ctx context.Context, id K) error {
	value, err := r.codec.FilterValue(id)
	if err != nil {
		return err
	}
	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": value})
	return err
}

// DeleteEntity removes the document stored under the entity's id.
func (r *Repository[T, K]) DeleteEntity(ctx context.Context, entity *T) error {
	return r.Delete(ctx, any(entity).(Keyed[K]).GetID())
}

// DeleteWhere removes every document matching filter. A nil filter is
// refused with ErrNilFilter; clearing the collection is DeleteAll.
func (r *Repository[T, K]) DeleteWhere(ctx context.Context, filter interface{}) error {
	if filter == nil {
		return ErrNilFilter
	}
	_, err := r.collection.DeleteMany(ctx, filter)
	return err
}

// DeleteAll removes every document in the collection.
func (r *Repository[T, K]) DeleteAll(ctx context.Context) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{})
	return err
}

// Count returns the total number of documents in the collection.
func (r *Repository[T, K]) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

// CountWhere counts the documents matching filter. A nil filter counts
// everything.
func (r *Repository[T, K]) CountWhere(ctx context.Context, filter interface{}) (int64, error) {
	return r.collection.CountDocuments(ctx, normalizeFilter(filter))
}

// Exists reports whether at least one document matches filter.
func (r *Repository[T, K]) Exists(ctx context.Context, filter interface{}) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, normalizeFilter(filter), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Aggregate runs the pipeline and decodes every result document into
// results, which must be a pointer to a slice.
func (r *Repository[T, K]) Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cursor.All(ctx, results)
}

// Distinct returns the distinct values of field across the documents
// matching filter.
func (r *Repository[T, K]) Distinct(ctx context.Context, field string, filter interface{}) ([]interface{}, error) {
	return r.collection.Distinct(ctx, field, normalizeFilter(filter))
}

// normalizeFilter maps nil to the match-everything filter for read
// paths. Delete paths do not use it; a nil delete filter is an error.
func normalizeFilter(filter interface{}) interface{} {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
