package mongorepository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/idlem1nd/MongoRepository/db/mongodb"
)

// Manager administers the collection a repository is bound to: index
// maintenance, existence and drop, stats and validation. It deliberately
// sits beside the repository rather than on it, so data access and
// administration stay separate surfaces.
type Manager struct {
	db   *mongo.Database
	name string
}

// NewManager builds a manager for the named collection.
func NewManager(client *mongodb.Client, name string) *Manager {
	return &Manager{db: client.Database, name: name}
}

// ManagerFor builds a manager for the collection a repository is bound
// to.
func ManagerFor[T any, K comparable](client *mongodb.Client, repo *Repository[T, K]) *Manager {
	return NewManager(client, repo.Name())
}

// Name returns the managed collection name.
func (m *Manager) Name() string {
	return m.name
}

// Exists reports whether the collection exists in the database.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.M{"name": m.name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// Drop removes the collection and its indexes. Dropping a collection
// that does not exist is not an error.
func (m *Manager) Drop(ctx context.Context) error {
	return m.db.Collection(m.name).Drop(ctx)
}

// IndexOption adjusts EnsureIndex.
type IndexOption func(*options.IndexOptions)

// WithIndexName names the index instead of letting the server derive
// one from the keys.
func WithIndexName(name string) IndexOption {
	return func(o *options.IndexOptions) {
		o.SetName(name)
	}
}

// WithUnique makes the index enforce uniqueness.
func WithUnique() IndexOption {
	return func(o *options.IndexOptions) {
		o.SetUnique(true)
	}
}

// WithSparse makes the index skip documents missing the indexed fields.
func WithSparse() IndexOption {
	return func(o *options.IndexOptions) {
		o.SetSparse(true)
	}
}

// WithExpireAfter turns the index into a TTL index. Resolution is one
// second.
func WithExpireAfter(d time.Duration) IndexOption {
	return func(o *options.IndexOptions) {
		o.SetExpireAfterSeconds(int32(d / time.Second))
	}
}

// EnsureIndex creates an index over keys and returns its name. Creating
// an index that already exists is a no-op on the server.
func (m *Manager) EnsureIndex(ctx context.Context, keys bson.D, opts ...IndexOption) (string, error) {
	indexOpts := options.Index()
	for _, opt := range opts {
		opt(indexOpts)
	}
	model := mongo.IndexModel{Keys: keys, Options: indexOpts}
	return m.db.Collection(m.name).Indexes().CreateOne(ctx, model)
}

// EnsureIndexes creates several indexes in one call and returns their
// names.
func (m *Manager) EnsureIndexes(ctx context.Context, models []mongo.IndexModel) ([]string, error) {
	return m.db.Collection(m.name).Indexes().CreateMany(ctx, models)
}

// DropIndex removes the named index.
func (m *Manager) DropIndex(ctx context.Context, name string) error {
	_, err := m.db.Collection(m.name).Indexes().DropOne(ctx, name)
	return err
}

// DropAllIndexes removes every index except the mandatory _id index.
func (m *Manager) DropAllIndexes(ctx context.Context) error {
	_, err := m.db.Collection(m.name).Indexes().DropAll(ctx)
	return err
}

// IndexSpec describes one index on the collection.
type IndexSpec struct {
	Name        string
	Keys        bson.D
	Unique      bool
	Sparse      bool
	ExpireAfter *time.Duration
}

// Indexes lists the indexes on the collection.
func (m *Manager) Indexes(ctx context.Context) ([]IndexSpec, error) {
	cursor, err := m.db.Collection(m.name).Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			_ = err
		}
	}()

	var specs []IndexSpec
	for cursor.Next(ctx) {
		var doc struct {
			Name               string `bson:"name"`
			Key                bson.D `bson:"key"`
			Unique             *bool  `bson:"unique"`
			Sparse             *bool  `bson:"sparse"`
			ExpireAfterSeconds *int32 `bson:"expireAfterSeconds"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		spec := IndexSpec{
			Name:   doc.Name,
			Keys:   doc.Key,
			Unique: doc.Unique != nil && *doc.Unique,
			Sparse: doc.Sparse != nil && *doc.Sparse,
		}
		if doc.ExpireAfterSeconds != nil {
			d := time.Duration(*doc.ExpireAfterSeconds) * time.Second
			spec.ExpireAfter = &d
		}
		specs = append(specs, spec)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return specs, nil
}

// IndexExists reports whether an index with the given name exists.
func (m *Manager) IndexExists(ctx context.Context, name string) (bool, error) {
	specs, err := m.Indexes(ctx)
	if err != nil {
		return false, err
	}
	for _, spec := range specs {
		if spec.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// CollectionStats is the subset of the collStats command output the
// manager exposes.
type CollectionStats struct {
	Namespace      string
	Count          int64
	Size           int64
	StorageSize    int64
	AvgObjSize     int64
	TotalIndexSize int64
	IndexCount     int64
	Capped         bool
}

// Stats runs collStats against the collection.
func (m *Manager) Stats(ctx context.Context) (CollectionStats, error) {
	var doc bson.M
	cmd := bson.D{{Key: "collStats", Value: m.name}}
	if err := m.db.RunCommand(ctx, cmd).Decode(&doc); err != nil {
		return CollectionStats{}, err
	}
	stats := CollectionStats{
		Count:          asInt64(doc["count"]),
		Size:           asInt64(doc["size"]),
		StorageSize:    asInt64(doc["storageSize"]),
		AvgObjSize:     asInt64(doc["avgObjSize"]),
		TotalIndexSize: asInt64(doc["totalIndexSize"]),
		IndexCount:     asInt64(doc["nindexes"]),
		Capped:         asBool(doc["capped"]),
	}
	if ns, ok := doc["ns"].(string); ok {
		stats.Namespace = ns
	}
	return stats, nil
}

// IsCapped reports whether the collection is capped.
func (m *Manager) IsCapped(ctx context.Context) (bool, error) {
	stats, err := m.Stats(ctx)
	return stats.Capped, err
}

// DataSize returns the uncompressed data size in bytes.
func (m *Manager) DataSize(ctx context.Context) (int64, error) {
	stats, err := m.Stats(ctx)
	return stats.Size, err
}

// StorageSize returns the allocated storage size in bytes.
func (m *Manager) StorageSize(ctx context.Context) (int64, error) {
	stats, err := m.Stats(ctx)
	return stats.StorageSize, err
}

// ValidationResult is the subset of the validate command output the
// manager exposes.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validate runs the validate command. full requests the slower scan
// that checks document structure in addition to metadata.
func (m *Manager) Validate(ctx context.Context, full bool) (ValidationResult, error) {
	var doc bson.M
	cmd := bson.D{{Key: "validate", Value: m.name}, {Key: "full", Value: full}}
	if err := m.db.RunCommand(ctx, cmd).Decode(&doc); err != nil {
		return ValidationResult{}, err
	}
	return ValidationResult{
		Valid:    asBool(doc["valid"]),
		Errors:   asStrings(doc["errors"]),
		Warnings: asStrings(doc["warnings"]),
	}, nil
}

// collStats and validate report numbers as int32, int64 or double
// depending on server version and size.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func asStrings(v any) []string {
	items, ok := v.(bson.A)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
