package mongorepository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/idlem1nd/MongoRepository/db/mongodb"
)

func newTestManager(mt *mtest.T) *Manager {
	client := &mongodb.Client{
		Database: mt.DB,
	}
	return NewManager(client, "customer")
}

func TestManagerFor(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("shares the repository's collection", func(mt *mtest.T) {
		client := &mongodb.Client{
			Database: mt.DB,
		}
		repo, err := New[Customer](client)
		require.NoError(mt, err)

		mgr := ManagerFor(client, repo)

		assert.Equal(mt, repo.Name(), mgr.Name())
	})
}

func TestManagerExists(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("collection listed", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		ns := mt.DB.Name() + ".$cmd.listCollections"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "name", Value: "customer"}, {Key: "type", Value: "collection"}}))

		ok, err := mgr.Exists(context.Background())

		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("collection absent", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		ns := mt.DB.Name() + ".$cmd.listCollections"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		ok, err := mgr.Exists(context.Background())

		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}

func TestManagerDrop(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("drops the collection", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(mt, mgr.Drop(context.Background()))
	})

	mt.Run("a missing namespace is not an error", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    26,
			Message: "ns not found",
			Name:    "NamespaceNotFound",
		}))

		assert.NoError(mt, mgr.Drop(context.Background()))
	})
}

func TestManagerEnsureIndex(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("derives the index name from the keys", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		name, err := mgr.EnsureIndex(context.Background(), bson.D{{Key: "tier", Value: 1}})

		require.NoError(mt, err)
		assert.Equal(mt, "tier_1", name)
	})

	mt.Run("honours an explicit name", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		name, err := mgr.EnsureIndex(context.Background(), bson.D{{Key: "tier", Value: 1}},
			WithIndexName("by_tier"), WithUnique(), WithSparse())

		require.NoError(mt, err)
		assert.Equal(mt, "by_tier", name)
	})

	mt.Run("ttl index", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		name, err := mgr.EnsureIndex(context.Background(), bson.D{{Key: "expires_at", Value: 1}},
			WithExpireAfter(time.Hour))

		require.NoError(mt, err)
		assert.Equal(mt, "expires_at_1", name)
	})
}

func TestManagerEnsureIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates the batch and returns derived names", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		names, err := mgr.EnsureIndexes(context.Background(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "tier", Value: -1}}},
		})

		require.NoError(mt, err)
		assert.Equal(mt, []string{"name_1", "tier_-1"}, names)
	})
}

func TestManagerDropIndex(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("drops one index", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "nIndexesWas", Value: int32(2)}))

		assert.NoError(mt, mgr.DropIndex(context.Background(), "by_tier"))
	})

	mt.Run("drops everything but the id index", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "nIndexesWas", Value: int32(3)}))

		assert.NoError(mt, mgr.DropAllIndexes(context.Background()))
	})
}

func TestManagerIndexes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("lists and decodes the index specs", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		ns := mt.DB.Name() + ".customer"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "v", Value: 2},
				{Key: "key", Value: bson.D{{Key: "_id", Value: 1}}},
				{Key: "name", Value: "_id_"},
			},
			bson.D{
				{Key: "v", Value: 2},
				{Key: "key", Value: bson.D{{Key: "expires_at", Value: 1}}},
				{Key: "name", Value: "expires_at_1"},
				{Key: "unique", Value: true},
				{Key: "expireAfterSeconds", Value: int32(3600)},
			},
		))

		specs, err := mgr.Indexes(context.Background())

		require.NoError(mt, err)
		require.Len(mt, specs, 2)

		assert.Equal(mt, "_id_", specs[0].Name)
		assert.Equal(mt, "_id", specs[0].Keys[0].Key)
		assert.False(mt, specs[0].Unique)
		assert.Nil(mt, specs[0].ExpireAfter)

		assert.Equal(mt, "expires_at_1", specs[1].Name)
		assert.True(mt, specs[1].Unique)
		require.NotNil(mt, specs[1].ExpireAfter)
		assert.Equal(mt, time.Hour, *specs[1].ExpireAfter)
	})
}

func TestManagerIndexExists(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	indexBatch := func() bson.D {
		return mtest.CreateCursorResponse(0, "appdb.customer", mtest.FirstBatch,
			bson.D{
				{Key: "v", Value: 2},
				{Key: "key", Value: bson.D{{Key: "_id", Value: 1}}},
				{Key: "name", Value: "_id_"},
			})
	}

	mt.Run("index present", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(indexBatch())

		ok, err := mgr.IndexExists(context.Background(), "_id_")

		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("index absent", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(indexBatch())

		ok, err := mgr.IndexExists(context.Background(), "by_tier")

		require.NoError(mt, err)
		assert.False(mt, ok)
	})
}

func TestManagerStats(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("coerces the mixed number types collStats reports", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "ns", Value: "appdb.customer"},
			bson.E{Key: "count", Value: int32(42)},
			bson.E{Key: "size", Value: int64(1048576)},
			bson.E{Key: "storageSize", Value: float64(2097152)},
			bson.E{Key: "avgObjSize", Value: int32(24)},
			bson.E{Key: "totalIndexSize", Value: int32(8192)},
			bson.E{Key: "nindexes", Value: int32(2)},
			bson.E{Key: "capped", Value: false},
		))

		stats, err := mgr.Stats(context.Background())

		require.NoError(mt, err)
		assert.Equal(mt, "appdb.customer", stats.Namespace)
		assert.Equal(mt, int64(42), stats.Count)
		assert.Equal(mt, int64(1048576), stats.Size)
		assert.Equal(mt, int64(2097152), stats.StorageSize)
		assert.Equal(mt, int64(24), stats.AvgObjSize)
		assert.Equal(mt, int64(8192), stats.TotalIndexSize)
		assert.Equal(mt, int64(2), stats.IndexCount)
		assert.False(mt, stats.Capped)
	})

	mt.Run("command errors propagate", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Message: "unauthorized",
			Name:    "Unauthorized",
		}))

		_, err := mgr.Stats(context.Background())

		assert.Error(mt, err)
	})
}

func TestManagerSizeAccessors(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	statsResponse := func() bson.D {
		return mtest.CreateSuccessResponse(
			bson.E{Key: "size", Value: int32(512)},
			bson.E{Key: "storageSize", Value: int32(4096)},
			bson.E{Key: "capped", Value: true},
		)
	}

	mt.Run("data size", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(statsResponse())

		size, err := mgr.DataSize(context.Background())

		require.NoError(mt, err)
		assert.Equal(mt, int64(512), size)
	})

	mt.Run("storage size", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(statsResponse())

		size, err := mgr.StorageSize(context.Background())

		require.NoError(mt, err)
		assert.Equal(mt, int64(4096), size)
	})

	mt.Run("capped flag", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(statsResponse())

		capped, err := mgr.IsCapped(context.Background())

		require.NoError(mt, err)
		assert.True(mt, capped)
	})
}

func TestManagerValidate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("healthy collection", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "valid", Value: true},
			bson.E{Key: "errors", Value: bson.A{}},
			bson.E{Key: "warnings", Value: bson.A{"metadata scan only"}},
		))

		result, err := mgr.Validate(context.Background(), false)

		require.NoError(mt, err)
		assert.True(mt, result.Valid)
		assert.Empty(mt, result.Errors)
		assert.Equal(mt, []string{"metadata scan only"}, result.Warnings)
	})

	mt.Run("corrupt collection", func(mt *mtest.T) {
		mgr := newTestManager(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "valid", Value: false},
			bson.E{Key: "errors", Value: bson.A{"index out of sync"}},
		))

		result, err := mgr.Validate(context.Background(), true)

		require.NoError(mt, err)
		assert.False(mt, result.Valid)
		assert.Equal(mt, []string{"index out of sync"}, result.Errors)
	})
}

func TestStatsCoercionHelpers(t *testing.T) {
	assert.Equal(t, int64(7), asInt64(int32(7)))
	assert.Equal(t, int64(7), asInt64(int64(7)))
	assert.Equal(t, int64(7), asInt64(float64(7.9)))
	assert.Equal(t, int64(0), asInt64("7"))
	assert.Equal(t, int64(0), asInt64(nil))

	assert.True(t, asBool(true))
	assert.False(t, asBool(false))
	assert.False(t, asBool(nil))
	assert.False(t, asBool(int32(1)))

	assert.Equal(t, []string{"a", "b"}, asStrings(bson.A{"a", "b"}))
	assert.Nil(t, asStrings(bson.A{}))
	assert.Nil(t, asStrings(nil))
	assert.Equal(t, []string{"a"}, asStrings(bson.A{"a", int32(1)}))
}
