// Package db bundles teardown for the backing clients so program exit
// paths stay short.
package db

import (
	"context"

	"github.com/idlem1nd/MongoRepository/db/mongodb"
	"github.com/idlem1nd/MongoRepository/db/redisdb"
	"github.com/idlem1nd/MongoRepository/logger"
)

// CleanupResources closes whichever clients are non-nil. Failures are
// logged instead of returned so teardown never aborts halfway.
func CleanupResources(ctx context.Context, mongoClient *mongodb.Client, redisClient *redisdb.Client) {
	if mongoClient != nil && mongoClient.Client != nil {
		if err := mongodb.Disconnect(mongoClient.Client); err != nil {
			logger.CtxError(ctx, "Failed to disconnect from MongoDB", err)
		}
	}
	if redisClient != nil && redisClient.Client != nil {
		if err := redisdb.Disconnect(redisClient.Client); err != nil {
			logger.CtxError(ctx, "Failed to disconnect from Redis", err)
		}
	}
}
