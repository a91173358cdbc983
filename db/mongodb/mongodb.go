// Package mongodb bootstraps the driver client the repositories are
// built on: URI assembly from config, pool tuning, connect-and-ping
// with credential-safe logging.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/idlem1nd/MongoRepository/config"
	"github.com/idlem1nd/MongoRepository/logger"
)

// Client bundles the connected driver client with the database the
// repositories read from.
type Client struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Collection returns a handle to the named collection.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.Database.Collection(name)
}

// Connect builds a client from config and verifies it with a ping.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	return connectWithConnector(ctx, cfg, &DefaultConnector{})
}

// FromURI builds a client from an explicit connection string.
func FromURI(ctx context.Context, uri, dbName string) (*Client, error) {
	cfg := config.MongoConfig{URI: uri, DBName: dbName}
	return connectWithConnector(ctx, cfg, &DefaultConnector{})
}

// FromDefaults builds a client from the process-wide configuration:
// the file named by CONFIG_PATH plus environment overrides.
func FromDefaults(ctx context.Context) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return Connect(ctx, cfg.Mongo)
}

func connectWithConnector(ctx context.Context, cfg config.MongoConfig, connector Connector) (*Client, error) {

	uri := buildURI(cfg)

	// Redact username and password for safe logging
	safeURI := redactURI(uri)

	logger.CtxInfo(ctx, "Connecting to MongoDB",
		slog.String("uri", safeURI),
		slog.String("database", cfg.DBName),
	)

	connectTimeout := cfg.ConnectTimeout()
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout * 2).
		SetSocketTimeout(connectTimeout * 3).
		SetHeartbeatInterval(10 * time.Second)
	if idle := cfg.MaxConnIdleTime(); idle > 0 {
		clientOpts.SetMaxConnIdleTime(idle)
	}
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(cfg.MinPoolSize)
	}

	client, err := connector.Connect(ctx, clientOpts)
	if err != nil {
		logger.CtxError(ctx, "Failed to connect to MongoDB", err,
			slog.String("uri", safeURI),
			slog.String("database", cfg.DBName),
		)
		return nil, err
	}

	if err := connector.Ping(ctx, client); err != nil {
		logger.CtxError(ctx, "MongoDB ping failed", err,
			slog.String("uri", safeURI),
			slog.String("database", cfg.DBName),
		)
		return nil, err
	}

	logger.CtxInfo(ctx, "Successfully connected to MongoDB",
		slog.String("uri", safeURI),
		slog.String("database", cfg.DBName),
	)

	db := client.Database(cfg.DBName)

	return &Client{
		Client:   client,
		Database: db,
	}, nil
}

// Disconnect closes the driver client.
func Disconnect(client *mongo.Client) error {
	return client.Disconnect(context.Background())
}

// buildURI combines credentials with the configured host when a
// username is present; otherwise the configured URI is used verbatim.
func buildURI(cfg config.MongoConfig) string {
	if cfg.Username == "" {
		return cfg.URI
	}
	scheme, host := splitScheme(cfg.URI)
	return fmt.Sprintf("%s%s:%s@%s",
		scheme,
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		host,
	)
}

// redactURI hides username and password from a MongoDB URI.
func redactURI(uri string) string {
	parts := strings.SplitN(uri, "@", 2)
	if len(parts) == 2 {
		scheme, _ := splitScheme(parts[0])
		return scheme + "***:***@" + parts[1]
	}
	return uri // nothing to hide
}

func splitScheme(uri string) (scheme, rest string) {
	for _, s := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(uri, s) {
			return s, strings.TrimPrefix(uri, s)
		}
	}
	return "mongodb+srv://", uri
}
