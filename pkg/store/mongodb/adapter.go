// Package mongodb connects services to MongoDB and converts records between
// their API and stored shapes.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultConnectTimeout   = 5 * time.Second
	defaultOperationTimeout = 5 * time.Second
	healthCheckTimeout      = 2 * time.Second
)

// ErrClosed is returned by Ping once the adapter is closed.
var ErrClosed = errors.New("mongodb adapter is closed")

// Config holds MongoDB adapter configuration.
type Config struct {
	URL      string
	Database string
	// AppName is reported to the server and shows up in its logs.
	AppName          string
	MaxPoolSize      uint64
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Adapter owns the client of one database. Single document operations run
// under the operation timeout unless the caller already set a deadline.
type Adapter struct {
	client   *mongo.Client
	database string
	log      logger.Logger
	timeout  time.Duration
	closed   atomic.Bool
}

// NewAdapter connects and pings the primary. It creates neither collections
// nor indexes.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("mongodb URL is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongodb database is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.Info("mongodb connected", "database", cfg.Database, "max_pool_size", cfg.MaxPoolSize)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		log:      log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

func clientOptions(cfg Config) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	return opts
}

func (a *Adapter) Database() *mongo.Database                { return a.client.Database(a.database) }
func (a *Adapter) Collection(name string) *mongo.Collection { return a.Database().Collection(name) }

func (a *Adapter) Ping(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	return a.client.Ping(ctx, readpref.Primary())
}

// HealthCheck pings the primary within two seconds.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		a.log.Error("mongodb health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Later calls are no-ops.
func (a *Adapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	a.log.Info("mongodb disconnected", "database", a.database)
	return nil
}

// MissingCollections returns, in the given order, the names that do not
// exist in the database.
func (a *Adapter) MissingCollections(ctx context.Context, names ...string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	existing, err := a.Database().ListCollectionNames(ctx, bson.M{"name": bson.M{"$in": names}})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	var missing []string
	for _, name := range names {
		if !slices.Contains(existing, name) && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func (a *Adapter) CountDocuments(ctx context.Context, collection string, filter any) (int64, error) {
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).CountDocuments(ctx, filter)
}

// Find opens a cursor the caller must close. The operation timeout does not
// apply since the cursor outlives the call.
func (a *Adapter) Find(ctx context.Context, collection string, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	return a.Collection(collection).Find(ctx, filter, opts...)
}

// FindOne decodes the first match into result, or returns
// mongo.ErrNoDocuments.
func (a *Adapter) FindOne(ctx context.Context, collection string, filter any, result any) error {
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).FindOne(ctx, filter).Decode(result)
}

func (a *Adapter) InsertOne(ctx context.Context, collection string, doc any) (*mongo.InsertOneResult, error) {
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).InsertOne(ctx, doc)
}

func (a *Adapter) UpdateOne(ctx context.Context, collection string, filter, update any) (*mongo.UpdateResult, error) {
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).UpdateOne(ctx, filter, update)
}

func (a *Adapter) UpdateMany(ctx context.Context, collection string, filter, update any) (*mongo.UpdateResult, error) {
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).UpdateMany(ctx, filter, update)
}

func (a *Adapter) DeleteOne(ctx context.Context, collection string, filter any) (*mongo.DeleteResult, error) {
	ctx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).DeleteOne(ctx, filter)
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
