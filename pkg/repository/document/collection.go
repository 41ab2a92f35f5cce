package document

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotFound is returned when a single document lookup matches nothing.
var ErrNotFound = errors.New("document not found")

// FindOptions are the modifiers of a Find call.
type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// Cursor iterates the raw documents of a Find call. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// UpdateResult reports the effect of an update.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Collection is the document store handle listing and CRUD operations run
// against. Filters and updates are store-native documents.
type Collection interface {
	Name() string
	CountDocuments(ctx context.Context, filter any) (int64, error)
	Find(ctx context.Context, filter any, opts FindOptions) (Cursor, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, filter any) (bson.M, error)
	// InsertOne returns the identifier assigned to doc.
	InsertOne(ctx context.Context, doc any) (any, error)
	UpdateOne(ctx context.Context, filter, update any) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter, update any) (UpdateResult, error)
	// DeleteOne returns the number of deleted documents.
	DeleteOne(ctx context.Context, filter any) (int64, error)
}
