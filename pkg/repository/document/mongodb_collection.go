package document

import (
	"context"
	"errors"
	"fmt"

	mongostore "github.com/nimburion/apimate/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection binds a Collection to one collection of a MongoDB adapter.
type MongoCollection struct {
	adapter *mongostore.Adapter
	name    string
}

// NewMongoCollection creates a Collection over the named collection.
func NewMongoCollection(adapter *mongostore.Adapter, name string) (*MongoCollection, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	return &MongoCollection{adapter: adapter, name: name}, nil
}

func (c *MongoCollection) Name() string { return c.name }

func (c *MongoCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	return c.adapter.CountDocuments(ctx, c.name, filter)
}

func (c *MongoCollection) Find(ctx context.Context, filter any, opts FindOptions) (Cursor, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	cur, err := c.adapter.Find(ctx, c.name, filter, findOpts)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c *MongoCollection) FindOne(ctx context.Context, filter any) (bson.M, error) {
	out := bson.M{}
	if err := c.adapter.FindOne(ctx, c.name, filter, &out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", c.name, ErrNotFound)
		}
		return nil, err
	}
	return out, nil
}

func (c *MongoCollection) InsertOne(ctx context.Context, doc any) (any, error) {
	result, err := c.adapter.InsertOne(ctx, c.name, doc)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

func (c *MongoCollection) UpdateOne(ctx context.Context, filter, update any) (UpdateResult, error) {
	result, err := c.adapter.UpdateOne(ctx, c.name, filter, update)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: result.MatchedCount, Modified: result.ModifiedCount}, nil
}

func (c *MongoCollection) UpdateMany(ctx context.Context, filter, update any) (UpdateResult, error) {
	result, err := c.adapter.UpdateMany(ctx, c.name, filter, update)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: result.MatchedCount, Modified: result.ModifiedCount}, nil
}

func (c *MongoCollection) DeleteOne(ctx context.Context, filter any) (int64, error) {
	result, err := c.adapter.DeleteOne(ctx, c.name, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
