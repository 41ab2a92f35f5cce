package controller

import (
	"context"
	"errors"

	"github.com/nimburion/apimate/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
)

// memCollection serves canned documents. Find ignores the filter; FindOne
// matches on _id.
type memCollection struct {
	name    string
	docs    []bson.M
	findErr error
	finds   int
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) CountDocuments(context.Context, any) (int64, error) {
	return int64(len(c.docs)), c.findErr
}

func (c *memCollection) Find(context.Context, any, document.FindOptions) (document.Cursor, error) {
	c.finds++
	if c.findErr != nil {
		return nil, c.findErr
	}
	return &memCursor{docs: c.docs, pos: -1}, nil
}

func (c *memCollection) FindOne(_ context.Context, filter any) (bson.M, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	want := idOf(filter)
	for _, doc := range c.docs {
		if doc["_id"] == want {
			return doc, nil
		}
	}
	return nil, document.ErrNotFound
}

func (c *memCollection) InsertOne(context.Context, any) (any, error) {
	return nil, errors.New("read only")
}

func (c *memCollection) UpdateOne(context.Context, any, any) (document.UpdateResult, error) {
	return document.UpdateResult{}, errors.New("read only")
}

func (c *memCollection) UpdateMany(context.Context, any, any) (document.UpdateResult, error) {
	return document.UpdateResult{}, errors.New("read only")
}

func (c *memCollection) DeleteOne(context.Context, any) (int64, error) {
	return 0, errors.New("read only")
}

func idOf(filter any) any {
	switch f := filter.(type) {
	case bson.D:
		for _, e := range f {
			if e.Key == "_id" {
				return e.Value
			}
		}
	case bson.M:
		return f["_id"]
	}
	return nil
}

type memCursor struct {
	docs []bson.M
	pos  int
}

func (c *memCursor) Next(context.Context) bool {
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *memCursor) Decode(val any) error {
	out, ok := val.(*bson.M)
	if !ok {
		return errors.New("memCursor decodes into *bson.M only")
	}
	*out = c.docs[c.pos]
	return nil
}

func (c *memCursor) Err() error                  { return nil }
func (c *memCursor) Close(context.Context) error { return nil }
