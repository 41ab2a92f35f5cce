package document

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

type findCall struct {
	filter any
	opts   FindOptions
}

// fakeCollection records the calls it receives and serves canned documents.
type fakeCollection struct {
	mu sync.Mutex

	name  string
	docs  []bson.M
	count int64

	countErr  error
	findErr   error
	decodeErr error
	iterErr   error
	closeErr  error

	counts  []any
	finds   []findCall
	cursors []*fakeCursor

	findOne    bson.M
	findOneErr error
	findOnes   []any
	inserted   []any
	insertID   any
	updates    []any
	update     UpdateResult
	deleted    int64
	deleteErr  error
}

func newFakeCollection(docs ...bson.M) *fakeCollection {
	return &fakeCollection{name: "articles", docs: docs, count: int64(len(docs))}
}

func (c *fakeCollection) Name() string { return c.name }

func (c *fakeCollection) CountDocuments(_ context.Context, filter any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = append(c.counts, filter)
	return c.count, c.countErr
}

func (c *fakeCollection) Find(_ context.Context, filter any, opts FindOptions) (Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finds = append(c.finds, findCall{filter: filter, opts: opts})
	if c.findErr != nil {
		return nil, c.findErr
	}
	cur := &fakeCursor{docs: c.docs, pos: -1, decodeErr: c.decodeErr, iterErr: c.iterErr, closeErr: c.closeErr}
	c.cursors = append(c.cursors, cur)
	return cur, nil
}

func (c *fakeCollection) FindOne(_ context.Context, filter any) (bson.M, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findOnes = append(c.findOnes, filter)
	if c.findOneErr != nil {
		return nil, c.findOneErr
	}
	if c.findOne == nil {
		return nil, ErrNotFound
	}
	return c.findOne, nil
}

func (c *fakeCollection) InsertOne(_ context.Context, doc any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserted = append(c.inserted, doc)
	return c.insertID, nil
}

func (c *fakeCollection) UpdateOne(_ context.Context, filter, update any) (UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, bson.A{filter, update})
	return c.update, nil
}

func (c *fakeCollection) UpdateMany(_ context.Context, filter, update any) (UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, bson.A{filter, update})
	return c.update, nil
}

func (c *fakeCollection) DeleteOne(_ context.Context, _ any) (int64, error) {
	return c.deleted, c.deleteErr
}

type fakeCursor struct {
	docs      []bson.M
	pos       int
	decodeErr error
	iterErr   error
	closeErr  error
	closed    bool
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.closed || c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	if c.decodeErr != nil {
		return c.decodeErr
	}
	out, ok := val.(*bson.M)
	if !ok {
		return errors.New("fake cursor decodes into *bson.M only")
	}
	*out = c.docs[c.pos]
	return nil
}

func (c *fakeCursor) Err() error { return c.iterErr }

func (c *fakeCursor) Close(context.Context) error {
	c.closed = true
	return c.closeErr
}
