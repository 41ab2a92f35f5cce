package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/query"
	mongostore "github.com/nimburion/apimate/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

// Filter represents field-based criteria in record form. The "id" key is
// translated to the stored identifier; other values go through
// mongodb.ToStore, so operator documents such as {"$gt": 3} pass unchanged.
type Filter map[string]any

// Sort specifies field and direction for sorting results.
type Sort struct {
	Field string
	Order SortOrder
}

// SortOrder defines the direction of sorting.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Repository provides typed CRUD helpers over one collection.
type Repository[T any] struct {
	coll   Collection
	kind   query.IDKind
	decode Decoder[T]
	lister *Lister[T]
}

// NewRepository creates a Repository whose records are identified by kind
// and decoded with decode.
func NewRepository[T any](coll Collection, kind query.IDKind, decode Decoder[T], log logger.Logger) (*Repository[T], error) {
	lister, err := NewLister(coll, decode, log)
	if err != nil {
		return nil, err
	}
	kind, err = query.ParseIDKind(string(kind))
	if err != nil {
		return nil, err
	}
	return &Repository[T]{coll: coll, kind: kind, decode: decode, lister: lister}, nil
}

// List runs a parsed query, see Lister.List.
func (r *Repository[T]) List(ctx context.Context, q *query.Query) (*Page[T], error) {
	return r.lister.List(ctx, q)
}

// FindByID returns the record with the given identifier, or ErrNotFound.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	filter, err := r.idFilter(id)
	if err != nil {
		return zero, err
	}
	raw, err := r.coll.FindOne(ctx, filter)
	if err != nil {
		return zero, err
	}
	return r.decode(raw)
}

// Insert stores record and returns it as read back from the store, with
// its assigned identifier. Any identifier already set on record is ignored
// unless the collection uses string or UUID identifiers, where the caller
// must provide it.
func (r *Repository[T]) Insert(ctx context.Context, record any) (T, error) {
	var zero T
	doc, err := mongostore.EncodeRecord(record)
	if err != nil {
		return zero, err
	}
	if r.kind != query.IDObjectID {
		id, err := recordID(record)
		if err != nil {
			return zero, err
		}
		canonical, err := r.kind.Canonical(id)
		if err != nil {
			return zero, fmt.Errorf("insert into %s: %w", r.coll.Name(), err)
		}
		doc[idKey] = canonical
	}
	inserted, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return zero, fmt.Errorf("insert into %s: %w", r.coll.Name(), err)
	}
	raw, err := r.coll.FindOne(ctx, bson.D{{Key: idKey, Value: inserted}})
	if err != nil {
		return zero, err
	}
	return r.decode(raw)
}

// UpdateOne sets the fields of patch on the record with the given
// identifier. It reports whether the record was modified; a missing record
// returns ErrNotFound.
func (r *Repository[T]) UpdateOne(ctx context.Context, id string, patch map[string]any) (bool, error) {
	filter, err := r.idFilter(id)
	if err != nil {
		return false, err
	}
	set := mongostore.ToStore(patch)
	if len(set) == 0 {
		return false, nil
	}
	result, err := r.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return false, fmt.Errorf("update %s in %s: %w", id, r.coll.Name(), err)
	}
	if result.Matched == 0 {
		return false, fmt.Errorf("%s %s: %w", r.coll.Name(), id, ErrNotFound)
	}
	return result.Modified > 0, nil
}

// UpdateMany applies a store-native update to every record matching
// filter and returns the number of modified records.
func (r *Repository[T]) UpdateMany(ctx context.Context, filter Filter, update any) (int64, error) {
	f, err := r.storeFilter(filter)
	if err != nil {
		return 0, err
	}
	result, err := r.coll.UpdateMany(ctx, f, update)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", r.coll.Name(), err)
	}
	return result.Modified, nil
}

// Search returns every record matching filter in the given order.
func (r *Repository[T]) Search(ctx context.Context, filter Filter, sort ...Sort) (items []T, err error) {
	f, err := r.storeFilter(filter)
	if err != nil {
		return nil, err
	}
	opts := FindOptions{}
	for _, s := range sort {
		dir := 1
		if s.Order == SortDesc {
			dir = -1
		}
		opts.Sort = append(opts.Sort, bson.E{Key: s.Field, Value: dir})
	}

	cur, err := r.coll.Find(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.coll.Name(), err)
	}
	defer func() {
		if cerr := cur.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			items, err = nil, fmt.Errorf("close cursor: %w", cerr)
		}
	}()

	items = []T{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		item, err := r.decode(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", r.coll.Name(), err)
	}
	return items, nil
}

// SearchOne returns the first record matching filter, or ErrNotFound.
func (r *Repository[T]) SearchOne(ctx context.Context, filter Filter) (T, error) {
	var zero T
	f, err := r.storeFilter(filter)
	if err != nil {
		return zero, err
	}
	raw, err := r.coll.FindOne(ctx, f)
	if err != nil {
		return zero, err
	}
	return r.decode(raw)
}

// Delete removes the record with the given identifier, or returns
// ErrNotFound when there is none.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	filter, err := r.idFilter(id)
	if err != nil {
		return err
	}
	n, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete %s from %s: %w", id, r.coll.Name(), err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", r.coll.Name(), id, ErrNotFound)
	}
	return nil
}

func (r *Repository[T]) idFilter(id string) (bson.D, error) {
	v, err := r.storeID(id)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: idKey, Value: v}}, nil
}

func (r *Repository[T]) storeID(id string) (any, error) {
	canonical, err := r.kind.Canonical(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return r.kind.StoreValue(canonical)
}

func (r *Repository[T]) storeFilter(filter Filter) (bson.M, error) {
	f := mongostore.ToStore(filter)
	if id, ok := filter[mongostore.IDKey]; ok {
		s, ok := id.(string)
		if !ok {
			return nil, fmt.Errorf("id filter must be a string, got %T", id)
		}
		v, err := r.storeID(s)
		if err != nil {
			return nil, err
		}
		f[idKey] = v
	}
	return f, nil
}

func recordID(record any) (string, error) {
	var m map[string]any
	switch x := record.(type) {
	case map[string]any:
		m = x
	case bson.M:
		m = x
	default:
		raw, err := bson.Marshal(record)
		if err != nil {
			return "", fmt.Errorf("encode record: %w", err)
		}
		if err := bson.Unmarshal(raw, &m); err != nil {
			return "", fmt.Errorf("encode record: %w", err)
		}
	}
	id, ok := m[mongostore.IDKey].(string)
	if !ok || id == "" {
		return "", errors.New("record id is required for non ObjectId collections")
	}
	return id, nil
}
