package document

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nimburion/apimate/pkg/observability/metrics"
	"github.com/nimburion/apimate/pkg/observability/tracing"
	"github.com/nimburion/apimate/pkg/query"
	"github.com/sourcegraph/conc/pool"
	"go.mongodb.org/mongo-driver/bson"
)

// LookupFunc resolves a batch of identifiers to related objects, keyed by id.
// Identifiers with no match are simply absent from the result.
type LookupFunc func(ctx context.Context, ids []string) (map[string]any, error)

// Relation describes a reference from items of type T to another record.
// T is usually a pointer so Inject can set a field in place.
type Relation[T any] struct {
	Name string
	// Key returns the referenced identifier, false when the item has none.
	Key    func(item T) (string, bool)
	Lookup LookupFunc
	// Inject stores the resolved object, or nil, on the item.
	Inject func(item T, related any)
}

// LoadRelations resolves every relation for items with one lookup per
// relation, running the lookups concurrently. Each item then receives the
// matched object, or nil when its reference is absent or unmatched.
//
// A failed lookup does not stop the others; its relation is left untouched
// on every item and its error is returned joined with the other failures.
func LoadRelations[T any](ctx context.Context, items []T, relations ...Relation[T]) error {
	if len(items) == 0 || len(relations) == 0 {
		return nil
	}

	resolved := make([]map[string]any, len(relations))
	failed := make([]bool, len(relations))

	p := pool.New().WithErrors()
	for i, rel := range relations {
		if rel.Key == nil || rel.Lookup == nil || rel.Inject == nil {
			failed[i] = true
			p.Go(func() error {
				return fmt.Errorf("relation %s: key, lookup and inject are required", rel.Name)
			})
			continue
		}
		ids := distinctKeys(items, rel.Key)
		if len(ids) == 0 {
			continue
		}
		p.Go(func() error {
			found, err := rel.Lookup(ctx, ids)
			if err != nil {
				failed[i] = true
				return fmt.Errorf("relation %s: %w", rel.Name, err)
			}
			resolved[i] = found
			return nil
		})
	}
	err := p.Wait()

	for i, rel := range relations {
		if failed[i] {
			continue
		}
		for _, item := range items {
			var related any
			if id, ok := rel.Key(item); ok && id != "" {
				related = resolved[i][id]
			}
			rel.Inject(item, related)
		}
	}
	return err
}

// FieldRelation relates map records through a string reference stored under
// field. The resolved record, or nil, is stored under name.
func FieldRelation(name, field string, lookup LookupFunc) Relation[map[string]any] {
	return Relation[map[string]any]{
		Name: name,
		Key: func(item map[string]any) (string, bool) {
			id, ok := item[field].(string)
			return id, ok
		},
		Lookup: lookup,
		Inject: func(item map[string]any, related any) { item[name] = related },
	}
}

func distinctKeys[T any](items []T, key func(T) (string, bool)) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := key(item)
		if !ok || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LookupByIDs builds a LookupFunc fetching related documents from coll with
// a single $in query on _id.
func LookupByIDs[R any](coll Collection, kind query.IDKind, decode Decoder[R]) LookupFunc {
	return func(ctx context.Context, ids []string) (out map[string]any, err error) {
		ctx, span := tracing.StartDatabaseSpan(ctx, tracing.OpLookup, tracing.Collection(coll.Name()))
		start := time.Now()
		defer func() {
			metrics.RecordQuery(coll.Name(), "lookup", time.Since(start), err)
			tracing.End(span, err)
		}()

		in := make(bson.A, 0, len(ids))
		for _, id := range ids {
			canonical, err := kind.Canonical(id)
			if err != nil {
				continue
			}
			v, err := kind.StoreValue(canonical)
			if err != nil {
				continue
			}
			in = append(in, v)
		}
		out = make(map[string]any, len(in))
		if len(in) == 0 {
			return out, nil
		}

		cur, err := coll.Find(ctx, bson.D{{Key: idKey, Value: bson.D{{Key: "$in", Value: in}}}}, FindOptions{})
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := cur.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
				out, err = nil, fmt.Errorf("close cursor: %w", cerr)
			}
		}()

		for cur.Next(ctx) {
			var raw bson.M
			if err := cur.Decode(&raw); err != nil {
				return nil, err
			}
			item, err := decode(raw)
			if err != nil {
				return nil, fmt.Errorf("decode %v: %w", raw[idKey], err)
			}
			out[kind.FormatStored(raw[idKey])] = item
		}
		if err := cur.Err(); err != nil {
			return nil, err
		}
		return out, nil
	}
}
