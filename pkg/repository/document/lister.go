package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/observability/metrics"
	"github.com/nimburion/apimate/pkg/observability/tracing"
	"github.com/nimburion/apimate/pkg/query"
	mongostore "github.com/nimburion/apimate/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
)

// Decoder turns a raw stored document into a typed record.
type Decoder[T any] func(raw bson.M) (T, error)

// TypeSelector picks the decoder for each raw document of a collection that
// stores several record kinds.
type TypeSelector[T any] func(raw bson.M) (Decoder[T], error)

// DecodeInto decodes documents into T through mongodb.DecodeRecord.
func DecodeInto[T any]() Decoder[T] {
	return mongostore.DecodeRecord[T]
}

// DecodeMap decodes documents into plain records with an "id" key.
func DecodeMap(raw bson.M) (map[string]any, error) {
	return mongostore.FromStore(raw), nil
}

// Page is one page of list results.
type Page[T any] struct {
	Items []T `json:"items"`
	Limit int `json:"limit"`
	// Count is the total number of matches, set only when requested.
	Count *int64 `json:"count,omitempty"`
	// Page echoes the page number of page paginated queries.
	Page int `json:"page,omitempty"`
	// Offset echoes the cursor of cursor paginated queries.
	Offset string `json:"offset,omitempty"`
	// Last is the offset of the next page: the identifier of the last item,
	// or an opaque cursor token when the query is sorted.
	Last string `json:"last,omitempty"`
}

// Lister runs parsed queries against one collection.
type Lister[T any] struct {
	coll     Collection
	selector TypeSelector[T]
	logger   logger.Logger
}

// NewLister creates a Lister decoding every document with decode.
func NewLister[T any](coll Collection, decode Decoder[T], log logger.Logger) (*Lister[T], error) {
	if decode == nil {
		return nil, errors.New("decoder is required")
	}
	return NewPolymorphicLister[T](coll, func(bson.M) (Decoder[T], error) { return decode, nil }, log)
}

// NewPolymorphicLister creates a Lister choosing a decoder per document.
func NewPolymorphicLister[T any](coll Collection, selector TypeSelector[T], log logger.Logger) (*Lister[T], error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if selector == nil {
		return nil, errors.New("type selector is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Lister[T]{coll: coll, selector: selector, logger: log}, nil
}

// Collection returns the collection the lister reads.
func (l *Lister[T]) Collection() Collection { return l.coll }

// List counts the matches when requested, then fetches one page. Store
// errors are returned wrapped; no partial page is returned.
func (l *Lister[T]) List(ctx context.Context, q *query.Query) (*Page[T], error) {
	st := Compile(q)
	schema := q.Schema()
	start := time.Now()

	page := &Page[T]{
		Limit:  q.Limit(),
		Page:   q.Page(),
		Offset: q.Cursor(),
	}

	if q.WithCount() {
		n, err := l.count(ctx, schema.Name(), st)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", l.coll.Name(), err)
		}
		page.Count = &n
	}

	items, last, err := l.find(ctx, schema.Name(), st)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", l.coll.Name(), err)
	}
	page.Items = items
	if schema.Pagination() == query.PaginationCursor && len(items) > 0 {
		page.Last = l.nextOffset(ctx, q, last)
	}

	metrics.AddItems(schema.Name(), len(items))
	l.logger.WithContext(ctx).Debug("list query executed",
		"schema", schema.Name(),
		"collection", l.coll.Name(),
		"filters", q.Filters().Len(),
		"items", len(items),
		"duration", time.Since(start),
	)
	return page, nil
}

func (l *Lister[T]) count(ctx context.Context, schema string, st Statement) (n int64, err error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.OpCount,
		tracing.Collection(l.coll.Name()), tracing.Schema(schema))
	start := time.Now()
	defer func() {
		metrics.RecordQuery(schema, "count", time.Since(start), err)
		tracing.End(span, err)
	}()
	return l.coll.CountDocuments(ctx, st.Filter)
}

// nextOffset returns the cursor following the raw document last. A sort
// value that cannot be carried in a cursor ends the pagination there.
func (l *Lister[T]) nextOffset(ctx context.Context, q *query.Query, last bson.M) string {
	id := q.Schema().IDKind().FormatStored(last[idKey])
	var value any
	if srt, ok := q.Sort(); ok {
		value = lookupPath(last, srt.Field)
	}
	next, err := q.NextOffset(id, value)
	if err != nil {
		l.logger.WithContext(ctx).Warn("no cursor for the next page", "collection", l.coll.Name(), "id", id, "error", err)
		return ""
	}
	return next
}

// lookupPath resolves a dotted field path in a raw document.
func lookupPath(doc bson.M, path string) any {
	var cur any = doc
	for part := range strings.SplitSeq(path, ".") {
		switch m := cur.(type) {
		case bson.M:
			cur = m[part]
		case map[string]any:
			cur = m[part]
		case bson.D:
			cur = nil
			for _, e := range m {
				if e.Key == part {
					cur = e.Value
					break
				}
			}
		default:
			return nil
		}
	}
	return cur
}

func (l *Lister[T]) find(ctx context.Context, schema string, st Statement) (items []T, last bson.M, err error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.OpFind,
		tracing.Collection(l.coll.Name()), tracing.Schema(schema), tracing.Limit(int(st.Limit)))
	start := time.Now()
	defer func() {
		metrics.RecordQuery(schema, "find", time.Since(start), err)
		tracing.End(span, err)
	}()

	cur, err := l.coll.Find(ctx, st.Paged, FindOptions{Sort: st.Sort, Skip: st.Skip, Limit: st.Limit})
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := cur.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			items, last, err = nil, nil, fmt.Errorf("close cursor: %w", cerr)
		}
	}()

	items = make([]T, 0, st.Limit)
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, nil, err
		}
		item, err := l.decode(raw)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
		last = raw
	}
	if err := cur.Err(); err != nil {
		return nil, nil, err
	}
	return items, last, nil
}

func (l *Lister[T]) decode(raw bson.M) (T, error) {
	var zero T
	dec, err := l.selector(raw)
	if err != nil {
		return zero, fmt.Errorf("select decoder for %v: %w", raw[idKey], err)
	}
	if dec == nil {
		return zero, fmt.Errorf("no decoder for %v", raw[idKey])
	}
	item, err := dec(raw)
	if err != nil {
		return zero, fmt.Errorf("decode %v: %w", raw[idKey], err)
	}
	return item, nil
}
