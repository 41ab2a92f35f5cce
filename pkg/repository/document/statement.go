package document

import (
	"regexp"

	"github.com/nimburion/apimate/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Statement is the MongoDB form of a query, computed once by Compile.
type Statement struct {
	// Filter is the predicate built from the filter set. Counts run on it.
	Filter bson.D
	// Paged is Filter plus the cursor constraint of cursor paginated queries.
	Paged bson.D
	Sort  bson.D
	Skip  int64
	Limit int64
}

// Compile translates q into a Statement.
//
// Filters on distinct fields are ANDed as separate keys. Filters on one
// field share an operator document, so {"n": {">=": 1, "<": 9}} becomes
// {n: {$gte: 1, $lt: 9}}; an operator repeated on a field moves to $and.
// Cursor paginated queries sort by _id after the requested sort. Unsorted
// ones add _id > cursor to Paged, next to any identifier constraint already
// present; sorted ones add the keyset condition built by keyset.
func Compile(q *query.Query) Statement {
	schema := q.Schema()
	c := &compiler{kind: schema.IDKind(), index: map[string]int{}}
	q.Filters().Each(func(f query.Filter) { f.Accept(c) })

	st := Statement{
		Filter: c.build(),
		Skip:   q.Skip(),
		Limit:  int64(q.Limit()),
	}
	st.Paged = st.Filter

	if srt, ok := q.Sort(); ok {
		st.Sort = bson.D{{Key: srt.Field, Value: int(srt.Direction)}}
	}

	if schema.Pagination() == query.PaginationCursor {
		if pos, ok := q.After(); ok {
			srt, sorted := q.Sort()
			if sorted && pos.Sorted && srt.Field != idKey {
				c.and = append(c.and, bson.D{{Key: "$or", Value: keyset(srt, pos.Value, c.storeID(pos.ID))}})
			} else {
				c.add(idKey, "$gt", c.storeID(pos.ID))
			}
			st.Paged = c.build()
		}
		if len(st.Sort) == 0 || st.Sort[0].Key != idKey {
			st.Sort = append(st.Sort, bson.E{Key: idKey, Value: 1})
		}
	}
	return st
}

// keyset matches the records ordered after (value, id) by {field: dir, _id: 1}.
// MongoDB orders null and missing values before every other value, so they
// come first ascending and last descending.
func keyset(srt query.Sort, value, id any) bson.A {
	tie := bson.D{
		{Key: srt.Field, Value: bson.D{{Key: "$eq", Value: value}}},
		{Key: idKey, Value: bson.D{{Key: "$gt", Value: id}}},
	}
	switch {
	case value == nil && srt.Direction == query.Descending:
		return bson.A{tie}
	case value == nil:
		return bson.A{tie, bson.D{{Key: srt.Field, Value: bson.D{{Key: "$ne", Value: nil}}}}}
	case srt.Direction == query.Descending:
		return bson.A{
			bson.D{{Key: srt.Field, Value: bson.D{{Key: "$lt", Value: value}}}},
			tie,
			bson.D{{Key: srt.Field, Value: bson.D{{Key: "$eq", Value: nil}}}},
		}
	}
	return bson.A{
		bson.D{{Key: srt.Field, Value: bson.D{{Key: "$gt", Value: value}}}},
		tie,
	}
}

// ExtJSON renders the statement as relaxed MongoDB extended JSON.
func (s Statement) ExtJSON() ([]byte, error) {
	doc := bson.D{
		{Key: "filter", Value: orEmpty(s.Paged)},
		{Key: "sort", Value: orEmpty(s.Sort)},
		{Key: "skip", Value: s.Skip},
		{Key: "limit", Value: s.Limit},
	}
	return bson.MarshalExtJSON(doc, false, false)
}

func orEmpty(d bson.D) bson.D {
	if d == nil {
		return bson.D{}
	}
	return d
}

const idKey = "_id"

type fieldOps struct {
	name string
	ops  bson.D
}

type compiler struct {
	kind   query.IDKind
	fields []fieldOps
	index  map[string]int
	and    bson.A
}

func (c *compiler) add(field, op string, value any) {
	i, ok := c.index[field]
	if !ok {
		i = len(c.fields)
		c.index[field] = i
		c.fields = append(c.fields, fieldOps{name: field})
	}
	for _, e := range c.fields[i].ops {
		if e.Key == op {
			c.and = append(c.and, bson.D{{Key: field, Value: bson.D{{Key: op, Value: value}}}})
			return
		}
	}
	c.fields[i].ops = append(c.fields[i].ops, bson.E{Key: op, Value: value})
}

func (c *compiler) build() bson.D {
	out := make(bson.D, 0, len(c.fields)+1)
	for _, f := range c.fields {
		ops := make(bson.D, len(f.ops))
		copy(ops, f.ops)
		out = append(out, bson.E{Key: f.name, Value: ops})
	}
	if len(c.and) > 0 {
		and := make(bson.A, len(c.and))
		copy(and, c.and)
		out = append(out, bson.E{Key: "$and", Value: and})
	}
	return out
}

func (c *compiler) storeID(id string) any {
	v, err := c.kind.StoreValue(id)
	if err != nil {
		// identifiers are canonicalized while parsing
		return id
	}
	return v
}

func (c *compiler) VisitIDs(f query.IDsFilter) {
	ids := make(bson.A, 0, len(f.Values))
	for _, id := range f.Values {
		ids = append(ids, c.storeID(id))
	}
	c.add(idKey, "$in", ids)
}

func (c *compiler) VisitText(f query.TextFilter) {
	switch f.Op {
	case query.TextEQ:
		c.add(f.Field, "$eq", f.Value)
	case query.TextNEQ:
		c.add(f.Field, "$ne", f.Value)
	case query.TextStart:
		c.add(f.Field, "$regex", primitive.Regex{Pattern: "^" + regexp.QuoteMeta(f.Value), Options: "i"})
	case query.TextEnd:
		c.add(f.Field, "$regex", primitive.Regex{Pattern: regexp.QuoteMeta(f.Value) + "$", Options: "i"})
	case query.TextContain:
		c.add(f.Field, "$regex", primitive.Regex{Pattern: regexp.QuoteMeta(f.Value), Options: "i"})
	}
}

func (c *compiler) VisitInt(f query.IntFilter) {
	c.add(f.Field, orderOperator(f.Op), f.Value)
}

func (c *compiler) VisitDecimal(f query.DecimalFilter) {
	c.add(f.Field, orderOperator(f.Op), f.Value)
}

func (c *compiler) VisitDatetime(f query.DatetimeFilter) {
	c.add(f.Field, orderOperator(f.Op), f.Value.UTC())
}

func orderOperator(op query.OrderOp) string {
	switch op {
	case query.OrderNEQ:
		return "$ne"
	case query.OrderGT:
		return "$gt"
	case query.OrderGTE:
		return "$gte"
	case query.OrderLT:
		return "$lt"
	case query.OrderLTE:
		return "$lte"
	}
	return "$eq"
}
