package document

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/apimate/pkg/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testSchema(t *testing.T, opts ...query.SchemaOption) *query.Schema {
	t.Helper()
	s, err := query.NewSchema("articles", nil, []query.FieldDef{
		query.F("atext", query.Text(query.Sortable(query.SortBoth))),
		query.F("stock", query.Int(query.Sortable(query.SortBoth))),
		query.F("price", query.Decimal()),
		query.F("created", query.Datetime(query.Sortable(query.SortDesc))),
	}, opts...)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func mustParse(t *testing.T, schema *query.Schema, p query.Params) *query.Query {
	t.Helper()
	q, err := query.Parse(schema, p)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return q
}

func intPtr(n int) *int { return &n }

func mustOID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		t.Fatalf("object id: %v", err)
	}
	return oid
}

func TestCompile_Filters(t *testing.T) {
	tests := []struct {
		name   string
		filter map[string]any
		want   bson.D
	}{
		{
			name:   "no filters",
			filter: nil,
			want:   bson.D{},
		},
		{
			name:   "text equality",
			filter: map[string]any{"atext": "foo"},
			want:   bson.D{{Key: "atext", Value: bson.D{{Key: "$eq", Value: "foo"}}}},
		},
		{
			name:   "text not equal",
			filter: map[string]any{"atext": []any{"!", "foo"}},
			want:   bson.D{{Key: "atext", Value: bson.D{{Key: "$ne", Value: "foo"}}}},
		},
		{
			name:   "text prefix is escaped",
			filter: map[string]any{"atext": []any{"^", "a.b"}},
			want: bson.D{{Key: "atext", Value: bson.D{
				{Key: "$regex", Value: primitive.Regex{Pattern: `^a\.b`, Options: "i"}},
			}}},
		},
		{
			name:   "text suffix",
			filter: map[string]any{"atext": map[string]any{"$": "end"}},
			want: bson.D{{Key: "atext", Value: bson.D{
				{Key: "$regex", Value: primitive.Regex{Pattern: `end$`, Options: "i"}},
			}}},
		},
		{
			name:   "text contains",
			filter: map[string]any{"atext": []any{"%", "(x)"}},
			want: bson.D{{Key: "atext", Value: bson.D{
				{Key: "$regex", Value: primitive.Regex{Pattern: `\(x\)`, Options: "i"}},
			}}},
		},
		{
			name:   "same field operators merge",
			filter: map[string]any{"stock": map[string]any{">=": 1, "<": 9}},
			want: bson.D{{Key: "stock", Value: bson.D{
				{Key: "$lt", Value: int64(9)},
				{Key: "$gte", Value: int64(1)},
			}}},
		},
		{
			name:   "distinct fields",
			filter: map[string]any{"stock": []any{">", 3}, "atext": "foo"},
			want: bson.D{
				{Key: "atext", Value: bson.D{{Key: "$eq", Value: "foo"}}},
				{Key: "stock", Value: bson.D{{Key: "$gt", Value: int64(3)}}},
			},
		},
		{
			name:   "datetime in utc",
			filter: map[string]any{"created": []any{"<=", "2021-04-29T16:05:00+02:00"}},
			want: bson.D{{Key: "created", Value: bson.D{
				{Key: "$lte", Value: time.Date(2021, 4, 29, 14, 5, 0, 0, time.UTC)},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustParse(t, testSchema(t), query.Params{Filter: tt.filter})
			st := Compile(q)
			if !reflect.DeepEqual(st.Filter, tt.want) {
				t.Fatalf("filter = %v, want %v", st.Filter, tt.want)
			}
			if !reflect.DeepEqual(st.Paged, st.Filter) {
				t.Fatalf("paged = %v, want the filter without a cursor", st.Paged)
			}
		})
	}
}

func TestCompile_Decimal(t *testing.T) {
	q := mustParse(t, testSchema(t), query.Params{Filter: map[string]any{"price": []any{"!", "2.50"}}})
	st := Compile(q)
	ops, ok := st.Filter[0].Value.(bson.D)
	if !ok || st.Filter[0].Key != "price" || ops[0].Key != "$ne" {
		t.Fatalf("filter = %v", st.Filter)
	}
	if d, ok := ops[0].Value.(primitive.Decimal128); !ok || d.String() != "2.50" {
		t.Fatalf("value = %#v, want decimal 2.50", ops[0].Value)
	}
}

func TestCompile_RepeatedOperatorMovesToAnd(t *testing.T) {
	c := &compiler{kind: query.IDObjectID, index: map[string]int{}}
	c.VisitText(query.TextFilter{Field: "atext", Op: query.TextContain, Value: "a"})
	c.VisitText(query.TextFilter{Field: "atext", Op: query.TextContain, Value: "b"})

	want := bson.D{
		{Key: "atext", Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: "a", Options: "i"}}}},
		{Key: "$and", Value: bson.A{
			bson.D{{Key: "atext", Value: bson.D{{Key: "$regex", Value: primitive.Regex{Pattern: "b", Options: "i"}}}}},
		}},
	}
	if got := c.build(); !reflect.DeepEqual(got, want) {
		t.Fatalf("filter = %v, want %v", got, want)
	}
}

func TestCompile_IDs(t *testing.T) {
	a, b := "5f1b0c9e8e3b4a1d2c3b4a5e", "5f1b0c9e8e3b4a1d2c3b4a5f"
	q := mustParse(t, testSchema(t), query.Params{
		Filter: map[string]any{"ids": []any{b, a}, "atext": "ignored"},
		Offset: a,
	})
	st := Compile(q)

	in := bson.A{mustOID(t, a), mustOID(t, b)}
	wantFilter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: in}}}}
	if !reflect.DeepEqual(st.Filter, wantFilter) {
		t.Fatalf("filter = %v, want %v", st.Filter, wantFilter)
	}
	wantPaged := bson.D{{Key: "_id", Value: bson.D{
		{Key: "$in", Value: in},
		{Key: "$gt", Value: mustOID(t, a)},
	}}}
	if !reflect.DeepEqual(st.Paged, wantPaged) {
		t.Fatalf("paged = %v, want %v", st.Paged, wantPaged)
	}
}

func TestCompile_EmptyIDs(t *testing.T) {
	st := Compile(mustParse(t, testSchema(t), query.Params{Filter: map[string]any{"ids": []any{}}}))
	want := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{}}}}}
	if !reflect.DeepEqual(st.Filter, want) {
		t.Fatalf("filter = %v, want %v", st.Filter, want)
	}
}

func TestCompile_StringAndUUIDIDs(t *testing.T) {
	tests := []struct {
		kind query.IDKind
		id   string
		want any
	}{
		{kind: query.IDString, id: "sku-1", want: "sku-1"},
		{kind: query.IDUUID, id: "6BA7B810-9DAD-11D1-80B4-00C04FD430C8", want: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			q := mustParse(t, testSchema(t, query.WithIDKind(tt.kind)), query.Params{
				Filter: map[string]any{"ids": []any{tt.id}},
			})
			st := Compile(q)
			want := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{tt.want}}}}}
			if !reflect.DeepEqual(st.Filter, want) {
				t.Fatalf("filter = %v, want %v", st.Filter, want)
			}
		})
	}
}

func TestCompile_Pagination(t *testing.T) {
	cursor := "5f1b0c9e8e3b4a1d2c3b4a5e"
	tests := []struct {
		name      string
		opts      []query.SchemaOption
		params    query.Params
		wantSort  bson.D
		wantSkip  int64
		wantLimit int64
		wantGT    bool
	}{
		{
			name:      "cursor defaults sort by id",
			wantSort:  bson.D{{Key: "_id", Value: 1}},
			wantLimit: 20,
		},
		{
			name:      "cursor keeps the requested sort first",
			params:    query.Params{Sort: []any{"stock", "dsc"}, Limit: intPtr(5)},
			wantSort:  bson.D{{Key: "stock", Value: -1}, {Key: "_id", Value: 1}},
			wantLimit: 5,
		},
		{
			name:      "cursor by identifier",
			params:    query.Params{Offset: cursor},
			wantSort:  bson.D{{Key: "_id", Value: 1}},
			wantLimit: 20,
			wantGT:    true,
		},
		{
			name:      "page style skips whole pages",
			opts:      []query.SchemaOption{query.WithPagination(query.PaginationPage)},
			params:    query.Params{Sort: "atext", Page: intPtr(2)},
			wantSort:  bson.D{{Key: "atext", Value: 1}},
			wantSkip:  20,
			wantLimit: 20,
		},
		{
			name:      "page style without sort",
			opts:      []query.SchemaOption{query.WithPagination(query.PaginationPage)},
			params:    query.Params{Page: intPtr(3), Limit: intPtr(7)},
			wantSkip:  14,
			wantLimit: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mustParse(t, testSchema(t, tt.opts...), tt.params)
			st := Compile(q)
			if !reflect.DeepEqual(st.Sort, tt.wantSort) {
				t.Fatalf("sort = %v, want %v", st.Sort, tt.wantSort)
			}
			if st.Skip != tt.wantSkip || st.Limit != tt.wantLimit {
				t.Fatalf("skip, limit = %d, %d, want %d, %d", st.Skip, st.Limit, tt.wantSkip, tt.wantLimit)
			}
			if len(st.Filter) != 0 {
				t.Fatalf("filter = %v, want empty", st.Filter)
			}
			hasGT := len(st.Paged) == 1 && st.Paged[0].Key == "_id"
			if hasGT != tt.wantGT {
				t.Fatalf("paged = %v, want cursor constraint %v", st.Paged, tt.wantGT)
			}
		})
	}
}

func TestCompile_DoesNotShareFilterWithPaged(t *testing.T) {
	q := mustParse(t, testSchema(t), query.Params{
		Filter: map[string]any{"ids": []any{"5f1b0c9e8e3b4a1d2c3b4a5f"}},
		Offset: "5f1b0c9e8e3b4a1d2c3b4a5e",
	})
	st := Compile(q)
	ops := st.Filter[0].Value.(bson.D)
	if len(ops) != 1 {
		t.Fatalf("count filter carries the cursor: %v", st.Filter)
	}
}

func TestStatement_ExtJSON(t *testing.T) {
	q := mustParse(t, testSchema(t), query.Params{Filter: map[string]any{"atext": "foo"}, Limit: intPtr(3)})
	out, err := Compile(q).ExtJSON()
	if err != nil {
		t.Fatalf("ext json: %v", err)
	}
	for _, part := range []string{`"filter":{"atext":{"$eq":"foo"}}`, `"sort":{"_id":1}`, `"skip":0`, `"limit":3`} {
		if !strings.Contains(string(out), part) {
			t.Fatalf("ext json = %s, want it to contain %s", out, part)
		}
	}
}
