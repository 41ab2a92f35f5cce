package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Params holds the raw, client supplied parameters of one list request.
type Params struct {
	// Filter is the decoded filter payload: {"ids": [...]} or
	// {field: value | [op, value] | {op: value, ...}}.
	Filter map[string]any
	// Sort is a bare field name, or a [field, "asc"|"dsc"] pair.
	Sort any
	// Offset is the "last" value of the previous page, for cursor paginated
	// schemas: the last seen identifier, or a cursor token when sorted.
	Offset string
	// Page is the 1-based page number, for page paginated schemas.
	Page *int
	// Limit is the page size. Nil selects the schema default.
	Limit *int
	// WithCount requests the total number of matching records.
	WithCount bool
}

// Query is the normalized, immutable form of one list request.
type Query struct {
	schema    *Schema
	filters   FilterSet
	sort      *Sort
	cursor    string
	after     *Position
	page      int
	limit     int
	withCount bool
}

// Parse validates p against schema. Every problem found is reported in one
// *ValidationError; no Query is returned unless the whole request is valid.
//
// When the filter payload holds the reserved "ids" key, the resulting query
// filters by identifier only and every other filter key is ignored.
func Parse(schema *Schema, p Params) (*Query, error) {
	if schema == nil {
		return nil, fmt.Errorf("query: schema is required")
	}
	var is issues

	filters := parseFilters(schema, p.Filter, &is)
	srt := parseSort(schema, p.Sort, &is)

	q := &Query{
		schema:    schema,
		filters:   filters,
		sort:      srt,
		withCount: p.WithCount,
	}

	q.limit = schema.DefaultLimit()
	if p.Limit != nil {
		if *p.Limit < 1 || *p.Limit > schema.MaxLimit() {
			is.add("limit", CodeInvalidLimit, "limit must be between 1 and %d, got %d", schema.MaxLimit(), *p.Limit)
		} else {
			q.limit = *p.Limit
		}
	}

	offset := strings.TrimSpace(p.Offset)
	switch schema.Pagination() {
	case PaginationPage:
		if offset != "" {
			is.add("offset", CodeInvalidPagination, "offset is not supported by %s, use page", schema.Name())
		}
		q.page = 1
		if p.Page != nil {
			if *p.Page < 1 {
				is.add("page", CodeInvalidPage, "page must be 1 or greater, got %d", *p.Page)
			} else {
				q.page = *p.Page
			}
		}
	default:
		if p.Page != nil {
			is.add("page", CodeInvalidPagination, "page is not supported by %s, use offset", schema.Name())
		}
		switch {
		case offset == "":
		case srt != nil:
			pos, err := decodeCursor(schema.IDKind(), *srt, offset)
			if err != nil {
				is.add("offset", CodeInvalidCursor, "%v", err)
			} else {
				q.cursor, q.after = offset, &pos
			}
		case p.Sort != nil && is.has("sort"):
			// the offset cannot be read without the sort it was issued for
		default:
			id, err := schema.IDKind().Canonical(offset)
			if err != nil {
				is.add("offset", CodeInvalidCursor, "%v", err)
			} else {
				q.cursor, q.after = id, &Position{ID: id}
			}
		}
	}

	if err := is.err(); err != nil {
		return nil, err
	}
	return q, nil
}

func parseFilters(schema *Schema, raw map[string]any, is *issues) FilterSet {
	if len(raw) == 0 {
		return NewFilterSet()
	}
	if ids, ok := raw[IDsField]; ok {
		f, err := parseIDs(schema.IDKind(), ids)
		if err != nil {
			is.add(IDsField, CodeInvalidValue, "%v", err)
			return NewFilterSet()
		}
		return NewFilterSet(f)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Filter
	for _, name := range keys {
		value := raw[name]
		field, ok := schema.Field(name)
		if !ok {
			is.add(name, CodeUnknownField, "bad filter value {%s: %s}: %s has no such filter", name, describeRaw(value), schema.Name())
			continue
		}
		entries, isMap := value.(map[string]any)
		if !isMap {
			f, err := field.Parse(name, value)
			if err != nil {
				is.addErr(err)
				continue
			}
			out = append(out, f)
			continue
		}
		if len(entries) == 0 {
			is.add(name, CodeMalformedFilter, "operator mapping is empty")
			continue
		}
		symbols := make([]string, 0, len(entries))
		for s := range entries {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			f, err := field.Parse(name, []any{symbol, entries[symbol]})
			if err != nil {
				is.addErr(err)
				continue
			}
			out = append(out, f)
		}
	}
	return NewFilterSet(out...)
}

func parseIDs(kind IDKind, raw any) (IDsFilter, error) {
	var values []any
	switch v := raw.(type) {
	case []any:
		values = v
	case []string:
		for _, s := range v {
			values = append(values, s)
		}
	default:
		return IDsFilter{}, fmt.Errorf("expected a list of identifiers, got %s", describeRaw(raw))
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		var s string
		switch id := v.(type) {
		case string:
			s = id
		case json.Number:
			if kind != IDString {
				return IDsFilter{}, fmt.Errorf("%s is not a valid identifier", id)
			}
			s = id.String()
		default:
			return IDsFilter{}, fmt.Errorf("%s is not a valid identifier", describeRaw(v))
		}
		canonical, err := kind.Canonical(s)
		if err != nil {
			return IDsFilter{}, err
		}
		ids = append(ids, canonical)
	}
	return NewIDsFilter(ids...), nil
}

func parseSort(schema *Schema, raw any, is *issues) *Sort {
	var (
		field     string
		direction = Ascending
	)
	switch v := raw.(type) {
	case nil:
		if ds, ok := schema.DefaultSort(); ok {
			return &ds
		}
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			if ds, ok := schema.DefaultSort(); ok {
				return &ds
			}
			return nil
		}
		field = strings.TrimSpace(v)
	case Sort:
		field, direction = v.Field, v.Direction
	case []string:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return parseSort(schema, items, is)
	case []any:
		if len(v) < 1 || len(v) > 2 {
			is.add("sort", CodeInvalidSort, "expected a field name or a [field, direction] pair")
			return nil
		}
		name, ok := v[0].(string)
		if !ok || strings.TrimSpace(name) == "" {
			is.add("sort", CodeInvalidSort, "sort field must be a non-empty string")
			return nil
		}
		field = strings.TrimSpace(name)
		if len(v) == 2 {
			dirName, ok := v[1].(string)
			if !ok {
				is.add("sort", CodeInvalidSort, "sort direction must be asc or dsc")
				return nil
			}
			d, err := ParseDirection(dirName)
			if err != nil {
				is.add("sort", CodeInvalidSort, "%v", err)
				return nil
			}
			direction = d
		}
	default:
		is.add("sort", CodeInvalidSort, "expected a field name or a [field, direction] pair, got %s", describeRaw(raw))
		return nil
	}

	f, ok := schema.Field(field)
	if !ok {
		is.add("sort", CodeUnknownField, "%s has no field %q to sort by", schema.Name(), field)
		return nil
	}
	if !f.CanSort(direction) {
		is.add("sort", CodeUnsupportedSort, "field %q cannot be sorted in %s order", field, direction.words())
		return nil
	}
	return &Sort{Field: field, Direction: direction}
}

// Schema returns the schema the query was parsed against.
func (q *Query) Schema() *Schema { return q.schema }

// Filters returns the filter set.
func (q *Query) Filters() FilterSet { return q.filters }

// Sort returns the resolved sort, if any.
func (q *Query) Sort() (Sort, bool) {
	if q.sort == nil {
		return Sort{}, false
	}
	return *q.sort, true
}

// Cursor returns the offset of a cursor paginated query: the canonical last
// seen identifier, or the cursor token of a sorted query.
func (q *Query) Cursor() string { return q.cursor }

// Page returns the 1-based page of a page paginated query, 0 otherwise.
func (q *Query) Page() int { return q.page }

// Skip returns the number of records to skip before collecting the page.
func (q *Query) Skip() int64 {
	if q.page <= 1 {
		return 0
	}
	return int64(q.page-1) * int64(q.limit)
}

// Limit returns the page size.
func (q *Query) Limit() int { return q.limit }

// WithCount reports whether the total match count was requested.
func (q *Query) WithCount() bool { return q.withCount }
