package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDsField is the reserved filter key selecting records by identifier.
const IDsField = "ids"

// Filter is a single predicate condition on one field.
//
// The set of variants is closed: the unexported marker keeps other packages
// from adding one, and Accept forces every FilterVisitor to handle each of them.
type Filter interface {
	// FieldName returns the schema field the filter applies to.
	FieldName() string
	// Key returns a canonical representation; value-equal filters share a key.
	Key() string
	// Accept dispatches to the visitor method matching the variant.
	Accept(v FilterVisitor)

	isFilter()
}

// FilterVisitor receives one call per filter, matching its variant.
type FilterVisitor interface {
	VisitIDs(f IDsFilter)
	VisitText(f TextFilter)
	VisitInt(f IntFilter)
	VisitDecimal(f DecimalFilter)
	VisitDatetime(f DatetimeFilter)
}

// IDsFilter restricts results to a set of identifiers. When present it is the
// only filter of a query.
type IDsFilter struct {
	Values []string
}

// NewIDsFilter returns an IDsFilter with sorted, de-duplicated values.
func NewIDsFilter(values ...string) IDsFilter {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return IDsFilter{Values: out}
}

func (f IDsFilter) FieldName() string      { return IDsField }
func (f IDsFilter) Key() string            { return IDsField + "|in|" + strings.Join(f.Values, ",") }
func (f IDsFilter) Accept(v FilterVisitor) { v.VisitIDs(f) }
func (IDsFilter) isFilter()                {}

// TextFilter compares a text field against a string.
type TextFilter struct {
	Field string
	Op    TextOp
	Value string
}

func (f TextFilter) FieldName() string      { return f.Field }
func (f TextFilter) Key() string            { return f.Field + "|" + string(f.Op) + "|" + f.Value }
func (f TextFilter) Accept(v FilterVisitor) { v.VisitText(f) }
func (TextFilter) isFilter()                {}

// IntFilter compares an integer field.
type IntFilter struct {
	Field string
	Op    OrderOp
	Value int64
}

func (f IntFilter) FieldName() string { return f.Field }
func (f IntFilter) Key() string {
	return f.Field + "|" + string(f.Op) + "|" + strconv.FormatInt(f.Value, 10)
}
func (f IntFilter) Accept(v FilterVisitor) { v.VisitInt(f) }
func (IntFilter) isFilter()                {}

// DecimalFilter compares an arbitrary precision decimal field.
type DecimalFilter struct {
	Field string
	Op    OrderOp
	Value primitive.Decimal128
}

func (f DecimalFilter) FieldName() string      { return f.Field }
func (f DecimalFilter) Key() string            { return f.Field + "|" + string(f.Op) + "|" + f.Value.String() }
func (f DecimalFilter) Accept(v FilterVisitor) { v.VisitDecimal(f) }
func (DecimalFilter) isFilter()                {}

// DatetimeFilter compares a timestamp field. Values are normalized to UTC.
type DatetimeFilter struct {
	Field string
	Op    OrderOp
	Value time.Time
}

func (f DatetimeFilter) FieldName() string { return f.Field }
func (f DatetimeFilter) Key() string {
	return f.Field + "|" + string(f.Op) + "|" + f.Value.UTC().Format(time.RFC3339Nano)
}
func (f DatetimeFilter) Accept(v FilterVisitor) { v.VisitDatetime(f) }
func (DatetimeFilter) isFilter()                {}

// FilterSet is an immutable set of filters. Filters with the same Key collapse.
type FilterSet struct {
	keys  []string
	items map[string]Filter
}

// NewFilterSet builds a set from filters.
func NewFilterSet(filters ...Filter) FilterSet {
	items := make(map[string]Filter, len(filters))
	for _, f := range filters {
		if f == nil {
			continue
		}
		items[f.Key()] = f
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return FilterSet{keys: keys, items: items}
}

// Len returns the number of distinct filters.
func (s FilterSet) Len() int { return len(s.keys) }

// Contains reports whether a value-equal filter is in the set.
func (s FilterSet) Contains(f Filter) bool {
	if f == nil {
		return false
	}
	_, ok := s.items[f.Key()]
	return ok
}

// Filters returns the filters in key order. The returned slice is a copy.
func (s FilterSet) Filters() []Filter {
	out := make([]Filter, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.items[k])
	}
	return out
}

// Each calls fn for every filter in key order.
func (s FilterSet) Each(fn func(Filter)) {
	for _, k := range s.keys {
		fn(s.items[k])
	}
}

// IDs returns the ids filter if the set holds one.
func (s FilterSet) IDs() (IDsFilter, bool) {
	for _, k := range s.keys {
		if f, ok := s.items[k].(IDsFilter); ok {
			return f, true
		}
	}
	return IDsFilter{}, false
}

// Equal reports whether both sets hold the same filters.
func (s FilterSet) Equal(other FilterSet) bool {
	if len(s.keys) != len(other.keys) {
		return false
	}
	for i := range s.keys {
		if s.keys[i] != other.keys[i] {
			return false
		}
	}
	return true
}
