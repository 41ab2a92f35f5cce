package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldKind identifies the value type a field filters on.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindInt      FieldKind = "int"
	KindDecimal  FieldKind = "decimal"
	KindDatetime FieldKind = "datetime"
)

// ParseFieldKind reads a FieldKind from its name.
func ParseFieldKind(s string) (FieldKind, error) {
	switch k := FieldKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindText, KindInt, KindDecimal, KindDatetime:
		return k, nil
	}
	return "", fmt.Errorf("unknown field kind %q", s)
}

// Field describes how a schema field parses client filter values and whether
// it can be sorted. The field name is bound by the schema that registers it.
type Field interface {
	Kind() FieldKind
	Sorting() SortCapability
	CanSort(d Direction) bool
	Description() string
	// Parse turns a bare value or an (operator, value) pair into a filter.
	Parse(name string, raw any) (Filter, error)
	// Symbols lists the operator symbols accepted by Parse.
	Symbols() []string
}

// FieldOption configures a field descriptor.
type FieldOption func(*fieldBase)

// Sortable declares the directions the field can be sorted in.
func Sortable(c SortCapability) FieldOption {
	return func(b *fieldBase) { b.sorting = c }
}

// Describe attaches a human readable description, used in generated schemas.
func Describe(text string) FieldOption {
	return func(b *fieldBase) { b.description = text }
}

type fieldBase struct {
	kind        FieldKind
	sorting     SortCapability
	description string
}

func newBase(kind FieldKind, opts []FieldOption) fieldBase {
	b := fieldBase{kind: kind}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	return b
}

func (b fieldBase) Kind() FieldKind          { return b.kind }
func (b fieldBase) Sorting() SortCapability  { return b.sorting }
func (b fieldBase) CanSort(d Direction) bool { return b.sorting.Allows(d) }
func (b fieldBase) Description() string      { return b.description }

// TextField filters on string values.
type TextField struct{ fieldBase }

// Text returns a text field descriptor.
func Text(opts ...FieldOption) *TextField {
	return &TextField{newBase(KindText, opts)}
}

func (f *TextField) Symbols() []string { return textSymbols() }

// Parse accepts a scalar (equality) or a pair of operator symbol and value.
// Scalars of any JSON type are converted to their string form.
func (f *TextField) Parse(name string, raw any) (Filter, error) {
	if symbol, value, ok := splitPair(raw); ok {
		op, err := ParseTextOp(symbol)
		if err != nil {
			return nil, newIssue(name, CodeInvalidOperator, "%v", err)
		}
		text, ok := textValue(value)
		if !ok {
			return nil, newIssue(name, CodeInvalidValue, "expected a text value, got %T", value)
		}
		return TextFilter{Field: name, Op: op, Value: text}, nil
	}
	text, ok := textValue(raw)
	if !ok {
		return nil, newIssue(name, CodeMalformedFilter, "expected a value or an [operator, value] pair, got %T", raw)
	}
	return TextFilter{Field: name, Op: TextEQ, Value: text}, nil
}

// IntField filters on integer values.
type IntField struct{ fieldBase }

// Int returns an integer field descriptor.
func Int(opts ...FieldOption) *IntField {
	return &IntField{newBase(KindInt, opts)}
}

func (f *IntField) Symbols() []string { return orderSymbols() }

func (f *IntField) Parse(name string, raw any) (Filter, error) {
	return parseOrdered(name, raw, "an integer", coerceInt, func(op OrderOp, v int64) Filter {
		return IntFilter{Field: name, Op: op, Value: v}
	})
}

// DecimalField filters on arbitrary precision decimal values.
type DecimalField struct{ fieldBase }

// Decimal returns a decimal field descriptor.
func Decimal(opts ...FieldOption) *DecimalField {
	return &DecimalField{newBase(KindDecimal, opts)}
}

func (f *DecimalField) Symbols() []string { return orderSymbols() }

func (f *DecimalField) Parse(name string, raw any) (Filter, error) {
	return parseOrdered(name, raw, "a decimal", coerceDecimal, func(op OrderOp, v primitive.Decimal128) Filter {
		return DecimalFilter{Field: name, Op: op, Value: v}
	})
}

// DatetimeField filters on timestamps.
type DatetimeField struct{ fieldBase }

// Datetime returns a timestamp field descriptor.
func Datetime(opts ...FieldOption) *DatetimeField {
	return &DatetimeField{newBase(KindDatetime, opts)}
}

func (f *DatetimeField) Symbols() []string { return orderSymbols() }

func (f *DatetimeField) Parse(name string, raw any) (Filter, error) {
	return parseOrdered(name, raw, "a datetime", coerceDatetime, func(op OrderOp, v time.Time) Filter {
		return DatetimeFilter{Field: name, Op: op, Value: v}
	})
}

// NewField builds a descriptor for kind.
func NewField(kind FieldKind, opts ...FieldOption) (Field, error) {
	switch kind {
	case KindText:
		return Text(opts...), nil
	case KindInt:
		return Int(opts...), nil
	case KindDecimal:
		return Decimal(opts...), nil
	case KindDatetime:
		return Datetime(opts...), nil
	}
	return nil, fmt.Errorf("unknown field kind %q", kind)
}

func parseOrdered[T any](name string, raw any, want string, coerce func(any) (T, bool), build func(OrderOp, T) Filter) (Filter, error) {
	if v, ok := coerce(raw); ok {
		return build(OrderEQ, v), nil
	}
	symbol, value, ok := splitPair(raw)
	if !ok {
		return nil, newIssue(name, CodeInvalidValue, "expected %s or an [operator, value] pair, got %s", want, describeRaw(raw))
	}
	op, err := ParseOrderOp(symbol)
	if err != nil {
		return nil, newIssue(name, CodeInvalidOperator, "%v", err)
	}
	v, ok := coerce(value)
	if !ok {
		return nil, newIssue(name, CodeInvalidValue, "expected %s, got %s", want, describeRaw(value))
	}
	return build(op, v), nil
}

// splitPair recognizes a two element sequence whose first element is a
// symbol, and a mapping with exactly one entry.
func splitPair(raw any) (string, any, bool) {
	switch v := raw.(type) {
	case []any:
		if len(v) != 2 {
			return "", nil, false
		}
		symbol, ok := v[0].(string)
		return symbol, v[1], ok
	case []string:
		if len(v) != 2 {
			return "", nil, false
		}
		return v[0], v[1], true
	case [2]any:
		symbol, ok := v[0].(string)
		return symbol, v[1], ok
	case map[string]any:
		if len(v) != 1 {
			return "", nil, false
		}
		for symbol, value := range v {
			return symbol, value, true
		}
	}
	return "", nil, false
}

func textValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

func coerceInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if v != math.Trunc(v) || v >= 1<<63 || v < -(1<<63) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func coerceDecimal(raw any) (primitive.Decimal128, bool) {
	var text string
	switch v := raw.(type) {
	case primitive.Decimal128:
		return v, true
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return primitive.Decimal128{}, false
		}
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		text = strconv.Itoa(v)
	case int64:
		text = strconv.FormatInt(v, 10)
	default:
		return primitive.Decimal128{}, false
	}
	if text == "" {
		return primitive.Decimal128{}, false
	}
	d, err := primitive.ParseDecimal128(text)
	if err != nil {
		return primitive.Decimal128{}, false
	}
	if d.IsNaN() || d.IsInf() != 0 {
		return primitive.Decimal128{}, false
	}
	return d, true
}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func coerceDatetime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v.UTC(), true
	case primitive.DateTime:
		return v.Time().UTC(), true
	case json.Number:
		secs, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(secs, 0).UTC(), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range datetimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func describeRaw(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case json.Number:
		return v.String()
	case []any, map[string]any:
		b, err := json.Marshal(v)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", raw)
}
