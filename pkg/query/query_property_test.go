package query

import (
	"errors"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propertySchema = MustSchema("items", nil, []FieldDef{
	F("n", Int(Sortable(SortBoth))),
	F("label", Text()),
})

// Property: a limit is accepted exactly when it lies in [1, MaxLimit]
func TestProperty_LimitBounds(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("limit accepted iff within bounds", prop.ForAll(
		func(limit int) bool {
			q, err := Parse(propertySchema, Params{Limit: &limit})
			inBounds := limit >= 1 && limit <= MaxLimit
			if inBounds {
				return err == nil && q.Limit() == limit
			}
			return errors.Is(err, ErrBadRequest)
		},
		gen.IntRange(-50, MaxLimit+50),
	))

	properties.TestingRun(t)
}

// Property: integer comparisons parse to the same filter from any wire form
func TestProperty_IntWireForms(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("string, number and map forms agree", prop.ForAll(
		func(v int64, symbol string) bool {
			forms := []any{
				[]any{symbol, strconv.FormatInt(v, 10)},
				[]any{symbol, v},
				map[string]any{symbol: v},
			}
			var first Filter
			for _, raw := range forms {
				f, err := Int().Parse("n", raw)
				if err != nil {
					return false
				}
				if first == nil {
					first = f
				} else if f.Key() != first.Key() {
					return false
				}
			}
			return first.(IntFilter).Value == v
		},
		gen.Int64(),
		gen.IntRange(0, 5).Map(func(i int) string { return orderSymbols()[i] }),
	))

	properties.TestingRun(t)
}

// Property: page skip is always (page-1) * limit
func TestProperty_PageSkip(t *testing.T) {
	schema := MustSchema("paged", nil, nil, WithPagination(PaginationPage))
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("skip matches page and limit", prop.ForAll(
		func(page, limit int) bool {
			q, err := Parse(schema, Params{Page: &page, Limit: &limit})
			if err != nil {
				return false
			}
			return q.Skip() == int64(page-1)*int64(limit)
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, MaxLimit),
	))

	properties.TestingRun(t)
}

// Property: an ids filter hides every other filter key
func TestProperty_IDsShortCircuit(t *testing.T) {
	schema := MustSchema("strings", nil, []FieldDef{F("label", Text())}, WithIDKind(IDString))
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("only the ids filter survives", prop.ForAll(
		func(ids []string, label string) bool {
			raw := make([]any, 0, len(ids)+1)
			raw = append(raw, "x")
			for _, id := range ids {
				raw = append(raw, "x"+id)
			}
			q, err := Parse(schema, Params{Filter: map[string]any{
				"ids":     raw,
				"label":   label,
				"unknown": label,
			}})
			if err != nil {
				return false
			}
			_, ok := q.Filters().IDs()
			return ok && q.Filters().Len() == 1
		},
		gen.SliceOf(gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
