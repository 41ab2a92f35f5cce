package query

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type kindCounter struct {
	ids, text, ints, decimals, datetimes int
}

func (c *kindCounter) VisitIDs(IDsFilter)           { c.ids++ }
func (c *kindCounter) VisitText(TextFilter)         { c.text++ }
func (c *kindCounter) VisitInt(IntFilter)           { c.ints++ }
func (c *kindCounter) VisitDecimal(DecimalFilter)   { c.decimals++ }
func (c *kindCounter) VisitDatetime(DatetimeFilter) { c.datetimes++ }

func TestFilterSet_CollapsesEqualFilters(t *testing.T) {
	set := NewFilterSet(
		TextFilter{Field: "name", Op: TextEQ, Value: "A"},
		TextFilter{Field: "name", Op: TextEQ, Value: "A"},
		TextFilter{Field: "name", Op: TextNEQ, Value: "B"},
		nil,
	)
	if set.Len() != 2 {
		t.Fatalf("len = %d, want 2", set.Len())
	}
	if !set.Contains(TextFilter{Field: "name", Op: TextNEQ, Value: "B"}) {
		t.Fatal("expected set to contain name != B")
	}
	if set.Contains(TextFilter{Field: "name", Op: TextNEQ, Value: "C"}) {
		t.Fatal("unexpected filter in set")
	}
}

func TestFilterSet_DatetimeKeyIgnoresZone(t *testing.T) {
	utc := time.Date(2021, 4, 29, 14, 5, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("CEST", 2*60*60))
	a := DatetimeFilter{Field: "created", Op: OrderGT, Value: utc}
	b := DatetimeFilter{Field: "created", Op: OrderGT, Value: local}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
}

func TestFilterSet_EqualIgnoresOrder(t *testing.T) {
	d, _ := primitive.ParseDecimal128("2.5")
	x := NewFilterSet(IntFilter{Field: "n", Op: OrderGT, Value: 1}, DecimalFilter{Field: "p", Op: OrderLT, Value: d})
	y := NewFilterSet(DecimalFilter{Field: "p", Op: OrderLT, Value: d}, IntFilter{Field: "n", Op: OrderGT, Value: 1})
	if !x.Equal(y) {
		t.Fatal("sets with the same filters should be equal")
	}
	if x.Equal(NewFilterSet()) {
		t.Fatal("non-empty set equal to empty set")
	}
}

func TestFilterSet_Visit(t *testing.T) {
	d, _ := primitive.ParseDecimal128("1")
	set := NewFilterSet(
		NewIDsFilter("b", "a", "b"),
		TextFilter{Field: "t", Op: TextEQ, Value: "x"},
		IntFilter{Field: "i", Op: OrderEQ, Value: 1},
		DecimalFilter{Field: "d", Op: OrderEQ, Value: d},
		DatetimeFilter{Field: "c", Op: OrderEQ, Value: time.Unix(0, 0)},
	)
	var c kindCounter
	set.Each(func(f Filter) { f.Accept(&c) })
	if c != (kindCounter{1, 1, 1, 1, 1}) {
		t.Fatalf("visits = %+v, want one per variant", c)
	}

	ids, ok := set.IDs()
	if !ok {
		t.Fatal("expected ids filter")
	}
	if len(ids.Values) != 2 || ids.Values[0] != "a" || ids.Values[1] != "b" {
		t.Fatalf("ids = %v, want sorted and deduplicated [a b]", ids.Values)
	}
	if ids.FieldName() != IDsField {
		t.Fatalf("field = %q, want %q", ids.FieldName(), IDsField)
	}
}

func TestFilterSet_FiltersReturnsCopy(t *testing.T) {
	set := NewFilterSet(TextFilter{Field: "a", Op: TextEQ, Value: "1"})
	got := set.Filters()
	got[0] = TextFilter{Field: "z", Op: TextEQ, Value: "9"}
	if set.Filters()[0].FieldName() != "a" {
		t.Fatal("mutating the returned slice changed the set")
	}
}
