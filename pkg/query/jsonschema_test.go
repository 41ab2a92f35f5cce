package query

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFilterJSONSchema(t *testing.T) {
	s := articles(t, WithIDKind(IDUUID))
	js := FilterJSONSchema(s)

	if js.Type != "object" {
		t.Fatalf("type = %q, want object", js.Type)
	}
	if len(js.PropertyOrder) != s.Len()+1 || js.PropertyOrder[0] != IDsField {
		t.Fatalf("property order = %v", js.PropertyOrder)
	}
	if js.Properties[IDsField].Items.Format != "uuid" {
		t.Fatalf("ids items = %+v", js.Properties[IDsField].Items)
	}

	stock := js.Properties["stock"]
	if stock == nil || len(stock.OneOf) != 3 {
		t.Fatalf("stock schema = %+v", stock)
	}
	pair := stock.OneOf[1]
	if len(pair.PrefixItems) != 2 || len(pair.PrefixItems[0].Enum) != 6 {
		t.Fatalf("pair schema = %+v", pair)
	}
	title := js.Properties["title"].OneOf[2]
	if len(title.Properties) != 5 {
		t.Fatalf("title operators = %d, want 5", len(title.Properties))
	}

	b, err := json.Marshal(js)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"date-time"`) {
		t.Fatalf("expected datetime format in %s", b)
	}
}
