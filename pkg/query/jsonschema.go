package query

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// FilterJSONSchema describes the filter payload accepted by schema, for API
// documentation and client side validation.
func FilterJSONSchema(schema *Schema) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, schema.Len()+1)
	order := make([]string, 0, schema.Len()+1)

	props[IDsField] = &jsonschema.Schema{
		Type:        "array",
		Description: "Identifiers to fetch. When present every other filter is ignored; an empty list matches nothing.",
		Items:       idSchema(schema.IDKind()),
	}
	order = append(order, IDsField)

	for _, name := range schema.FieldNames() {
		field, _ := schema.Field(name)
		props[name] = fieldSchema(field)
		order = append(order, name)
	}

	return &jsonschema.Schema{
		Schema:               "https://json-schema.org/draft/2020-12/schema",
		Title:                schema.Name() + " filter",
		Type:                 "object",
		Properties:           props,
		PropertyOrder:        order,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

func fieldSchema(field Field) *jsonschema.Schema {
	value := valueSchema(field.Kind())
	symbols := make([]any, 0, len(field.Symbols()))
	ops := make(map[string]*jsonschema.Schema, len(field.Symbols()))
	for _, s := range field.Symbols() {
		symbols = append(symbols, s)
		ops[s] = valueSchema(field.Kind())
	}
	return &jsonschema.Schema{
		Description: field.Description(),
		OneOf: []*jsonschema.Schema{
			value,
			{
				Type:        "array",
				Description: "[operator, value]",
				PrefixItems: []*jsonschema.Schema{{Type: "string", Enum: symbols}, valueSchema(field.Kind())},
				MinItems:    intPtr(2),
				MaxItems:    intPtr(2),
			},
			{
				Type:                 "object",
				Description:          "operator to value, all conditions apply",
				Properties:           ops,
				AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
			},
		},
	}
}

func valueSchema(kind FieldKind) *jsonschema.Schema {
	switch kind {
	case KindInt:
		return &jsonschema.Schema{Types: []string{"integer", "string"}}
	case KindDecimal:
		return &jsonschema.Schema{Types: []string{"number", "string"}}
	case KindDatetime:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}
	}
	return &jsonschema.Schema{Types: []string{"string", "number", "boolean"}}
}

func idSchema(kind IDKind) *jsonschema.Schema {
	switch kind {
	case IDUUID:
		return &jsonschema.Schema{Type: "string", Format: "uuid"}
	case IDString:
		return &jsonschema.Schema{Type: "string", MinLength: intPtr(1)}
	}
	return &jsonschema.Schema{Type: "string", Pattern: "^[0-9a-fA-F]{24}$"}
}

func intPtr(n int) *int { return &n }
