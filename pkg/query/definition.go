package query

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definitions is the file form of a set of schemas, for services that
// declare their resources in configuration rather than code.
//
//	schemas:
//	  - name: base
//	    id: objectid
//	    fields:
//	      - {name: created, type: datetime, sort: both}
//	  - name: articles
//	    parent: base
//	    collection: articles
//	    pagination: page
//	    default_sort: {field: created, direction: dsc}
//	    fields:
//	      - {name: title, type: text, sort: asc}
//	      - {name: price, type: decimal}
type Definitions struct {
	Schemas []Definition `yaml:"schemas"`
}

// Definition declares one schema.
type Definition struct {
	Name         string            `yaml:"name"`
	Collection   string            `yaml:"collection,omitempty"`
	Parent       string            `yaml:"parent,omitempty"`
	ID           string            `yaml:"id,omitempty"`
	Pagination   string            `yaml:"pagination,omitempty"`
	DefaultLimit int               `yaml:"default_limit,omitempty"`
	MaxLimit     int               `yaml:"max_limit,omitempty"`
	DefaultSort  *SortDefinition   `yaml:"default_sort,omitempty"`
	Fields       []FieldDefinition `yaml:"fields"`
	// Relations are resolved on every listed page, see document.LoadRelations.
	Relations []RelationDefinition `yaml:"relations,omitempty"`
}

// RelationDefinition declares a reference from a record field to another
// resource of the catalog. The resolved record is stored under Name.
type RelationDefinition struct {
	Name     string `yaml:"name"`
	Field    string `yaml:"field"`
	Resource string `yaml:"resource"`
}

// SortDefinition declares a default sort.
type SortDefinition struct {
	Field     string `yaml:"field"`
	Direction string `yaml:"direction,omitempty"`
}

// FieldDefinition declares one field.
type FieldDefinition struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Sort        string `yaml:"sort,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Catalog holds the schemas built from Definitions, keyed by name.
type Catalog struct {
	schemas     map[string]*Schema
	definitions []Definition
}

// LoadDefinitions reads YAML definitions from r and builds every schema.
// A parent must be declared before the schemas extending it.
func LoadDefinitions(r io.Reader) (*Catalog, error) {
	var defs Definitions
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode schema definitions: %w", err)
	}
	return defs.Build()
}

// Build constructs the schemas in declaration order.
func (d Definitions) Build() (*Catalog, error) {
	cat := &Catalog{schemas: make(map[string]*Schema, len(d.Schemas))}
	for _, def := range d.Schemas {
		if def.Name == "" {
			return nil, &SchemaError{Reason: "schema name is required"}
		}
		if _, dup := cat.schemas[def.Name]; dup {
			return nil, &SchemaError{Schema: def.Name, Reason: "schema is declared twice"}
		}
		s, err := def.build(cat.schemas)
		if err != nil {
			return nil, err
		}
		cat.schemas[def.Name] = s
		cat.definitions = append(cat.definitions, def)
	}
	for _, def := range cat.definitions {
		for _, rel := range def.Relations {
			if err := cat.checkRelation(def, rel); err != nil {
				return nil, err
			}
		}
	}
	return cat, nil
}

func (c *Catalog) checkRelation(def Definition, rel RelationDefinition) error {
	if rel.Name == "" || rel.Field == "" {
		return &SchemaError{Schema: def.Name, Reason: "relation name and field are required"}
	}
	if _, ok := c.Collection(rel.Resource); !ok {
		return &SchemaError{Schema: def.Name, Field: rel.Field, Reason: fmt.Sprintf("relation %s targets %q, which is not a resource", rel.Name, rel.Resource)}
	}
	return nil
}

func (def Definition) build(known map[string]*Schema) (*Schema, error) {
	var parent *Schema
	if def.Parent != "" {
		p, ok := known[def.Parent]
		if !ok {
			return nil, &SchemaError{Schema: def.Name, Reason: fmt.Sprintf("parent %q is not declared before it", def.Parent)}
		}
		parent = p
	}

	fields := make([]FieldDef, 0, len(def.Fields))
	for _, fd := range def.Fields {
		kind, err := ParseFieldKind(fd.Type)
		if err != nil {
			return nil, &SchemaError{Schema: def.Name, Field: fd.Name, Reason: err.Error()}
		}
		sorting, err := ParseSortCapability(fd.Sort)
		if err != nil {
			return nil, &SchemaError{Schema: def.Name, Field: fd.Name, Reason: err.Error()}
		}
		field, err := NewField(kind, Sortable(sorting), Describe(fd.Description))
		if err != nil {
			return nil, &SchemaError{Schema: def.Name, Field: fd.Name, Reason: err.Error()}
		}
		fields = append(fields, F(fd.Name, field))
	}

	var opts []SchemaOption
	if def.ID != "" {
		kind, err := ParseIDKind(def.ID)
		if err != nil {
			return nil, &SchemaError{Schema: def.Name, Reason: err.Error()}
		}
		opts = append(opts, WithIDKind(kind))
	}
	if def.Pagination != "" {
		style, err := ParsePaginationStyle(def.Pagination)
		if err != nil {
			return nil, &SchemaError{Schema: def.Name, Reason: err.Error()}
		}
		opts = append(opts, WithPagination(style))
	}
	if def.DefaultLimit != 0 || def.MaxLimit != 0 {
		defaultLimit, maxLimit := DefaultLimit, MaxLimit
		if parent != nil {
			defaultLimit, maxLimit = parent.DefaultLimit(), parent.MaxLimit()
		}
		if def.DefaultLimit != 0 {
			defaultLimit = def.DefaultLimit
		}
		if def.MaxLimit != 0 {
			maxLimit = def.MaxLimit
		}
		opts = append(opts, WithLimits(defaultLimit, maxLimit))
	}
	if def.DefaultSort != nil {
		direction := Ascending
		if def.DefaultSort.Direction != "" {
			d, err := ParseDirection(def.DefaultSort.Direction)
			if err != nil {
				return nil, &SchemaError{Schema: def.Name, Field: def.DefaultSort.Field, Reason: err.Error(), Err: ErrInvalidDefaultSort}
			}
			direction = d
		}
		opts = append(opts, WithDefaultSort(def.DefaultSort.Field, direction))
	}

	return NewSchema(def.Name, parent, fields, opts...)
}

// Schema returns the schema declared under name.
func (c *Catalog) Schema(name string) (*Schema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

// Names returns the declared schema names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collection returns the collection bound to a schema. Schemas declared
// without a collection only serve as parents and report false.
func (c *Catalog) Collection(name string) (string, bool) {
	for _, def := range c.definitions {
		if def.Name == name && def.Collection != "" {
			return def.Collection, true
		}
	}
	return "", false
}

// Relations returns the relations declared by a schema.
func (c *Catalog) Relations(name string) []RelationDefinition {
	for _, def := range c.definitions {
		if def.Name == name {
			return def.Relations
		}
	}
	return nil
}

// Resources returns the schemas bound to a collection, in declaration order.
func (c *Catalog) Resources() []*Schema {
	var out []*Schema
	for _, def := range c.definitions {
		if def.Collection == "" {
			continue
		}
		out = append(out, c.schemas[def.Name])
	}
	return out
}
