package query

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultLimit is the page size used when a request names none.
	DefaultLimit = 20
	// MaxLimit is the hard upper bound for any schema's page size.
	MaxLimit = 250
)

// PaginationStyle selects how a schema pages through results.
type PaginationStyle string

const (
	// PaginationCursor pages by the last seen identifier (the "offset" parameter).
	PaginationCursor PaginationStyle = "cursor"
	// PaginationPage pages by a 1-based page number (the "page" parameter).
	PaginationPage PaginationStyle = "page"
)

// ParsePaginationStyle reads a PaginationStyle from its name.
func ParsePaginationStyle(s string) (PaginationStyle, error) {
	switch p := PaginationStyle(strings.ToLower(strings.TrimSpace(s))); p {
	case PaginationCursor, PaginationPage:
		return p, nil
	case "":
		return PaginationCursor, nil
	}
	return "", fmt.Errorf("unknown pagination style %q", s)
}

// FieldDef names a field descriptor for registration.
type FieldDef struct {
	Name  string
	Field Field
}

// F is shorthand for FieldDef{Name: name, Field: field}.
func F(name string, field Field) FieldDef {
	return FieldDef{Name: name, Field: field}
}

// SchemaOption configures a schema being defined.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	defaultSort  *Sort
	idKind       IDKind
	pagination   PaginationStyle
	defaultLimit int
	maxLimit     int
}

// WithDefaultSort sets the sort used when a request names none.
func WithDefaultSort(field string, d Direction) SchemaOption {
	return func(c *schemaConfig) { c.defaultSort = &Sort{Field: field, Direction: d} }
}

// WithIDKind sets the identifier representation.
func WithIDKind(k IDKind) SchemaOption {
	return func(c *schemaConfig) { c.idKind = k }
}

// WithPagination sets the pagination style.
func WithPagination(p PaginationStyle) SchemaOption {
	return func(c *schemaConfig) { c.pagination = p }
}

// WithLimits sets the default and maximum page size. max may not exceed MaxLimit.
func WithLimits(defaultLimit, max int) SchemaOption {
	return func(c *schemaConfig) {
		c.defaultLimit = defaultLimit
		c.maxLimit = max
	}
}

// Schema is the frozen registry of filterable fields of one resource,
// including the fields inherited from its parent. A Schema never changes
// after NewSchema returns and is safe for concurrent use.
type Schema struct {
	name         string
	parent       *Schema
	fields       map[string]Field
	names        []string
	defaultSort  *Sort
	idKind       IDKind
	pagination   PaginationStyle
	defaultLimit int
	maxLimit     int
}

// NewSchema registers fields under name. Fields of parent are inherited; own
// definitions replace inherited ones with the same name. Options not given
// are inherited from parent as well. A default sort naming an unknown field,
// or a direction the field does not support, fails the definition.
func NewSchema(name string, parent *Schema, defs []FieldDef, opts ...SchemaOption) (*Schema, error) {
	cfg := schemaConfig{
		idKind:       IDObjectID,
		pagination:   PaginationCursor,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
	}
	if parent != nil {
		cfg.defaultSort = parent.defaultSort
		cfg.idKind = parent.idKind
		cfg.pagination = parent.pagination
		cfg.defaultLimit = parent.defaultLimit
		cfg.maxLimit = parent.maxLimit
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	fields := make(map[string]Field)
	if parent != nil {
		for k, f := range parent.fields {
			fields[k] = f
		}
	}
	for _, def := range defs {
		fieldName := strings.TrimSpace(def.Name)
		switch {
		case fieldName == "":
			return nil, &SchemaError{Schema: name, Reason: "field name is required"}
		case fieldName == IDsField:
			return nil, &SchemaError{Schema: name, Field: fieldName, Reason: "name is reserved for identifier filters"}
		case def.Field == nil:
			return nil, &SchemaError{Schema: name, Field: fieldName, Reason: "descriptor is nil"}
		}
		fields[fieldName] = def.Field
	}

	if _, err := ParseIDKind(string(cfg.idKind)); err != nil {
		return nil, &SchemaError{Schema: name, Reason: err.Error()}
	}
	if _, err := ParsePaginationStyle(string(cfg.pagination)); err != nil {
		return nil, &SchemaError{Schema: name, Reason: err.Error()}
	}
	if cfg.maxLimit < 1 || cfg.maxLimit > MaxLimit {
		return nil, &SchemaError{Schema: name, Reason: fmt.Sprintf("max limit must be between 1 and %d", MaxLimit)}
	}
	if cfg.defaultLimit < 1 || cfg.defaultLimit > cfg.maxLimit {
		return nil, &SchemaError{Schema: name, Reason: fmt.Sprintf("default limit must be between 1 and %d", cfg.maxLimit)}
	}

	if ds := cfg.defaultSort; ds != nil {
		f, ok := fields[ds.Field]
		if !ok {
			return nil, &SchemaError{
				Schema: name,
				Field:  ds.Field,
				Reason: "default sort names an unregistered field",
				Err:    ErrInvalidDefaultSort,
			}
		}
		if !f.CanSort(ds.Direction) {
			return nil, &SchemaError{
				Schema: name,
				Field:  ds.Field,
				Reason: fmt.Sprintf("default sort requires %s sorting, field allows %s", ds.Direction.words(), f.Sorting()),
				Err:    ErrInvalidDefaultSort,
			}
		}
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	return &Schema{
		name:         name,
		parent:       parent,
		fields:       fields,
		names:        names,
		defaultSort:  cfg.defaultSort,
		idKind:       cfg.idKind,
		pagination:   cfg.pagination,
		defaultLimit: cfg.defaultLimit,
		maxLimit:     cfg.maxLimit,
	}, nil
}

// MustSchema is like NewSchema but panics on a definition error. It is meant
// for package level schema variables.
func MustSchema(name string, parent *Schema, defs []FieldDef, opts ...SchemaOption) *Schema {
	s, err := NewSchema(name, parent, defs, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Parent returns the schema this one extends, if any.
func (s *Schema) Parent() *Schema { return s.parent }

// Field looks up a registered field.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// FieldNames returns the registered field names in sorted order.
func (s *Schema) FieldNames() []string {
	return append([]string(nil), s.names...)
}

// Len returns the number of registered fields.
func (s *Schema) Len() int { return len(s.names) }

// DefaultSort returns the declared default sort.
func (s *Schema) DefaultSort() (Sort, bool) {
	if s.defaultSort == nil {
		return Sort{}, false
	}
	return *s.defaultSort, true
}

// IDKind returns the identifier representation.
func (s *Schema) IDKind() IDKind { return s.idKind }

// Pagination returns the pagination style.
func (s *Schema) Pagination() PaginationStyle { return s.pagination }

// DefaultLimit returns the page size used when a request names none.
func (s *Schema) DefaultLimit() int { return s.defaultLimit }

// MaxLimit returns the largest page size accepted.
func (s *Schema) MaxLimit() int { return s.maxLimit }
