package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// Query string parameter names.
const (
	ParamFilter       = "filter"
	ParamSort         = "sort"
	ParamOffset       = "offset"
	ParamPage         = "page"
	ParamLimit        = "limit"
	ParamWithCount    = "withCount"
	ParamWithCountAlt = "with_count"
)

// ParseValues decodes the HTTP query string form of a list request and
// parses it against schema. Decoding problems and validation problems are
// reported together in one *ValidationError.
//
//	filter     JSON object, e.g. {"name": ["^", "jo"], "age": {">=": 18, "<": 65}}
//	sort       field, or JSON: "field" / ["field", "dsc"]
//	offset     last seen identifier (cursor pagination)
//	page       1-based page number (page pagination)
//	limit      page size
//	withCount  boolean, also accepted as with_count
func ParseValues(schema *Schema, values url.Values) (*Query, error) {
	var is issues
	p, err := DecodeValues(values)
	if err != nil {
		is.addErr(err)
	}
	q, err := Parse(schema, p)
	if err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		is = append(is, ve.Issues...)
	}
	if err := is.err(); err != nil {
		return nil, err
	}
	return q, nil
}

// DecodeValues converts query string values into Params. Values that cannot
// be decoded are left unset and reported in the returned *ValidationError.
func DecodeValues(values url.Values) (Params, error) {
	var (
		p  Params
		is issues
	)

	if raw := strings.TrimSpace(values.Get(ParamFilter)); raw != "" {
		filter, err := decodeFilter(raw)
		if err != nil {
			is.add(ParamFilter, CodeMalformedFilter, "%v", err)
		} else {
			p.Filter = filter
		}
	}

	if raw := strings.TrimSpace(values.Get(ParamSort)); raw != "" {
		if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, `"`) {
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				is.add(ParamSort, CodeInvalidSort, "sort is not valid JSON: %v", err)
			} else {
				p.Sort = v
			}
		} else {
			p.Sort = raw
		}
	}

	p.Offset = strings.TrimSpace(values.Get(ParamOffset))

	if raw := strings.TrimSpace(values.Get(ParamPage)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			is.add(ParamPage, CodeInvalidPage, "page must be an integer, got %q", raw)
		} else {
			p.Page = &n
		}
	}

	if raw := strings.TrimSpace(values.Get(ParamLimit)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			is.add(ParamLimit, CodeInvalidLimit, "limit must be an integer, got %q", raw)
		} else {
			p.Limit = &n
		}
	}

	for _, name := range []string{ParamWithCount, ParamWithCountAlt} {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			is.add(name, CodeInvalidParameter, "%s must be a boolean, got %q", name, raw)
			continue
		}
		p.WithCount = p.WithCount || b
	}

	return p, is.err()
}

// DecodeFilter decodes a JSON filter payload. Numbers are kept as json.Number
// so integers and decimals are coerced without float rounding.
func DecodeFilter(raw []byte) (map[string]any, error) {
	return decodeFilter(string(raw))
}

func decodeFilter(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.New("filter is not valid JSON")
	}
	if dec.More() {
		return nil, errors.New("filter holds trailing data")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("filter must be a JSON object")
	}
	return m, nil
}

// Values encodes p back into query string form. It is the inverse of
// DecodeValues and is used to build links to the next page.
func (p Params) Values() (url.Values, error) {
	v := url.Values{}
	if len(p.Filter) > 0 {
		b, err := json.Marshal(p.Filter)
		if err != nil {
			return nil, err
		}
		v.Set(ParamFilter, string(b))
	}
	switch s := p.Sort.(type) {
	case nil:
	case string:
		v.Set(ParamSort, s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		v.Set(ParamSort, string(b))
	}
	if p.Offset != "" {
		v.Set(ParamOffset, p.Offset)
	}
	if p.Page != nil {
		v.Set(ParamPage, strconv.Itoa(*p.Page))
	}
	if p.Limit != nil {
		v.Set(ParamLimit, strconv.Itoa(*p.Limit))
	}
	if p.WithCount {
		v.Set(ParamWithCount, "true")
	}
	return v, nil
}
