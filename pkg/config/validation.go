package config

import (
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"
)

// String lists the configuration one key per line, nested sections
// indented by two spaces. Fields tagged `secret:"true"` are masked; a
// secret URL keeps its scheme, host and path.
func (c *Config) String() string {
	var sb strings.Builder
	writeSection(&sb, reflect.ValueOf(c).Elem(), 0)
	return sb.String()
}

func writeSection(w io.Writer, v reflect.Value, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range reflect.VisibleFields(v.Type()) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		fv := v.FieldByIndex(f.Index)
		key := fieldKey(f)
		if fv.Kind() == reflect.Struct {
			fmt.Fprintf(w, "%s%s:\n", indent, key)
			writeSection(w, fv, depth+1)
			continue
		}
		value := fmt.Sprint(fv.Interface())
		if f.Tag.Get("secret") == "true" {
			value = mask(value)
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, key, value)
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "[REDACTED]"
	}
	if u.User != nil {
		u.User = url.User("redacted")
	}
	u.RawQuery = ""
	return u.String()
}
