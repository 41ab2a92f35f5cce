package factory

import (
	"strings"
	"testing"

	ginadapter "github.com/nimburion/apimate/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/apimate/pkg/server/router/gorilla"
)

func TestNewRouter(t *testing.T) {
	tests := []struct {
		typ     string
		want    string
		wantErr bool
	}{
		{typ: "", want: "gin"},
		{typ: "gin", want: "gin"},
		{typ: " GORILLA ", want: "gorilla"},
		{typ: "nethttp", wantErr: true},
		{typ: "echo", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			r, err := NewRouter(tt.typ)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				for _, typ := range SupportedTypes() {
					if !strings.Contains(err.Error(), typ) {
						t.Fatalf("error %q does not list %q", err, typ)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRouter(%q) error = %v", tt.typ, err)
			}

			var got string
			switch r.(type) {
			case *ginadapter.GinRouter:
				got = "gin"
			case *gorillaadapter.GorillaRouter:
				got = "gorilla"
			}
			if got != tt.want {
				t.Fatalf("NewRouter(%q) = %T, want %s", tt.typ, r, tt.want)
			}
		})
	}
}
