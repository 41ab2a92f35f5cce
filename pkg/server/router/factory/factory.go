// Package factory picks the router adapter named by http.router.
package factory

import (
	"fmt"
	"strings"

	"github.com/nimburion/apimate/pkg/server/router"
	ginadapter "github.com/nimburion/apimate/pkg/server/router/gin"
	gorillaadapter "github.com/nimburion/apimate/pkg/server/router/gorilla"
)

// Router types accepted by NewRouter.
const (
	Gin     = "gin"
	Gorilla = "gorilla"

	DefaultType = Gin
)

// NewRouter returns a fresh router of the given type, case-insensitive.
// An empty type selects DefaultType.
func NewRouter(routerType string) (router.Router, error) {
	switch strings.ToLower(strings.TrimSpace(routerType)) {
	case "", Gin:
		return ginadapter.NewRouter(), nil
	case Gorilla:
		return gorillaadapter.NewRouter(), nil
	}
	return nil, fmt.Errorf("unsupported router type %q (supported: %s)", routerType, strings.Join(SupportedTypes(), ", "))
}

// SupportedTypes lists the router types in a stable order.
func SupportedTypes() []string {
	return []string{Gin, Gorilla}
}
