package controller

import (
	"errors"
	"net/http"
	"net/url"

	httpmetrics "github.com/nimburion/apimate/pkg/middleware/metrics"
	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/query"
	"github.com/nimburion/apimate/pkg/repository/document"
	"github.com/nimburion/apimate/pkg/server/router"
)

// Resource serves the list and lookup endpoints of one schema.
type Resource[T any] struct {
	schema    *query.Schema
	repo      *document.Repository[T]
	relations []document.Relation[T]
	logger    logger.Logger
}

// NewResource creates a Resource. Relations are resolved on every response.
func NewResource[T any](schema *query.Schema, repo *document.Repository[T], log logger.Logger, relations ...document.Relation[T]) *Resource[T] {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Resource[T]{schema: schema, repo: repo, relations: relations, logger: log}
}

// Register mounts GET path and GET path/:id on r.
func (rc *Resource[T]) Register(r router.Router, path string, middleware ...router.MiddlewareFunc) {
	itemPath := path + "/:id"
	r.GET(path, rc.List, withRoute(middleware, path)...)
	r.GET(itemPath, rc.Get, withRoute(middleware, itemPath)...)
}

func withRoute(middleware []router.MiddlewareFunc, route string) []router.MiddlewareFunc {
	out := make([]router.MiddlewareFunc, 0, len(middleware)+1)
	out = append(out, httpmetrics.Metrics(route))
	return append(out, middleware...)
}

// List answers one page of the records matching the request's query string.
// A Link header points to the next page when the page came back full.
func (rc *Resource[T]) List(c router.Context) error {
	ctx := c.Request().Context()
	q, err := query.ParseValues(rc.schema, c.Request().URL.Query())
	if err != nil {
		return Error(c, err)
	}

	page, err := rc.repo.List(ctx, q)
	if err != nil {
		rc.logger.WithContext(ctx).Error("list failed", "schema", rc.schema.Name(), "error", err)
		return Error(c, err)
	}
	if err := document.LoadRelations(ctx, page.Items, rc.relations...); err != nil {
		rc.logger.WithContext(ctx).Warn("relations not loaded", "schema", rc.schema.Name(), "error", err)
	}

	if next := nextLink(c.Request().URL, rc.schema.Pagination(), page); next != "" {
		c.Response().Header().Set("Link", "<"+next+`>; rel="next"`)
	}
	return c.JSON(http.StatusOK, page)
}

// Get answers the record with the id path parameter.
func (rc *Resource[T]) Get(c router.Context) error {
	ctx := c.Request().Context()
	item, err := rc.repo.FindByID(ctx, c.Param("id"))
	if err != nil {
		if !errors.Is(err, document.ErrNotFound) {
			rc.logger.WithContext(ctx).Error("lookup failed", "schema", rc.schema.Name(), "error", err)
		}
		return Error(c, err)
	}

	items := []T{item}
	if err := document.LoadRelations(ctx, items, rc.relations...); err != nil {
		rc.logger.WithContext(ctx).Warn("relations not loaded", "schema", rc.schema.Name(), "error", err)
	}
	return Success(c, items[0])
}

// nextLink returns the request URI of the page after page, or "" when page
// is the last one. A short page is always the last.
func nextLink[T any](u *url.URL, style query.PaginationStyle, page *document.Page[T]) string {
	if len(page.Items) == 0 || len(page.Items) < page.Limit {
		return ""
	}
	p, err := query.DecodeValues(u.Query())
	if err != nil {
		return ""
	}
	limit := page.Limit
	p.Limit = &limit

	switch style {
	case query.PaginationPage:
		if page.Count != nil && int64(page.Page)*int64(page.Limit) >= *page.Count {
			return ""
		}
		n := page.Page + 1
		p.Page = &n
	default:
		if page.Last == "" {
			return ""
		}
		p.Offset = page.Last
	}

	values, err := p.Values()
	if err != nil {
		return ""
	}
	next := *u
	next.RawQuery = values.Encode()
	return next.RequestURI()
}
