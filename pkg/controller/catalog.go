package controller

import (
	"fmt"

	"github.com/nimburion/apimate/pkg/observability/logger"
	"github.com/nimburion/apimate/pkg/query"
	"github.com/nimburion/apimate/pkg/repository/document"
	"github.com/nimburion/apimate/pkg/server/router"
)

// OpenCollection returns the store handle of a named collection.
type OpenCollection func(name string) (document.Collection, error)

// RegisterCatalog mounts one Resource per catalog resource under
// /<schema name>. Records are served as maps with their declared relations
// resolved.
func RegisterCatalog(r router.Router, cat *query.Catalog, open OpenCollection, log logger.Logger) error {
	for _, schema := range cat.Resources() {
		collName, _ := cat.Collection(schema.Name())
		coll, err := open(collName)
		if err != nil {
			return fmt.Errorf("open collection %s: %w", collName, err)
		}
		repo, err := document.NewRepository[map[string]any](coll, schema.IDKind(), document.DecodeMap, log)
		if err != nil {
			return fmt.Errorf("resource %s: %w", schema.Name(), err)
		}

		var relations []document.Relation[map[string]any]
		for _, rel := range cat.Relations(schema.Name()) {
			target, _ := cat.Schema(rel.Resource)
			targetColl, _ := cat.Collection(rel.Resource)
			tc, err := open(targetColl)
			if err != nil {
				return fmt.Errorf("open collection %s: %w", targetColl, err)
			}
			lookup := document.LookupByIDs[map[string]any](tc, target.IDKind(), document.DecodeMap)
			relations = append(relations, document.FieldRelation(rel.Name, rel.Field, lookup))
		}

		NewResource(schema, repo, log, relations...).Register(r, "/"+schema.Name())
		log.Debug("resource registered", "schema", schema.Name(), "collection", collName, "relations", len(relations))
	}
	return nil
}
