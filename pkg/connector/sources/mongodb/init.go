package mongodb

import (
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("mongodb", NewCursor, &registry.ConnectorInfo{
		Description:  "MongoDB or Cosmos DB (Mongo API) collection query",
		Capabilities: []string{"paging", "json_filter", "ordered_keys"},
	})
}
