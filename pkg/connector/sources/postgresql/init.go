package postgresql

import (
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("postgresql", NewCursor, &registry.ConnectorInfo{
		Description:  "PostgreSQL query read through a server-side cursor",
		Capabilities: []string{"paging", "custom_queries", "bounded_memory"},
	})
}
