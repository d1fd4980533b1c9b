package postgresql

import (
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("postgresql", NewDestination, &registry.ConnectorInfo{
		Description:  "PostgreSQL staging with COPY bulk loads and jsonb procedure batches",
		Capabilities: []string{"bulk", "structured", "merge", "truncate", "server_notices"},
	})
}
