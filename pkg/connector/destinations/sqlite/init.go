package sqlite

import (
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("sqlite", NewDestination, &registry.ConnectorInfo{
		Description:  "Embedded SQLite staging with procedures emulated as configured SQL",
		Capabilities: []string{"bulk", "structured", "merge", "truncate", "local"},
	})
}
