package mysql

import (
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("mysql", NewDestination, &registry.ConnectorInfo{
		Description:  "MySQL staging with multi-row inserts and JSON procedure batches",
		Capabilities: []string{"bulk", "structured", "merge", "truncate"},
	})
}
