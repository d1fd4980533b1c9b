package snowflake

import (
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("snowflake", NewDestination, &registry.ConnectorInfo{
		Description:  "Snowflake staging with array-bound inserts and VARIANT procedure batches",
		Capabilities: []string{"bulk", "structured", "merge", "truncate"},
	})
}
