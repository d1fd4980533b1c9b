package connector_test

import (
	"fmt"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"

	_ "github.com/ajitpratap0/stagesync/pkg/connector/destinations"
	_ "github.com/ajitpratap0/stagesync/pkg/connector/sources"
)

// Example lists the connectors linked into the binary.
func Example() {
	fmt.Println("sources:", registry.ListSources())
	fmt.Println("destinations:", registry.ListDestinations())

	info, _ := registry.Info(core.ConnectorTypeDestination, "sqlite")
	fmt.Println(info.Capabilities)

	// Output:
	// sources: [jsonl mongodb postgresql]
	// destinations: [mysql postgresql snowflake sqlite]
	// [bulk structured merge truncate local]
}

// Example_createDestination builds a destination from configuration. No
// connection is made until Open is called.
func Example_createDestination() {
	cfg := config.Default().Destination
	cfg.Type = "sqlite"
	cfg.DSN = "file:staging.db"

	dest, err := registry.CreateDestination(cfg)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(dest.Name())

	// Output:
	// sqlite
}
