// Package destinations links every destination connector into the registry.
// Import it for side effects.
package destinations

import (
	_ "github.com/ajitpratap0/stagesync/pkg/connector/destinations/mysql"
	_ "github.com/ajitpratap0/stagesync/pkg/connector/destinations/postgresql"
	_ "github.com/ajitpratap0/stagesync/pkg/connector/destinations/snowflake"
	_ "github.com/ajitpratap0/stagesync/pkg/connector/destinations/sqlite"
)
