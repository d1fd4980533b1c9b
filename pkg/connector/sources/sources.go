// Package sources links every source connector into the registry. Import it
// for side effects.
package sources

import (
	_ "github.com/ajitpratap0/stagesync/pkg/connector/sources/jsonl"
	_ "github.com/ajitpratap0/stagesync/pkg/connector/sources/mongodb"
	_ "github.com/ajitpratap0/stagesync/pkg/connector/sources/postgresql"
)
