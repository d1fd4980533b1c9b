package jsonl

import (
	"github.com/ajitpratap0/stagesync/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource("jsonl", NewCursor, &registry.ConnectorInfo{
		Description:  "Newline-delimited JSON file, optionally gzip/zstd/snappy/lz4 compressed",
		Capabilities: []string{"paging", "compressed_input", "ordered_keys"},
	})
}
