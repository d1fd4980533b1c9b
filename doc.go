// Package stagesync moves records from a paged source into a relational
// staging area in chunks and reconciles them into a final table through a
// destination merge procedure.
//
// # Architecture
//
// A run is a single sequential loop:
//
//	cursor page -> projector -> staging buffer -> flusher -> merge procedure
//
//   - Sources (MongoDB, PostgreSQL, JSON lines) are forward-only cursors that
//     deliver pages of records.
//   - Every record is projected onto a fixed, ordered list of string columns.
//     The list is configured or taken from the first record.
//   - Rows accumulate in a staging buffer until the flush threshold of the
//     strategy is reached. The bulk strategy copies the batch into a staging
//     table; the structured strategy passes it as one parameter to a staging
//     procedure.
//   - The merge procedure reconciles staged rows into the final table. It runs
//     periodically under the structured strategy and always once at the end.
//   - Every destination step runs under a retry loop that reconnects and
//     replays the step. The run aborts after transfer.max_retries consecutive
//     failures and can write the in-flight rows to an abort report.
//
// # Quick Start
//
//	source:
//	  type: mongodb
//	  uri: mongodb://localhost:27017
//	  database: shop
//	  collection: orders
//	destination:
//	  type: postgresql
//	  dsn: postgres://etl@localhost/warehouse
//	  staging_table: staging.orders
//	  merge_procedure: staging.merge_orders
//	transfer:
//	  strategy: bulk
//	  chunk_size: 5000
//	  fields: [_id, customer, total]
//
//	stagesync run --config stagesync.yaml
//
// # Packages
//
//   - internal/pipeline: the transfer engine (driver, buffer, flushers, retry).
//   - pkg/connector: source and destination connectors and their registry.
//   - pkg/config: YAML configuration with environment overrides.
//   - pkg/metrics, pkg/observability: Prometheus metrics, progress logs, traces.
//   - pkg/dump: abort reports.
package stagesync
