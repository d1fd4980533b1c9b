// Package connector holds the source and destination connectors of the
// transfer engine.
//
// # Layout
//
//   - core: the Cursor, Destination and Conn contracts the engine drives.
//   - sources: paged cursors over MongoDB, PostgreSQL and JSON lines files.
//   - destinations: staging targets on PostgreSQL, MySQL, Snowflake and SQLite.
//   - registry: name based factories. Connectors register themselves in init,
//     so a binary only needs a blank import of the sources and destinations
//     packages.
//
// # Writing a destination
//
// A destination is a connection factory. The engine holds one Conn at a time,
// closes it after any failed step and calls Open again before retrying, so
// Open must be cheap to call repeatedly and must not keep state between
// connections:
//
//	type Destination struct{ cfg config.DestinationConfig }
//
//	func (d *Destination) Name() string { return "example" }
//
//	func (d *Destination) Open(ctx context.Context) (core.Conn, error) {
//		// dial, ping, return
//	}
//
// Conn.BulkLoad receives batches in the shape of models.Batch: a fixed
// column list and string values. Conn.CallWithBatch receives the same batch
// and should pass it to the procedure as a single parameter. Neither call is
// idempotent; the merge procedure invoked through Conn.Call is expected to
// tolerate duplicate staged rows.
//
// Register the factory from init:
//
//	func init() {
//		_ = registry.RegisterDestination("example", NewDestination, &registry.ConnectorInfo{
//			Description:  "Example staging destination",
//			Capabilities: []string{"bulk", "merge"},
//		})
//	}
package connector
