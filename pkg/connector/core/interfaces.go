// Package core defines the contracts between the transfer engine and the
// source and destination connectors.
package core

import (
	"context"

	"github.com/ajitpratap0/stagesync/pkg/models"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// Cursor is a forward-only, finite, non-restartable paged feed of records.
//
// NextPage blocks until the next page is available and fails with an
// errors.ErrorTypeSourceUnavailable error when the underlying transport
// breaks. An empty page with HasMore still true is legal; callers simply ask
// again.
type Cursor interface {
	HasMore() bool
	NextPage(ctx context.Context) ([]models.Record, error)
	Close(ctx context.Context) error
}

// Destination is a reopenable connection factory for the staging target.
// The transfer engine holds at most one Conn at a time and calls Open again
// after closing a connection that failed.
type Destination interface {
	Name() string
	Open(ctx context.Context) (Conn, error)
}

// Conn is a single open connection to the destination.
type Conn interface {
	// BulkLoad copies the batch into table using the fastest set-oriented
	// transfer the destination offers.
	BulkLoad(ctx context.Context, table string, batch models.Batch) error
	// CallWithBatch invokes a stored procedure with the whole batch as one
	// table-shaped parameter.
	CallWithBatch(ctx context.Context, procedure string, batch models.Batch) error
	// Call invokes a parameterless stored procedure.
	Call(ctx context.Context, procedure string) error
	// Truncate empties the staging table.
	Truncate(ctx context.Context, table string) error
	Close(ctx context.Context) error
}

// Pinger is implemented by connections that can cheaply verify liveness.
// The validate command uses it; the transfer engine does not.
type Pinger interface {
	Ping(ctx context.Context) error
}
