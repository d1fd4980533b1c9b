// Package sqlite implements the staging destination on an embedded SQLite
// database. SQLite has no stored procedures, so procedures are emulated by
// SQL text configured under destination.procedures. A structured batch is
// bound to ?1 as a JSON array and is usually consumed with json_each.
package sqlite

import (
	"context"
	"database/sql"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/ajitpratap0/stagesync/pkg/sqlutil"
)

// Destination opens the SQLite database file named by the DSN.
type Destination struct {
	cfg    config.DestinationConfig
	logger *zap.Logger
}

// NewDestination checks that every configured procedure has SQL text.
func NewDestination(cfg config.DestinationConfig) (core.Destination, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "sqlite destination requires destination.dsn")
	}
	for _, name := range []string{cfg.StagingProcedure, cfg.MergeProcedure} {
		if name == "" {
			continue
		}
		if _, ok := cfg.Procedure(name); !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "destination.procedures has no SQL for %q", name)
		}
	}
	return &Destination{
		cfg:    cfg,
		logger: logger.Get().With(zap.String("connector", "sqlite"), zap.String("dsn", cfg.DSN)),
	}, nil
}

// Name implements core.Destination.
func (d *Destination) Name() string { return "sqlite" }

// Open implements core.Destination.
func (d *Destination) Open(ctx context.Context) (core.Conn, error) {
	db, err := sql.Open("sqlite", d.cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open SQLite database")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open SQLite database")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to configure SQLite database")
	}
	d.logger.Debug("destination connection opened")
	return &Conn{db: db, cfg: d.cfg}, nil
}

// Conn wraps a single-connection database handle.
type Conn struct {
	db  *sql.DB
	cfg config.DestinationConfig
}

// BulkLoad implements core.Conn with a prepared insert inside one
// transaction.
func (c *Conn) BulkLoad(ctx context.Context, table string, batch models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	if batch.Schema.IsEmpty() {
		return errors.New(errors.ErrorTypeSchemaMismatch, "cannot bulk load a batch without columns")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, sqlutil.InsertStatement(sqlutil.SQLite, table, batch.Schema, 1))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to prepare staging insert")
	}
	defer stmt.Close()

	for i, row := range batch.Values() {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "insert into staging table failed").
				WithDetail("row", i)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "commit failed")
	}
	return nil
}

// CallWithBatch implements core.Conn by running the procedure SQL with the
// batch JSON bound to ?1.
func (c *Conn) CallWithBatch(ctx context.Context, procedure string, batch models.Batch) error {
	payload, err := gojson.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode batch")
	}
	return c.exec(ctx, procedure, string(payload))
}

// Call implements core.Conn.
func (c *Conn) Call(ctx context.Context, procedure string) error {
	return c.exec(ctx, procedure)
}

func (c *Conn) exec(ctx context.Context, procedure string, args ...interface{}) error {
	text, ok := c.cfg.Procedure(procedure)
	if !ok {
		return errors.Newf(errors.ErrorTypeNotFound, "procedure %q is not defined", procedure)
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, text, args...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "procedure failed").WithDetail("procedure", procedure)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "commit failed")
	}
	return nil
}

// Truncate implements core.Conn. SQLite has no TRUNCATE; an unqualified
// DELETE takes the truncate optimization.
func (c *Conn) Truncate(ctx context.Context, table string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM "+sqlutil.SQLite.QuoteIdentifier(table)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "truncate failed")
	}
	return nil
}

// Ping implements core.Pinger.
func (c *Conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close implements core.Conn.
func (c *Conn) Close(context.Context) error {
	return c.db.Close()
}
