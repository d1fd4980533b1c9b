// Package snowflake implements the staging destination on Snowflake.
// Bulk flushes use array binding, structured flushes pass the batch as one
// VARIANT argument built with PARSE_JSON.
package snowflake

import (
	"context"
	"database/sql"

	gojson "github.com/goccy/go-json"
	sf "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/ajitpratap0/stagesync/pkg/sqlutil"
)

// Destination opens Snowflake sessions.
type Destination struct {
	cfg    config.DestinationConfig
	logger *zap.Logger
}

// NewDestination validates the DSN; no session is opened until Open.
func NewDestination(cfg config.DestinationConfig) (core.Destination, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "snowflake destination requires destination.dsn")
	}
	sfCfg, err := sf.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid Snowflake DSN")
	}
	return &Destination{
		cfg: cfg,
		logger: logger.Get().With(
			zap.String("connector", "snowflake"),
			zap.String("account", sfCfg.Account),
			zap.String("warehouse", sfCfg.Warehouse),
		),
	}, nil
}

// Name implements core.Destination.
func (d *Destination) Name() string { return "snowflake" }

// Open implements core.Destination.
func (d *Destination) Open(ctx context.Context) (core.Conn, error) {
	db, err := sql.Open("snowflake", d.cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open Snowflake")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to Snowflake")
	}
	d.logger.Debug("destination session opened")
	return &Conn{db: db, cfg: d.cfg}, nil
}

// Conn is one Snowflake session.
type Conn struct {
	db  *sql.DB
	cfg config.DestinationConfig
}

func (c *Conn) command(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CommandTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

// BulkLoad implements core.Conn. One INSERT is executed with every column
// bound as an array.
func (c *Conn) BulkLoad(ctx context.Context, table string, batch models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	ctx, cancel := c.command(ctx)
	defer cancel()

	stmt, args, err := arrayInsert(table, batch)
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "array insert into staging table failed")
	}
	return nil
}

// arrayInsert builds a single-tuple INSERT whose placeholders are bound to
// per-column arrays.
func arrayInsert(table string, batch models.Batch) (string, []interface{}, error) {
	args := make([]interface{}, batch.Schema.Len())
	for i := range args {
		col := batch.Column(i)
		bound, err := sf.Array(&col)
		if err != nil {
			return "", nil, errors.Wrap(err, errors.ErrorTypeData, "failed to bind staging column").
				WithDetail("column", batch.Schema[i])
		}
		args[i] = bound
	}
	return sqlutil.InsertStatement(sqlutil.Snowflake, table, batch.Schema, 1), args, nil
}

// CallWithBatch implements core.Conn.
func (c *Conn) CallWithBatch(ctx context.Context, procedure string, batch models.Batch) error {
	payload, err := gojson.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode batch")
	}
	ctx, cancel := c.command(ctx)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, sqlutil.CallStatement(sqlutil.Snowflake, procedure, "PARSE_JSON(?)"), string(payload)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "procedure call failed")
	}
	return nil
}

// Call implements core.Conn.
func (c *Conn) Call(ctx context.Context, procedure string) error {
	ctx, cancel := c.command(ctx)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, sqlutil.CallStatement(sqlutil.Snowflake, procedure)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "procedure call failed")
	}
	return nil
}

// Truncate implements core.Conn.
func (c *Conn) Truncate(ctx context.Context, table string) error {
	ctx, cancel := c.command(ctx)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, "TRUNCATE TABLE "+sqlutil.Snowflake.QuoteIdentifier(table)); err != nil {
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
