// Package postgresql implements the staging destination on PostgreSQL.
// Bulk flushes use COPY, structured flushes pass the batch as one jsonb
// argument to a procedure, and server NOTICE messages are logged.
package postgresql

import (
	"context"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/ajitpratap0/stagesync/pkg/sqlutil"
)

// Destination opens pgx connections to the staging database.
type Destination struct {
	cfg    config.DestinationConfig
	pgCfg  *pgx.ConnConfig
	logger *zap.Logger
}

// NewDestination parses the DSN; no connection is made until Open.
func NewDestination(cfg config.DestinationConfig) (core.Destination, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "postgresql destination requires destination.dsn")
	}
	pgCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid PostgreSQL connection string")
	}

	d := &Destination{
		cfg:    cfg,
		logger: logger.Get().With(zap.String("connector", "postgresql"), zap.String("host", pgCfg.Host)),
	}
	pgCfg.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		logger.LogServerNotice(d.logger, serverNotice(n))
	}
	d.pgCfg = pgCfg
	return d, nil
}

// Name implements core.Destination.
func (d *Destination) Name() string { return "postgresql" }

// Open implements core.Destination.
func (d *Destination) Open(ctx context.Context) (core.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, d.pgCfg.Copy())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to PostgreSQL")
	}
	d.logger.Debug("destination connection opened")
	return &Conn{conn: conn, cfg: d.cfg}, nil
}

// Conn is one pgx connection.
type Conn struct {
	conn *pgx.Conn
	cfg  config.DestinationConfig
}

func (c *Conn) command(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CommandTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.CommandTimeout)
	}
	return context.WithCancel(ctx)
}

// BulkLoad implements core.Conn with COPY FROM STDIN.
func (c *Conn) BulkLoad(ctx context.Context, table string, batch models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	ctx, cancel := c.command(ctx)
	defer cancel()

	n, err := c.conn.CopyFrom(ctx, pgx.Identifier(strings.Split(table, ".")), batch.Schema, pgx.CopyFromRows(batch.Values()))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "COPY into staging table failed")
	}
	if n != int64(batch.Len()) {
		return errors.Newf(errors.ErrorTypeQuery, "COPY wrote %d of %d rows", n, batch.Len())
	}
	return nil
}

// CallWithBatch implements core.Conn. The batch is sent as a jsonb array of
// objects keyed by column name.
func (c *Conn) CallWithBatch(ctx context.Context, procedure string, batch models.Batch) error {
	payload, err := gojson.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode batch")
	}
	ctx, cancel := c.command(ctx)
	defer cancel()

	if _, err := c.conn.Exec(ctx, sqlutil.CallStatement(sqlutil.Postgres, procedure, "$1::jsonb"), string(payload)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "procedure call failed")
	}
	return nil
}

// Call implements core.Conn.
func (c *Conn) Call(ctx context.Context, procedure string) error {
	ctx, cancel := c.command(ctx)
	defer cancel()
	if _, err := c.conn.Exec(ctx, sqlutil.CallStatement(sqlutil.Postgres, procedure)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "procedure call failed")
	}
	return nil
}

// Truncate implements core.Conn.
func (c *Conn) Truncate(ctx context.Context, table string) error {
	ctx, cancel := c.command(ctx)
	defer cancel()
	if _, err := c.conn.Exec(ctx, "TRUNCATE TABLE "+sqlutil.Postgres.QuoteIdentifier(table)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "truncate failed")
	}
	return nil
}

// Ping implements core.Pinger.
func (c *Conn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close implements core.Conn.
func (c *Conn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// serverNotice maps a PostgreSQL notice onto the severity bands used by
// logger.LogServerNotice.
func serverNotice(n *pgconn.Notice) logger.ServerNotice {
	severity := 0
	switch strings.ToUpper(n.Severity) {
	case "WARNING":
		severity = 5
	case "ERROR", "FATAL", "PANIC":
		severity = 16
	}
	procedure := n.Routine
	if n.Where != "" {
		procedure = n.Where
	}
	return logger.ServerNotice{
		Severity:  severity,
		Line:      int(n.Line),
		Procedure: procedure,
		Message:   n.Message,
	}
}
