// Package mysql implements the staging destination on MySQL through
// database/sql and go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/ajitpratap0/stagesync/pkg/sqlutil"
)

const (
	// insertBatchRows bounds the tuples of one INSERT statement.
	insertBatchRows = 1000
	// maxPlaceholders is the protocol limit on bind parameters per statement.
	maxPlaceholders = 65535
)

// Destination opens MySQL connections to the staging database.
type Destination struct {
	cfg    config.DestinationConfig
	dsn    string
	logger *zap.Logger
}

// NewDestination validates the DSN; no connection is made until Open.
func NewDestination(cfg config.DestinationConfig) (core.Destination, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mysql destination requires destination.dsn")
	}
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid MySQL DSN")
	}
	if cfg.CommandTimeout > 0 && mc.ReadTimeout == 0 {
		mc.ReadTimeout = cfg.CommandTimeout
		mc.WriteTimeout = cfg.CommandTimeout
	}
	return &Destination{
		cfg:    cfg,
		dsn:    mc.FormatDSN(),
		logger: logger.Get().With(zap.String("connector", "mysql"), zap.String("addr", mc.Addr)),
	}, nil
}

// Name implements core.Destination.
func (d *Destination) Name() string { return "mysql" }

// Open implements core.Destination.
func (d *Destination) Open(ctx context.Context) (core.Conn, error) {
	db, err := sql.Open("mysql", d.dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open MySQL")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to MySQL")
	}
	d.logger.Debug("destination connection opened")
	return &Conn{db: db}, nil
}

// Conn is a single-connection MySQL pool.
type Conn struct {
	db *sql.DB
}

// BulkLoad implements core.Conn with multi-row INSERT statements inside one
// transaction.
func (c *Conn) BulkLoad(ctx context.Context, table string, batch models.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	cols := batch.Schema.Len()
	if cols == 0 {
		return errors.New(errors.ErrorTypeSchemaMismatch, "cannot bulk load a batch without columns")
	}

	per := rowsPerStatement(cols)
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	values := batch.Values()
	full := sqlutil.InsertStatement(sqlutil.MySQL, table, batch.Schema, per)
	for start := 0; start < len(values); start += per {
		end := start + per
		if end > len(values) {
			end = len(values)
		}
		stmt := full
		if end-start != per {
			stmt = sqlutil.InsertStatement(sqlutil.MySQL, table, batch.Schema, end-start)
		}
		args := make([]interface{}, 0, (end-start)*cols)
		for _, row := range values[start:end] {
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return errors.Wrap(err, errors.ErrorTypeQuery, "insert into staging table failed").
				WithDetail("offset", start)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "commit failed")
	}
	return nil
}

// CallWithBatch implements core.Conn. The batch is passed as one JSON
// document argument.
func (c *Conn) CallWithBatch(ctx context.Context, procedure string, batch models.Batch) error {
	payload, err := gojson.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode batch")
	}
	if _, err := c.db.ExecContext(ctx, sqlutil.CallStatement(sqlutil.MySQL, procedure, "?"), string(payload)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "procedure call failed")
	}
	return nil
}

// Call implements core.Conn.
func (c *Conn) Call(ctx context.Context, procedure string) error {
	if _, err := c.db.ExecContext(ctx, sqlutil.CallStatement(sqlutil.MySQL, procedure)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "procedure call failed")
	}
	return nil
}

// Truncate implements core.Conn.
func (c *Conn) Truncate(ctx context.Context, table string) error {
	if _, err := c.db.ExecContext(ctx, "TRUNCATE TABLE "+sqlutil.MySQL.QuoteIdentifier(table)); err != nil {
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

func rowsPerStatement(cols int) int {
	per := insertBatchRows
	if per*cols > maxPlaceholders {
		per = maxPlaceholders / cols
	}
	if per < 1 {
		per = 1
	}
	return per
}
