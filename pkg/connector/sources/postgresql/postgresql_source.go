// Package postgresql implements a paged source over a PostgreSQL query using
// a server-side cursor, so arbitrarily large result sets are read with
// bounded memory.
package postgresql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const cursorName = "stagesync_source"

// Cursor pages through a server-side cursor declared inside a read-only
// transaction.
type Cursor struct {
	conn     *pgx.Conn
	tx       pgx.Tx
	fetchSQL string
	pageSize int
	done     bool
	read     int64
	logger   *zap.Logger
}

// NewCursor connects, declares the cursor and returns it ready to page.
func NewCursor(ctx context.Context, cfg config.SourceConfig) (core.Cursor, error) {
	query, err := sourceQuery(cfg)
	if err != nil {
		return nil, err
	}

	pgCfg, err := pgx.ParseConfig(cfg.URI)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid PostgreSQL connection string")
	}
	if cfg.ConnectTimeout > 0 {
		pgCfg.ConnectTimeout = cfg.ConnectTimeout
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	log := logger.Get().With(zap.String("connector", "postgresql"), zap.String("host", pgCfg.Host))

	conn, err := pgx.ConnectConfig(ctx, pgCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to connect to PostgreSQL")
	}

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		conn.Close(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to begin read transaction")
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, query)); err != nil {
		_ = tx.Rollback(context.Background())
		conn.Close(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to declare source cursor")
	}

	log.Info("postgresql source opened", zap.Int("page_size", pageSize))
	return &Cursor{
		conn:     conn,
		tx:       tx,
		fetchSQL: fmt.Sprintf("FETCH FORWARD %d FROM %s", pageSize, cursorName),
		pageSize: pageSize,
		logger:   log,
	}, nil
}

// sourceQuery returns the configured query, or a full scan of the configured
// table when no query is given.
func sourceQuery(cfg config.SourceConfig) (string, error) {
	query := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cfg.Query), ";"))
	if query != "" {
		return query, nil
	}
	if cfg.Collection == "" {
		return "", errors.New(errors.ErrorTypeConfig, "postgresql source requires source.query or source.collection")
	}
	return "SELECT * FROM " + pgx.Identifier(strings.Split(cfg.Collection, ".")).Sanitize(), nil
}

// HasMore implements core.Cursor.
func (c *Cursor) HasMore() bool {
	return !c.done
}

// NextPage implements core.Cursor.
func (c *Cursor) NextPage(ctx context.Context) ([]models.Record, error) {
	if c.done {
		return nil, nil
	}

	rows, err := c.tx.Query(ctx, c.fetchSQL)
	if err != nil {
		c.done = true
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to fetch from source cursor")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	page := make([]models.Record, 0, c.pageSize)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode source row")
		}
		doc := models.NewDocument(len(fields))
		for i, fd := range fields {
			doc.Set(fd.Name, normalize(values[i]))
		}
		page = append(page, doc)
	}
	if err := rows.Err(); err != nil {
		c.done = true
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "source cursor failed").
			WithDetail("records_read", c.read)
	}

	c.read += int64(len(page))
	if len(page) < c.pageSize {
		c.done = true
	}
	c.logger.Debug("page fetched", zap.Int("records", len(page)), zap.Int64("records_read", c.read))
	return page, nil
}

// Close implements core.Cursor.
func (c *Cursor) Close(ctx context.Context) error {
	c.done = true
	if c.tx != nil {
		_ = c.tx.Rollback(ctx)
		c.tx = nil
	}
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(ctx)
	c.conn = nil
	return err
}

// normalize converts pgx decoded values into types models.Stringify renders
// naturally.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case [16]byte:
		return formatUUID(t)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil || dv == nil {
			return nil
		}
		return dv
	default:
		return t
	}
}

func formatUUID(b [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
