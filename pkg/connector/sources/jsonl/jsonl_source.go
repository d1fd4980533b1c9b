// Package jsonl implements a file source reading one JSON object per line.
// Files ending in .gz, .zst, .sz, .s2 or .lz4 are decompressed on the fly.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"os"

	"github.com/ajitpratap0/stagesync/pkg/compression"
	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"go.uber.org/zap"
)

// maxLineSize bounds a single JSON line.
const maxLineSize = 16 * 1024 * 1024

// Cursor pages through a newline-delimited JSON file.
type Cursor struct {
	path     string
	pageSize int

	file    *os.File
	decomp  interface{ Close() error }
	scanner *bufio.Scanner
	line    int
	done    bool

	logger *zap.Logger
}

// NewCursor opens cfg.Path and returns a cursor positioned at the first line.
func NewCursor(_ context.Context, cfg config.SourceConfig) (core.Cursor, error) {
	if cfg.Path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "jsonl source requires source.path")
	}

	file, err := os.Open(cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to open input file").
			WithDetail("path", cfg.Path)
	}

	reader, err := compression.NewReader(bufio.NewReaderSize(file, 64*1024), compression.FromPath(cfg.Path))
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to open compressed input").
			WithDetail("path", cfg.Path)
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	c := &Cursor{
		path:     cfg.Path,
		pageSize: pageSize,
		file:     file,
		decomp:   reader,
		scanner:  scanner,
		logger:   logger.Get().With(zap.String("connector", "jsonl"), zap.String("path", cfg.Path)),
	}
	c.logger.Debug("jsonl source opened", zap.Int("page_size", pageSize))
	return c, nil
}

// HasMore implements core.Cursor.
func (c *Cursor) HasMore() bool {
	return !c.done
}

// NextPage reads up to pageSize non-empty lines.
func (c *Cursor) NextPage(ctx context.Context) ([]models.Record, error) {
	if c.done {
		return nil, nil
	}

	page := make([]models.Record, 0, c.pageSize)
	for len(page) < c.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "jsonl read cancelled")
		}
		if !c.scanner.Scan() {
			c.done = true
			if err := c.scanner.Err(); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to read input file").
					WithDetail("line", c.line)
			}
			break
		}
		c.line++

		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		doc, err := models.ParseDocument(line)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed JSON line").
				WithDetail("line", c.line).
				WithDetail("path", c.path)
		}
		page = append(page, doc)
	}
	return page, nil
}

// Close implements core.Cursor.
func (c *Cursor) Close(context.Context) error {
	c.done = true
	if c.decomp != nil {
		c.decomp.Close()
	}
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
