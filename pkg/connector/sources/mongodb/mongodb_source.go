// Package mongodb implements a paged source over a MongoDB (or Cosmos DB
// Mongo API) collection query.
package mongodb

import (
	"context"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/logger"
	"github.com/ajitpratap0/stagesync/pkg/models"
	gojson "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Cursor pages through the result of a Find query.
type Cursor struct {
	client   *mongo.Client
	cursor   *mongo.Cursor
	pageSize int
	done     bool
	read     int64
	logger   *zap.Logger
}

// NewCursor connects, runs the query and returns a cursor over its results.
func NewCursor(ctx context.Context, cfg config.SourceConfig) (core.Cursor, error) {
	if cfg.URI == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "mongodb source requires source.uri, source.database and source.collection")
	}

	filter, err := parseFilter(cfg.Query)
	if err != nil {
		return nil, err
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	log := logger.Get().With(
		zap.String("connector", "mongodb"),
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to ping MongoDB")
	}

	findOpts := options.Find().SetBatchSize(int32(pageSize))
	cur, err := client.Database(cfg.Database).Collection(cfg.Collection).Find(ctx, filter, findOpts)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "failed to run MongoDB query")
	}

	log.Info("mongodb source opened", zap.Int("page_size", pageSize))
	return &Cursor{
		client:   client,
		cursor:   cur,
		pageSize: pageSize,
		logger:   log,
	}, nil
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

	page := make([]models.Record, 0, c.pageSize)
	for len(page) < c.pageSize {
		if !c.cursor.Next(ctx) {
			c.done = true
			if err := c.cursor.Err(); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeSourceUnavailable, "MongoDB cursor failed").
					WithDetail("records_read", c.read)
			}
			break
		}

		var raw bson.D
		if err := c.cursor.Decode(&raw); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode MongoDB document")
		}
		page = append(page, documentFromBSON(raw))
		c.read++
	}

	c.logger.Debug("page fetched", zap.Int("records", len(page)), zap.Int64("records_read", c.read))
	return page, nil
}

// Close implements core.Cursor.
func (c *Cursor) Close(ctx context.Context) error {
	c.done = true
	var firstErr error
	if c.cursor != nil {
		firstErr = c.cursor.Close(ctx)
		c.cursor = nil
	}
	if c.client != nil {
		if err := c.client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		c.client = nil
	}
	return firstErr
}

// parseFilter reads a relaxed extended JSON filter. An empty query matches
// every document.
func parseFilter(query string) (bson.D, error) {
	filter := bson.D{}
	if query == "" {
		return filter, nil
	}
	if err := bson.UnmarshalExtJSON([]byte(query), false, &filter); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "source.query is not a valid JSON filter")
	}
	return filter, nil
}

func documentFromBSON(raw bson.D) *models.Document {
	doc := models.NewDocument(len(raw))
	for _, elem := range raw {
		doc.Set(elem.Key, normalize(elem.Value))
	}
	return doc
}

// normalize converts BSON specific values into types models.Stringify renders
// naturally. Embedded documents and arrays become relaxed extended JSON.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case primitive.Decimal128:
		return t.String()
	case primitive.Binary:
		return t.Data
	case primitive.Null, primitive.Undefined:
		return nil
	case bson.D, bson.A, bson.M:
		// extended JSON needs a document at the top level
		b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: t}}, false, false)
		if err != nil {
			return nil
		}
		var envelope struct {
			V gojson.RawMessage `json:"v"`
		}
		if err := gojson.Unmarshal(b, &envelope); err != nil {
			return nil
		}
		return string(envelope.V)
	default:
		return t
	}
}
