package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseFilter(t *testing.T) {
	filter, err := parseFilter("")
	require.NoError(t, err)
	assert.Empty(t, filter)

	filter, err = parseFilter(`{"status": "active", "age": {"$gt": 21}}`)
	require.NoError(t, err)
	require.Len(t, filter, 2)
	assert.Equal(t, "status", filter[0].Key)
	assert.Equal(t, "age", filter[1].Key)

	_, err = parseFilter(`{"status": `)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestDocumentFromBSON(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("65f1c0ffee0000000000abcd")
	require.NoError(t, err)
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	doc := documentFromBSON(bson.D{
		{Key: "_id", Value: oid},
		{Key: "count", Value: int32(3)},
		{Key: "created", Value: primitive.NewDateTimeFromTime(when)},
		{Key: "missing", Value: primitive.Null{}},
		{Key: "tags", Value: bson.A{"a", "b"}},
		{Key: "nested", Value: bson.D{{Key: "k", Value: "v"}}},
	})

	assert.Equal(t, []string{"_id", "count", "created", "missing", "tags", "nested"}, doc.Keys())

	v, _ := doc.Get("_id")
	assert.Equal(t, "65f1c0ffee0000000000abcd", v)
	v, _ = doc.Get("count")
	assert.Equal(t, "3", v)
	v, _ = doc.Get("created")
	assert.Equal(t, "2024-05-06T07:08:09Z", v)
	_, ok := doc.Get("missing")
	assert.False(t, ok)
	v, _ = doc.Get("tags")
	assert.JSONEq(t, `["a","b"]`, v)
	v, _ = doc.Get("nested")
	assert.JSONEq(t, `{"k":"v"}`, v)
}

func TestNewCursor_RequiresLocation(t *testing.T) {
	_, err := NewCursor(context.Background(), config.SourceConfig{URI: "mongodb://localhost"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
