package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SourceLifecycle(t *testing.T) {
	r := NewRegistry()

	var gotPageSize int
	factory := func(_ context.Context, cfg config.SourceConfig) (core.Cursor, error) {
		gotPageSize = cfg.PageSize
		return testutil.NewSliceCursor(testutil.Records(3), cfg.PageSize), nil
	}

	require.NoError(t, r.RegisterSource("memory", factory, &ConnectorInfo{Description: "in-memory"}))
	err := r.RegisterSource("memory", factory, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	cursor, err := r.CreateSource(context.Background(), config.SourceConfig{Type: "memory", PageSize: 2})
	require.NoError(t, err)
	assert.True(t, cursor.HasMore())
	assert.Equal(t, 2, gotPageSize)

	info, ok := r.Info(core.ConnectorTypeSource, "memory")
	require.True(t, ok)
	assert.Equal(t, "memory", info.Name)
	assert.Equal(t, core.ConnectorTypeSource, info.Type)
	assert.Equal(t, "in-memory", info.Description)

	_, ok = r.Info(core.ConnectorTypeDestination, "memory")
	assert.False(t, ok)
}

func TestRegistry_SourceFactoryErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource("broken", func(context.Context, config.SourceConfig) (core.Cursor, error) {
		return nil, fmt.Errorf("dial tcp: connection refused")
	}, nil))

	_, err := r.CreateSource(context.Background(), config.SourceConfig{Type: "broken"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnavailable))

	_, err = r.CreateSource(context.Background(), config.SourceConfig{Type: "unknown"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestRegistry_Destinations(t *testing.T) {
	r := NewRegistry()
	dest := testutil.NewMemoryDestination()

	require.NoError(t, r.RegisterDestination("memory", func(config.DestinationConfig) (core.Destination, error) {
		return dest, nil
	}, nil))
	require.NoError(t, r.RegisterDestination("another", func(config.DestinationConfig) (core.Destination, error) {
		return nil, fmt.Errorf("bad dsn")
	}, nil))

	got, err := r.CreateDestination(config.DestinationConfig{Type: "memory"})
	require.NoError(t, err)
	assert.Same(t, dest, got)

	_, err = r.CreateDestination(config.DestinationConfig{Type: "another"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	assert.Equal(t, []string{"another", "memory"}, r.ListDestinations())
	assert.Empty(t, r.ListSources())

	r.Clear()
	assert.Empty(t, r.ListDestinations())
}
