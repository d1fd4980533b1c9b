package snowflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
)

func TestNewDestination(t *testing.T) {
	_, err := NewDestination(config.DestinationConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	d, err := NewDestination(config.DestinationConfig{
		DSN: "loader:secret@myorg-acct/ETL/STAGING?warehouse=LOAD_WH",
	})
	require.NoError(t, err)
	assert.Equal(t, "snowflake", d.Name())
}

func TestArrayInsert(t *testing.T) {
	batch := models.Batch{
		Schema: models.NewFieldSchema("ID", "name"),
		Rows:   []models.Row{{"1", "a"}, {"2", "b"}, {"3", "c"}},
	}

	stmt, args, err := arrayInsert("ETL.STAGING_ROWS", batch)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO ETL.STAGING_ROWS (ID, name) VALUES (?, ?)`, stmt)
	require.Len(t, args, 2)
}
