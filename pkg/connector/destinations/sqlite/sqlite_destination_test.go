package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/stagesync/internal/pipeline"
	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/connector/core"
	"github.com/ajitpratap0/stagesync/pkg/connector/sources/jsonl"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/ajitpratap0/stagesync/pkg/testutil"
)

const schemaSQL = `
CREATE TABLE staging_rows (id TEXT, name TEXT, value TEXT);
CREATE TABLE final_rows (id TEXT PRIMARY KEY, name TEXT, value TEXT);
`

var procedures = map[string]string{
	"stage_rows": `INSERT INTO staging_rows (id, name, value)
SELECT json_extract(j.value, '$.id'), json_extract(j.value, '$.name'), json_extract(j.value, '$.value')
FROM json_each(?1) AS j`,
	"merge_rows": `INSERT INTO final_rows (id, name, value)
SELECT id, name, value FROM staging_rows WHERE true
ON CONFLICT(id) DO UPDATE SET name = excluded.name, value = excluded.value`,
}

type SQLiteSuite struct {
	testutil.IntegrationTestSuite
	dbs int
	cfg config.Config
	db  *sql.DB
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, new(SQLiteSuite))
}

func (s *SQLiteSuite) SetupTest() {
	s.dbs++
	dsn := filepath.Join(s.TempDir(), fmt.Sprintf("staging_%d.db", s.dbs))

	db, err := sql.Open("sqlite", dsn)
	s.Require().NoError(err)
	_, err = db.Exec(schemaSQL)
	s.Require().NoError(err)
	s.db = db

	cfg := config.Default()
	cfg.Source.Type = "jsonl"
	cfg.Destination.Type = "sqlite"
	cfg.Destination.DSN = dsn
	cfg.Destination.StagingTable = "staging_rows"
	cfg.Destination.StagingProcedure = "stage_rows"
	cfg.Destination.MergeProcedure = "merge_rows"
	cfg.Destination.Procedures = procedures
	cfg.Transfer.MaxRetries = 2
	cfg.Transfer.RetryDelay = 0
	s.cfg = cfg
}

func (s *SQLiteSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *SQLiteSuite) count(table string) int {
	var n int
	s.Require().NoError(s.db.QueryRow("SELECT count(*) FROM " + table).Scan(&n))
	return n
}

func (s *SQLiteSuite) run(cfg config.Config, cursor core.Cursor) *pipeline.Stats {
	dest, err := NewDestination(cfg.Destination)
	s.Require().NoError(err)

	driver := pipeline.NewDriver(cfg, dest, testutil.TestLogger(s.T()))
	stats, err := driver.Run(s.Context(), cursor)
	s.Require().NoError(err)
	return stats
}

func (s *SQLiteSuite) TestBulkRun() {
	s.cfg.Transfer.Strategy = config.StrategyBulk
	s.cfg.Transfer.ChunkSize = 500

	stats := s.run(s.cfg, testutil.NewSliceCursor(testutil.Records(2345), 100))

	s.Equal(int64(2345), stats.RowsFlushed)
	s.Equal(int64(5), stats.Flushes)
	s.Equal(2345, s.count("staging_rows"))
	s.Equal(2345, s.count("final_rows"))

	var name, value string
	s.Require().NoError(s.db.QueryRow("SELECT name, value FROM final_rows WHERE id = '3'").Scan(&name, &value))
	s.Equal("record-3", name)
	s.Equal("3", value)
}

func (s *SQLiteSuite) TestStructuredRun() {
	s.cfg.Transfer.Strategy = config.StrategyStructured
	s.cfg.Transfer.ChunkSize = 2500

	stats := s.run(s.cfg, testutil.NewSliceCursor(testutil.Records(2345), 100))

	s.Equal(int64(3), stats.Flushes)
	s.Equal(2345, s.count("staging_rows"))
	s.Equal(2345, s.count("final_rows"))
}

func (s *SQLiteSuite) TestMergeIsIdempotent() {
	s.cfg.Transfer.ChunkSize = 100
	s.run(s.cfg, testutil.NewSliceCursor(testutil.Records(250), 50))

	// Re-staging the same rows duplicates them in staging but not in the
	// final table.
	s.run(s.cfg, testutil.NewSliceCursor(testutil.Records(250), 50))

	s.Equal(500, s.count("staging_rows"))
	s.Equal(250, s.count("final_rows"))
}

func (s *SQLiteSuite) TestTruncate() {
	s.run(s.cfg, testutil.NewSliceCursor(testutil.Records(10), 5))
	s.Require().Equal(10, s.count("staging_rows"))

	dest, err := NewDestination(s.cfg.Destination)
	s.Require().NoError(err)
	conn, err := dest.Open(s.Context())
	s.Require().NoError(err)
	defer conn.Close(s.Context())

	s.Require().NoError(conn.Truncate(s.Context(), "staging_rows"))
	s.Equal(0, s.count("staging_rows"))
	s.Equal(10, s.count("final_rows"))
}

func (s *SQLiteSuite) TestFromJSONLines() {
	path := testutil.WriteJSONLines(s.T(), s.TempDir(), 250)
	s.cfg.Source.Path = path
	s.cfg.Source.PageSize = 40
	s.cfg.Transfer.ChunkSize = 64

	cursor, err := jsonl.NewCursor(s.Context(), s.cfg.Source)
	s.Require().NoError(err)
	defer cursor.Close(context.Background())

	stats := s.run(s.cfg, cursor)
	s.Equal(int64(250), stats.RecordsRead)
	s.Equal(250, s.count("final_rows"))

	var value string
	s.Require().NoError(s.db.QueryRow("SELECT value FROM final_rows WHERE id = '10'").Scan(&value))
	s.Empty(value)
	s.Require().NoError(s.db.QueryRow("SELECT value FROM final_rows WHERE id = '11'").Scan(&value))
	s.Equal("13.53", value)
}

func TestNewDestination(t *testing.T) {
	_, err := NewDestination(config.DestinationConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewDestination(config.DestinationConfig{
		DSN:            ":memory:",
		MergeProcedure: "merge_rows",
		Procedures:     map[string]string{},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	d, err := NewDestination(config.DestinationConfig{
		DSN:            ":memory:",
		MergeProcedure: "Merge_Rows",
		Procedures:     map[string]string{"merge_rows": "SELECT 1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}

func TestConn_UnknownProcedure(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	d, err := NewDestination(config.DestinationConfig{DSN: ":memory:"})
	require.NoError(t, err)
	conn, err := d.Open(ctx)
	require.NoError(t, err)
	defer conn.Close(ctx)

	err = conn.Call(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	err = conn.CallWithBatch(ctx, "missing", models.Batch{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	require.NoError(t, conn.(core.Pinger).Ping(ctx))
}
