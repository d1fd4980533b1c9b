package dump

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/models"
)

func testReport() Report {
	return Report{
		Time:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Step:     "record",
		Attempts: 10,
		Cause:    errors.New(errors.ErrorTypeWriteFailed, "bulk load into staging table failed"),
		Record:   models.DocumentFromPairs("id", 42, "name", "it's \"quoted\""),
		Pending: models.Batch{
			Schema: models.NewFieldSchema("id", "name"),
			Rows:   []models.Row{{"40", "a"}, {"41", ""}, {"42", "it's \"quoted\""}},
		},
	}
}

func TestWriteRead(t *testing.T) {
	for _, algo := range []string{"", "gzip", "zstd", "snappy", "lz4"} {
		t.Run("algo="+algo, func(t *testing.T) {
			dir := t.TempDir()
			path, err := Write(filepath.Join(dir, "abort.jsonl"), algo, testReport())
			require.NoError(t, err)

			header, rows, err := Read(path)
			require.NoError(t, err)

			assert.Equal(t, "record", header.Step)
			assert.Equal(t, 10, header.Attempts)
			assert.Contains(t, header.Cause, "bulk load into staging table failed")
			assert.JSONEq(t, `{"id":"42","name":"it's \"quoted\""}`, string(header.Record))
			assert.Equal(t, models.NewFieldSchema("id", "name"), header.Schema)
			assert.Equal(t, 3, header.PendingRows)
			assert.Equal(t, testReport().Pending.Rows, rows)
		})
	}
}

func TestWrite_AppendsExtension(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(filepath.Join(dir, "abort.jsonl"), "gzip", testReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abort.jsonl.gz"), path)

	path, err = Write(filepath.Join(dir, "abort.jsonl.zst"), "zstd", testReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abort.jsonl.zst"), path)
}

func TestWrite_NoRecord(t *testing.T) {
	r := testReport()
	r.Record = nil
	r.Step = "finalize"
	r.Pending = models.Batch{}

	path, err := Write(filepath.Join(t.TempDir(), "abort.jsonl"), "none", r)
	require.NoError(t, err)

	header, rows, err := Read(path)
	require.NoError(t, err)
	assert.True(t, len(header.Record) == 0 || string(header.Record) == "null")
	assert.Empty(t, rows)
}

func TestWrite_Errors(t *testing.T) {
	_, err := Write(filepath.Join(t.TempDir(), "abort.jsonl"), "brotli", testReport())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Write(filepath.Join(t.TempDir(), "missing", "abort.jsonl"), "none", testReport())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	empty := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, _, err = Read(empty)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}
