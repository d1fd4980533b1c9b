package postgresql

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ajitpratap0/stagesync/pkg/config"
	"github.com/ajitpratap0/stagesync/pkg/errors"
	"github.com/ajitpratap0/stagesync/pkg/testutil"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceQuery(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SourceConfig
		want    string
		wantErr bool
	}{
		{name: "query wins", cfg: config.SourceConfig{Query: " SELECT 1; ", Collection: "t"}, want: "SELECT 1"},
		{name: "table scan", cfg: config.SourceConfig{Collection: "orders"}, want: `SELECT * FROM "orders"`},
		{name: "qualified table", cfg: config.SourceConfig{Collection: "sales.orders"}, want: `SELECT * FROM "sales"."orders"`},
		{name: "nothing", cfg: config.SourceConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sourceQuery(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	uuid := [16]byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", normalize(uuid))

	var num pgtype.Numeric
	require.NoError(t, num.Scan("12.50"))
	assert.Equal(t, "12.50", normalize(num))

	assert.Nil(t, normalize(pgtype.Numeric{}))
	assert.Equal(t, int64(7), normalize(int64(7)))
	assert.Nil(t, normalize(nil))
}

func TestCursor_Integration(t *testing.T) {
	testutil.IntegrationTest(t)
	uri := os.Getenv("STAGESYNC_TEST_POSTGRES_URI")
	if uri == "" {
		t.Skip("STAGESYNC_TEST_POSTGRES_URI not set")
	}

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cur, err := NewCursor(ctx, config.SourceConfig{
		URI:            uri,
		Query:          "SELECT g AS id, 'row-' || g AS name FROM generate_series(1, 25) g",
		PageSize:       10,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer cur.Close(context.Background())

	var sizes []int
	for cur.HasMore() {
		page, err := cur.NextPage(ctx)
		require.NoError(t, err)
		sizes = append(sizes, len(page))
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
}
