package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{Postgres, "staging", `"staging"`},
		{Postgres, "etl.staging", `"etl"."staging"`},
		{Postgres, `we"ird`, `"we""ird"`},
		{MySQL, "etl.staging", "`etl`.`staging`"},
		{MySQL, "a`b", "`a``b`"},
		{Snowflake, "ETL.STAGING", "ETL.STAGING"},
		{Snowflake, "etl.my table", `etl."my table"`},
		{Snowflake, "1st", `"1st"`},
		{SQLite, "staging", `"staging"`},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.QuoteIdentifier(tt.in))
		})
	}
}

func TestInsertStatement(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "staging" ("id", "name") VALUES ($1, $2), ($3, $4)`,
		InsertStatement(Postgres, "staging", []string{"id", "name"}, 2))

	assert.Equal(t,
		"INSERT INTO `staging` (`id`) VALUES (?), (?), (?)",
		InsertStatement(MySQL, "staging", []string{"id"}, 3))
}

func TestCallStatement(t *testing.T) {
	assert.Equal(t, `CALL "etl"."merge_rows"()`, CallStatement(Postgres, "etl.merge_rows"))
	assert.Equal(t, `CALL ETL.STAGE_ROWS(PARSE_JSON(?))`, CallStatement(Snowflake, "ETL.STAGE_ROWS", "PARSE_JSON(?)"))
}

func TestBuilder(t *testing.T) {
	b := NewBuilder(Postgres, 0)
	b.WriteQuery("SELECT").WriteSpace().WriteStringLiteral("it's").WriteQuery(", ").WriteInt(42).
		WriteQuery(" WHERE x = ").WritePlaceholder()

	assert.Equal(t, `SELECT 'it''s', 42 WHERE x = $1`, b.String())
	assert.Equal(t, 1, b.Params())
}
