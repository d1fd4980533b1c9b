package pipeline

import (
	"testing"

	"github.com/ajitpratap0/stagesync/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestProjector(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		records []models.Record
		schema  models.FieldSchema
		rows    []models.Row
	}{
		{
			name:   "inferred from first record",
			fields: nil,
			records: []models.Record{
				models.DocumentFromPairs("x", 1, "y", true),
				models.DocumentFromPairs("y", false, "z", "extra"),
			},
			schema: models.FieldSchema{"x", "y"},
			rows:   []models.Row{{"1", "true"}, {"", "false"}},
		},
		{
			name:   "configured fields keep their order",
			fields: []string{"y", "x"},
			records: []models.Record{
				models.DocumentFromPairs("x", "1", "y", "2", "z", "3"),
			},
			schema: models.FieldSchema{"y", "x"},
			rows:   []models.Row{{"2", "1"}},
		},
		{
			name:   "null projects to empty string",
			fields: []string{"x"},
			records: []models.Record{
				models.DocumentFromPairs("x", nil),
			},
			schema: models.FieldSchema{"x"},
			rows:   []models.Row{{""}},
		},
		{
			name:   "empty first record fixes an empty schema",
			fields: nil,
			records: []models.Record{
				models.NewDocument(0),
				models.DocumentFromPairs("x", "1"),
			},
			schema: nil,
			rows:   []models.Row{{}, {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProjector(tt.fields)
			rows := make([]models.Row, 0, len(tt.records))
			for _, r := range tt.records {
				rows = append(rows, p.Project(r))
			}
			assert.Equal(t, tt.schema, p.Schema())
			assert.Equal(t, tt.rows, rows)
		})
	}
}

func TestProjector_DoesNotAliasConfiguredFields(t *testing.T) {
	fields := []string{"a"}
	p := NewProjector(fields)
	fields[0] = "b"
	assert.Equal(t, models.FieldSchema{"a"}, p.Schema())
}
