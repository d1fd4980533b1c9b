package pipeline

import "github.com/ajitpratap0/stagesync/pkg/models"

// Projector maps source records onto the run's FieldSchema.
//
// When no fields are configured the schema is taken from the keys of the
// first record projected and stays fixed for the rest of the run. Keys that
// are not part of the schema are dropped; schema fields missing from a record
// project to the empty string.
type Projector struct {
	schema   models.FieldSchema
	inferred bool
}

// NewProjector creates a projector for the configured fields. An empty list
// defers the schema to the first record.
func NewProjector(fields []string) *Projector {
	schema := models.NewFieldSchema(fields...)
	return &Projector{
		schema:   schema,
		inferred: !schema.IsEmpty(),
	}
}

// Schema returns the current schema. It is empty until the first record has
// been projected when no fields were configured.
func (p *Projector) Schema() models.FieldSchema {
	return p.schema
}

// Project converts a record into a row with exactly one value per schema field.
func (p *Projector) Project(record models.Record) models.Row {
	if !p.inferred {
		p.schema = models.NewFieldSchema(record.Keys()...)
		p.inferred = true
	}

	row := make(models.Row, len(p.schema))
	for i, field := range p.schema {
		if v, ok := record.Get(field); ok {
			row[i] = v
		}
	}
	return row
}
