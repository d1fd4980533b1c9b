package models

// FieldSchema is the ordered list of staging columns for a run. It is fixed
// once the run starts; every Row in the run has exactly its arity.
type FieldSchema []string

// NewFieldSchema copies fields into a new schema so later changes to the
// caller's slice cannot leak into a running transfer.
func NewFieldSchema(fields ...string) FieldSchema {
	if len(fields) == 0 {
		return nil
	}
	s := make(FieldSchema, len(fields))
	copy(s, fields)
	return s
}

// Len returns the number of columns.
func (s FieldSchema) Len() int { return len(s) }

// IsEmpty reports whether the schema still has to be inferred.
func (s FieldSchema) IsEmpty() bool { return len(s) == 0 }

// Equal reports whether two schemas have the same columns in the same order.
func (s FieldSchema) Equal(other FieldSchema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Row is a projected record: one string per schema column, never null.
type Row []string

// Batch is the staged set of rows handed to a flusher.
type Batch struct {
	Schema FieldSchema
	Rows   []Row
}

// Len returns the number of rows in the batch.
func (b Batch) Len() int { return len(b.Rows) }

// Values returns the rows as driver arguments, one []interface{} per row.
func (b Batch) Values() [][]interface{} {
	out := make([][]interface{}, len(b.Rows))
	for i, row := range b.Rows {
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}

// Column returns the values of the i-th column across all rows.
func (b Batch) Column(i int) []string {
	col := make([]string, len(b.Rows))
	for r, row := range b.Rows {
		col[r] = row[i]
	}
	return col
}

// MarshalJSON encodes the batch as an array of objects keyed by schema
// column, the table-shaped argument passed to staging procedures.
func (b Batch) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64*len(b.Rows)+2)
	buf = append(buf, '[')
	for i, row := range b.Rows {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '{')
		for j, col := range b.Schema {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSONString(buf, col)
			buf = append(buf, ':')
			buf = appendJSONString(buf, row[j])
		}
		buf = append(buf, '}')
	}
	return append(buf, ']'), nil
}
