package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_KeyOrderAndGet(t *testing.T) {
	d := NewDocument(3)
	d.Set("id", 7)
	d.Set("name", "alice")
	d.Set("deleted", nil)
	d.Set("id", 8)

	assert.Equal(t, []string{"id", "name", "deleted"}, d.Keys())

	v, ok := d.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "8", v)

	v, ok = d.Get("deleted")
	assert.False(t, ok, "null values are reported as absent")
	assert.Equal(t, "", v)

	_, ok = d.Get("missing")
	assert.False(t, ok)
}

func TestStringify(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"string", "x", "x"},
		{"bool", true, "true"},
		{"int64", int64(-12), "-12"},
		{"uint8", uint8(200), "200"},
		{"float", 1.5, "1.5"},
		{"float integral", float64(3), "3"},
		{"time", ts, "2024-03-01T11:00:00Z"},
		{"bytes", []byte("hi"), "aGk="},
		{"map", map[string]interface{}{"a": 1}, `{"a":1}`},
		{"slice", []interface{}{"a", 2}, `["a",2]`},
		{"nested document", DocumentFromPairs("k", "v"), `{"k":"v"}`},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stringify(tt.in))
		})
	}
}

func TestRecordJSON(t *testing.T) {
	d := DocumentFromPairs("b", "quote\"d", "a", nil)
	assert.JSONEq(t, `{"b":"quote\"d","a":null}`, string(RecordJSON(d)))
	assert.Equal(t, `{"b":"quote\"d","a":null}`, d.String())
}

func TestBatch_MarshalJSON(t *testing.T) {
	b := Batch{
		Schema: NewFieldSchema("id", "name"),
		Rows:   []Row{{"1", "alice"}, {"2", ""}},
	}

	data, err := b.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1","name":"alice"},{"id":"2","name":""}]`, string(data))

	assert.Equal(t, []string{"alice", ""}, b.Column(1))
	assert.Equal(t, [][]interface{}{{"1", "alice"}, {"2", ""}}, b.Values())
}

func TestBatch_MarshalJSONEmpty(t *testing.T) {
	data, err := Batch{Schema: NewFieldSchema("id")}.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(data))
}

func TestNewFieldSchema_Copies(t *testing.T) {
	fields := []string{"a", "b"}
	s := NewFieldSchema(fields...)
	fields[0] = "z"

	assert.Equal(t, FieldSchema{"a", "b"}, s)
	assert.True(t, s.Equal(FieldSchema{"a", "b"}))
	assert.False(t, s.Equal(FieldSchema{"b", "a"}))
	assert.True(t, NewFieldSchema().IsEmpty())
}

func TestParseDocument_KeepsKeyOrder(t *testing.T) {
	d, err := ParseDocument([]byte(`{"z":1,"a":"x","m":{"k":[1,2]},"n":null,"f":1.50}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m", "n", "f"}, d.Keys())

	v, _ := d.Get("z")
	assert.Equal(t, "1", v)
	v, _ = d.Get("m")
	assert.Equal(t, `{"k":[1,2]}`, v)
	v, _ = d.Get("f")
	assert.Equal(t, "1.50", v, "numbers render as written")
	_, ok := d.Get("n")
	assert.False(t, ok)
}

func TestParseDocument_RejectsNonObjects(t *testing.T) {
	_, err := ParseDocument([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`{"a":`))
	assert.Error(t, err)
}
