// Package models provides the data model shared by the transfer engine and
// the connectors: source records, the field schema, projected rows and the
// staging batch handed to destinations.
package models

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
)

// Record is a single source item exposed through a typed accessor. Records
// are produced by a source cursor and consumed immediately by the projector;
// they must not be retained past the page that produced them.
type Record interface {
	// Get returns the string form of the named field. ok is false when the
	// field is absent or null.
	Get(field string) (value string, ok bool)
	// Keys returns the field names in source order.
	Keys() []string
}

// Document is an ordered key/value Record. Keys keep the order in which they
// were first set, which is the order used when a schema is inferred.
type Document struct {
	keys   []string
	values map[string]interface{}
}

// NewDocument creates an empty document with room for n fields.
func NewDocument(n int) *Document {
	return &Document{
		keys:   make([]string, 0, n),
		values: make(map[string]interface{}, n),
	}
}

// DocumentFromPairs builds a document from alternating key, value arguments.
// It is mostly useful in tests.
func DocumentFromPairs(kv ...interface{}) *Document {
	d := NewDocument(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return d
}

// Set assigns a value, appending the key if it is new.
func (d *Document) Set(key string, value interface{}) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get implements Record.
func (d *Document) Get(field string) (string, bool) {
	v, ok := d.values[field]
	if !ok || v == nil {
		return "", false
	}
	return Stringify(v), true
}

// Keys implements Record.
func (d *Document) Keys() []string {
	return d.keys
}

// Value returns the raw value of a field.
func (d *Document) Value(field string) interface{} {
	return d.values[field]
}

// Len returns the number of fields.
func (d *Document) Len() int {
	return len(d.keys)
}

// String renders the document as JSON; it is used when reporting the last
// in-flight record of an aborted run.
func (d *Document) String() string {
	return string(RecordJSON(d))
}

// Stringify renders a scalar source value as the string stored in a staging
// column. Composite values (maps, slices) are rendered as compact JSON.
func Stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case gojson.Number:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *Document:
		return string(RecordJSON(t))
	case fmt.Stringer:
		return t.String()
	case map[string]interface{}, []interface{}:
		b, err := gojson.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// RecordJSON renders any Record as a JSON object with string values in key
// order.
func RecordJSON(r Record) []byte {
	keys := r.Keys()
	buf := make([]byte, 0, 16*len(keys)+2)
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = appendJSONString(buf, k)
		buf = append(buf, ':')
		if v, ok := r.Get(k); ok {
			buf = appendJSONString(buf, v)
		} else {
			buf = append(buf, "null"...)
		}
	}
	return append(buf, '}')
}

func appendJSONString(buf []byte, s string) []byte {
	b, err := gojson.Marshal(s)
	if err != nil {
		return append(buf, `""`...)
	}
	return append(buf, b...)
}
