package models

import (
	"bytes"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// UnmarshalJSON decodes a JSON object into the document keeping the order of
// its top-level keys. Nested values are decoded into maps and slices and
// numbers are kept as gojson.Number so they render exactly as written.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(gojson.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	if d.values == nil {
		d.values = make(map[string]interface{})
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		d.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// ParseDocument decodes a single JSON object.
func ParseDocument(data []byte) (*Document, error) {
	d := NewDocument(8)
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return d, nil
}
