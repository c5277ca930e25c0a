package db

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// EncodeJSON serializes the table as a JSON array with one object per row.
// Object fields follow column order.
func EncodeJSON(t Table) ([]byte, error) {
	names := t.ColumnNames()
	keys := make([][]byte, len(names))
	for i, name := range names {
		key, err := json.MarshalNoEscape(name)
		if err != nil {
			return nil, fmt.Errorf("failed to encode column name %q: %w", name, err)
		}
		keys[i] = key
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, row := range t.Rows {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i := range names {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[i])
			buf.WriteByte(':')

			var value any
			if i < len(row) {
				value = row[i]
			}
			data, err := json.MarshalNoEscape(jsonValue(value))
			if err != nil {
				return nil, fmt.Errorf("failed to encode column %s of row %d: %w", names[i], r, err)
			}
			buf.Write(data)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	return buf.Bytes(), nil
}
