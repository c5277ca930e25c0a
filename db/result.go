package db

import "github.com/nickyhof/DuckServe/core"

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	// DatabaseType is the engine's type name, e.g. INTEGER or DECIMAL(18,3).
	DatabaseType string `json:"type"`
}

// Table is a fully materialized query result.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// NumRows returns the number of rows in the table.
func (t Table) NumRows() int {
	return len(t.Rows)
}

// ColumnNames returns the column names in order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Encode serializes the table in the given format.
func Encode(t Table, format core.Format) ([]byte, error) {
	switch format {
	case core.ArrowFormat:
		return EncodeArrow(t)
	case core.JSONFormat:
		return EncodeJSON(t)
	default:
		return nil, core.New(core.DecodeError, "unsupported format "+format.String())
	}
}
