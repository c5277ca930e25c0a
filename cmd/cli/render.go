package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/olekukonko/tablewriter"
)

// renderArrow prints an Arrow IPC stream as a table and returns the row count.
func renderArrow(w io.Writer, payload []byte) (int, error) {
	reader, err := ipc.NewReader(bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("invalid arrow stream: %w", err)
	}
	defer reader.Release()

	fields := reader.Schema().Fields()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	rows := 0
	for reader.Next() {
		record := reader.Record()
		for r := 0; r < int(record.NumRows()); r++ {
			row := make([]string, record.NumCols())
			for c, col := range record.Columns() {
				if col.IsNull(r) {
					row[c] = "NULL"
				} else {
					row[c] = col.ValueStr(r)
				}
			}
			table.Append(row)
			rows++
		}
	}
	if err := reader.Err(); err != nil {
		return rows, fmt.Errorf("failed to read arrow stream: %w", err)
	}

	table.Render()
	return rows, nil
}

// renderJSON prints a JSON payload followed by a newline.
func renderJSON(w io.Writer, payload []byte) {
	w.Write(payload)
	fmt.Fprintln(w)
}
