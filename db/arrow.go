package db

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// arrowBatchSize is the maximum number of rows per record batch.
const arrowBatchSize = 1 << 16

var timestampTZ = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// arrowType maps a DuckDB type name to the Arrow type used on the wire.
// Types without a native mapping are sent as strings.
func arrowType(databaseType string) arrow.DataType {
	name := strings.ToUpper(strings.TrimSpace(databaseType))

	switch {
	case strings.HasPrefix(name, "DECIMAL"):
		return arrow.PrimitiveTypes.Float64
	case strings.HasSuffix(name, "[]") || strings.HasPrefix(name, "STRUCT") ||
		strings.HasPrefix(name, "MAP") || strings.HasPrefix(name, "UNION"):
		return arrow.BinaryTypes.String
	}

	switch name {
	case "BOOLEAN":
		return arrow.FixedWidthTypes.Boolean
	case "TINYINT":
		return arrow.PrimitiveTypes.Int8
	case "SMALLINT":
		return arrow.PrimitiveTypes.Int16
	case "INTEGER":
		return arrow.PrimitiveTypes.Int32
	case "BIGINT":
		return arrow.PrimitiveTypes.Int64
	case "UTINYINT":
		return arrow.PrimitiveTypes.Uint8
	case "USMALLINT":
		return arrow.PrimitiveTypes.Uint16
	case "UINTEGER":
		return arrow.PrimitiveTypes.Uint32
	case "UBIGINT":
		return arrow.PrimitiveTypes.Uint64
	case "HUGEINT", "UHUGEINT", "DOUBLE":
		return arrow.PrimitiveTypes.Float64
	case "FLOAT":
		return arrow.PrimitiveTypes.Float32
	case "BLOB":
		return arrow.BinaryTypes.Binary
	case "DATE":
		return arrow.FixedWidthTypes.Date32
	case "TIME":
		return arrow.FixedWidthTypes.Time64us
	case "TIMESTAMP", "TIMESTAMP_S", "TIMESTAMP_MS", "DATETIME":
		return arrow.FixedWidthTypes.Timestamp_us
	case "TIMESTAMP_NS":
		return arrow.FixedWidthTypes.Timestamp_ns
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return timestampTZ
	case "UUID":
		return arrow.BinaryTypes.String
	default:
		return arrow.BinaryTypes.String
	}
}

// ArrowSchema derives the Arrow schema of a table. All fields are nullable.
func ArrowSchema(t Table) *arrow.Schema {
	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     arrowType(c.DatabaseType),
			Nullable: true,
		}
	}
	return arrow.NewSchema(fields, nil)
}

// EncodeArrow serializes the table as a complete Arrow IPC stream held in
// memory. The stream always carries at least one record batch.
func EncodeArrow(t Table) ([]byte, error) {
	mem := memory.NewGoAllocator()
	schema := ArrowSchema(t)

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	flush := func() error {
		record := builder.NewRecord()
		defer record.Release()
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record batch: %w", err)
		}
		return nil
	}

	pending := 0
	for r, row := range t.Rows {
		for i, c := range t.Columns {
			var value any
			if i < len(row) {
				value = row[i]
			}
			if err := appendValue(builder.Field(i), value); err != nil {
				writer.Close()
				return nil, fmt.Errorf("column %s of row %d: %w", c.Name, r, err)
			}
		}
		pending++
		if pending == arrowBatchSize {
			if err := flush(); err != nil {
				writer.Close()
				return nil, err
			}
			pending = 0
		}
	}

	if pending > 0 || len(t.Rows) == 0 {
		if err := flush(); err != nil {
			writer.Close()
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close arrow stream: %w", err)
	}
	return buf.Bytes(), nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	mismatch := func() error {
		return fmt.Errorf("cannot encode %T as %s", v, b.Type())
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		value, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		b.Append(value)
	case *array.Int8Builder:
		i, ok := toInt64(v)
		if !ok {
			return mismatch()
		}
		b.Append(int8(i))
	case *array.Int16Builder:
		i, ok := toInt64(v)
		if !ok {
			return mismatch()
		}
		b.Append(int16(i))
	case *array.Int32Builder:
		i, ok := toInt64(v)
		if !ok {
			return mismatch()
		}
		b.Append(int32(i))
	case *array.Int64Builder:
		i, ok := toInt64(v)
		if !ok {
			return mismatch()
		}
		b.Append(i)
	case *array.Uint8Builder:
		u, ok := toUint64(v)
		if !ok {
			return mismatch()
		}
		b.Append(uint8(u))
	case *array.Uint16Builder:
		u, ok := toUint64(v)
		if !ok {
			return mismatch()
		}
		b.Append(uint16(u))
	case *array.Uint32Builder:
		u, ok := toUint64(v)
		if !ok {
			return mismatch()
		}
		b.Append(uint32(u))
	case *array.Uint64Builder:
		u, ok := toUint64(v)
		if !ok {
			return mismatch()
		}
		b.Append(u)
	case *array.Float32Builder:
		f, ok := toFloat64(v)
		if !ok {
			return mismatch()
		}
		b.Append(float32(f))
	case *array.Float64Builder:
		f, ok := toFloat64(v)
		if !ok {
			return mismatch()
		}
		b.Append(f)
	case *array.StringBuilder:
		b.Append(stringValue(v))
	case *array.BinaryBuilder:
		switch value := v.(type) {
		case []byte:
			b.Append(value)
		case string:
			b.AppendString(value)
		default:
			return mismatch()
		}
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch()
		}
		b.Append(arrow.Date32FromTime(t))
	case *array.Time64Builder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch()
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		b.Append(arrow.Time64(t.Sub(midnight).Microseconds()))
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return mismatch()
		}
		ts, err := arrow.TimestampFromTime(t, b.Type().(*arrow.TimestampType).Unit)
		if err != nil {
			return fmt.Errorf("cannot encode %v as %s: %w", t, b.Type(), err)
		}
		b.Append(ts)
	default:
		return mismatch()
	}
	return nil
}
