package db

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/DuckServe/core"
)

func readArrow(t *testing.T, payload []byte) (*arrow.Schema, []arrow.Record) {
	t.Helper()
	reader, err := ipc.NewReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		record := reader.Record()
		record.Retain()
		records = append(records, record)
	}
	require.NoError(t, reader.Err())
	t.Cleanup(func() {
		for _, r := range records {
			r.Release()
		}
	})
	return reader.Schema(), records
}

func TestEncodeJSONSingleRow(t *testing.T) {
	engine := openTestEngine(t)

	table, err := engine.Query(context.Background(), "SELECT 1 AS a")
	require.NoError(t, err)

	payload, err := EncodeJSON(table)
	require.NoError(t, err)
	require.Equal(t, `[{"a":1}]`, string(payload))
}

func TestEncodeJSONKeepsColumnOrderAndTypes(t *testing.T) {
	engine := openTestEngine(t)

	table, err := engine.Query(context.Background(),
		"SELECT 'z' AS zeta, 2.5::DOUBLE AS alpha, NULL AS missing, true AS flag, 'a<b' AS html")
	require.NoError(t, err)

	payload, err := EncodeJSON(table)
	require.NoError(t, err)
	require.Equal(t, `[{"zeta":"z","alpha":2.5,"missing":null,"flag":true,"html":"a<b"}]`, string(payload))
}

func TestEncodeJSONEmptyResult(t *testing.T) {
	payload, err := EncodeJSON(Table{Columns: []Column{{Name: "a", DatabaseType: "INTEGER"}}})
	require.NoError(t, err)
	require.Equal(t, `[]`, string(payload))
}

func TestEncodeJSONSpecialValues(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	table := Table{
		Columns: []Column{{Name: "f"}, {Name: "ts"}, {Name: "list"}},
		Rows:    [][]any{{math.NaN(), ts, []any{int32(1), nil}}},
	}

	payload, err := EncodeJSON(table)
	require.NoError(t, err)
	require.Equal(t, `[{"f":null,"ts":"2024-05-01T12:30:00Z","list":[1,null]}]`, string(payload))
}

func TestEncodeArrowSingleRow(t *testing.T) {
	engine := openTestEngine(t)

	table, err := engine.Query(context.Background(), "SELECT 1 AS a")
	require.NoError(t, err)

	payload, err := EncodeArrow(table)
	require.NoError(t, err)

	schema, records := readArrow(t, payload)
	require.Equal(t, 1, schema.NumFields())
	require.Equal(t, "a", schema.Field(0).Name)
	require.Equal(t, arrow.PrimitiveTypes.Int32, schema.Field(0).Type)

	require.Len(t, records, 1)
	require.EqualValues(t, 1, records[0].NumRows())
	require.Equal(t, int32(1), records[0].Column(0).(*array.Int32).Value(0))
}

func TestEncodeArrowMixedTypes(t *testing.T) {
	engine := openTestEngine(t)

	table, err := engine.Query(context.Background(), `
		SELECT * FROM (VALUES
			(1::BIGINT, 'one', 1.5::DOUBLE, DATE '2024-01-02', true),
			(2::BIGINT, NULL, NULL, NULL, false)
		) AS v(id, name, score, day, ok)`)
	require.NoError(t, err)

	payload, err := EncodeArrow(table)
	require.NoError(t, err)

	schema, records := readArrow(t, payload)
	require.Equal(t, arrow.PrimitiveTypes.Int64, schema.Field(0).Type)
	require.Equal(t, arrow.BinaryTypes.String, schema.Field(1).Type)
	require.Equal(t, arrow.PrimitiveTypes.Float64, schema.Field(2).Type)
	require.Equal(t, arrow.FixedWidthTypes.Date32, schema.Field(3).Type)
	require.Equal(t, arrow.FixedWidthTypes.Boolean, schema.Field(4).Type)

	require.Len(t, records, 1)
	record := records[0]
	require.EqualValues(t, 2, record.NumRows())
	require.Equal(t, int64(2), record.Column(0).(*array.Int64).Value(1))
	require.Equal(t, "one", record.Column(1).(*array.String).Value(0))
	require.True(t, record.Column(1).IsNull(1))
	require.True(t, record.Column(3).IsNull(1))
	require.Equal(t, arrow.Date32FromTime(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)), record.Column(3).(*array.Date32).Value(0))
}

func TestEncodeArrowEmptyResultHasSchema(t *testing.T) {
	table := Table{Columns: []Column{{Name: "a", DatabaseType: "INTEGER"}}}

	payload, err := EncodeArrow(table)
	require.NoError(t, err)

	schema, records := readArrow(t, payload)
	require.Equal(t, "a", schema.Field(0).Name)
	require.Len(t, records, 1)
	require.EqualValues(t, 0, records[0].NumRows())
}

func TestEncodeArrowSplitsBatches(t *testing.T) {
	rows := make([][]any, arrowBatchSize+10)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	table := Table{Columns: []Column{{Name: "i", DatabaseType: "BIGINT"}}, Rows: rows}

	payload, err := EncodeArrow(table)
	require.NoError(t, err)

	_, records := readArrow(t, payload)
	require.Len(t, records, 2)
	require.EqualValues(t, arrowBatchSize, records[0].NumRows())
	require.EqualValues(t, 10, records[1].NumRows())
}

func TestEncodeArrowTypeMismatch(t *testing.T) {
	table := Table{
		Columns: []Column{{Name: "a", DatabaseType: "INTEGER"}},
		Rows:    [][]any{{"not a number"}},
	}
	_, err := EncodeArrow(table)
	require.Error(t, err)
}

func TestEncodeIsDeterministic(t *testing.T) {
	engine := openTestEngine(t)
	table, err := engine.Query(context.Background(), "SELECT range AS i, range * 2 AS j FROM range(100)")
	require.NoError(t, err)

	for _, format := range []core.Format{core.ArrowFormat, core.JSONFormat} {
		first, err := Encode(table, format)
		require.NoError(t, err)
		second, err := Encode(table, format)
		require.NoError(t, err)
		require.Equal(t, first, second, format.String())
	}
}

func TestArrowTypeMapping(t *testing.T) {
	require.Equal(t, arrow.PrimitiveTypes.Float64, arrowType("DECIMAL(18,3)"))
	require.Equal(t, arrow.BinaryTypes.String, arrowType("INTEGER[]"))
	require.Equal(t, arrow.BinaryTypes.String, arrowType("UUID"))
	require.Equal(t, arrow.FixedWidthTypes.Timestamp_us, arrowType("timestamp"))
	require.Equal(t, arrow.FixedWidthTypes.Timestamp_ns, arrowType("TIMESTAMP_NS"))
	require.Equal(t, arrow.BinaryTypes.Binary, arrowType("BLOB"))
	require.Equal(t, "UTC", arrowType("TIMESTAMP WITH TIME ZONE").(*arrow.TimestampType).TimeZone)
}

const testUUID = "3a2f7c1e-0000-4000-8000-000000000001"

func TestEncodeUUID(t *testing.T) {
	engine := openTestEngine(t)

	table, err := engine.Query(context.Background(), "SELECT '"+testUUID+"'::UUID AS u, NULL::UUID AS missing")
	require.NoError(t, err)

	payload, err := EncodeJSON(table)
	require.NoError(t, err)
	require.Equal(t, `[{"u":"`+testUUID+`","missing":null}]`, string(payload))

	payload, err = EncodeArrow(table)
	require.NoError(t, err)

	schema, records := readArrow(t, payload)
	require.Equal(t, arrow.BinaryTypes.String, schema.Field(0).Type)
	require.Equal(t, testUUID, records[0].Column(0).(*array.String).Value(0))
	require.True(t, records[0].Column(1).IsNull(0))
}

func TestEncodeBlob(t *testing.T) {
	engine := openTestEngine(t)

	table, err := engine.Query(context.Background(), "SELECT 'duck'::BLOB AS b")
	require.NoError(t, err)

	// JSON has no byte type, so blobs travel as base64 text.
	payload, err := EncodeJSON(table)
	require.NoError(t, err)
	require.Equal(t, `[{"b":"ZHVjaw=="}]`, string(payload))

	payload, err = EncodeArrow(table)
	require.NoError(t, err)

	schema, records := readArrow(t, payload)
	require.Equal(t, arrow.BinaryTypes.Binary, schema.Field(0).Type)
	require.Equal(t, []byte("duck"), records[0].Column(0).(*array.Binary).Value(0))
}

func TestEncodeTimestampNanoseconds(t *testing.T) {
	engine := openTestEngine(t)

	table, err := engine.Query(context.Background(), "SELECT TIMESTAMP_NS '2024-05-01 12:30:00.123456789' AS ts")
	require.NoError(t, err)

	payload, err := EncodeJSON(table)
	require.NoError(t, err)
	require.Equal(t, `[{"ts":"2024-05-01T12:30:00.123456789Z"}]`, string(payload))

	payload, err = EncodeArrow(table)
	require.NoError(t, err)

	schema, records := readArrow(t, payload)
	require.Equal(t, arrow.FixedWidthTypes.Timestamp_ns, schema.Field(0).Type)
	want := time.Date(2024, 5, 1, 12, 30, 0, 123456789, time.UTC)
	require.Equal(t, arrow.Timestamp(want.UnixNano()), records[0].Column(0).(*array.Timestamp).Value(0))
}

func TestNormalizeValue(t *testing.T) {
	raw := []byte{0x3a, 0x2f, 0x7c, 0x1e, 0, 0, 0x40, 0, 0x80, 0, 0, 0, 0, 0, 0, 0x01}
	require.Equal(t, testUUID, normalizeValue("UUID", raw))
	require.Equal(t, raw, normalizeValue("BLOB", raw))
	require.Nil(t, normalizeValue("UUID", nil))
}
