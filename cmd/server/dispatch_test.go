package main

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/DuckServe"
	"github.com/nickyhof/DuckServe/bundle"
	"github.com/nickyhof/DuckServe/db"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDispatcher(t *testing.T, bundleDir string) (*Dispatcher, *DuckServe.Instance) {
	t.Helper()
	engine, err := db.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	instance := DuckServe.Open(engine)
	bundler := bundle.New(instance, bundleDir, bundle.Options{}, testLogger())
	return NewDispatcher(instance, bundler, DispatchOptions{SlowQuery: 5 * time.Second}, testLogger()), instance
}

func dispatch(d *Dispatcher, frame string) Reply {
	return d.Dispatch(context.Background(), "test", []byte(frame))
}

func TestDispatchJSON(t *testing.T) {
	d, _ := newTestDispatcher(t, t.TempDir())

	reply := dispatch(d, `{"type":"json","sql":"SELECT 1 AS a"}`)
	assert.False(t, reply.Binary)
	assert.Equal(t, `[{"a":1}]`, string(reply.Payload))
}

func TestDispatchArrow(t *testing.T) {
	d, _ := newTestDispatcher(t, t.TempDir())

	reply := dispatch(d, `{"type":"arrow","sql":"SELECT 1 AS a"}`)
	require.True(t, reply.Binary)

	reader, err := ipc.NewReader(bytes.NewReader(reply.Payload))
	require.NoError(t, err)
	defer reader.Release()

	require.Len(t, reader.Schema().Fields(), 1)
	assert.Equal(t, "a", reader.Schema().Field(0).Name)
	assert.Equal(t, arrow.PrimitiveTypes.Int32, reader.Schema().Field(0).Type)

	require.True(t, reader.Next())
	record := reader.Record()
	require.EqualValues(t, 1, record.NumRows())
	assert.Equal(t, int32(1), record.Column(0).(*array.Int32).Value(0))
}

func TestDispatchExec(t *testing.T) {
	d, _ := newTestDispatcher(t, t.TempDir())

	assert.Equal(t, "{}", string(dispatch(d, `{"type":"exec","sql":"CREATE TABLE t AS SELECT 7 AS x"}`).Payload))
	assert.Equal(t, `[{"x":7}]`, string(dispatch(d, `{"type":"json","sql":"SELECT x FROM t"}`).Payload))
}

func TestDispatchPersist(t *testing.T) {
	d, instance := newTestDispatcher(t, t.TempDir())

	dispatch(d, `{"type":"json","sql":"SELECT 1 AS a"}`)
	assert.Equal(t, 0, instance.Cache.Len())

	dispatch(d, `{"type":"json","sql":"SELECT 1 AS a","persist":true}`)
	assert.Equal(t, 1, instance.Cache.Len())
}

func TestDispatchErrors(t *testing.T) {
	d, _ := newTestDispatcher(t, t.TempDir())

	tests := []struct {
		name  string
		frame string
	}{
		{"invalid json", `{"type":`},
		{"missing type", `{"sql":"SELECT 1"}`},
		{"missing sql", `{"type":"json"}`},
		{"unknown type", `{"type":"drop-everything"}`},
		{"missing table", `{"type":"json","sql":"SELECT * FROM missing_table"}`},
		{"syntax error", `{"type":"exec","sql":"SELEC 1"}`},
		{"missing bundle", `{"type":"load-bundle"}`},
		{"bad bundle name", `{"type":"load-bundle","name":"../x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := dispatch(d, tt.frame)
			assert.False(t, reply.Binary)
			assert.Contains(t, string(reply.Payload), `{"error":`)
		})
	}

	// The dispatcher stays usable after failures.
	assert.Equal(t, `[{"a":1}]`, string(dispatch(d, `{"type":"json","sql":"SELECT 1 AS a"}`).Payload))
}

func TestDispatchUnknownTypeMessage(t *testing.T) {
	d, _ := newTestDispatcher(t, t.TempDir())
	assert.JSONEq(t, `{"error":"unknown command type \"nope\""}`, string(dispatch(d, `{"type":"nope"}`).Payload))
}

func TestDispatchBundleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source, _ := newTestDispatcher(t, dir)

	reply := dispatch(source, `{"type":"create-bundle","queries":["CREATE TEMP TABLE IF NOT EXISTS t AS SELECT 1 AS a","SELECT count(*) FROM t"]}`)
	require.Equal(t, "{}", string(reply.Payload))
	live := dispatch(source, `{"type":"arrow","sql":"SELECT count(*) FROM t"}`)

	target, instance := newTestDispatcher(t, dir)
	require.Equal(t, "{}", string(dispatch(target, `{"type":"load-bundle"}`).Payload))
	assert.Equal(t, 1, instance.Cache.Len())

	cached := dispatch(target, `{"type":"arrow","sql":"SELECT count(*) FROM t"}`)
	assert.True(t, cached.Binary)
	assert.Equal(t, live.Payload, cached.Payload)

	assert.Equal(t, `[{"a":1}]`, string(dispatch(target, `{"type":"json","sql":"SELECT a FROM t"}`).Payload))
}

func TestDispatchNamedBundle(t *testing.T) {
	dir := t.TempDir()
	d, _ := newTestDispatcher(t, dir)

	require.Equal(t, "{}", string(dispatch(d, `{"type":"create-bundle","name":"nightly","queries":[{"sql":"SELECT 2 AS b","alias":"two"}]}`).Payload))
	assert.FileExists(t, dir+"/nightly/two.parquet")
	assert.Contains(t, string(dispatch(d, `{"type":"load-bundle"}`).Payload), "error")
	assert.Equal(t, "{}", string(dispatch(d, `{"type":"load-bundle","name":"nightly"}`).Payload))
}

type panickingEngine struct {
	DuckServe.Engine
}

func (e panickingEngine) Query(ctx context.Context, statement string) (db.Table, error) {
	if statement == "SELECT boom" {
		panic("engine exploded")
	}
	return e.Engine.Query(ctx, statement)
}

func TestDispatchRecoversPanic(t *testing.T) {
	d, instance := newTestDispatcher(t, t.TempDir())
	instance.Engine = panickingEngine{Engine: instance.Engine}

	reply := dispatch(d, `{"type":"json","sql":"SELECT boom"}`)
	assert.False(t, reply.Binary)
	assert.JSONEq(t, `{"error":"internal error: engine exploded"}`, string(reply.Payload))

	// The command lock was released.
	assert.Equal(t, `[{"a":1}]`, string(dispatch(d, `{"type":"json","sql":"SELECT 1 AS a"}`).Payload))
}

func TestDispatchLogsSlowCommands(t *testing.T) {
	d, _ := newTestDispatcher(t, t.TempDir())
	logger, hook := test.NewNullLogger()
	d.log = logger
	d.opts.SlowQuery = time.Nanosecond

	dispatch(d, `{"type":"json","sql":"SELECT 1 AS a"}`)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "Slow command", entry.Message)
	assert.Equal(t, "json", entry.Data["type"])

	hook.Reset()
	d.opts.SlowQuery = time.Hour
	dispatch(d, `{"type":"json","sql":"SELECT 1 AS a"}`)

	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "Command completed", entry.Message)
}
