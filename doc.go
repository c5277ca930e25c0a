// Package DuckServe provides a query, cache and bundle server for DuckDB.
//
// Clients send SQL over a WebSocket and receive results either as an Arrow IPC
// stream or as JSON. Results can be cached for the lifetime of the process,
// and a fixed set of queries can be exported to a bundle on disk so that a
// deployment can answer them without recomputing.
//
// # Quick Start
//
// Open an in-memory engine and serve queries through an Instance:
//
//	engine, _ := db.Open("")
//	instance := DuckServe.Open(engine)
//
//	instance.Exec(ctx, "CREATE TABLE flights AS SELECT * FROM 'flights.parquet'")
//	payload, _ := instance.Retrieve(ctx, "SELECT count(*) FROM flights", core.JSONFormat, true)
//
// # Bundles
//
// A bundle is a directory holding bundle.json, one Parquet file per
// materialized table, and one file per cached query result:
//
//	<bundle-dir>/bundle.json
//	<bundle-dir>/<table>.parquet
//	<bundle-dir>/<sha256(sql)>.arrow
//	<bundle-dir>/<sha256(sql)>.json
//
// See the bundle package for export and import.
package DuckServe
