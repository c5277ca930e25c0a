// Package db adapts DuckDB as the SQL engine of DuckServe and serializes its
// results.
//
// An Engine owns a single DuckDB connection. Temporary tables are scoped to a
// connection in DuckDB, so every statement runs on the same one:
//
//	engine, err := db.Open("")        // in-memory database
//	err = engine.Exec(ctx, "CREATE TEMP TABLE t AS SELECT 1 AS a")
//	table, err := engine.Query(ctx, "SELECT * FROM t")
//
// # Encoders
//
// A Table is encoded either as an Arrow IPC stream or as a JSON array of
// row objects. Both encoders are pure functions of the Table:
//
//	payload, err := db.EncodeArrow(table) // schema + record batches
//	text, err := db.EncodeJSON(table)     // [{"a":1}]
package db
