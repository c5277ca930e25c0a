package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/nickyhof/DuckServe/core"
)

// Engine executes SQL against one dedicated DuckDB connection.
type Engine struct {
	path string
	db   *sql.DB
	conn *sql.Conn
}

// Open opens the DuckDB database at path. An empty path or ":memory:" opens a
// fresh in-memory database.
func Open(path string) (*Engine, error) {
	dsn := path
	if dsn == ":memory:" {
		dsn = ""
	}

	database, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, core.Wrap(core.EngineError, "failed to open duckdb", err)
	}

	conn, err := database.Conn(context.Background())
	if err != nil {
		database.Close()
		return nil, core.Wrap(core.EngineError, "failed to connect to duckdb", err)
	}

	return &Engine{
		path: path,
		db:   database,
		conn: conn,
	}, nil
}

// Path returns the database path the engine was opened with.
func (e *Engine) Path() string {
	if e.path == "" {
		return ":memory:"
	}
	return e.path
}

// Exec runs a statement and discards any result.
func (e *Engine) Exec(ctx context.Context, statement string) error {
	if _, err := e.conn.ExecContext(ctx, statement); err != nil {
		return core.Wrap(core.EngineError, "", err)
	}
	return nil
}

// Query runs a statement and materializes its full result.
func (e *Engine) Query(ctx context.Context, statement string) (Table, error) {
	rows, err := e.conn.QueryContext(ctx, statement)
	if err != nil {
		return Table{}, core.Wrap(core.EngineError, "", err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return Table{}, core.Wrap(core.EngineError, "failed to read column types", err)
	}

	table := Table{Columns: make([]Column, len(columnTypes))}
	for i, ct := range columnTypes {
		table.Columns[i] = Column{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
		}
	}

	for rows.Next() {
		values := make([]any, len(columnTypes))
		pointers := make([]any, len(columnTypes))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return Table{}, core.Wrap(core.EngineError, fmt.Sprintf("failed to scan row %d", len(table.Rows)), err)
		}
		for i, c := range table.Columns {
			values[i] = normalizeValue(c.DatabaseType, values[i])
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Table{}, core.Wrap(core.EngineError, "", err)
	}

	return table, nil
}

// Close releases the connection and the database.
func (e *Engine) Close() error {
	if err := e.conn.Close(); err != nil {
		e.db.Close()
		return err
	}
	return e.db.Close()
}
