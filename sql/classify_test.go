package sql

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		statement string
		kind      StatementKind
		table     string
	}{
		{"CREATE TABLE foo AS SELECT 1", CreateTableStatement, "foo"},
		{"CREATE TEMP TABLE IF NOT EXISTS t AS SELECT 1 AS a", CreateTableStatement, "t"},
		{"CREATE TEMPORARY TABLE bar(a INTEGER)", CreateTableStatement, "bar"},
		{"CREATE OR REPLACE TABLE flights AS SELECT * FROM 'flights.parquet'", CreateTableStatement, "flights"},
		{"  \n CREATE TABLE padded AS SELECT 1", CreateTableStatement, "padded"},
		{"CREATE TEMP VIEW bar AS SELECT * FROM foo", CreateViewStatement, ""},
		{"CREATE VIEW baz AS SELECT 1", CreateViewStatement, ""},
		{"CREATE OR REPLACE TEMPORARY VIEW v AS SELECT 1", CreateViewStatement, ""},
		{"CREATE TABLE main.qualified AS SELECT 1", UnsupportedCreateStatement, ""},
		{"CREATE SEQUENCE seq", UnsupportedCreateStatement, ""},
		{"CREATE INDEX idx ON foo(a)", UnsupportedCreateStatement, ""},
		{"PRAGMA threads=4", PragmaStatement, ""},
		{"DESCRIBE foo", DescribeStatement, ""},
		{"DESCRIBE SELECT * FROM foo", DescribeStatement, ""},
		{"SELECT * FROM foo", QueryStatement, ""},
		{"SELECT count(*) FROM t", QueryStatement, ""},
		{"WITH x AS (SELECT 1) SELECT * FROM x", QueryStatement, ""},
		{"create table lower AS SELECT 1", QueryStatement, ""},
		{"pragma threads=4", QueryStatement, ""},
	}

	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			got := Classify(tt.statement)
			if got.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, got.Kind)
			}
			if got.Table != tt.table {
				t.Errorf("Expected table '%s', got '%s'", tt.table, got.Table)
			}
		})
	}
}

func TestIsIdentifier(t *testing.T) {
	for _, name := range []string{"t", "flights_2024", "A1"} {
		if !IsIdentifier(name) {
			t.Errorf("Expected %q to be an identifier", name)
		}
	}
	for _, name := range []string{"", "a.b", "../x", "a b", "t;DROP"} {
		if IsIdentifier(name) {
			t.Errorf("Expected %q to be rejected", name)
		}
	}
}

func TestQuoteLiteral(t *testing.T) {
	if got := QuoteLiteral("it's"); got != "'it''s'" {
		t.Errorf("Unexpected literal: %s", got)
	}
}
