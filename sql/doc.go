// Package sql classifies SQL statements for bundle export.
//
// Classification is a small set of anchored pattern matchers over the trimmed
// statement text. It does not parse SQL; it only decides how a statement is
// treated when a bundle is created:
//
//	sql.Classify("CREATE TEMP TABLE t AS SELECT 1")  // CreateTableStatement, Table "t"
//	sql.Classify("CREATE VIEW v AS SELECT * FROM t") // CreateViewStatement
//	sql.Classify("PRAGMA threads=4")                 // PragmaStatement
//	sql.Classify("DESCRIBE t")                       // DescribeStatement
//	sql.Classify("SELECT * FROM t")                  // QueryStatement
//
// Prefixes are case-sensitive: "create table ..." is an ordinary query.
package sql
