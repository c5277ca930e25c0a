package sql

import (
	"regexp"
	"strings"
)

// StatementKind is the bundle treatment of a statement.
type StatementKind int

const (
	// QueryStatement is an ordinary query whose result is cached as Arrow.
	QueryStatement StatementKind = iota
	// DescribeStatement is a DESCRIBE query whose result is cached as JSON.
	DescribeStatement
	// CreateTableStatement defines a table that is materialized to Parquet.
	CreateTableStatement
	// CreateViewStatement defines a view; views are never materialized.
	CreateViewStatement
	// UnsupportedCreateStatement is any other CREATE; it produces no artifact.
	UnsupportedCreateStatement
	// PragmaStatement is session configuration and is skipped.
	PragmaStatement
)

func (k StatementKind) String() string {
	switch k {
	case QueryStatement:
		return "query"
	case DescribeStatement:
		return "describe"
	case CreateTableStatement:
		return "create-table"
	case CreateViewStatement:
		return "create-view"
	case UnsupportedCreateStatement:
		return "create-unsupported"
	case PragmaStatement:
		return "pragma"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Kind StatementKind
	// Table is the captured table name for CreateTableStatement.
	Table string
}

var (
	createViewPattern  = regexp.MustCompile(`^CREATE(?:\s+OR\s+REPLACE)?(?:\s+(?:TEMP|TEMPORARY))?\s+VIEW\b`)
	createTablePattern = regexp.MustCompile(`^CREATE(?:\s+OR\s+REPLACE)?(?:\s+(?:TEMP|TEMPORARY))?\s+TABLE(?:\s+IF\s+NOT\s+EXISTS)?\s+(\w+)(?:\s|\(|;|$)`)
)

// Classify inspects the leading keywords of a statement. It is a heuristic
// over trimmed text with case-sensitive prefixes, not a parser. Precedence is
// CREATE VIEW, CREATE TABLE, other CREATE, PRAGMA, DESCRIBE, then query.
func Classify(statement string) Classification {
	text := strings.TrimSpace(statement)

	if strings.HasPrefix(text, "CREATE") {
		if createViewPattern.MatchString(text) {
			return Classification{Kind: CreateViewStatement}
		}
		if m := createTablePattern.FindStringSubmatch(text); m != nil {
			return Classification{Kind: CreateTableStatement, Table: m[1]}
		}
		return Classification{Kind: UnsupportedCreateStatement}
	}

	if strings.HasPrefix(text, "PRAGMA") {
		return Classification{Kind: PragmaStatement}
	}

	if strings.HasPrefix(text, "DESCRIBE") {
		return Classification{Kind: DescribeStatement}
	}

	return Classification{Kind: QueryStatement}
}

var identifierPattern = regexp.MustCompile(`^\w+$`)

// IsIdentifier reports whether name is a bare identifier that is also safe as a file name.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
