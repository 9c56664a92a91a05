package querysql

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported row sources.
type Dialect struct {
	Name string
	// Positional placeholders ($1, $2, ...) instead of ?.
	Positional bool
}

var (
	SQLite   = Dialect{Name: "sqlite3"}
	DuckDB   = Dialect{Name: "duckdb"}
	Postgres = Dialect{Name: "postgres", Positional: true}
)

// DialectFor returns the dialect of a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q (want sqlite3, duckdb or pgx)", driver)
}

// Placeholder returns the bind marker for the n-th argument, counting
// from 1.
func (d Dialect) Placeholder(n int) string {
	if d.Positional {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Quote returns s as a single-quoted string literal.
func (d Dialect) Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
