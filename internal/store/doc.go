// Package store opens the database that queries run against and adapts it
// to the engine's row source operations.
//
// Three database/sql drivers are wired in: SQLite (mattn/go-sqlite3),
// DuckDB (duckdb-go) and PostgreSQL (pgx stdlib). Every driver gets its
// init query run on each new connection, and result values are normalized
// so []byte columns come back as strings.
package store
