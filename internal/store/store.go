package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wdiesveld/tinyqueries/internal/querysql"
)

// Config selects and configures the database connection.
type Config struct {
	// Driver is one of sqlite3, duckdb or pgx.
	Driver string
	DSN    string
	// InitQuery runs once on every new connection.
	InitQuery string
}

// Store is a database connection pool plus the dialect its SQL is
// rendered in.
type Store struct {
	db      *sql.DB
	dialect querysql.Dialect
}

// Open connects to the configured database and verifies the connection.
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - a 5-second busy timeout for lock contention
//   - foreign key enforcement
//   - a single open connection, so ":memory:" databases are shared
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect, err := querysql.DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch dialect {
	case querysql.SQLite:
		db, err = openSQLite(cfg)
	case querysql.DuckDB:
		db, err = openDuckDB(cfg)
	case querysql.Postgres:
		db, err = openPostgres(cfg)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect.Name, err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// New wraps an already opened database.
func New(db *sql.DB, dialect querysql.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func openSQLite(cfg Config) (*sql.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if cfg.InitQuery != "" {
		pragmas = append(pragmas, cfg.InitQuery)
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return db, nil
}

func openDuckDB(cfg Config) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(cfg.DSN, func(execer driver.ExecerContext) error {
		if cfg.InitQuery == "" {
			return nil
		}
		_, err := execer.ExecContext(context.Background(), cfg.InitQuery, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func openPostgres(cfg Config) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	var opts []stdlib.OptionOpenDB
	if cfg.InitQuery != "" {
		opts = append(opts, stdlib.OptionAfterConnect(func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, cfg.InitQuery)
			return err
		}))
	}
	return stdlib.OpenDB(*connConfig, opts...), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect of the connected database.
func (s *Store) Dialect() querysql.Dialect {
	return s.dialect
}
