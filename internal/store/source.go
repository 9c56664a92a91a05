package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wdiesveld/tinyqueries/internal/ir"
)

// SelectRows returns every result row as a column mapping.
func (s *Store) SelectRows(ctx context.Context, query string, args []any) ([]ir.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []ir.Row{}
	for rows.Next() {
		vals, err := scanValues(rows, len(cols))
		if err != nil {
			return nil, err
		}
		row := make(ir.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// SelectRow returns the first result row, or nil if there is none.
func (s *Store) SelectRow(ctx context.Context, query string, args []any) (ir.Row, error) {
	rows, err := s.SelectRows(ctx, query, args)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// SelectColumn returns the first column of every result row.
func (s *Store) SelectColumn(ctx context.Context, query string, args []any) ([]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []any{}
	for rows.Next() {
		vals, err := scanValues(rows, len(cols))
		if err != nil {
			return nil, err
		}
		out = append(out, vals[0])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// SelectValue returns the first column of the first row, or nil.
func (s *Store) SelectValue(ctx context.Context, query string, args []any) (any, error) {
	col, err := s.SelectColumn(ctx, query, args)
	if err != nil || len(col) == 0 {
		return nil, err
	}
	return col[0], nil
}

// Exec runs a statement that returns no rows and reports the number of
// rows affected.
func (s *Store) Exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows.
		return 0, nil
	}
	return n, nil
}

func scanValues(rows *sql.Rows, n int) ([]any, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals, nil
}
