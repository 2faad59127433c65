// Package store holds the SQL repositories behind every dashboard view.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"intelplatform/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("already exists")
	ErrSchemaMismatch = errors.New("csv does not match table schema")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// expectOne maps a zero-row UPDATE/DELETE to ErrNotFound.
func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func countBy(ctx context.Context, db DBTX, query string, args ...any) ([]models.CountRow, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count query: %w", err)
	}
	defer rows.Close()

	var result []models.CountRow
	for rows.Next() {
		var c models.CountRow
		if err := rows.Scan(&c.Label, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// nullable stores empty optional ids as NULL so SQLite assigns the rowid.
func nullable(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
