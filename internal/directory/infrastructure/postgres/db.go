package postgres

import (
	"context"
	"database/sql"
)

// DBTX abstracts *sql.DB and *sql.Tx so repositories run inside either.
type DBTX interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
