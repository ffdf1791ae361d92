package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// ReportDBStorage implements the ReportStorage interface on PostgreSQL. It
// works with any connection-like value, so handlers can pass a pool and tests
// can pass a single connection or transaction.
type ReportDBStorage struct {
	conn pgxIConn
}

// NewReportDBStorageWithConnection creates a new ReportDBStorage using an
// existing database connection.
func NewReportDBStorageWithConnection(conn pgxIConn) *ReportDBStorage {
	return &ReportDBStorage{conn: conn}
}
