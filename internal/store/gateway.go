package store

import (
	"context"
	"database/sql"
)

// DBTX abstracts the query surface shared by *sql.DB and *sql.Tx, so a
// store can run either on the pool or inside a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is the handle passed to a transactional operation. Every store it
// returns is bound to the same database transaction.
type Tx interface {
	Tasks() TaskStore
	Jobs() JobStore
}

// Gateway is the storage entry point used by services. Writes go through
// RunInTx with an explicit transaction handle; reads that need no
// transaction use Tasks directly.
type Gateway interface {
	// RunInTx executes fn inside one transaction. If fn returns an error the
	// transaction is rolled back and the error is returned unchanged;
	// otherwise it is committed. The transaction is always released.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Tasks returns a TaskStore that is not bound to any transaction.
	Tasks() TaskStore
}
