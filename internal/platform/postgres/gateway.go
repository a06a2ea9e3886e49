package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/phrazzld/taskflow-api/internal/store"
)

// Gateway implements store.Gateway on a *sql.DB. Each RunInTx call gets its
// own transaction and a Tx handle whose stores are bound to it.
type Gateway struct {
	db    *sql.DB
	tasks *PostgresTaskStore
	jobs  *PostgresJobStore
}

// NewGateway creates a Gateway over db.
func NewGateway(db *sql.DB, logger *slog.Logger) *Gateway {
	return &Gateway{
		db:    db,
		tasks: NewPostgresTaskStore(db, logger),
		jobs:  NewPostgresJobStore(db, logger),
	}
}

var _ store.Gateway = (*Gateway)(nil)

// RunInTx implements store.Gateway.RunInTx
func (g *Gateway) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return store.RunInTransaction(ctx, g.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &txHandle{
			tasks: g.tasks.WithTx(tx),
			jobs:  g.jobs.WithTx(tx),
		})
	})
}

// Tasks implements store.Gateway.Tasks
func (g *Gateway) Tasks() store.TaskStore {
	return g.tasks
}

// Jobs returns the non-transactional job store used by queue workers.
func (g *Gateway) Jobs() store.JobStore {
	return g.jobs
}

type txHandle struct {
	tasks store.TaskStore
	jobs  store.JobStore
}

func (t *txHandle) Tasks() store.TaskStore { return t.tasks }
func (t *txHandle) Jobs() store.JobStore   { return t.jobs }
