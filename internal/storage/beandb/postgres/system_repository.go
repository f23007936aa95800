package postgres

import (
	"context"
	"database/sql"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// SystemRepository implements beandb.SystemRepository for PostgreSQL.
type SystemRepository struct {
	db *sql.DB
}

// NewSystemRepository creates a new PostgreSQL system repository
func NewSystemRepository(db *sql.DB) *SystemRepository {
	return &SystemRepository{db: db}
}

func (r *SystemRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return beandb.ErrDatabaseClosed
	}

	if err := r.db.PingContext(ctx); err != nil {
		return beandb.NewConnectionError("ping", "database ping failed", err)
	}

	return nil
}

func (r *SystemRepository) Begin(ctx context.Context) (beandb.TransactionContext, error) {
	if r.db == nil {
		return nil, beandb.ErrDatabaseClosed
	}

	// Ledger writes require serialisable semantics on the balance rows;
	// read-modify-write cycles on the same client must not interleave.
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, beandb.NewTransactionError("begin", "failed to begin transaction", err)
	}

	return NewTransactionContext(tx), nil
}
