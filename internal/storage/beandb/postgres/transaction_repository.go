package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// TransactionRepository implements beandb.TransactionRepository for
// PostgreSQL. The transactions table is append-only; rows are never
// updated or deleted.
type TransactionRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// NewTransactionRepositoryWithTx creates a new PostgreSQL transaction repository within a transaction
func NewTransactionRepositoryWithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{tx: tx}
}

// getExecutor returns the appropriate executor (db or tx)
func (r *TransactionRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *TransactionRepository) Append(ctx context.Context, entry beandb.NewEntry) (*beandb.Entry, error) {
	query := `INSERT INTO transactions (client_id, tx_type, tx_reason, amount_cents)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, created_at`

	var clientID interface{}
	if entry.ClientID != nil {
		clientID = entry.ClientID.String()
	}

	result := beandb.Entry{
		ClientID:    entry.ClientID,
		Kind:        entry.Kind,
		Reason:      entry.Reason,
		AmountCents: entry.AmountCents,
	}

	err := r.getExecutor().QueryRowContext(ctx, query,
		clientID, string(entry.Kind), string(entry.Reason), entry.AmountCents).
		Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return nil, beandb.NewQueryError("append_transaction", "failed to insert transaction entry", err)
	}

	return &result, nil
}

func (r *TransactionRepository) SumByKind(ctx context.Context, client uuid.UUID, kind beandb.Kind) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
			  WHERE client_id = $1 AND tx_type = $2`

	var sum int64
	err := r.getExecutor().QueryRowContext(ctx, query, client.String(), string(kind)).Scan(&sum)
	if err != nil {
		return 0, beandb.NewQueryError("sum_by_kind", "failed to sum transaction amounts", err)
	}

	return sum, nil
}

func (r *TransactionRepository) SumByKindAndReason(ctx context.Context, client uuid.UUID, kind beandb.Kind, reason beandb.Reason) (int64, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
			  WHERE client_id = $1 AND tx_type = $2 AND tx_reason = $3`

	var sum int64
	err := r.getExecutor().QueryRowContext(ctx, query,
		client.String(), string(kind), string(reason)).Scan(&sum)
	if err != nil {
		return 0, beandb.NewQueryError("sum_by_kind_and_reason", "failed to sum transaction amounts", err)
	}

	return sum, nil
}

func (r *TransactionRepository) ListByClient(ctx context.Context, client uuid.UUID) ([]beandb.Entry, error) {
	query := `SELECT id, created_at, client_id, tx_type, tx_reason, amount_cents
			  FROM transactions
			  WHERE client_id = $1
			  ORDER BY id`

	rows, err := r.getExecutor().QueryContext(ctx, query, client.String())
	if err != nil {
		return nil, beandb.NewQueryError("list_by_client", "failed to query transactions", err)
	}
	defer rows.Close()

	var results []beandb.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, beandb.NewQueryError("list_by_client", "error iterating rows", err)
	}

	return results, nil
}

func (r *TransactionRepository) SumAll(ctx context.Context) (int64, error) {
	var sum int64
	err := r.getExecutor().QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount_cents), 0) FROM transactions").Scan(&sum)
	if err != nil {
		return 0, beandb.NewQueryError("sum_all", "failed to sum all transaction amounts", err)
	}

	return sum, nil
}

func scanEntry(rows *sql.Rows) (*beandb.Entry, error) {
	var entry beandb.Entry
	var clientID sql.NullString
	var kind, reason string

	if err := rows.Scan(&entry.ID, &entry.CreatedAt, &clientID, &kind, &reason, &entry.AmountCents); err != nil {
		return nil, beandb.NewQueryError("scan_entry", "failed to scan transaction row", err)
	}

	if clientID.Valid {
		id, err := uuid.Parse(clientID.String)
		if err != nil {
			return nil, beandb.NewQueryError("scan_entry", "invalid client id in transaction row", err)
		}
		entry.ClientID = &id
	}

	entry.Kind = beandb.Kind(kind)
	entry.Reason = beandb.Reason(reason)

	return &entry, nil
}
