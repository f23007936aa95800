package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// BalanceRepository implements beandb.BalanceRepository for PostgreSQL.
// Concurrent writes to the same client's balance serialise on the
// upsert's unique client_id key.
type BalanceRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
}

// NewBalanceRepository creates a new PostgreSQL balance repository
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// NewBalanceRepositoryWithTx creates a new PostgreSQL balance repository within a transaction
func NewBalanceRepositoryWithTx(tx *sql.Tx) *BalanceRepository {
	return &BalanceRepository{tx: tx}
}

func (r *BalanceRepository) getExecutor() executor {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const balanceColumns = `id, created_at, updated_at, client_id, balance_cents, promo_cents, withdrawable_cents`

func (r *BalanceRepository) Get(ctx context.Context, client uuid.UUID) (*beandb.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE client_id = $1`

	row := r.getExecutor().QueryRowContext(ctx, query, client.String())
	balance, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, beandb.ErrBalanceNotFound
	}
	if err != nil {
		return nil, beandb.NewQueryError("get_balance", "failed to query balance", err)
	}

	return balance, nil
}

func (r *BalanceRepository) CreateZero(ctx context.Context, client uuid.UUID) (*beandb.Balance, error) {
	query := `INSERT INTO balances (client_id, balance_cents, promo_cents, withdrawable_cents)
			  VALUES ($1, 0, 0, 0)
			  RETURNING ` + balanceColumns

	row := r.getExecutor().QueryRowContext(ctx, query, client.String())
	balance, err := scanBalance(row)
	if err != nil {
		return nil, beandb.NewQueryError("create_zero_balance", "failed to insert zero balance", err)
	}

	return balance, nil
}

func (r *BalanceRepository) Upsert(ctx context.Context, client uuid.UUID, balanceCents, promoCents, withdrawableCents int64) (*beandb.Balance, error) {
	query := `INSERT INTO balances (client_id, balance_cents, promo_cents, withdrawable_cents)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (client_id) DO UPDATE SET
			  balance_cents = EXCLUDED.balance_cents,
			  promo_cents = EXCLUDED.promo_cents,
			  withdrawable_cents = EXCLUDED.withdrawable_cents,
			  updated_at = NOW()
			  RETURNING ` + balanceColumns

	row := r.getExecutor().QueryRowContext(ctx, query,
		client.String(), balanceCents, promoCents, withdrawableCents)
	balance, err := scanBalance(row)
	if err != nil {
		return nil, beandb.NewQueryError("upsert_balance", "failed to upsert balance", err)
	}

	return balance, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBalance(row rowScanner) (*beandb.Balance, error) {
	var balance beandb.Balance
	var clientID string

	err := row.Scan(&balance.ID, &balance.CreatedAt, &balance.UpdatedAt,
		&clientID, &balance.BalanceCents, &balance.PromoCents, &balance.WithdrawableCents)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, err
	}
	balance.ClientID = id

	return &balance, nil
}
