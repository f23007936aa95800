package postgres

import (
	"context"
	"database/sql"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// TransactionContext implements beandb.TransactionContext for PostgreSQL.
type TransactionContext struct {
	tx *sql.Tx

	// Repository instances for this transaction
	transactionRepo     *TransactionRepository
	balanceRepo         *BalanceRepository
	paymentRepo         *PaymentRepository
	connectAccountRepo  *ConnectAccountRepository
	connectTransferRepo *ConnectTransferRepository
	stripeChargeRepo    *StripeChargeRepository
}

// NewTransactionContext creates a new PostgreSQL transaction context
func NewTransactionContext(tx *sql.Tx) *TransactionContext {
	return &TransactionContext{
		tx:                  tx,
		transactionRepo:     NewTransactionRepositoryWithTx(tx),
		balanceRepo:         NewBalanceRepositoryWithTx(tx),
		paymentRepo:         NewPaymentRepositoryWithTx(tx),
		connectAccountRepo:  NewConnectAccountRepositoryWithTx(tx),
		connectTransferRepo: NewConnectTransferRepositoryWithTx(tx),
		stripeChargeRepo:    NewStripeChargeRepositoryWithTx(tx),
	}
}

func (tc *TransactionContext) Commit(ctx context.Context) error {
	if tc.tx == nil {
		return beandb.ErrTransactionClosed
	}

	err := tc.tx.Commit()
	tc.tx = nil

	if err != nil {
		return beandb.NewTransactionError("commit", "failed to commit transaction", err)
	}

	return nil
}

func (tc *TransactionContext) Rollback(ctx context.Context) error {
	if tc.tx == nil {
		return nil // Already rolled back or committed
	}

	err := tc.tx.Rollback()
	tc.tx = nil

	if err != nil {
		return beandb.NewTransactionError("rollback", "failed to rollback transaction", err)
	}

	return nil
}

func (tc *TransactionContext) Transactions() beandb.TransactionRepository {
	return tc.transactionRepo
}

func (tc *TransactionContext) Balances() beandb.BalanceRepository {
	return tc.balanceRepo
}

func (tc *TransactionContext) Payments() beandb.PaymentRepository {
	return tc.paymentRepo
}

func (tc *TransactionContext) ConnectAccounts() beandb.ConnectAccountRepository {
	return tc.connectAccountRepo
}

func (tc *TransactionContext) ConnectTransfers() beandb.ConnectTransferRepository {
	return tc.connectTransferRepo
}

func (tc *TransactionContext) StripeCharges() beandb.StripeChargeRepository {
	return tc.stripeChargeRepo
}
