// Package postgres implements the beandb storage surface on PostgreSQL
// using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// RepositoryManager implements beandb.RepositoryManager for PostgreSQL.
type RepositoryManager struct {
	db     *sql.DB
	config *beandb.Config

	// Repository instances
	transactionRepo     *TransactionRepository
	balanceRepo         *BalanceRepository
	paymentRepo         *PaymentRepository
	connectAccountRepo  *ConnectAccountRepository
	connectTransferRepo *ConnectTransferRepository
	stripeChargeRepo    *StripeChargeRepository
	systemRepo          *SystemRepository
}

// NewRepositoryManager creates a new PostgreSQL repository manager
func NewRepositoryManager(config *beandb.Config) (*RepositoryManager, error) {
	if err := config.Validate(); err != nil {
		return nil, beandb.NewConfigurationError("new_repository_manager", "invalid configuration", err)
	}

	return &RepositoryManager{
		config: config,
	}, nil
}

func (rm *RepositoryManager) Open(ctx context.Context) error {
	sqlDB, err := sql.Open("postgres", rm.config.BuildConnectionString())
	if err != nil {
		return beandb.NewConnectionError("open", "failed to open database connection", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(rm.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(rm.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(rm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(rm.config.ConnMaxIdleTime)

	// Test connection
	ctxTimeout, cancel := context.WithTimeout(ctx, rm.config.DefaultTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctxTimeout); err != nil {
		sqlDB.Close()
		return beandb.NewConnectionError("open", "failed to ping database", err)
	}

	rm.db = sqlDB

	if err := rm.initSchema(ctx); err != nil {
		rm.db.Close()
		rm.db = nil
		return beandb.NewSchemaError("open", "failed to initialize schema", err)
	}

	// Initialize repository instances
	rm.transactionRepo = NewTransactionRepository(rm.db)
	rm.balanceRepo = NewBalanceRepository(rm.db)
	rm.paymentRepo = NewPaymentRepository(rm.db)
	rm.connectAccountRepo = NewConnectAccountRepository(rm.db)
	rm.connectTransferRepo = NewConnectTransferRepository(rm.db)
	rm.stripeChargeRepo = NewStripeChargeRepository(rm.db)
	rm.systemRepo = NewSystemRepository(rm.db)

	return nil
}

func (rm *RepositoryManager) Close(ctx context.Context) error {
	if rm.db == nil {
		return nil
	}

	err := rm.db.Close()
	rm.db = nil

	// Clear repository instances
	rm.transactionRepo = nil
	rm.balanceRepo = nil
	rm.paymentRepo = nil
	rm.connectAccountRepo = nil
	rm.connectTransferRepo = nil
	rm.stripeChargeRepo = nil
	rm.systemRepo = nil

	if err != nil {
		return beandb.NewConnectionError("close", "failed to close database connection", err)
	}

	return nil
}

func (rm *RepositoryManager) Transactions() beandb.TransactionRepository {
	return rm.transactionRepo
}

func (rm *RepositoryManager) Balances() beandb.BalanceRepository {
	return rm.balanceRepo
}

func (rm *RepositoryManager) Payments() beandb.PaymentRepository {
	return rm.paymentRepo
}

func (rm *RepositoryManager) ConnectAccounts() beandb.ConnectAccountRepository {
	return rm.connectAccountRepo
}

func (rm *RepositoryManager) ConnectTransfers() beandb.ConnectTransferRepository {
	return rm.connectTransferRepo
}

func (rm *RepositoryManager) StripeCharges() beandb.StripeChargeRepository {
	return rm.stripeChargeRepo
}

func (rm *RepositoryManager) System() beandb.SystemRepository {
	return rm.systemRepo
}

func (rm *RepositoryManager) WithTransaction(ctx context.Context, fn func(beandb.TransactionContext) error) error {
	tx, err := rm.systemRepo.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			// Return the original error; the rollback failure is secondary
			return err
		}
		return err
	}

	return tx.Commit(ctx)
}

// initSchema creates the beancounter tables. Enumerated kinds and
// reasons persist as named textual values.
func (rm *RepositoryManager) initSchema(ctx context.Context) error {
	queries := []string{
		// Append-only double-entry transaction log
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			client_id UUID,
			tx_type TEXT NOT NULL CHECK (tx_type IN ('debit', 'credit', 'promo_credit')),
			tx_reason TEXT NOT NULL CHECK (tx_reason IN
				('message_read', 'message_unread', 'message_sent', 'credit_added', 'payout')),
			amount_cents INTEGER NOT NULL
		)`,

		// Balance projection, one row per client
		`CREATE TABLE IF NOT EXISTS balances (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			client_id UUID UNIQUE NOT NULL,
			balance_cents BIGINT NOT NULL DEFAULT 0,
			promo_cents BIGINT NOT NULL DEFAULT 0 CHECK (promo_cents >= 0),
			withdrawable_cents BIGINT NOT NULL DEFAULT 0
		)`,

		// Escrowed message payments
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			client_id_from UUID NOT NULL,
			client_id_to UUID NOT NULL,
			payment_cents INTEGER NOT NULL CHECK (payment_cents >= 0),
			message_hash TEXT NOT NULL,
			UNIQUE (client_id_to, message_hash)
		)`,

		// Card charge records
		`CREATE TABLE IF NOT EXISTS stripe_charges (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			client_id UUID NOT NULL,
			charge JSONB NOT NULL
		)`,

		// Connect accounts
		`CREATE TABLE IF NOT EXISTS stripe_connect_accounts (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			client_id UUID UNIQUE NOT NULL,
			oauth_state UUID NOT NULL,
			stripe_user_id TEXT,
			credentials JSONB,
			account_details JSONB,
			enable_automatic_payouts BOOLEAN NOT NULL DEFAULT FALSE,
			automatic_payout_threshold_cents BIGINT NOT NULL DEFAULT 10000
		)`,

		// Payout transfer records
		`CREATE TABLE IF NOT EXISTS stripe_connect_transfers (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			client_id UUID NOT NULL,
			stripe_user_id TEXT NOT NULL,
			transfer JSONB NOT NULL,
			amount_cents BIGINT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_client_type ON transactions(client_id, tx_type)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_client_type_reason ON transactions(client_id, tx_type, tx_reason)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_created_at ON payments(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_stripe_connect_transfers_client_created ON stripe_connect_transfers(client_id, created_at)`,
	}

	for _, query := range queries {
		if _, err := rm.db.ExecContext(ctx, query); err != nil {
			return beandb.NewSchemaError("init_schema", "failed to execute schema query", err)
		}
	}

	return nil
}
