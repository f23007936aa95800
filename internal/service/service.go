// Package service implements the beancounter core: ledger operations,
// the escrowed payment state machine, the top-up and payout
// coordinators, the Connect account manager, and the two background
// sweeps. The RPC layer is a thin shell over this package.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/paidmsg/beancounter/internal/ledger"
	"github.com/paidmsg/beancounter/internal/metrics"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
	"github.com/paidmsg/beancounter/internal/stripe"
)

// defaultPaymentExpiry is how long an escrowed payment stays alive
// before the expiry sweep refunds it.
const defaultPaymentExpiry = 30 * 24 * time.Hour

// Services bundles the dependencies of the core, constructed once at
// startup and passed by reference. Nothing in this package reaches for
// process-global state.
type Services struct {
	// Reader serves read-only queries; Writer owns every mutation.
	// Deployments without a read replica pass the same manager twice.
	Reader beandb.RepositoryManager
	Writer beandb.RepositoryManager

	Processor stripe.Processor
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	// Now supplies the wall clock; tests override it.
	Now func() time.Time

	// PaymentExpiry overrides the escrow lifetime; zero means the
	// 30 day default.
	PaymentExpiry time.Duration
}

// BeanCounter is the accounting core.
type BeanCounter struct {
	reader        beandb.RepositoryManager
	writer        beandb.RepositoryManager
	processor     stripe.Processor
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
	paymentExpiry time.Duration
}

// New constructs the core from its dependencies.
func New(svcs Services) (*BeanCounter, error) {
	if svcs.Reader == nil || svcs.Writer == nil {
		return nil, errors.New("service: reader and writer stores are required")
	}
	if svcs.Processor == nil {
		return nil, errors.New("service: payment processor is required")
	}

	m := svcs.Metrics
	if m == nil {
		m = metrics.New()
	}
	now := svcs.Now
	if now == nil {
		now = time.Now
	}
	expiry := svcs.PaymentExpiry
	if expiry <= 0 {
		expiry = defaultPaymentExpiry
	}

	return &BeanCounter{
		reader:        svcs.Reader,
		writer:        svcs.Writer,
		processor:     svcs.Processor,
		metrics:       m,
		logger:        svcs.Logger.With().Str("component", "service").Logger(),
		now:           now,
		paymentExpiry: expiry,
	}, nil
}

// GetBalance returns the client's balance projection, creating a zeroed
// row on first reference. The read goes to the read side; lazy creation
// falls back to the write side.
func (b *BeanCounter) GetBalance(ctx context.Context, client uuid.UUID) (*beandb.Balance, error) {
	balance, err := b.reader.Balances().Get(ctx, client)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, beandb.ErrBalanceNotFound) {
		return nil, wrapStoreError(err)
	}

	balance, err = b.writer.Balances().CreateZero(ctx, client)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return balance, nil
}

// GetTransactions returns the client's ledger entries in append order.
func (b *BeanCounter) GetTransactions(ctx context.Context, client uuid.UUID) ([]beandb.Entry, error) {
	entries, err := b.reader.Transactions().ListByClient(ctx, client)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return entries, nil
}

// AddCredits grants the client amountCents of spendable cash and
// returns the updated balance.
func (b *BeanCounter) AddCredits(ctx context.Context, client uuid.UUID, amountCents int32) (*beandb.Balance, error) {
	if amountCents <= 0 {
		return nil, BadArguments("amount_cents must be positive")
	}

	var balance *beandb.Balance
	err := b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		if err := ledger.AppendTransaction(ctx, tc, &client, nil, amountCents, beandb.ReasonCreditAdded); err != nil {
			return err
		}
		var err error
		balance, err = ledger.UpdateBalance(ctx, tc, client)
		return err
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}

	b.logger.Info().Stringer("client_id", client).Int32("amount_cents", amountCents).
		Msg("credits added")
	return balance, nil
}

// AddPromo grants the client amountCents of promotional credit and
// returns the updated balance. Promotional credit is spendable but never
// withdrawable.
func (b *BeanCounter) AddPromo(ctx context.Context, client uuid.UUID, amountCents int32) (*beandb.Balance, error) {
	if amountCents <= 0 {
		return nil, BadArguments("amount_cents must be positive")
	}

	var balance *beandb.Balance
	err := b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		if err := ledger.AppendPromoTransaction(ctx, tc, &client, nil, amountCents); err != nil {
			return err
		}
		var err error
		balance, err = ledger.UpdateBalance(ctx, tc, client)
		return err
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}

	b.logger.Info().Stringer("client_id", client).Int32("amount_cents", amountCents).
		Msg("promo credits added")
	return balance, nil
}
