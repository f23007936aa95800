// Package memory implements the beandb storage surface in process
// memory. It exists for deterministic service-level tests: one mutex
// serialises transactions, and a transaction works on a deep copy of the
// state that replaces the live state only on commit, so rollback
// semantics match the PostgreSQL implementation.
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

type state struct {
	entries   []beandb.Entry
	balances  map[uuid.UUID]beandb.Balance
	payments  map[int64]beandb.Payment
	accounts  map[uuid.UUID]beandb.ConnectAccount
	transfers []beandb.ConnectTransfer
	charges   []beandb.StripeCharge

	nextEntryID    int64
	nextBalanceID  int64
	nextPaymentID  int64
	nextAccountID  int64
	nextTransferID int64
	nextChargeID   int64
}

func newState() *state {
	return &state{
		balances:       make(map[uuid.UUID]beandb.Balance),
		payments:       make(map[int64]beandb.Payment),
		accounts:       make(map[uuid.UUID]beandb.ConnectAccount),
		nextEntryID:    1,
		nextBalanceID:  1,
		nextPaymentID:  1,
		nextAccountID:  1,
		nextTransferID: 1,
		nextChargeID:   1,
	}
}

func (s *state) clone() *state {
	c := &state{
		entries:        append([]beandb.Entry(nil), s.entries...),
		balances:       make(map[uuid.UUID]beandb.Balance, len(s.balances)),
		payments:       make(map[int64]beandb.Payment, len(s.payments)),
		accounts:       make(map[uuid.UUID]beandb.ConnectAccount, len(s.accounts)),
		transfers:      append([]beandb.ConnectTransfer(nil), s.transfers...),
		charges:        append([]beandb.StripeCharge(nil), s.charges...),
		nextEntryID:    s.nextEntryID,
		nextBalanceID:  s.nextBalanceID,
		nextPaymentID:  s.nextPaymentID,
		nextAccountID:  s.nextAccountID,
		nextTransferID: s.nextTransferID,
		nextChargeID:   s.nextChargeID,
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	return c
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for created_at/updated_at
// stamps and the payout lookback window.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store implements beandb.RepositoryManager in memory.
type Store struct {
	mu    chan struct{} // held from Begin until Commit/Rollback
	state *state
	now   func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		mu:    make(chan struct{}, 1),
		state: newState(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lock()   { s.mu <- struct{}{} }
func (s *Store) unlock() { <-s.mu }

func (s *Store) Open(ctx context.Context) error  { return nil }
func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) Transactions() beandb.TransactionRepository {
	return &transactionRepo{repo{store: s}}
}

func (s *Store) Balances() beandb.BalanceRepository {
	return &balanceRepo{repo{store: s}}
}

func (s *Store) Payments() beandb.PaymentRepository {
	return &paymentRepo{repo{store: s}}
}

func (s *Store) ConnectAccounts() beandb.ConnectAccountRepository {
	return &connectAccountRepo{repo{store: s}}
}

func (s *Store) ConnectTransfers() beandb.ConnectTransferRepository {
	return &connectTransferRepo{repo{store: s}}
}

func (s *Store) StripeCharges() beandb.StripeChargeRepository {
	return &stripeChargeRepo{repo{store: s}}
}

func (s *Store) System() beandb.SystemRepository {
	return &systemRepo{store: s}
}

func (s *Store) WithTransaction(ctx context.Context, fn func(beandb.TransactionContext) error) error {
	tx, err := s.System().Begin(ctx)
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
		tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type systemRepo struct {
	store *Store
}

func (r *systemRepo) Ping(ctx context.Context) error { return nil }

func (r *systemRepo) Begin(ctx context.Context) (beandb.TransactionContext, error) {
	r.store.lock()
	return &txContext{
		store: r.store,
		draft: r.store.state.clone(),
	}, nil
}

// txContext works on a draft copy of the store state while the store
// lock is held; Commit publishes the draft, Rollback discards it.
type txContext struct {
	store *Store
	draft *state
	done  bool
}

func (tc *txContext) Commit(ctx context.Context) error {
	if tc.done {
		return beandb.ErrTransactionClosed
	}
	tc.store.state = tc.draft
	tc.done = true
	tc.store.unlock()
	return nil
}

func (tc *txContext) Rollback(ctx context.Context) error {
	if tc.done {
		return nil
	}
	tc.done = true
	tc.store.unlock()
	return nil
}

func (tc *txContext) Transactions() beandb.TransactionRepository {
	return &transactionRepo{repo{store: tc.store, tx: tc}}
}

func (tc *txContext) Balances() beandb.BalanceRepository {
	return &balanceRepo{repo{store: tc.store, tx: tc}}
}

func (tc *txContext) Payments() beandb.PaymentRepository {
	return &paymentRepo{repo{store: tc.store, tx: tc}}
}

func (tc *txContext) ConnectAccounts() beandb.ConnectAccountRepository {
	return &connectAccountRepo{repo{store: tc.store, tx: tc}}
}

func (tc *txContext) ConnectTransfers() beandb.ConnectTransferRepository {
	return &connectTransferRepo{repo{store: tc.store, tx: tc}}
}

func (tc *txContext) StripeCharges() beandb.StripeChargeRepository {
	return &stripeChargeRepo{repo{store: tc.store, tx: tc}}
}

// repo resolves whether an operation runs against the live state (with
// the store lock taken per call) or a transaction draft (lock already
// held).
type repo struct {
	store *Store
	tx    *txContext
}

// with runs fn against the appropriate state.
func (r *repo) with(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx.draft)
	}
	r.store.lock()
	defer r.store.unlock()
	return fn(r.store.state)
}

func (r *repo) clock() time.Time {
	return r.store.now()
}

type transactionRepo struct{ repo }

func (r *transactionRepo) Append(ctx context.Context, entry beandb.NewEntry) (*beandb.Entry, error) {
	var result beandb.Entry
	err := r.with(func(st *state) error {
		result = beandb.Entry{
			ID:          st.nextEntryID,
			CreatedAt:   r.clock(),
			ClientID:    entry.ClientID,
			Kind:        entry.Kind,
			Reason:      entry.Reason,
			AmountCents: entry.AmountCents,
		}
		st.nextEntryID++
		st.entries = append(st.entries, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *transactionRepo) SumByKind(ctx context.Context, client uuid.UUID, kind beandb.Kind) (int64, error) {
	var sum int64
	err := r.with(func(st *state) error {
		for _, e := range st.entries {
			if e.ClientID != nil && *e.ClientID == client && e.Kind == kind {
				sum += int64(e.AmountCents)
			}
		}
		return nil
	})
	return sum, err
}

func (r *transactionRepo) SumByKindAndReason(ctx context.Context, client uuid.UUID, kind beandb.Kind, reason beandb.Reason) (int64, error) {
	var sum int64
	err := r.with(func(st *state) error {
		for _, e := range st.entries {
			if e.ClientID != nil && *e.ClientID == client && e.Kind == kind && e.Reason == reason {
				sum += int64(e.AmountCents)
			}
		}
		return nil
	})
	return sum, err
}

func (r *transactionRepo) ListByClient(ctx context.Context, client uuid.UUID) ([]beandb.Entry, error) {
	var results []beandb.Entry
	err := r.with(func(st *state) error {
		for _, e := range st.entries {
			if e.ClientID != nil && *e.ClientID == client {
				results = append(results, e)
			}
		}
		return nil
	})
	return results, err
}

func (r *transactionRepo) SumAll(ctx context.Context) (int64, error) {
	var sum int64
	err := r.with(func(st *state) error {
		for _, e := range st.entries {
			sum += int64(e.AmountCents)
		}
		return nil
	})
	return sum, err
}

type balanceRepo struct{ repo }

func (r *balanceRepo) Get(ctx context.Context, client uuid.UUID) (*beandb.Balance, error) {
	var result *beandb.Balance
	err := r.with(func(st *state) error {
		balance, ok := st.balances[client]
		if !ok {
			return beandb.ErrBalanceNotFound
		}
		result = &balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *balanceRepo) CreateZero(ctx context.Context, client uuid.UUID) (*beandb.Balance, error) {
	var result beandb.Balance
	err := r.with(func(st *state) error {
		now := r.clock()
		result = beandb.Balance{
			ID:        st.nextBalanceID,
			CreatedAt: now,
			UpdatedAt: now,
			ClientID:  client,
		}
		st.nextBalanceID++
		st.balances[client] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *balanceRepo) Upsert(ctx context.Context, client uuid.UUID, balanceCents, promoCents, withdrawableCents int64) (*beandb.Balance, error) {
	var result beandb.Balance
	err := r.with(func(st *state) error {
		now := r.clock()
		balance, ok := st.balances[client]
		if !ok {
			balance = beandb.Balance{
				ID:        st.nextBalanceID,
				CreatedAt: now,
				ClientID:  client,
			}
			st.nextBalanceID++
		}
		balance.UpdatedAt = now
		balance.BalanceCents = balanceCents
		balance.PromoCents = promoCents
		balance.WithdrawableCents = withdrawableCents
		st.balances[client] = balance
		result = balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type paymentRepo struct{ repo }

func (r *paymentRepo) Insert(ctx context.Context, payment beandb.NewPayment) (*beandb.Payment, error) {
	var result beandb.Payment
	err := r.with(func(st *state) error {
		for _, p := range st.payments {
			if p.ClientIDTo == payment.ClientIDTo && p.MessageHash == payment.MessageHash {
				return beandb.ErrDuplicatePayment
			}
		}
		now := r.clock()
		result = beandb.Payment{
			ID:           st.nextPaymentID,
			CreatedAt:    now,
			UpdatedAt:    now,
			ClientIDFrom: payment.ClientIDFrom,
			ClientIDTo:   payment.ClientIDTo,
			PaymentCents: payment.PaymentCents,
			MessageHash:  payment.MessageHash,
		}
		st.nextPaymentID++
		st.payments[result.ID] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *paymentRepo) GetByRecipientAndHash(ctx context.Context, recipient uuid.UUID, messageHash string) (*beandb.Payment, error) {
	var result *beandb.Payment
	err := r.with(func(st *state) error {
		for _, p := range st.payments {
			if p.ClientIDTo == recipient && p.MessageHash == messageHash {
				found := p
				result = &found
				return nil
			}
		}
		return beandb.ErrPaymentNotFound
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *paymentRepo) Delete(ctx context.Context, id int64) error {
	return r.with(func(st *state) error {
		if _, ok := st.payments[id]; !ok {
			return beandb.ErrPaymentNotFound
		}
		delete(st.payments, id)
		return nil
	})
}

func (r *paymentRepo) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]beandb.Payment, error) {
	var results []beandb.Payment
	err := r.with(func(st *state) error {
		for _, p := range st.payments {
			if p.CreatedAt.Before(cutoff) {
				results = append(results, p)
			}
		}
		sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
		return nil
	})
	return results, err
}

type connectAccountRepo struct{ repo }

func (r *connectAccountRepo) Get(ctx context.Context, client uuid.UUID) (*beandb.ConnectAccount, error) {
	var result *beandb.ConnectAccount
	err := r.with(func(st *state) error {
		account, ok := st.accounts[client]
		if !ok {
			return beandb.ErrAccountNotFound
		}
		result = &account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *connectAccountRepo) Create(ctx context.Context, client, oauthState uuid.UUID) (*beandb.ConnectAccount, error) {
	var result beandb.ConnectAccount
	err := r.with(func(st *state) error {
		now := r.clock()
		result = beandb.ConnectAccount{
			ID:                            st.nextAccountID,
			CreatedAt:                     now,
			UpdatedAt:                     now,
			ClientID:                      client,
			OAuthState:                    oauthState,
			AutomaticPayoutThresholdCents: 10000,
		}
		st.nextAccountID++
		st.accounts[client] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *connectAccountRepo) SetCredentials(ctx context.Context, client uuid.UUID, stripeUserID string, credentials, accountDetails []byte) (*beandb.ConnectAccount, error) {
	var result beandb.ConnectAccount
	err := r.with(func(st *state) error {
		account, ok := st.accounts[client]
		if !ok {
			return beandb.ErrAccountNotFound
		}
		account.UpdatedAt = r.clock()
		account.StripeUserID = &stripeUserID
		account.Credentials = credentials
		account.AccountDetails = accountDetails
		st.accounts[client] = account
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *connectAccountRepo) SetPreferences(ctx context.Context, client uuid.UUID, enableAutomaticPayouts bool, thresholdCents int64) (*beandb.ConnectAccount, error) {
	var result beandb.ConnectAccount
	err := r.with(func(st *state) error {
		account, ok := st.accounts[client]
		if !ok {
			return beandb.ErrAccountNotFound
		}
		account.UpdatedAt = r.clock()
		account.EnableAutomaticPayouts = enableAutomaticPayouts
		account.AutomaticPayoutThresholdCents = thresholdCents
		st.accounts[client] = account
		result = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type connectTransferRepo struct{ repo }

func (r *connectTransferRepo) Insert(ctx context.Context, transfer beandb.NewConnectTransfer) (*beandb.ConnectTransfer, error) {
	var result beandb.ConnectTransfer
	err := r.with(func(st *state) error {
		result = beandb.ConnectTransfer{
			ID:           st.nextTransferID,
			CreatedAt:    r.clock(),
			ClientID:     transfer.ClientID,
			StripeUserID: transfer.StripeUserID,
			Transfer:     transfer.Transfer,
			AmountCents:  transfer.AmountCents,
		}
		st.nextTransferID++
		st.transfers = append(st.transfers, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *connectTransferRepo) ListPayoutCandidates(ctx context.Context) ([]beandb.PayoutCandidate, error) {
	var results []beandb.PayoutCandidate
	err := r.with(func(st *state) error {
		lookback := r.clock().Add(-24 * time.Hour)
		for client, balance := range st.balances {
			account, ok := st.accounts[client]
			if !ok {
				continue
			}
			if !account.EnableAutomaticPayouts {
				continue
			}
			if balance.WithdrawableCents < account.AutomaticPayoutThresholdCents {
				continue
			}
			recent := false
			for _, t := range st.transfers {
				if t.ClientID == client && !t.CreatedAt.Before(lookback) {
					recent = true
					break
				}
			}
			if recent {
				continue
			}
			results = append(results, beandb.PayoutCandidate{
				ClientID:               client,
				WithdrawableCents:      balance.WithdrawableCents,
				EnableAutomaticPayouts: account.EnableAutomaticPayouts,
				ThresholdCents:         account.AutomaticPayoutThresholdCents,
				StripeUserID:           account.StripeUserID,
			})
		}
		sort.Slice(results, func(i, j int) bool {
			return results[i].ClientID.String() < results[j].ClientID.String()
		})
		return nil
	})
	return results, err
}

type stripeChargeRepo struct{ repo }

func (r *stripeChargeRepo) Insert(ctx context.Context, charge beandb.NewStripeCharge) (*beandb.StripeCharge, error) {
	var result beandb.StripeCharge
	err := r.with(func(st *state) error {
		result = beandb.StripeCharge{
			ID:        st.nextChargeID,
			CreatedAt: r.clock(),
			ClientID:  charge.ClientID,
			Charge:    charge.Charge,
		}
		st.nextChargeID++
		st.charges = append(st.charges, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Transfers returns a snapshot of all transfer rows, for assertions.
func (s *Store) TransfersSnapshot() []beandb.ConnectTransfer {
	s.lock()
	defer s.unlock()
	return append([]beandb.ConnectTransfer(nil), s.state.transfers...)
}

// EntriesSnapshot returns a snapshot of the transaction log, for assertions.
func (s *Store) EntriesSnapshot() []beandb.Entry {
	s.lock()
	defer s.unlock()
	return append([]beandb.Entry(nil), s.state.entries...)
}

// PaymentsSnapshot returns a snapshot of the live escrow rows, for assertions.
func (s *Store) PaymentsSnapshot() []beandb.Payment {
	s.lock()
	defer s.unlock()
	results := make([]beandb.Payment, 0, len(s.state.payments))
	for _, p := range s.state.payments {
		results = append(results, p)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results
}
