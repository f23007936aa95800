// Package beandb defines the relational storage surface for the
// beancounter ledger: the row types, the repository interfaces, and the
// transaction/connection management contracts. Implementations live in
// subpackages (postgres for production, memory for tests).
package beandb

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a transaction entry. Kinds persist as named textual
// values in the transactions table.
type Kind string

const (
	KindDebit       Kind = "debit"
	KindCredit      Kind = "credit"
	KindPromoCredit Kind = "promo_credit"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDebit, KindCredit, KindPromoCredit:
		return true
	}
	return false
}

// Reason records why a transaction entry was written. Reasons persist as
// named textual values in the transactions table.
type Reason string

const (
	ReasonMessageRead   Reason = "message_read"
	ReasonMessageUnread Reason = "message_unread"
	ReasonMessageSent   Reason = "message_sent"
	ReasonCreditAdded   Reason = "credit_added"
	ReasonPayout        Reason = "payout"
)

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonMessageRead, ReasonMessageUnread, ReasonMessageSent,
		ReasonCreditAdded, ReasonPayout:
		return true
	}
	return false
}

// Entry is one immutable row of the double-entry transaction log.
// A nil ClientID denotes the cash/platform side of a pair.
type Entry struct {
	ID          int64      `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	ClientID    *uuid.UUID `json:"client_id,omitempty"`
	Kind        Kind       `json:"kind"`
	Reason      Reason     `json:"reason"`
	AmountCents int32      `json:"amount_cents"`
}

// NewEntry carries the caller-supplied columns of a transaction entry;
// id and created_at are assigned by the store.
type NewEntry struct {
	ClientID    *uuid.UUID
	Kind        Kind
	Reason      Reason
	AmountCents int32
}

// Balance is the per-client projection derived from the transaction log.
// Exactly one row exists per referenced client.
type Balance struct {
	ID                int64     `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	ClientID          uuid.UUID `json:"client_id"`
	BalanceCents      int64     `json:"balance_cents"`
	PromoCents        int64     `json:"promo_cents"`
	WithdrawableCents int64     `json:"withdrawable_cents"`
}

// Payment is an escrowed message payment, alive between send and either
// settle or expiry. MessageHash holds the base64 (no padding) encoding of
// the message fingerprint; (ClientIDTo, MessageHash) is unique.
type Payment struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ClientIDFrom uuid.UUID `json:"client_id_from"`
	ClientIDTo   uuid.UUID `json:"client_id_to"`
	PaymentCents int32     `json:"payment_cents"`
	MessageHash  string    `json:"message_hash"`
}

// NewPayment carries the caller-supplied columns of a payment row.
type NewPayment struct {
	ClientIDFrom uuid.UUID
	ClientIDTo   uuid.UUID
	PaymentCents int32
	MessageHash  string
}

// ConnectAccount is the per-client Connect state: the OAuth handshake
// nonce, the linked processor identity once OAuth completes, and the
// automatic payout preferences.
type ConnectAccount struct {
	ID                            int64     `json:"id"`
	CreatedAt                     time.Time `json:"created_at"`
	UpdatedAt                     time.Time `json:"updated_at"`
	ClientID                      uuid.UUID `json:"client_id"`
	OAuthState                    uuid.UUID `json:"oauth_state"`
	StripeUserID                  *string   `json:"stripe_user_id,omitempty"`
	Credentials                   []byte    `json:"credentials,omitempty"`
	AccountDetails                []byte    `json:"account_details,omitempty"`
	EnableAutomaticPayouts        bool      `json:"enable_automatic_payouts"`
	AutomaticPayoutThresholdCents int64     `json:"automatic_payout_threshold_cents"`
}

// ConnectTransfer records one completed payout to a linked account,
// including the processor's response blob.
type ConnectTransfer struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ClientID     uuid.UUID `json:"client_id"`
	StripeUserID string    `json:"stripe_user_id"`
	Transfer     []byte    `json:"transfer"`
	AmountCents  int64     `json:"amount_cents"`
}

// NewConnectTransfer carries the caller-supplied columns of a transfer row.
type NewConnectTransfer struct {
	ClientID     uuid.UUID
	StripeUserID string
	Transfer     []byte
	AmountCents  int64
}

// StripeCharge records one successful card charge, including the
// processor's response blob.
type StripeCharge struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ClientID  uuid.UUID `json:"client_id"`
	Charge    []byte    `json:"charge"`
}

// NewStripeCharge carries the caller-supplied columns of a charge row.
type NewStripeCharge struct {
	ClientID uuid.UUID
	Charge   []byte
}

// PayoutCandidate is one row of the automatic payout sweep query: a client
// whose withdrawable balance has crossed their threshold, with automatic
// payouts enabled and no transfer within the lookback window.
type PayoutCandidate struct {
	ClientID               uuid.UUID `json:"client_id"`
	WithdrawableCents      int64     `json:"withdrawable_cents"`
	EnableAutomaticPayouts bool      `json:"enable_automatic_payouts"`
	ThresholdCents         int64     `json:"automatic_payout_threshold_cents"`
	StripeUserID           *string   `json:"stripe_user_id,omitempty"`
}

// TransactionRepository handles rows of the append-only transaction log.
type TransactionRepository interface {
	// Append inserts one entry and returns it with its assigned id.
	Append(ctx context.Context, entry NewEntry) (*Entry, error)

	// SumByKind returns the sum of amount_cents over the client's entries
	// of the given kind. Missing rows sum to zero.
	SumByKind(ctx context.Context, client uuid.UUID, kind Kind) (int64, error)

	// SumByKindAndReason is SumByKind additionally filtered by reason.
	SumByKindAndReason(ctx context.Context, client uuid.UUID, kind Kind, reason Reason) (int64, error)

	// ListByClient returns the client's entries ordered by id.
	ListByClient(ctx context.Context, client uuid.UUID) ([]Entry, error)

	// SumAll returns the global sum of amount_cents. Always zero when the
	// double-entry invariant holds.
	SumAll(ctx context.Context) (int64, error)
}

// BalanceRepository handles the per-client balance projection rows.
type BalanceRepository interface {
	// Get returns the client's balance row, or ErrBalanceNotFound.
	Get(ctx context.Context, client uuid.UUID) (*Balance, error)

	// CreateZero inserts a zeroed balance row for a client seen for the
	// first time and returns it.
	CreateZero(ctx context.Context, client uuid.UUID) (*Balance, error)

	// Upsert writes the projected sub-balances keyed by client,
	// inserting the row if absent, and returns the stored row.
	Upsert(ctx context.Context, client uuid.UUID, balanceCents, promoCents, withdrawableCents int64) (*Balance, error)
}

// PaymentRepository handles escrowed message payments.
type PaymentRepository interface {
	// Insert creates an escrow row. A second live payment for the same
	// (recipient, message hash) fails with ErrDuplicatePayment.
	Insert(ctx context.Context, payment NewPayment) (*Payment, error)

	// GetByRecipientAndHash returns the live payment for the recipient and
	// encoded message hash, or ErrPaymentNotFound.
	GetByRecipientAndHash(ctx context.Context, recipient uuid.UUID, messageHash string) (*Payment, error)

	// Delete removes a payment row by id.
	Delete(ctx context.Context, id int64) error

	// ListCreatedBefore returns payments older than the cutoff, ordered by id.
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]Payment, error)
}

// ConnectAccountRepository handles per-client Connect account rows.
type ConnectAccountRepository interface {
	// Get returns the client's Connect account, or ErrAccountNotFound.
	Get(ctx context.Context, client uuid.UUID) (*ConnectAccount, error)

	// Create inserts a fresh account row with the given OAuth state nonce
	// and default preferences.
	Create(ctx context.Context, client, oauthState uuid.UUID) (*ConnectAccount, error)

	// SetCredentials persists the outcome of a completed OAuth exchange.
	SetCredentials(ctx context.Context, client uuid.UUID, stripeUserID string, credentials, accountDetails []byte) (*ConnectAccount, error)

	// SetPreferences persists the automatic payout preferences.
	SetPreferences(ctx context.Context, client uuid.UUID, enableAutomaticPayouts bool, thresholdCents int64) (*ConnectAccount, error)
}

// ConnectTransferRepository handles payout transfer records.
type ConnectTransferRepository interface {
	// Insert records a completed transfer.
	Insert(ctx context.Context, transfer NewConnectTransfer) (*ConnectTransfer, error)

	// ListPayoutCandidates returns clients eligible for an automatic
	// payout: withdrawable balance at or above their threshold, automatic
	// payouts enabled, and no transfer recorded within the last 24 hours.
	ListPayoutCandidates(ctx context.Context) ([]PayoutCandidate, error)
}

// StripeChargeRepository handles card charge records.
type StripeChargeRepository interface {
	// Insert records a successful card charge.
	Insert(ctx context.Context, charge NewStripeCharge) (*StripeCharge, error)
}

// SystemRepository handles connection-level operations.
type SystemRepository interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (TransactionContext, error)
}

// TransactionContext scopes repository access to one open store
// transaction. Either Commit or Rollback must be called exactly once.
type TransactionContext interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Transactions() TransactionRepository
	Balances() BalanceRepository
	Payments() PaymentRepository
	ConnectAccounts() ConnectAccountRepository
	ConnectTransfers() ConnectTransferRepository
	StripeCharges() StripeChargeRepository
}

// RepositoryManager provides repository access over a connection pool and
// transaction management.
type RepositoryManager interface {
	Transactions() TransactionRepository
	Balances() BalanceRepository
	Payments() PaymentRepository
	ConnectAccounts() ConnectAccountRepository
	ConnectTransfers() ConnectTransferRepository
	StripeCharges() StripeChargeRepository
	System() SystemRepository

	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// WithTransaction runs fn inside one store transaction, committing on
	// a nil return and rolling back otherwise.
	WithTransaction(ctx context.Context, fn func(TransactionContext) error) error
}
