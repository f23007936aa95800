// Package ledger implements the double-entry ledger engine: the two
// write primitives over an open store transaction, the balance
// projection arithmetic, and the fee schedules.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// AppendTransaction appends one Credit/Debit pair inside the open store
// transaction: a Credit of +amountCents for creditClient and a Debit of
// -amountCents for debitClient, both tagged with reason. A nil client on
// either side denotes the cash/platform side of the pair. The pair sums
// to zero by construction.
//
// amountCents must be non-negative. Zero amounts are permitted and
// produce two zero entries; callers typically skip them.
func AppendTransaction(ctx context.Context, tc beandb.TransactionContext, creditClient, debitClient *uuid.UUID, amountCents int32, reason beandb.Reason) error {
	return appendPair(ctx, tc, beandb.KindCredit, creditClient, debitClient, amountCents, reason)
}

// AppendPromoTransaction is AppendTransaction with a PromoCredit on the
// credit side. Promotional grants always carry reason credit_added so the
// balance projection can identify them.
func AppendPromoTransaction(ctx context.Context, tc beandb.TransactionContext, creditClient, debitClient *uuid.UUID, amountCents int32) error {
	return appendPair(ctx, tc, beandb.KindPromoCredit, creditClient, debitClient, amountCents, beandb.ReasonCreditAdded)
}

func appendPair(ctx context.Context, tc beandb.TransactionContext, creditKind beandb.Kind, creditClient, debitClient *uuid.UUID, amountCents int32, reason beandb.Reason) error {
	if amountCents < 0 {
		return fmt.Errorf("transaction amount must be non-negative, got %d", amountCents)
	}
	if !reason.Valid() {
		return fmt.Errorf("invalid transaction reason: %q", reason)
	}
	if creditClient == nil && debitClient == nil {
		return fmt.Errorf("at least one side of a transaction pair must carry a client id")
	}

	if _, err := tc.Transactions().Append(ctx, beandb.NewEntry{
		ClientID:    creditClient,
		Kind:        creditKind,
		Reason:      reason,
		AmountCents: amountCents,
	}); err != nil {
		return err
	}

	_, err := tc.Transactions().Append(ctx, beandb.NewEntry{
		ClientID:    debitClient,
		Kind:        beandb.KindDebit,
		Reason:      reason,
		AmountCents: -amountCents,
	})
	return err
}

// AppendTransactionReturningCredit is AppendTransaction, additionally
// returning the Credit entry. Top-ups use the credit entry's id as
// processor metadata.
func AppendTransactionReturningCredit(ctx context.Context, tc beandb.TransactionContext, creditClient, debitClient *uuid.UUID, amountCents int32, reason beandb.Reason) (*beandb.Entry, error) {
	if amountCents < 0 {
		return nil, fmt.Errorf("transaction amount must be non-negative, got %d", amountCents)
	}
	if !reason.Valid() {
		return nil, fmt.Errorf("invalid transaction reason: %q", reason)
	}

	credit, err := tc.Transactions().Append(ctx, beandb.NewEntry{
		ClientID:    creditClient,
		Kind:        beandb.KindCredit,
		Reason:      reason,
		AmountCents: amountCents,
	})
	if err != nil {
		return nil, err
	}

	if _, err := tc.Transactions().Append(ctx, beandb.NewEntry{
		ClientID:    debitClient,
		Kind:        beandb.KindDebit,
		Reason:      reason,
		AmountCents: -amountCents,
	}); err != nil {
		return nil, err
	}

	return credit, nil
}

// UpdateBalance recomputes the client's balance projection from the
// transaction log inside the open store transaction and upserts it.
//
// The promo sum is restricted to credit_added entries; the credit sum is
// not filtered by reason. Promotional grants only ever carry
// credit_added, so the two filters select the same promo entries.
func UpdateBalance(ctx context.Context, tc beandb.TransactionContext, client uuid.UUID) (*beandb.Balance, error) {
	txns := tc.Transactions()

	creditSum, err := txns.SumByKind(ctx, client, beandb.KindCredit)
	if err != nil {
		return nil, err
	}

	promoCreditSum, err := txns.SumByKindAndReason(ctx, client, beandb.KindPromoCredit, beandb.ReasonCreditAdded)
	if err != nil {
		return nil, err
	}

	debitSum, err := txns.SumByKind(ctx, client, beandb.KindDebit)
	if err != nil {
		return nil, err
	}

	balanceCents, promoCents := CalculateBalances(creditSum, promoCreditSum, debitSum)

	// Withdrawable is derived independently from settled inbound message
	// credits minus prior payouts, so top-ups and promo grants are
	// ineligible for payout. The payout sum is already negative.
	paidIn, err := txns.SumByKindAndReason(ctx, client, beandb.KindCredit, beandb.ReasonMessageRead)
	if err != nil {
		return nil, err
	}

	paidOut, err := txns.SumByKindAndReason(ctx, client, beandb.KindDebit, beandb.ReasonPayout)
	if err != nil {
		return nil, err
	}

	return tc.Balances().Upsert(ctx, client, balanceCents, promoCents, paidIn+paidOut)
}
