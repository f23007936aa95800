package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paidmsg/beancounter/internal/ledger"
	"github.com/paidmsg/beancounter/internal/service"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
	"github.com/paidmsg/beancounter/internal/storage/beandb/memory"
)

// checkLedgerInvariants re-derives every projection from the raw entry
// log and compares it against the stored balance rows.
func checkLedgerInvariants(t *testing.T, core *service.BeanCounter, store *memory.Store, clients []uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	// Zero-sum over the whole log.
	total, err := store.Transactions().SumAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total, "transaction log must sum to zero")

	entries := store.EntriesSnapshot()

	for _, client := range clients {
		var creditSum, promoSum, debitSum, paidIn, paidOut int64
		for _, e := range entries {
			if e.ClientID == nil || *e.ClientID != client {
				continue
			}
			switch e.Kind {
			case beandb.KindCredit:
				creditSum += int64(e.AmountCents)
				if e.Reason == beandb.ReasonMessageRead {
					paidIn += int64(e.AmountCents)
				}
			case beandb.KindPromoCredit:
				if e.Reason == beandb.ReasonCreditAdded {
					promoSum += int64(e.AmountCents)
				}
			case beandb.KindDebit:
				debitSum += int64(e.AmountCents)
				if e.Reason == beandb.ReasonPayout {
					paidOut += int64(e.AmountCents)
				}
			}
		}

		wantBalance, wantPromo := ledger.CalculateBalances(creditSum, promoSum, debitSum)

		balance, err := core.GetBalance(ctx, client)
		require.NoError(t, err)
		assert.Equal(t, wantBalance, balance.BalanceCents, "balance identity for %s", client)
		assert.Equal(t, wantPromo, balance.PromoCents, "promo identity for %s", client)
		assert.GreaterOrEqual(t, balance.PromoCents, int64(0), "promo non-negativity for %s", client)
		assert.Equal(t, paidIn+paidOut, balance.WithdrawableCents, "withdrawable bound for %s", client)
	}

	// Escrow uniqueness across live payment rows.
	seen := make(map[string]struct{})
	for _, p := range store.PaymentsSnapshot() {
		key := p.ClientIDTo.String() + "/" + p.MessageHash
		_, dup := seen[key]
		assert.False(t, dup, "duplicate live escrow for %s", key)
		seen[key] = struct{}{}
	}
}

func TestInvariantsAcrossOperationSequence(t *testing.T) {
	core, store, _, clk := newTestCore(t)
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()
	clients := []uuid.UUID{alice, bob, carol}

	_, err := core.StripeCharge(ctx, alice, 10000, "tok_visa")
	require.NoError(t, err)
	_, err = core.AddPromo(ctx, alice, 700)
	require.NoError(t, err)
	_, err = core.AddCredits(ctx, bob, 5000)
	require.NoError(t, err)

	for i, amount := range []int32{100, 257, 0, 999} {
		hash := []byte(fmt.Sprintf("alice-bob-%d", i))
		result, err := core.AddPayment(ctx, alice, bob, amount, hash)
		require.NoError(t, err)
		require.Equal(t, service.PaymentSuccess, result.Outcome)
		checkLedgerInvariants(t, core, store, clients)
	}

	// Settle two, leave two to expire.
	_, err = core.SettlePayment(ctx, bob, []byte("alice-bob-0"))
	require.NoError(t, err)
	_, err = core.SettlePayment(ctx, bob, []byte("alice-bob-1"))
	require.NoError(t, err)
	checkLedgerInvariants(t, core, store, clients)

	result, err := core.AddPayment(ctx, bob, carol, 1200, []byte("bob-carol"))
	require.NoError(t, err)
	require.Equal(t, service.PaymentSuccess, result.Outcome)
	_, err = core.SettlePayment(ctx, carol, []byte("bob-carol"))
	require.NoError(t, err)
	checkLedgerInvariants(t, core, store, clients)

	clk.Advance(31 * 24 * time.Hour)
	expired, err := core.ExpireEscrows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	checkLedgerInvariants(t, core, store, clients)
}

func TestSendSettleConservation(t *testing.T) {
	core, store, _, _ := newTestCore(t)
	ctx := context.Background()

	for _, paymentCents := range []int32{1, 10, 99, 100, 101, 12345, 7777} {
		sender := uuid.New()
		recipient := uuid.New()
		hash := []byte(fmt.Sprintf("conserve-%d", paymentCents))

		fee := ledger.MessageFee(paymentCents)
		total := paymentCents + fee

		_, err := core.AddCredits(ctx, sender, total)
		require.NoError(t, err)

		added, err := core.AddPayment(ctx, sender, recipient, paymentCents, hash)
		require.NoError(t, err)
		require.Equal(t, service.PaymentSuccess, added.Outcome)

		// Sender decreased by payment plus send fee.
		assert.Equal(t, int64(0), added.Balance.BalanceCents)

		settled, err := core.SettlePayment(ctx, recipient, hash)
		require.NoError(t, err)

		// Recipient increased by payment minus settle fee.
		assert.Equal(t, paymentCents-fee, settled.PaymentCents)
		assert.Equal(t, int64(paymentCents-fee), settled.Balance.BalanceCents)

		// Zero-sum holds through both transitions.
		sum, err := store.Transactions().SumAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), sum)
	}
}

func TestExpirySweepIsIdempotent(t *testing.T) {
	core, store, _, clk := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()

	_, err := core.AddCredits(ctx, sender, 5000)
	require.NoError(t, err)
	_, err = core.AddPayment(ctx, sender, uuid.New(), 300, []byte("exp-1"))
	require.NoError(t, err)
	_, err = core.AddPayment(ctx, sender, uuid.New(), 400, []byte("exp-2"))
	require.NoError(t, err)

	clk.Advance(31 * 24 * time.Hour)

	expired, err := core.ExpireEscrows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	afterFirst, err := core.GetBalance(ctx, sender)
	require.NoError(t, err)
	entriesAfterFirst := len(store.EntriesSnapshot())

	expired, err = core.ExpireEscrows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	afterSecond, err := core.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, afterFirst.BalanceCents, afterSecond.BalanceCents)
	assert.Len(t, store.EntriesSnapshot(), entriesAfterFirst)
}

func TestAutomaticPayoutSweep(t *testing.T) {
	core, store, processor, clk := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	earner := uuid.New()
	smallEarner := uuid.New()

	fund := func(recipient uuid.UUID, paymentCents int32, hash string) {
		t.Helper()
		fee := ledger.MessageFee(paymentCents)
		_, err := core.AddCredits(ctx, sender, paymentCents+fee)
		require.NoError(t, err)
		result, err := core.AddPayment(ctx, sender, recipient, paymentCents, []byte(hash))
		require.NoError(t, err)
		require.Equal(t, service.PaymentSuccess, result.Outcome)
		_, err = core.SettlePayment(ctx, recipient, []byte(hash))
		require.NoError(t, err)
	}

	// earner nets 15000, above the 10000 default threshold; smallEarner
	// nets 85, below it.
	fund(earner, 17647, "sweep-big")
	fund(smallEarner, 100, "sweep-small")

	linkConnectAccount(t, core, store, earner)
	linkConnectAccount(t, core, store, smallEarner)
	_, err := core.UpdateConnectAccountPrefs(ctx, earner, true, 10000)
	require.NoError(t, err)
	_, err = core.UpdateConnectAccountPrefs(ctx, smallEarner, true, 10000)
	require.NoError(t, err)

	swept, err := core.RunAutomaticPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	require.Len(t, processor.TransferCalls, 1)
	assert.Equal(t, int64(15000), processor.TransferCalls[0].AmountCents)

	balance, err := core.GetBalance(ctx, earner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.WithdrawableCents)

	// A second sweep within 24 hours finds no candidates even if the
	// balance crosses the threshold again.
	fund(earner, 17647, "sweep-big-2")
	swept, err = core.RunAutomaticPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	// After the lookback window the client is eligible again.
	clk.Advance(25 * time.Hour)
	swept, err = core.RunAutomaticPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
}
