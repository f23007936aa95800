package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paidmsg/beancounter/internal/service"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
	"github.com/paidmsg/beancounter/internal/storage/beandb/memory"
	"github.com/paidmsg/beancounter/internal/stripe"
	"github.com/paidmsg/beancounter/internal/stripe/stripetest"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCore(t *testing.T) (*service.BeanCounter, *memory.Store, *stripetest.Fake, *testClock) {
	t.Helper()

	clk := &testClock{t: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clk.Now))
	processor := stripetest.NewFake()

	core, err := service.New(service.Services{
		Reader:    store,
		Writer:    store,
		Processor: processor,
		Now:       clk.Now,
	})
	require.NoError(t, err)

	return core, store, processor, clk
}

// linkConnectAccount walks a client through the full OAuth handshake
// against the fake processor.
func linkConnectAccount(t *testing.T, core *service.BeanCounter, store *memory.Store, client uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	info, err := core.GetConnectAccount(ctx, client)
	require.NoError(t, err)
	require.Equal(t, service.AccountInactive, info.State)

	account, err := store.ConnectAccounts().Get(ctx, client)
	require.NoError(t, err)

	info, err = core.CompleteConnectOauth(ctx, client, account.OAuthState, "ac_test_code")
	require.NoError(t, err)
	require.Equal(t, service.AccountActive, info.State)
}

func TestStripeChargeTopUp(t *testing.T) {
	core, store, processor, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	result, err := core.StripeCharge(ctx, client, 1000, "tok_visa")
	require.NoError(t, err)
	require.Equal(t, service.ChargeSuccess, result.Outcome)

	// Processor fee is floor(1000*0.029)+30 = 59.
	assert.Equal(t, int64(941), result.Balance.BalanceCents)
	assert.Equal(t, int64(0), result.Balance.PromoCents)
	assert.Equal(t, int64(0), result.Balance.WithdrawableCents)

	entries := store.EntriesSnapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, int32(941), entries[0].AmountCents)
	assert.Equal(t, int32(-941), entries[1].AmountCents)

	// The processor is charged the full amount, with the credit entry id
	// as reconciliation metadata.
	require.Len(t, processor.ChargeCalls, 1)
	assert.Equal(t, int64(1000), processor.ChargeCalls[0].AmountCents)
	assert.Equal(t, client, processor.ChargeCalls[0].ClientID)
	assert.Equal(t, entries[0].ID, processor.ChargeCalls[0].TxID)
}

func TestStripeChargeCompounds(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	_, err := core.StripeCharge(ctx, client, 1000, "tok_visa")
	require.NoError(t, err)

	result, err := core.StripeCharge(ctx, client, 10000, "tok_visa")
	require.NoError(t, err)
	require.Equal(t, service.ChargeSuccess, result.Outcome)

	// Second fee is floor(10000*0.029)+30 = 320, crediting 9680.
	assert.Equal(t, int64(10621), result.Balance.BalanceCents)
}

func TestStripeChargeDeclineRollsBack(t *testing.T) {
	core, store, processor, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	processor.ChargeFn = func(amountCents int64, token string) ([]byte, error) {
		return nil, &stripe.Error{
			Operation:   "charge",
			HTTPStatus:  402,
			Type:        "card_error",
			Code:        "card_declined",
			DeclineCode: "insufficient_funds",
			Message:     "Your card has insufficient funds.",
		}
	}

	result, err := core.StripeCharge(ctx, client, 1000, "tok_chargeDeclined")
	require.NoError(t, err)
	require.Equal(t, service.ChargeFailure, result.Outcome)
	assert.Equal(t, "Your card has insufficient funds.", result.Message)
	assert.Contains(t, string(result.APIResponse), "card_declined")

	// The provisional credit rolled back.
	assert.Empty(t, store.EntriesSnapshot())
	balance, err := core.GetBalance(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.BalanceCents)
}

func TestAddPaymentInsufficientBalance(t *testing.T) {
	core, store, _, _ := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()

	_, err := core.AddCredits(ctx, sender, 100)
	require.NoError(t, err)
	before := len(store.EntriesSnapshot())

	// Total is 100 + round(100*0.15) = 115, above the balance of 100.
	result, err := core.AddPayment(ctx, sender, recipient, 100, []byte("msg-hash"))
	require.NoError(t, err)
	require.Equal(t, service.PaymentInsufficientBalance, result.Outcome)
	assert.Equal(t, int32(100), result.PaymentCents)
	assert.Equal(t, int32(15), result.FeeCents)

	assert.Len(t, store.EntriesSnapshot(), before)
	assert.Empty(t, store.PaymentsSnapshot())
}

func TestAddPaymentAboveMaximum(t *testing.T) {
	core, store, _, _ := newTestCore(t)
	ctx := context.Background()

	// 83,692,488 + 15% lands above the 96,246,360 cap.
	result, err := core.AddPayment(ctx, uuid.New(), uuid.New(), 83692488, []byte("msg-hash"))
	require.NoError(t, err)
	assert.Equal(t, service.PaymentInvalidAmount, result.Outcome)
	assert.Empty(t, store.EntriesSnapshot())
}

func TestSendThenSettle(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()
	hash := []byte("msg-hash")

	_, err := core.AddCredits(ctx, sender, 115)
	require.NoError(t, err)

	added, err := core.AddPayment(ctx, sender, recipient, 100, hash)
	require.NoError(t, err)
	require.Equal(t, service.PaymentSuccess, added.Outcome)
	assert.Equal(t, int32(100), added.PaymentCents)
	assert.Equal(t, int32(15), added.FeeCents)
	assert.Equal(t, int64(0), added.Balance.BalanceCents)

	settled, err := core.SettlePayment(ctx, recipient, hash)
	require.NoError(t, err)
	assert.Equal(t, int32(85), settled.PaymentCents)
	assert.Equal(t, int32(15), settled.FeeCents)
	assert.Equal(t, int64(85), settled.Balance.BalanceCents)
	assert.Equal(t, int64(85), settled.Balance.WithdrawableCents)

	// The escrow is gone; settling again reports NotFound.
	_, err = core.SettlePayment(ctx, recipient, hash)
	require.Error(t, err)
	assert.Equal(t, service.CodeNotFound, service.CodeOf(err))
}

func TestAddPaymentDuplicateHash(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()

	_, err := core.AddCredits(ctx, sender, 1000)
	require.NoError(t, err)

	result, err := core.AddPayment(ctx, sender, recipient, 100, []byte("dup"))
	require.NoError(t, err)
	require.Equal(t, service.PaymentSuccess, result.Outcome)

	_, err = core.AddPayment(ctx, sender, recipient, 100, []byte("dup"))
	require.Error(t, err)
	assert.Equal(t, service.CodeBadArguments, service.CodeOf(err))
}

func TestZeroValuePayment(t *testing.T) {
	core, store, _, _ := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()

	result, err := core.AddPayment(ctx, sender, recipient, 0, []byte("free"))
	require.NoError(t, err)
	require.Equal(t, service.PaymentSuccess, result.Outcome)

	// Only the escrow row exists; no ledger entries were written.
	assert.Empty(t, store.EntriesSnapshot())
	assert.Len(t, store.PaymentsSnapshot(), 1)
}

func TestExpirySweepRefundsSender(t *testing.T) {
	core, store, _, clk := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()

	_, err := core.AddCredits(ctx, sender, 115)
	require.NoError(t, err)

	added, err := core.AddPayment(ctx, sender, recipient, 100, []byte("unread"))
	require.NoError(t, err)
	require.Equal(t, service.PaymentSuccess, added.Outcome)
	require.Equal(t, int64(0), added.Balance.BalanceCents)

	clk.Advance(31 * 24 * time.Hour)

	expired, err := core.ExpireEscrows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Empty(t, store.PaymentsSnapshot())

	// Only the escrowed 100 comes back; the 15 send fee stays with the
	// platform.
	balance, err := core.GetBalance(ctx, sender)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance.BalanceCents)
}

func TestExpirySweepSkipsFreshPayments(t *testing.T) {
	core, store, _, clk := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()

	_, err := core.AddCredits(ctx, sender, 1000)
	require.NoError(t, err)
	_, err = core.AddPayment(ctx, sender, uuid.New(), 100, []byte("fresh"))
	require.NoError(t, err)

	clk.Advance(29 * 24 * time.Hour)

	expired, err := core.ExpireEscrows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
	assert.Len(t, store.PaymentsSnapshot(), 1)
}

func TestConnectPayout(t *testing.T) {
	core, store, processor, _ := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()

	// Fund the recipient with a settled payment netting exactly 15000:
	// 17647 - round(17647*0.15) = 17647 - 2647.
	_, err := core.AddCredits(ctx, sender, 20294)
	require.NoError(t, err)
	_, err = core.AddPayment(ctx, sender, recipient, 17647, []byte("payout-msg"))
	require.NoError(t, err)
	settled, err := core.SettlePayment(ctx, recipient, []byte("payout-msg"))
	require.NoError(t, err)
	require.Equal(t, int64(15000), settled.Balance.WithdrawableCents)

	linkConnectAccount(t, core, store, recipient)

	result, err := core.ConnectPayout(ctx, recipient, 15000)
	require.NoError(t, err)
	require.Equal(t, service.PayoutSuccess, result.Outcome)
	assert.Equal(t, int64(0), result.Balance.BalanceCents)
	assert.Equal(t, int64(0), result.Balance.WithdrawableCents)

	transfers := store.TransfersSnapshot()
	require.Len(t, transfers, 1)
	assert.Equal(t, recipient, transfers[0].ClientID)
	assert.Equal(t, int64(15000), transfers[0].AmountCents)

	require.Len(t, processor.TransferCalls, 1)
	assert.Equal(t, int64(15000), processor.TransferCalls[0].AmountCents)
	assert.Equal(t, "acct_fake", processor.TransferCalls[0].StripeUserID)
}

func TestConnectPayoutProcessorFailure(t *testing.T) {
	core, store, processor, _ := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()

	_, err := core.AddCredits(ctx, sender, 20294)
	require.NoError(t, err)
	_, err = core.AddPayment(ctx, sender, recipient, 17647, []byte("payout-msg"))
	require.NoError(t, err)
	_, err = core.SettlePayment(ctx, recipient, []byte("payout-msg"))
	require.NoError(t, err)

	linkConnectAccount(t, core, store, recipient)

	processor.TransferFn = func(amountCents int64, stripeUserID string) ([]byte, error) {
		return nil, &stripe.Error{Operation: "transfer", Message: "platform balance too low"}
	}

	before, err := core.GetBalance(ctx, recipient)
	require.NoError(t, err)

	_, err = core.ConnectPayout(ctx, recipient, 15000)
	require.Error(t, err)
	assert.Equal(t, service.CodeProcessor, service.CodeOf(err))

	// Nothing persisted.
	assert.Empty(t, store.TransfersSnapshot())
	after, err := core.GetBalance(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, before.BalanceCents, after.BalanceCents)
	assert.Equal(t, before.WithdrawableCents, after.WithdrawableCents)
}

func TestConnectPayoutInsufficientBalance(t *testing.T) {
	core, store, _, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	linkConnectAccount(t, core, store, client)

	result, err := core.ConnectPayout(ctx, client, 5000)
	require.NoError(t, err)
	assert.Equal(t, service.PayoutInsufficientBalance, result.Outcome)
	assert.Empty(t, store.TransfersSnapshot())
}

func TestConnectPayoutRequiresLinkedAccount(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	// Account row exists but OAuth never completed.
	_, err := core.GetConnectAccount(ctx, client)
	require.NoError(t, err)

	_, err = core.ConnectPayout(ctx, client, 5000)
	require.Error(t, err)
	assert.Equal(t, service.CodeBadArguments, service.CodeOf(err))
}

func TestCompleteConnectOauthRejectsWrongNonce(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	_, err := core.GetConnectAccount(ctx, client)
	require.NoError(t, err)

	_, err = core.CompleteConnectOauth(ctx, client, uuid.New(), "ac_test_code")
	require.Error(t, err)
	assert.Equal(t, service.CodeBadArguments, service.CodeOf(err))
}

func TestUpdateConnectAccountPrefsClampsThreshold(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	info, err := core.UpdateConnectAccountPrefs(ctx, client, true, 500)
	require.NoError(t, err)
	assert.True(t, info.EnableAutomaticPayouts)
	assert.Equal(t, int64(10000), info.PayoutThresholdCents)

	info, err = core.UpdateConnectAccountPrefs(ctx, client, true, 25000)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), info.PayoutThresholdCents)
}

func TestAddPromoIsSpendableNotWithdrawable(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	sender := uuid.New()
	recipient := uuid.New()

	balance, err := core.AddPromo(ctx, sender, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.BalanceCents)
	assert.Equal(t, int64(500), balance.PromoCents)
	assert.Equal(t, int64(0), balance.WithdrawableCents)

	// Promo funds a send; the debit drains the promo pool first.
	result, err := core.AddPayment(ctx, sender, recipient, 100, []byte("promo-send"))
	require.NoError(t, err)
	require.Equal(t, service.PaymentSuccess, result.Outcome)
	assert.Equal(t, int64(0), result.Balance.BalanceCents)
	assert.Equal(t, int64(385), result.Balance.PromoCents)
}

func TestGetBalanceCreatesRowLazily(t *testing.T) {
	core, store, _, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	_, err := store.Balances().Get(ctx, client)
	require.True(t, errors.Is(err, beandb.ErrBalanceNotFound))

	balance, err := core.GetBalance(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, client, balance.ClientID)
	assert.Equal(t, int64(0), balance.BalanceCents)

	stored, err := store.Balances().Get(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, balance.ID, stored.ID)
}

func TestGetTransactions(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	ctx := context.Background()
	client := uuid.New()

	_, err := core.AddCredits(ctx, client, 250)
	require.NoError(t, err)

	entries, err := core.GetTransactions(ctx, client)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, beandb.KindCredit, entries[0].Kind)
	assert.Equal(t, beandb.ReasonCreditAdded, entries[0].Reason)
	assert.Equal(t, int32(250), entries[0].AmountCents)
}
