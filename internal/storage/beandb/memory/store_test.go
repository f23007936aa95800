package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

func TestWithTransactionRollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	client := uuid.New()

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		_, err := tc.Transactions().Append(ctx, beandb.NewEntry{
			ClientID:    &client,
			Kind:        beandb.KindCredit,
			Reason:      beandb.ReasonCreditAdded,
			AmountCents: 100,
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, store.EntriesSnapshot())
}

func TestWithTransactionCommitPublishesDraft(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	client := uuid.New()

	err := store.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		_, err := tc.Balances().Upsert(ctx, client, 500, 0, 0)
		return err
	})
	require.NoError(t, err)

	balance, err := store.Balances().Get(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.BalanceCents)
}

func TestDuplicatePaymentRejected(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	recipient := uuid.New()

	payment := beandb.NewPayment{
		ClientIDFrom: uuid.New(),
		ClientIDTo:   recipient,
		PaymentCents: 100,
		MessageHash:  "aGFzaA",
	}

	_, err := store.Payments().Insert(ctx, payment)
	require.NoError(t, err)

	_, err = store.Payments().Insert(ctx, payment)
	require.ErrorIs(t, err, beandb.ErrDuplicatePayment)
}

func TestSequentialTransactionsSerialize(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	tx, err := store.System().Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Balances().Upsert(ctx, uuid.New(), 1, 0, 0)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	// Commit releases the store for the next transaction.
	tx, err = store.System().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
}
