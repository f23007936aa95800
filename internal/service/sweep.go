package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/ledger"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// ExpireEscrows refunds every escrowed payment older than the expiry
// window and returns the number refunded. The whole batch runs in one
// store transaction; a single failed refund rolls back everything.
//
// Only the escrowed payment amount is refunded to the sender. The send
// fee stays with the platform.
func (b *BeanCounter) ExpireEscrows(ctx context.Context) (int, error) {
	cutoff := b.now().Add(-b.paymentExpiry)

	var expired int
	err := b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		payments, err := tc.Payments().ListCreatedBefore(ctx, cutoff)
		if err != nil {
			return err
		}

		senders := make(map[uuid.UUID]struct{})
		for _, payment := range payments {
			sender := payment.ClientIDFrom
			if payment.PaymentCents > 0 {
				if err := ledger.AppendTransaction(ctx, tc, &sender, nil, payment.PaymentCents, beandb.ReasonMessageUnread); err != nil {
					return err
				}
			}
			if err := tc.Payments().Delete(ctx, payment.ID); err != nil {
				return err
			}
			senders[sender] = struct{}{}
		}

		for sender := range senders {
			if _, err := ledger.UpdateBalance(ctx, tc, sender); err != nil {
				return err
			}
		}

		expired = len(payments)
		return nil
	})
	if err != nil {
		return 0, wrapStoreError(err)
	}

	if expired > 0 {
		b.metrics.EscrowsExpired.Add(float64(expired))
		b.logger.Info().Int("count", expired).Msg("expired escrows refunded")
	}
	return expired, nil
}

// RunAutomaticPayouts pays out every eligible client's full withdrawable
// balance and returns the number of successful payouts. A client is
// eligible when automatic payouts are enabled, the withdrawable balance
// has crossed their threshold, and no transfer happened in the last
// 24 hours. Per-client failures are logged and skipped.
func (b *BeanCounter) RunAutomaticPayouts(ctx context.Context) (int, error) {
	candidates, err := b.reader.ConnectTransfers().ListPayoutCandidates(ctx)
	if err != nil {
		return 0, wrapStoreError(err)
	}

	var swept int
	for _, candidate := range candidates {
		result, err := b.ConnectPayout(ctx, candidate.ClientID, candidate.WithdrawableCents)
		if err != nil {
			b.metrics.PayoutsFailed.Inc()
			b.logger.Error().Err(err).
				Stringer("client_id", candidate.ClientID).
				Int64("amount_cents", candidate.WithdrawableCents).
				Msg("automatic payout failed")
			continue
		}
		if result.Outcome != PayoutSuccess {
			b.metrics.PayoutsFailed.Inc()
			b.logger.Warn().
				Stringer("client_id", candidate.ClientID).
				Int64("amount_cents", candidate.WithdrawableCents).
				Msg("automatic payout skipped: insufficient balance")
			continue
		}

		b.metrics.PayoutsSwept.Inc()
		swept++
	}

	return swept, nil
}
