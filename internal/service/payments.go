package service

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/ledger"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// PaymentOutcome is the domain result of an AddPayment call.
type PaymentOutcome int

const (
	PaymentSuccess PaymentOutcome = iota
	PaymentInsufficientBalance
	PaymentInvalidAmount
)

// AddPaymentResult is the outcome of escrowing a message payment.
type AddPaymentResult struct {
	Outcome      PaymentOutcome
	PaymentCents int32
	FeeCents     int32

	// Balance is the sender's projection after the operation. Nil when
	// the outcome is InvalidAmount.
	Balance *beandb.Balance
}

// SettlePaymentResult is the outcome of settling an escrowed payment.
// PaymentCents carries the net amount credited to the recipient.
type SettlePaymentResult struct {
	PaymentCents int32
	FeeCents     int32
	Balance      *beandb.Balance
}

// encodeMessageHash renders a message fingerprint the way payment rows
// store it.
func encodeMessageHash(hash []byte) string {
	return base64.RawStdEncoding.EncodeToString(hash)
}

// AddPayment escrows a message payment from sender to recipient. The
// sender is debited payment plus the 15% message fee; the payment
// amount sits in escrow until settled or expired while the fee goes to
// the platform immediately.
func (b *BeanCounter) AddPayment(ctx context.Context, sender, recipient uuid.UUID, paymentCents int32, messageHash []byte) (*AddPaymentResult, error) {
	if len(messageHash) == 0 {
		return nil, BadArguments("message_hash is required")
	}
	if paymentCents < 0 {
		return &AddPaymentResult{Outcome: PaymentInvalidAmount}, nil
	}

	feeCents := ledger.MessageFee(paymentCents)
	total := int64(paymentCents) + int64(feeCents)
	if total >= ledger.MaxPaymentAmount {
		return &AddPaymentResult{
			Outcome:      PaymentInvalidAmount,
			PaymentCents: paymentCents,
			FeeCents:     feeCents,
		}, nil
	}

	balance, err := b.GetBalance(ctx, sender)
	if err != nil {
		return nil, err
	}
	if balance.BalanceCents+balance.PromoCents < total {
		return &AddPaymentResult{
			Outcome:      PaymentInsufficientBalance,
			PaymentCents: paymentCents,
			FeeCents:     feeCents,
			Balance:      balance,
		}, nil
	}

	err = b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		if total > 0 {
			if err := ledger.AppendTransaction(ctx, tc, nil, &sender, paymentCents, beandb.ReasonMessageSent); err != nil {
				return err
			}
			if err := ledger.AppendTransaction(ctx, tc, nil, &sender, feeCents, beandb.ReasonMessageSent); err != nil {
				return err
			}
		}

		if _, err := tc.Payments().Insert(ctx, beandb.NewPayment{
			ClientIDFrom: sender,
			ClientIDTo:   recipient,
			PaymentCents: paymentCents,
			MessageHash:  encodeMessageHash(messageHash),
		}); err != nil {
			return err
		}

		var err error
		balance, err = ledger.UpdateBalance(ctx, tc, sender)
		return err
	})
	if err != nil {
		if errors.Is(err, beandb.ErrDuplicatePayment) {
			return nil, BadArguments("a payment for this recipient and message already exists")
		}
		return nil, wrapStoreError(err)
	}

	b.metrics.PaymentAddedAmount.Observe(float64(paymentCents))
	b.metrics.PaymentAddedFeeAmount.Observe(float64(feeCents))
	b.logger.Info().
		Stringer("sender_id", sender).
		Stringer("recipient_id", recipient).
		Int32("payment_cents", paymentCents).
		Int32("fee_cents", feeCents).
		Msg("payment escrowed")

	return &AddPaymentResult{
		Outcome:      PaymentSuccess,
		PaymentCents: paymentCents,
		FeeCents:     feeCents,
		Balance:      balance,
	}, nil
}

// SettlePayment releases the escrowed payment for (recipient, message
// fingerprint): the recipient is credited the payment net of the 15%
// settle fee and the escrow row is deleted. A missing escrow fails with
// NotFound; settling is therefore not idempotent.
func (b *BeanCounter) SettlePayment(ctx context.Context, recipient uuid.UUID, messageHash []byte) (*SettlePaymentResult, error) {
	if len(messageHash) == 0 {
		return nil, BadArguments("message_hash is required")
	}

	encoded := encodeMessageHash(messageHash)

	var result SettlePaymentResult
	err := b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		payment, err := tc.Payments().GetByRecipientAndHash(ctx, recipient, encoded)
		if err != nil {
			return err
		}

		fee := ledger.MessageFee(payment.PaymentCents)
		net := payment.PaymentCents - fee

		if net > 0 {
			if err := ledger.AppendTransaction(ctx, tc, &recipient, nil, net, beandb.ReasonMessageRead); err != nil {
				return err
			}
		}

		if err := tc.Payments().Delete(ctx, payment.ID); err != nil {
			return err
		}

		balance, err := ledger.UpdateBalance(ctx, tc, recipient)
		if err != nil {
			return err
		}

		result = SettlePaymentResult{
			PaymentCents: net,
			FeeCents:     fee,
			Balance:      balance,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, beandb.ErrPaymentNotFound) {
			return nil, NotFound("no escrowed payment for this recipient and message")
		}
		return nil, wrapStoreError(err)
	}

	b.metrics.PaymentSettledAmount.Observe(float64(result.PaymentCents))
	b.metrics.PaymentSettledFeeAmount.Observe(float64(result.FeeCents))
	b.logger.Info().
		Stringer("recipient_id", recipient).
		Int32("net_cents", result.PaymentCents).
		Int32("fee_cents", result.FeeCents).
		Msg("payment settled")

	return &result, nil
}
