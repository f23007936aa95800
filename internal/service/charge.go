package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/ledger"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
	"github.com/paidmsg/beancounter/internal/stripe"
)

// ChargeOutcome is the domain result of a top-up attempt.
type ChargeOutcome int

const (
	ChargeSuccess ChargeOutcome = iota
	ChargeFailure
)

// ChargeResult is the outcome of a card top-up. On failure APIResponse
// carries the processor's structured error when one was available and
// Message carries the human-readable reason.
type ChargeResult struct {
	Outcome     ChargeOutcome
	APIResponse []byte
	Message     string

	// Balance is the client's projection after a successful charge.
	Balance *beandb.Balance
}

// errChargeDeclined aborts the charge transaction after a processor
// failure so the provisional credit rolls back.
var errChargeDeclined = errors.New("charge declined")

// chargeStatus is the slice of the processor's charge payload the
// success check needs.
type chargeStatus struct {
	Status string `json:"status"`
}

// StripeCharge tops up the client's cash balance by charging a card
// token for amountCents. The client is credited the amount net of the
// processor fee. The charge runs inside the store transaction holding
// the provisional credit, so a declined or errored charge leaves no
// ledger trace.
func (b *BeanCounter) StripeCharge(ctx context.Context, client uuid.UUID, amountCents int32, token string) (*ChargeResult, error) {
	if amountCents <= 0 {
		return nil, BadArguments("amount_cents must be positive")
	}
	if token == "" {
		return nil, BadArguments("token is required")
	}

	processorFee := ledger.StripeFee(int64(amountCents))
	credited := int64(amountCents) - processorFee
	if credited <= 0 {
		return nil, BadArguments("amount_cents does not cover the processor fee")
	}

	var (
		result  ChargeResult
		failure *ChargeResult
	)
	err := b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		credit, err := ledger.AppendTransactionReturningCredit(ctx, tc, &client, nil, int32(credited), beandb.ReasonCreditAdded)
		if err != nil {
			return err
		}

		raw, err := b.processor.Charge(ctx, int64(amountCents), token, client, credit.ID)
		if err != nil {
			if procErr, ok := stripe.AsError(err); ok {
				failure = chargeFailure(procErr)
				return errChargeDeclined
			}
			return err
		}

		var status chargeStatus
		if jsonErr := json.Unmarshal(raw, &status); jsonErr == nil && status.Status != "succeeded" {
			failure = &ChargeResult{
				Outcome:     ChargeFailure,
				APIResponse: raw,
				Message:     "charge did not succeed: " + status.Status,
			}
			return errChargeDeclined
		}

		if _, err := tc.StripeCharges().Insert(ctx, beandb.NewStripeCharge{
			ClientID: client,
			Charge:   raw,
		}); err != nil {
			return err
		}

		balance, err := ledger.UpdateBalance(ctx, tc, client)
		if err != nil {
			return err
		}

		result = ChargeResult{
			Outcome:     ChargeSuccess,
			APIResponse: raw,
			Balance:     balance,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errChargeDeclined) {
			b.logger.Warn().Stringer("client_id", client).
				Int32("amount_cents", amountCents).
				Str("reason", failure.Message).
				Msg("card charge failed")
			return failure, nil
		}
		return nil, wrapStoreError(err)
	}

	b.logger.Info().Stringer("client_id", client).
		Int32("amount_cents", amountCents).
		Int64("credited_cents", credited).
		Msg("card charge succeeded")
	return &result, nil
}

// chargeFailure renders a processor error into a failure result.
func chargeFailure(procErr *stripe.Error) *ChargeResult {
	payload, err := json.Marshal(map[string]string{
		"type":         procErr.Type,
		"code":         procErr.Code,
		"decline_code": procErr.DeclineCode,
		"charge":       procErr.ChargeID,
		"message":      procErr.Message,
	})
	if err != nil {
		payload = nil
	}
	return &ChargeResult{
		Outcome:     ChargeFailure,
		APIResponse: payload,
		Message:     procErr.Message,
	}
}
