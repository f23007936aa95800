package ledger

import "math"

// MaxPaymentAmount is the ceiling applied to payment+fee totals on send.
// It is derived by subtracting the processor's maximum fee of 3.9% + 30c
// from their charge maximum of $999,999.99: (99999999 - 30) / 1.039. The
// base 2.9% + 30c fee includes an optional 1% for foreign cards.
const MaxPaymentAmount int64 = 96246360

// messageFeeRate is the platform's cut of a message payment, charged once
// at send on top of the payment and once at settle out of the payment.
const messageFeeRate = 0.15

// MessageFee returns the platform fee for a message payment, rounded
// half-to-even at the cent boundary.
func MessageFee(paymentCents int32) int32 {
	return int32(math.RoundToEven(float64(paymentCents) * messageFeeRate))
}

// StripeFee returns the processor's fee for a card charge: 2.9% rounded
// down, plus 30 cents. See https://stripe.com/pricing#pricing-details.
func StripeFee(amountCents int64) int64 {
	return int64(math.Floor(float64(amountCents)*0.029)) + 30
}
