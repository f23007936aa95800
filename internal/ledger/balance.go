package ledger

// CalculateBalances derives the spendable cash and promotional
// sub-balances from the three aggregate sums over a client's entries.
// Debits are negative and credits are positive, so adding a debit to a
// credit is equivalent to subtraction.
//
// Debits drain the promotional pool first; whatever debit remains after
// the promo pool is exhausted comes out of the cash balance. The promo
// balance never goes negative.
func CalculateBalances(creditSum, promoCreditSum, debitSum int64) (balanceCents, promoCents int64) {
	promoRemaining := promoCreditSum + debitSum
	debitRemaining := promoRemaining
	if promoRemaining < 0 {
		promoRemaining = 0
	}

	balanceRemaining := creditSum
	if debitRemaining < 0 {
		balanceRemaining = creditSum + debitRemaining
	}

	return balanceRemaining, promoRemaining
}
