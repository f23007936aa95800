package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBalances(t *testing.T) {
	tests := []struct {
		name        string
		credit      int64
		promo       int64
		debit       int64
		wantBalance int64
		wantPromo   int64
	}{
		{"all zero", 0, 0, 0, 0, 0},
		{"credit only", 10, 0, 0, 10, 0},
		{"credit consumed by debit", 10, 0, -10, 0, 0},
		{"debit consumes promo first", 10, 10, -10, 10, 0},
		{"debit drains promo then cash", 10, 10, -20, 0, 0},
		{"promo exactly consumed", 0, 10, -10, 0, 0},
		// Negative balances should never occur, but the arithmetic has to
		// hold up anyway.
		{"overdraft past promo", 0, 10, -20, -10, 0},
		{"overdraft past cash", 10, 0, -20, -10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance, promo := CalculateBalances(tt.credit, tt.promo, tt.debit)
			assert.Equal(t, tt.wantBalance, balance)
			assert.Equal(t, tt.wantPromo, promo)
		})
	}
}
