// Package stripe wraps the payment processor behind a narrow interface
// so the service core can be tested against a scripted fake. The real
// implementation uses the official stripe-go client.
package stripe

import (
	"context"

	"github.com/google/uuid"
)

// Credentials is the outcome of a completed Connect OAuth code exchange.
type Credentials struct {
	// StripeUserID is the connected account identifier (acct_...).
	StripeUserID string

	// Raw is the processor's token response, persisted verbatim.
	Raw []byte
}

// Processor is the payment processor surface the service depends on.
// Every call crosses the network; callers invoke them inside an open
// store transaction so a processor failure rolls the ledger back.
type Processor interface {
	// Charge debits a card token for amountCents and returns the
	// processor's charge record. The client and ledger entry ids travel
	// as charge metadata for reconciliation.
	Charge(ctx context.Context, amountCents int64, token string, clientID uuid.UUID, txID int64) ([]byte, error)

	// Transfer moves amountCents from the platform balance to a
	// connected account and returns the processor's transfer record.
	Transfer(ctx context.Context, amountCents int64, stripeUserID string, clientID uuid.UUID) ([]byte, error)

	// ExchangeOAuthCode completes the Connect OAuth handshake.
	ExchangeOAuthCode(ctx context.Context, code string) (*Credentials, error)

	// GetAccount fetches the connected account's details record.
	GetAccount(ctx context.Context, stripeUserID string) ([]byte, error)

	// LoginLink creates a single-use Express dashboard login URL for a
	// connected account.
	LoginLink(ctx context.Context, stripeUserID string) (string, error)

	// OAuthURL builds the Connect authorization URL carrying the given
	// state nonce.
	OAuthURL(state uuid.UUID) string
}
