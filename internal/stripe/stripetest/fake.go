// Package stripetest provides a scripted in-memory Processor for
// service tests. Each method delegates to an optional function field and
// falls back to a canned success, recording every call.
package stripetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/stripe"
)

// ChargeCall records one Charge invocation.
type ChargeCall struct {
	AmountCents int64
	Token       string
	ClientID    uuid.UUID
	TxID        int64
}

// TransferCall records one Transfer invocation.
type TransferCall struct {
	AmountCents  int64
	StripeUserID string
	ClientID     uuid.UUID
}

// Fake implements stripe.Processor with scriptable behavior.
type Fake struct {
	mu sync.Mutex

	ChargeFn        func(amountCents int64, token string) ([]byte, error)
	TransferFn      func(amountCents int64, stripeUserID string) ([]byte, error)
	ExchangeOAuthFn func(code string) (*stripe.Credentials, error)
	GetAccountFn    func(stripeUserID string) ([]byte, error)
	LoginLinkFn     func(stripeUserID string) (string, error)

	ChargeCalls   []ChargeCall
	TransferCalls []TransferCall
}

// NewFake creates a fake whose every call succeeds with canned payloads.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Charge(ctx context.Context, amountCents int64, token string, clientID uuid.UUID, txID int64) ([]byte, error) {
	f.mu.Lock()
	f.ChargeCalls = append(f.ChargeCalls, ChargeCall{
		AmountCents: amountCents,
		Token:       token,
		ClientID:    clientID,
		TxID:        txID,
	})
	fn := f.ChargeFn
	f.mu.Unlock()

	if fn != nil {
		return fn(amountCents, token)
	}
	return []byte(fmt.Sprintf(`{"id":"ch_fake","amount":%d,"status":"succeeded"}`, amountCents)), nil
}

func (f *Fake) Transfer(ctx context.Context, amountCents int64, stripeUserID string, clientID uuid.UUID) ([]byte, error) {
	f.mu.Lock()
	f.TransferCalls = append(f.TransferCalls, TransferCall{
		AmountCents:  amountCents,
		StripeUserID: stripeUserID,
		ClientID:     clientID,
	})
	fn := f.TransferFn
	f.mu.Unlock()

	if fn != nil {
		return fn(amountCents, stripeUserID)
	}
	return []byte(fmt.Sprintf(`{"id":"tr_fake","amount":%d,"destination":%q}`, amountCents, stripeUserID)), nil
}

func (f *Fake) ExchangeOAuthCode(ctx context.Context, code string) (*stripe.Credentials, error) {
	if f.ExchangeOAuthFn != nil {
		return f.ExchangeOAuthFn(code)
	}
	return &stripe.Credentials{
		StripeUserID: "acct_fake",
		Raw:          []byte(`{"access_token":"sk_fake","stripe_user_id":"acct_fake"}`),
	}, nil
}

func (f *Fake) GetAccount(ctx context.Context, stripeUserID string) ([]byte, error) {
	if f.GetAccountFn != nil {
		return f.GetAccountFn(stripeUserID)
	}
	return []byte(fmt.Sprintf(`{"id":%q,"payouts_enabled":true}`, stripeUserID)), nil
}

func (f *Fake) LoginLink(ctx context.Context, stripeUserID string) (string, error) {
	if f.LoginLinkFn != nil {
		return f.LoginLinkFn(stripeUserID)
	}
	return "https://connect.stripe.com/express/fake_login", nil
}

func (f *Fake) OAuthURL(state uuid.UUID) string {
	return "https://connect.stripe.com/oauth/authorize?client_id=ca_fake&response_type=code&scope=read_write&state=" + state.String()
}
