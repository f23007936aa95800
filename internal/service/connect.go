package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/paidmsg/beancounter/internal/ledger"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// minPayoutThresholdCents is the floor for the automatic payout
// threshold preference.
const minPayoutThresholdCents int64 = 10000

// AccountState says whether a Connect account has completed OAuth.
type AccountState string

const (
	AccountActive   AccountState = "active"
	AccountInactive AccountState = "inactive"
)

// ConnectAccountInfo is the client-facing view of a Connect account. An
// inactive account carries the OAuth authorization URL to begin
// linking; an active one carries a dashboard login link.
type ConnectAccountInfo struct {
	ClientID               uuid.UUID
	State                  AccountState
	EnableAutomaticPayouts bool
	PayoutThresholdCents   int64
	OAuthURL               string
	LoginLinkURL           string
}

// PayoutOutcome is the domain result of a payout attempt.
type PayoutOutcome int

const (
	PayoutSuccess PayoutOutcome = iota
	PayoutInsufficientBalance
)

// PayoutResult is the outcome of a Connect payout.
type PayoutResult struct {
	Outcome PayoutOutcome
	Balance *beandb.Balance
}

// GetConnectAccount returns the client's Connect state, lazily creating
// the account row with a fresh OAuth nonce on first reference.
func (b *BeanCounter) GetConnectAccount(ctx context.Context, client uuid.UUID) (*ConnectAccountInfo, error) {
	account, err := b.getOrCreateAccount(ctx, client)
	if err != nil {
		return nil, err
	}
	return b.accountInfo(ctx, account)
}

// CompleteConnectOauth finishes the Connect OAuth handshake: it checks
// the state nonce against the stored one, exchanges the authorization
// code for credentials, fetches the linked account's details, and
// persists all three atomically.
func (b *BeanCounter) CompleteConnectOauth(ctx context.Context, client, oauthState uuid.UUID, code string) (*ConnectAccountInfo, error) {
	if code == "" {
		return nil, BadArguments("authorization_code is required")
	}

	account, err := b.writer.ConnectAccounts().Get(ctx, client)
	if err != nil {
		if errors.Is(err, beandb.ErrAccountNotFound) {
			return nil, NotFound("no connect account for this client")
		}
		return nil, wrapStoreError(err)
	}
	if account.OAuthState != oauthState {
		return nil, BadArguments("oauth_state does not match")
	}

	credentials, err := b.processor.ExchangeOAuthCode(ctx, code)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	details, err := b.processor.GetAccount(ctx, credentials.StripeUserID)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	err = b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		var err error
		account, err = tc.ConnectAccounts().SetCredentials(ctx, client, credentials.StripeUserID, credentials.Raw, details)
		return err
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}

	b.logger.Info().Stringer("client_id", client).
		Str("stripe_user_id", credentials.StripeUserID).
		Msg("connect account linked")
	return b.accountInfo(ctx, account)
}

// UpdateConnectAccountPrefs stores the automatic payout preferences,
// clamping the threshold to the platform minimum.
func (b *BeanCounter) UpdateConnectAccountPrefs(ctx context.Context, client uuid.UUID, enableAutomaticPayouts bool, thresholdCents int64) (*ConnectAccountInfo, error) {
	if thresholdCents < minPayoutThresholdCents {
		thresholdCents = minPayoutThresholdCents
	}

	if _, err := b.getOrCreateAccount(ctx, client); err != nil {
		return nil, err
	}

	account, err := b.writer.ConnectAccounts().SetPreferences(ctx, client, enableAutomaticPayouts, thresholdCents)
	if err != nil {
		return nil, wrapStoreError(err)
	}

	return b.accountInfo(ctx, account)
}

// ConnectPayout transfers amountCents of withdrawable cash to the
// client's linked account. The transfer runs inside the store
// transaction holding the payout debit, so a processor failure leaves
// neither a transfer row nor ledger entries.
func (b *BeanCounter) ConnectPayout(ctx context.Context, client uuid.UUID, amountCents int64) (*PayoutResult, error) {
	if amountCents <= 0 {
		return nil, BadArguments("amount_cents must be positive")
	}
	if amountCents > math.MaxInt32 {
		return nil, BadArguments("amount_cents exceeds the maximum payout")
	}

	account, err := b.reader.ConnectAccounts().Get(ctx, client)
	if err != nil {
		if errors.Is(err, beandb.ErrAccountNotFound) {
			return nil, NotFound("no connect account for this client")
		}
		return nil, wrapStoreError(err)
	}
	if account.StripeUserID == nil {
		return nil, BadArguments("connect account has not completed oauth")
	}
	stripeUserID := *account.StripeUserID

	var result PayoutResult
	err = b.writer.WithTransaction(ctx, func(tc beandb.TransactionContext) error {
		balance, err := ledger.UpdateBalance(ctx, tc, client)
		if err != nil {
			return err
		}
		if balance.BalanceCents < amountCents {
			result = PayoutResult{Outcome: PayoutInsufficientBalance, Balance: balance}
			return nil
		}

		raw, err := b.processor.Transfer(ctx, amountCents, stripeUserID, client)
		if err != nil {
			return err
		}

		if _, err := tc.ConnectTransfers().Insert(ctx, beandb.NewConnectTransfer{
			ClientID:     client,
			StripeUserID: stripeUserID,
			Transfer:     raw,
			AmountCents:  amountCents,
		}); err != nil {
			return err
		}

		if err := ledger.AppendTransaction(ctx, tc, nil, &client, int32(amountCents), beandb.ReasonPayout); err != nil {
			return err
		}

		balance, err = ledger.UpdateBalance(ctx, tc, client)
		if err != nil {
			return err
		}
		result = PayoutResult{Outcome: PayoutSuccess, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}

	if result.Outcome == PayoutSuccess {
		b.logger.Info().Stringer("client_id", client).
			Int64("amount_cents", amountCents).
			Str("stripe_user_id", stripeUserID).
			Msg("payout transferred")
	}
	return &result, nil
}

// getOrCreateAccount loads the client's account row, creating it with a
// fresh OAuth nonce on first reference.
func (b *BeanCounter) getOrCreateAccount(ctx context.Context, client uuid.UUID) (*beandb.ConnectAccount, error) {
	account, err := b.reader.ConnectAccounts().Get(ctx, client)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, beandb.ErrAccountNotFound) {
		return nil, wrapStoreError(err)
	}

	account, err = b.writer.ConnectAccounts().Create(ctx, client, uuid.New())
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return account, nil
}

// accountInfo renders the client-facing view: inactive accounts get an
// OAuth URL, linked ones a dashboard login link.
func (b *BeanCounter) accountInfo(ctx context.Context, account *beandb.ConnectAccount) (*ConnectAccountInfo, error) {
	info := &ConnectAccountInfo{
		ClientID:               account.ClientID,
		EnableAutomaticPayouts: account.EnableAutomaticPayouts,
		PayoutThresholdCents:   account.AutomaticPayoutThresholdCents,
	}

	if account.StripeUserID == nil {
		info.State = AccountInactive
		info.OAuthURL = b.processor.OAuthURL(account.OAuthState)
		return info, nil
	}

	info.State = AccountActive
	link, err := b.processor.LoginLink(ctx, *account.StripeUserID)
	if err != nil {
		return nil, wrapStoreError(err)
	}
	info.LoginLinkURL = link
	return info, nil
}
