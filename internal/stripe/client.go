package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Config carries the processor credentials.
type Config struct {
	// SecretKey is the platform API key (sk_...).
	SecretKey string `mapstructure:"secret_key"`

	// ConnectClientID is the platform's Connect application id (ca_...),
	// used to build OAuth authorization URLs.
	ConnectClientID string `mapstructure:"connect_client_id"`
}

// Validate checks that the required credentials are present.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("stripe secret_key is required")
	}
	if c.ConnectClientID == "" {
		return errors.New("stripe connect_client_id is required")
	}
	return nil
}

// Client implements Processor on the official stripe-go API client.
type Client struct {
	api             *client.API
	connectClientID string
}

// NewClient creates a processor client from the given config.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	api := &client.API{}
	api.Init(config.SecretKey, nil)

	return &Client{
		api:             api,
		connectClientID: config.ConnectClientID,
	}, nil
}

func (c *Client) Charge(ctx context.Context, amountCents int64, token string, clientID uuid.UUID, txID int64) ([]byte, error) {
	params := &stripego.ChargeParams{
		Params:   stripego.Params{Context: ctx},
		Amount:   stripego.Int64(amountCents),
		Currency: stripego.String(string(stripego.CurrencyUSD)),
	}
	if err := params.SetSource(token); err != nil {
		return nil, wrapError("charge", err)
	}
	params.AddMetadata("client_id", clientID.String())
	params.AddMetadata("tx_id", strconv.FormatInt(txID, 10))

	charge, err := c.api.Charges.New(params)
	if err != nil {
		return nil, wrapError("charge", err)
	}

	raw, err := json.Marshal(charge)
	if err != nil {
		return nil, fmt.Errorf("encode charge response: %w", err)
	}
	return raw, nil
}

func (c *Client) Transfer(ctx context.Context, amountCents int64, stripeUserID string, clientID uuid.UUID) ([]byte, error) {
	params := &stripego.TransferParams{
		Params:      stripego.Params{Context: ctx},
		Amount:      stripego.Int64(amountCents),
		Currency:    stripego.String(string(stripego.CurrencyUSD)),
		Destination: stripego.String(stripeUserID),
	}
	params.AddMetadata("client_id", clientID.String())

	transfer, err := c.api.Transfers.New(params)
	if err != nil {
		return nil, wrapError("transfer", err)
	}

	raw, err := json.Marshal(transfer)
	if err != nil {
		return nil, fmt.Errorf("encode transfer response: %w", err)
	}
	return raw, nil
}

func (c *Client) ExchangeOAuthCode(ctx context.Context, code string) (*Credentials, error) {
	params := &stripego.OAuthTokenParams{
		Params:    stripego.Params{Context: ctx},
		GrantType: stripego.String("authorization_code"),
		Code:      stripego.String(code),
	}

	token, err := c.api.OAuth.New(params)
	if err != nil {
		return nil, wrapError("oauth_token", err)
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("encode oauth token response: %w", err)
	}

	return &Credentials{
		StripeUserID: token.StripeUserID,
		Raw:          raw,
	}, nil
}

func (c *Client) GetAccount(ctx context.Context, stripeUserID string) ([]byte, error) {
	params := &stripego.AccountParams{
		Params: stripego.Params{Context: ctx},
	}

	account, err := c.api.Accounts.GetByID(stripeUserID, params)
	if err != nil {
		return nil, wrapError("get_account", err)
	}

	raw, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("encode account response: %w", err)
	}
	return raw, nil
}

func (c *Client) LoginLink(ctx context.Context, stripeUserID string) (string, error) {
	params := &stripego.LoginLinkParams{
		Params:  stripego.Params{Context: ctx},
		Account: stripego.String(stripeUserID),
	}

	link, err := c.api.LoginLinks.New(params)
	if err != nil {
		return "", wrapError("login_link", err)
	}
	return link.URL, nil
}

func (c *Client) OAuthURL(state uuid.UUID) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.connectClientID)
	q.Set("scope", "read_write")
	q.Set("state", state.String())

	return "https://connect.stripe.com/oauth/authorize?" + q.Encode()
}
