package grpc

import "time"

// Result codes carried in responses. Domain outcomes are part of the
// payload rather than the gRPC status so callers can render guidance
// without retry loops.
const (
	ResultSuccess             = "SUCCESS"
	ResultFailure             = "FAILURE"
	ResultInsufficientBalance = "INSUFFICIENT_BALANCE"
	ResultInvalidAmount       = "INVALID_AMOUNT"
)

// Balance is the wire form of a client's balance projection.
type Balance struct {
	ClientID          string `json:"client_id"`
	BalanceCents      int64  `json:"balance_cents"`
	PromoCents        int64  `json:"promo_cents"`
	WithdrawableCents int64  `json:"withdrawable_cents"`
}

// Transaction is the wire form of one ledger entry.
type Transaction struct {
	ClientID    string    `json:"client_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	AmountCents int32     `json:"amount_cents"`
	Type        string    `json:"tx_type"`
	Reason      string    `json:"tx_reason"`
}

// ConnectAccountInfo is the wire form of a client's Connect state. An
// inactive account carries the OAuth URL to begin linking; an active one
// carries a dashboard login link.
type ConnectAccountInfo struct {
	State                         string `json:"state"`
	EnableAutomaticPayouts        bool   `json:"enable_automatic_payouts"`
	AutomaticPayoutThresholdCents int64  `json:"automatic_payout_threshold_cents"`
	OAuthURL                      string `json:"oauth_url,omitempty"`
	LoginLinkURL                  string `json:"login_link_url,omitempty"`
}

type GetBalanceRequest struct {
	ClientID string `json:"client_id"`
}

type GetBalanceResponse struct {
	Balance *Balance `json:"balance"`
}

type GetTransactionsRequest struct {
	ClientID string `json:"client_id"`
}

type GetTransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type AddCreditsRequest struct {
	ClientID    string `json:"client_id"`
	AmountCents int32  `json:"amount_cents"`
}

type AddCreditsResponse struct {
	Balance *Balance `json:"balance"`
}

type AddPromoRequest struct {
	ClientID    string `json:"client_id"`
	AmountCents int32  `json:"amount_cents"`
}

type AddPromoResponse struct {
	Balance *Balance `json:"balance"`
}

type AddPaymentRequest struct {
	ClientIDFrom string `json:"client_id_from"`
	ClientIDTo   string `json:"client_id_to"`
	PaymentCents int32  `json:"payment_cents"`
	MessageHash  []byte `json:"message_hash"`
}

type AddPaymentResponse struct {
	Result       string   `json:"result"`
	PaymentCents int32    `json:"payment_cents"`
	FeeCents     int32    `json:"fee_cents"`
	Balance      *Balance `json:"balance,omitempty"`
}

type SettlePaymentRequest struct {
	ClientID    string `json:"client_id"`
	MessageHash []byte `json:"message_hash"`
}

type SettlePaymentResponse struct {
	PaymentCents int32    `json:"payment_cents"`
	FeeCents     int32    `json:"fee_cents"`
	Balance      *Balance `json:"balance"`
}

type StripeChargeRequest struct {
	ClientID    string `json:"client_id"`
	AmountCents int32  `json:"amount_cents"`
	Token       string `json:"token"`
}

type StripeChargeResponse struct {
	Result      string   `json:"result"`
	APIResponse []byte   `json:"api_response,omitempty"`
	Message     string   `json:"message,omitempty"`
	Balance     *Balance `json:"balance,omitempty"`
}

type GetConnectAccountRequest struct {
	ClientID string `json:"client_id"`
}

type GetConnectAccountResponse struct {
	ClientID string              `json:"client_id"`
	Account  *ConnectAccountInfo `json:"account"`
}

type CompleteConnectOauthRequest struct {
	ClientID          string `json:"client_id"`
	OAuthState        string `json:"oauth_state"`
	AuthorizationCode string `json:"authorization_code"`
}

type CompleteConnectOauthResponse struct {
	ClientID string              `json:"client_id"`
	Account  *ConnectAccountInfo `json:"account"`
}

type ConnectAccountPrefs struct {
	EnableAutomaticPayouts        bool  `json:"enable_automatic_payouts"`
	AutomaticPayoutThresholdCents int64 `json:"automatic_payout_threshold_cents"`
}

type UpdateConnectAccountPrefsRequest struct {
	ClientID    string               `json:"client_id"`
	Preferences *ConnectAccountPrefs `json:"preferences"`
}

type UpdateConnectAccountPrefsResponse struct {
	ClientID string              `json:"client_id"`
	Account  *ConnectAccountInfo `json:"account"`
}

type ConnectPayoutRequest struct {
	ClientID    string `json:"client_id"`
	AmountCents int64  `json:"amount_cents"`
}

type ConnectPayoutResponse struct {
	ClientID string   `json:"client_id"`
	Result   string   `json:"result"`
	Balance  *Balance `json:"balance,omitempty"`
}

// Health check, in the shape of the standard gRPC health protocol.
const (
	HealthServing    = 1
	HealthNotServing = 2
)

type HealthCheckRequest struct {
	Service string `json:"service,omitempty"`
}

type HealthCheckResponse struct {
	Status int32 `json:"status"`
}
