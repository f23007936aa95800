package grpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/paidmsg/beancounter/internal/ledger"
	"github.com/paidmsg/beancounter/internal/service"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// mapError converts a core failure into a gRPC status.
func mapError(err error) error {
	switch service.CodeOf(err) {
	case service.CodeNotFound:
		return status.Error(codes.NotFound, err.Error())
	case service.CodeInvalidUUID, service.CodeBadArguments:
		return status.Error(codes.InvalidArgument, err.Error())
	case service.CodeProcessor:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func wireBalance(balance *beandb.Balance) *Balance {
	if balance == nil {
		return nil
	}
	return &Balance{
		ClientID:          ledger.FormatClientID(balance.ClientID),
		BalanceCents:      balance.BalanceCents,
		PromoCents:        balance.PromoCents,
		WithdrawableCents: balance.WithdrawableCents,
	}
}

func wireAccount(info *service.ConnectAccountInfo) *ConnectAccountInfo {
	state := "INACTIVE"
	if info.State == service.AccountActive {
		state = "ACTIVE"
	}
	return &ConnectAccountInfo{
		State:                         state,
		EnableAutomaticPayouts:        info.EnableAutomaticPayouts,
		AutomaticPayoutThresholdCents: info.PayoutThresholdCents,
		OAuthURL:                      info.OAuthURL,
		LoginLinkURL:                  info.LoginLinkURL,
	}
}

// GetBalance returns the client's balance projection, creating it on
// first reference.
func (s *Server) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	balance, err := s.core.GetBalance(ctx, client)
	if err != nil {
		return nil, mapError(err)
	}
	return &GetBalanceResponse{Balance: wireBalance(balance)}, nil
}

// GetTransactions returns the client's ledger entries.
func (s *Server) GetTransactions(ctx context.Context, req *GetTransactionsRequest) (*GetTransactionsResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	entries, err := s.core.GetTransactions(ctx, client)
	if err != nil {
		return nil, mapError(err)
	}

	txns := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		t := Transaction{
			CreatedAt:   e.CreatedAt,
			AmountCents: e.AmountCents,
			Type:        string(e.Kind),
			Reason:      string(e.Reason),
		}
		if e.ClientID != nil {
			t.ClientID = ledger.FormatClientID(*e.ClientID)
		}
		txns = append(txns, t)
	}
	return &GetTransactionsResponse{Transactions: txns}, nil
}

// AddCredits grants spendable cash to a client.
func (s *Server) AddCredits(ctx context.Context, req *AddCreditsRequest) (*AddCreditsResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	balance, err := s.core.AddCredits(ctx, client, req.AmountCents)
	if err != nil {
		return nil, mapError(err)
	}
	return &AddCreditsResponse{Balance: wireBalance(balance)}, nil
}

// AddPromo grants promotional credit to a client.
func (s *Server) AddPromo(ctx context.Context, req *AddPromoRequest) (*AddPromoResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	balance, err := s.core.AddPromo(ctx, client, req.AmountCents)
	if err != nil {
		return nil, mapError(err)
	}
	return &AddPromoResponse{Balance: wireBalance(balance)}, nil
}

// AddPayment escrows a message payment.
func (s *Server) AddPayment(ctx context.Context, req *AddPaymentRequest) (*AddPaymentResponse, error) {
	sender, err := ledger.ParseClientID(req.ClientIDFrom)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id_from", err))
	}
	recipient, err := ledger.ParseClientID(req.ClientIDTo)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id_to", err))
	}

	result, err := s.core.AddPayment(ctx, sender, recipient, req.PaymentCents, req.MessageHash)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &AddPaymentResponse{
		PaymentCents: result.PaymentCents,
		FeeCents:     result.FeeCents,
		Balance:      wireBalance(result.Balance),
	}
	switch result.Outcome {
	case service.PaymentSuccess:
		resp.Result = ResultSuccess
	case service.PaymentInsufficientBalance:
		resp.Result = ResultInsufficientBalance
	case service.PaymentInvalidAmount:
		resp.Result = ResultInvalidAmount
	}
	return resp, nil
}

// SettlePayment releases an escrowed payment to its recipient.
func (s *Server) SettlePayment(ctx context.Context, req *SettlePaymentRequest) (*SettlePaymentResponse, error) {
	recipient, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	result, err := s.core.SettlePayment(ctx, recipient, req.MessageHash)
	if err != nil {
		return nil, mapError(err)
	}
	return &SettlePaymentResponse{
		PaymentCents: result.PaymentCents,
		FeeCents:     result.FeeCents,
		Balance:      wireBalance(result.Balance),
	}, nil
}

// StripeCharge tops up a client's balance by charging a card token.
func (s *Server) StripeCharge(ctx context.Context, req *StripeChargeRequest) (*StripeChargeResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	result, err := s.core.StripeCharge(ctx, client, req.AmountCents, req.Token)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &StripeChargeResponse{
		APIResponse: result.APIResponse,
		Message:     result.Message,
		Balance:     wireBalance(result.Balance),
	}
	if result.Outcome == service.ChargeSuccess {
		resp.Result = ResultSuccess
	} else {
		resp.Result = ResultFailure
	}
	return resp, nil
}

// GetConnectAccount returns the client's Connect state.
func (s *Server) GetConnectAccount(ctx context.Context, req *GetConnectAccountRequest) (*GetConnectAccountResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	info, err := s.core.GetConnectAccount(ctx, client)
	if err != nil {
		return nil, mapError(err)
	}
	return &GetConnectAccountResponse{
		ClientID: ledger.FormatClientID(client),
		Account:  wireAccount(info),
	}, nil
}

// CompleteConnectOauth finishes the Connect OAuth handshake.
func (s *Server) CompleteConnectOauth(ctx context.Context, req *CompleteConnectOauthRequest) (*CompleteConnectOauthResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}
	oauthState, err := ledger.ParseClientID(req.OAuthState)
	if err != nil {
		return nil, mapError(service.InvalidUUID("oauth_state", err))
	}

	info, err := s.core.CompleteConnectOauth(ctx, client, oauthState, req.AuthorizationCode)
	if err != nil {
		return nil, mapError(err)
	}
	return &CompleteConnectOauthResponse{
		ClientID: ledger.FormatClientID(client),
		Account:  wireAccount(info),
	}, nil
}

// UpdateConnectAccountPrefs stores the automatic payout preferences.
func (s *Server) UpdateConnectAccountPrefs(ctx context.Context, req *UpdateConnectAccountPrefsRequest) (*UpdateConnectAccountPrefsResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}
	if req.Preferences == nil {
		return nil, status.Error(codes.InvalidArgument, "preferences are required")
	}

	info, err := s.core.UpdateConnectAccountPrefs(ctx, client,
		req.Preferences.EnableAutomaticPayouts,
		req.Preferences.AutomaticPayoutThresholdCents)
	if err != nil {
		return nil, mapError(err)
	}
	return &UpdateConnectAccountPrefsResponse{
		ClientID: ledger.FormatClientID(client),
		Account:  wireAccount(info),
	}, nil
}

// ConnectPayout transfers withdrawable cash to the client's linked
// account.
func (s *Server) ConnectPayout(ctx context.Context, req *ConnectPayoutRequest) (*ConnectPayoutResponse, error) {
	client, err := ledger.ParseClientID(req.ClientID)
	if err != nil {
		return nil, mapError(service.InvalidUUID("client_id", err))
	}

	result, err := s.core.ConnectPayout(ctx, client, req.AmountCents)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ConnectPayoutResponse{
		ClientID: ledger.FormatClientID(client),
		Balance:  wireBalance(result.Balance),
	}
	if result.Outcome == service.PayoutSuccess {
		resp.Result = ResultSuccess
	} else {
		resp.Result = ResultInsufficientBalance
	}
	return resp, nil
}

// Check reports liveness in the shape of the standard health protocol.
func (s *Server) Check(ctx context.Context, req *HealthCheckRequest) (*HealthCheckResponse, error) {
	return &HealthCheckResponse{Status: HealthServing}, nil
}
