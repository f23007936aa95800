package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/paidmsg/beancounter/internal/service"
	"github.com/paidmsg/beancounter/internal/storage/beandb/memory"
	"github.com/paidmsg/beancounter/internal/stripe/stripetest"
)

func startTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	core, err := service.New(service.Services{
		Reader:    store,
		Writer:    store,
		Processor: stripetest.NewFake(),
	})
	require.NoError(t, err)

	srv, err := NewServer(&ServerConfig{
		Address:        "127.0.0.1:0",
		MaxRecvMsgSize: 4 * 1024 * 1024,
		MaxSendMsgSize: 4 * 1024 * 1024,
	}, core)
	require.NoError(t, err)

	require.NoError(t, srv.StartAsync())
	t.Cleanup(srv.Stop)

	return srv, store
}

func TestServerRoundTrip(t *testing.T) {
	srv, _ := startTestServer(t)

	conn, err := Dial(srv.Address())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := uuid.New().String()

	var added AddCreditsResponse
	err = Invoke(ctx, conn, "AddCredits", &AddCreditsRequest{
		ClientID:    client,
		AmountCents: 500,
	}, &added)
	require.NoError(t, err)
	require.NotNil(t, added.Balance)
	assert.Equal(t, int64(500), added.Balance.BalanceCents)

	var got GetBalanceResponse
	err = Invoke(ctx, conn, "GetBalance", &GetBalanceRequest{ClientID: client}, &got)
	require.NoError(t, err)
	assert.Equal(t, added.Balance.ClientID, got.Balance.ClientID)
	assert.Equal(t, int64(500), got.Balance.BalanceCents)

	var txns GetTransactionsResponse
	err = Invoke(ctx, conn, "GetTransactions", &GetTransactionsRequest{ClientID: client}, &txns)
	require.NoError(t, err)
	require.Len(t, txns.Transactions, 1)
	assert.Equal(t, "credit", txns.Transactions[0].Type)
	assert.Equal(t, "credit_added", txns.Transactions[0].Reason)
}

func TestServerRejectsBadClientID(t *testing.T) {
	srv, _ := startTestServer(t)

	conn, err := Dial(srv.Address())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp GetBalanceResponse
	err = Invoke(ctx, conn, "GetBalance", &GetBalanceRequest{ClientID: "not-a-uuid"}, &resp)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServerHealthCheck(t *testing.T) {
	srv, _ := startTestServer(t)

	conn, err := Dial(srv.Address())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := Check(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int32(HealthServing), resp.Status)
}

func TestServerSettleUnknownPaymentIsNotFound(t *testing.T) {
	srv, _ := startTestServer(t)

	conn, err := Dial(srv.Address())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resp SettlePaymentResponse
	err = Invoke(ctx, conn, "SettlePayment", &SettlePaymentRequest{
		ClientID:    uuid.New().String(),
		MessageHash: []byte("missing"),
	}, &resp)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
