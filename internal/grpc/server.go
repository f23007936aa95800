package grpc

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/paidmsg/beancounter/internal/metrics"
	"github.com/paidmsg/beancounter/internal/service"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// CoreInterface defines the core operations needed by the gRPC
// handlers. This interface is implemented by *service.BeanCounter.
type CoreInterface interface {
	GetBalance(ctx context.Context, client uuid.UUID) (*beandb.Balance, error)
	GetTransactions(ctx context.Context, client uuid.UUID) ([]beandb.Entry, error)
	AddCredits(ctx context.Context, client uuid.UUID, amountCents int32) (*beandb.Balance, error)
	AddPromo(ctx context.Context, client uuid.UUID, amountCents int32) (*beandb.Balance, error)
	AddPayment(ctx context.Context, sender, recipient uuid.UUID, paymentCents int32, messageHash []byte) (*service.AddPaymentResult, error)
	SettlePayment(ctx context.Context, recipient uuid.UUID, messageHash []byte) (*service.SettlePaymentResult, error)
	StripeCharge(ctx context.Context, client uuid.UUID, amountCents int32, token string) (*service.ChargeResult, error)
	GetConnectAccount(ctx context.Context, client uuid.UUID) (*service.ConnectAccountInfo, error)
	CompleteConnectOauth(ctx context.Context, client, oauthState uuid.UUID, code string) (*service.ConnectAccountInfo, error)
	UpdateConnectAccountPrefs(ctx context.Context, client uuid.UUID, enableAutomaticPayouts bool, thresholdCents int64) (*service.ConnectAccountInfo, error)
	ConnectPayout(ctx context.Context, client uuid.UUID, amountCents int64) (*service.PayoutResult, error)
}

// Server represents the gRPC server for beancounter operations.
type Server struct {
	mu sync.RWMutex

	// grpcServer is the underlying gRPC server
	grpcServer *grpc.Server

	// core provides access to the accounting operations
	core CoreInterface

	// config holds the server configuration
	config *ServerConfig

	logger  zerolog.Logger
	metrics *metrics.Metrics

	// listener is the network listener
	listener net.Listener

	// running indicates if the server is currently running
	running bool
}

// ServerOption is a function that configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collectors for the server.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates a new gRPC server with the given configuration.
func NewServer(cfg *ServerConfig, core CoreInterface, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if core == nil {
		return nil, errors.New("core service is required")
	}

	server := &Server{
		core:   core,
		config: cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	grpcOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.UnaryInterceptor(server.unaryInterceptor()),
	}

	server.grpcServer = grpc.NewServer(grpcOpts...)
	server.grpcServer.RegisterService(&beanCounterServiceDesc, server)

	return server, nil
}

// Start starts the gRPC server and begins accepting connections.
// This method blocks until the server is stopped or an error occurs.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("grpc server listening")
	return s.grpcServer.Serve(listener)
}

// StartAsync starts the gRPC server in a goroutine and returns immediately.
func (s *Server) StartAsync() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	return nil
}

// Stop gracefully stops the gRPC server. It stops accepting new
// connections and waits for existing connections to complete.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.grpcServer.GracefulStop()
	s.running = false
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the address the server is listening on.
// Returns empty string if the server is not running.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// unaryInterceptor logs each RPC and counts it by method and status
// code.
func (s *Server) unaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)

		code := status.Code(err)
		if s.metrics != nil {
			s.metrics.RPCRequests.WithLabelValues(info.FullMethod, code.String()).Inc()
		}

		evt := s.logger.Debug()
		if err != nil {
			evt = s.logger.Warn().Err(err)
		}
		evt.Str("method", info.FullMethod).Str("code", code.String()).Msg("rpc")

		return resp, err
	}
}
