package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	grpcserver "github.com/paidmsg/beancounter/internal/grpc"
	"github.com/paidmsg/beancounter/internal/metrics"
	"github.com/paidmsg/beancounter/internal/service"
	"github.com/paidmsg/beancounter/internal/storage/beandb"
	"github.com/paidmsg/beancounter/internal/storage/beandb/postgres"
	"github.com/paidmsg/beancounter/internal/stripe"
)

// serverCmd runs the long-lived RPC service.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the beancounter RPC server",
	Long: `Start the beancounter service: the gRPC surface, the Prometheus
metrics endpoint, and (when sweeper.interval is set) an in-process
scheduler running the expiry and payout sweeps.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server is the default action.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, args)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, err := openStore(sigCtx, &cfg.Database.Reader)
	if err != nil {
		return err
	}
	defer reader.Close(context.Background())

	writer, err := openStore(sigCtx, &cfg.Database.Writer)
	if err != nil {
		return err
	}
	defer writer.Close(context.Background())

	processor, err := stripe.NewClient(cfg.Stripe)
	if err != nil {
		return err
	}

	m := metrics.New()

	core, err := service.New(service.Services{
		Reader:        reader,
		Writer:        writer,
		Processor:     processor,
		Metrics:       m,
		Logger:        logger,
		PaymentExpiry: cfg.Sweeper.PaymentExpiry,
	})
	if err != nil {
		return err
	}

	grpcSrv, err := grpcserver.NewServer(&grpcserver.ServerConfig{
		Address:        cfg.Service.Address,
		MaxRecvMsgSize: cfg.Service.MaxRecvMsgSize,
		MaxSendMsgSize: cfg.Service.MaxSendMsgSize,
	}, core,
		grpcserver.WithLogger(logger),
		grpcserver.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	metricsSrv := metrics.NewServer(cfg.Metrics.Address, m, logger)

	group, ctx := errgroup.WithContext(sigCtx)

	group.Go(grpcSrv.Start)
	group.Go(metricsSrv.ListenAndServe)

	if cfg.Sweeper.Interval > 0 {
		group.Go(func() error {
			return runSweepLoop(ctx, core, cfg.Sweeper.Interval)
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		grpcSrv.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && sigCtx.Err() == nil {
		return err
	}
	return nil
}

// openStore builds and opens a PostgreSQL repository manager.
func openStore(ctx context.Context, cfg *beandb.Config) (beandb.RepositoryManager, error) {
	manager, err := postgres.NewRepositoryManager(cfg)
	if err != nil {
		return nil, err
	}
	if err := manager.Open(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

// runSweepLoop runs both sweeps on a fixed interval until the context
// is cancelled.
func runSweepLoop(ctx context.Context, core *service.BeanCounter, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := core.ExpireEscrows(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			if _, err := core.RunAutomaticPayouts(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
