package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/paidmsg/beancounter/internal/metrics"
	"github.com/paidmsg/beancounter/internal/service"
	"github.com/paidmsg/beancounter/internal/stripe"
)

// cronCmd runs both sweeps once and exits. It is the entry point for
// externally scheduled deployments.
var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run the expiry and payout sweeps once, then exit",
	Long: `Run the two background sweeps in sequence: first refund every
escrowed payment past its expiry, then pay out every client whose
withdrawable balance has crossed their automatic payout threshold.`,
	RunE: runCron,
}

func init() {
	rootCmd.AddCommand(cronCmd)
}

func runCron(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	ctx := cmd.Context()

	reader, err := openStore(ctx, &cfg.Database.Reader)
	if err != nil {
		return err
	}
	defer reader.Close(context.Background())

	writer, err := openStore(ctx, &cfg.Database.Writer)
	if err != nil {
		return err
	}
	defer writer.Close(context.Background())

	processor, err := stripe.NewClient(cfg.Stripe)
	if err != nil {
		return err
	}

	core, err := service.New(service.Services{
		Reader:        reader,
		Writer:        writer,
		Processor:     processor,
		Metrics:       metrics.New(),
		Logger:        logger,
		PaymentExpiry: cfg.Sweeper.PaymentExpiry,
	})
	if err != nil {
		return err
	}

	expired, err := core.ExpireEscrows(ctx)
	if err != nil {
		return err
	}

	swept, err := core.RunAutomaticPayouts(ctx)
	if err != nil {
		return err
	}

	logger.Info().Int("expired", expired).Int("payouts", swept).Msg("sweeps complete")
	return nil
}
