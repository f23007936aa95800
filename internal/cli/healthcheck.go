package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	grpcserver "github.com/paidmsg/beancounter/internal/grpc"
)

var healthcheckAddr string

// healthcheckCmd probes a running server over gRPC. Exit status reports
// liveness, for container orchestration probes.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running beancounter server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := healthcheckAddr
		if addr == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr = cfg.Service.Address
		}

		conn, err := grpcserver.Dial(addr)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		resp, err := grpcserver.Check(ctx, conn)
		if err != nil {
			return err
		}
		if resp.Status != grpcserver.HealthServing {
			return fmt.Errorf("server not serving (status %d)", resp.Status)
		}

		fmt.Println("ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().StringVar(&healthcheckAddr, "addr", "", "server address (defaults to service.address from the config file)")
}
