// Package cli wires the beancounter binaries: the long-lived gRPC
// server, the one-shot sweep driver, and operator utilities.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/paidmsg/beancounter/internal/config"
)

var (
	// Global flags
	configFile string
	debug      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "beancounter",
	Short: "beancounter - accounting core for the paid-messaging platform",
	Long: `beancounter maintains per-client balances as a double-entry ledger,
escrows message payments between send and read, and bridges the ledger
to the card processor for top-ups and Connect payouts.`,
	Version: "0.2.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ExecuteCron runs the cron subcommand directly. The standalone cron
// binary uses it so deployments can schedule sweeps without knowing the
// subcommand layout.
func ExecuteCron() {
	rootCmd.SetArgs(append([]string{"cron"}, os.Args[1:]...))
	Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig loads and validates the configuration named by the
// --config flag.
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("a configuration file is required (--config)")
	}
	return config.LoadConfig(configFile)
}

// newLogger builds the process logger.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
