// Package config loads the beancounter configuration from a TOML file
// with environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
	"github.com/paidmsg/beancounter/internal/stripe"
)

// Config represents the complete beancounter configuration.
type Config struct {
	Service  ServiceConfig  `toml:"service" mapstructure:"service"`
	Database DatabaseConfig `toml:"database" mapstructure:"database"`
	Metrics  MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
	Stripe   stripe.Config  `toml:"stripe" mapstructure:"stripe"`
	Sweeper  SweeperConfig  `toml:"sweeper" mapstructure:"sweeper"`

	configPath string
}

// ServiceConfig configures the RPC surface.
type ServiceConfig struct {
	// Address the gRPC server binds to.
	Address string `toml:"address" mapstructure:"address"`

	MaxRecvMsgSize int `toml:"max_recv_msg_size" mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int `toml:"max_send_msg_size" mapstructure:"max_send_msg_size"`
}

// DatabaseConfig carries the read and write pool coordinates.
// Deployments without a read replica point both at the same server.
type DatabaseConfig struct {
	Reader beandb.Config `toml:"reader" mapstructure:"reader"`
	Writer beandb.Config `toml:"writer" mapstructure:"writer"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Address string `toml:"address" mapstructure:"address"`
}

// SweeperConfig configures the background sweeps.
type SweeperConfig struct {
	// PaymentExpiry is how long an escrowed payment lives before the
	// expiry sweep refunds it.
	PaymentExpiry time.Duration `toml:"payment_expiry" mapstructure:"payment_expiry"`

	// Interval between in-process sweep runs; zero disables the
	// in-process scheduler (the cron binary still covers deployments
	// that schedule sweeps externally).
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
}

// Path returns the file this configuration was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks the complete configuration.
func (c *Config) Validate() error {
	if c.Service.Address == "" {
		return fmt.Errorf("service.address is required")
	}
	if c.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required")
	}
	if err := c.Database.Reader.Validate(); err != nil {
		return fmt.Errorf("database.reader: %w", err)
	}
	if err := c.Database.Writer.Validate(); err != nil {
		return fmt.Errorf("database.writer: %w", err)
	}
	if err := c.Stripe.Validate(); err != nil {
		return err
	}
	if c.Sweeper.PaymentExpiry < 0 {
		return fmt.Errorf("sweeper.payment_expiry cannot be negative")
	}
	return nil
}
