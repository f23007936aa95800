package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/paidmsg/beancounter/internal/storage/beandb"
)

// LoadConfig loads configuration from multiple sources in priority order:
// 1. Default values
// 2. Configuration file (beancounter.toml)
// 3. Environment variables (BEANCOUNTER_ prefix)
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("BEANCOUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.configPath = path

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults seeds the viper instance before any file or environment
// values are applied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("service.address", "127.0.0.1:50051")
	v.SetDefault("service.max_recv_msg_size", 4*1024*1024)
	v.SetDefault("service.max_send_msg_size", 4*1024*1024)

	v.SetDefault("metrics.address", "127.0.0.1:9090")

	for _, side := range []string{"reader", "writer"} {
		pool := beandb.NewConfig()
		v.SetDefault("database."+side+".host", pool.Host)
		v.SetDefault("database."+side+".port", pool.Port)
		v.SetDefault("database."+side+".database", pool.Database)
		v.SetDefault("database."+side+".username", pool.Username)
		v.SetDefault("database."+side+".ssl_mode", pool.SSLMode)
		v.SetDefault("database."+side+".max_open_conns", pool.MaxOpenConns)
		v.SetDefault("database."+side+".max_idle_conns", pool.MaxIdleConns)
		v.SetDefault("database."+side+".conn_max_lifetime", pool.ConnMaxLifetime)
		v.SetDefault("database."+side+".conn_max_idle_time", pool.ConnMaxIdleTime)
		v.SetDefault("database."+side+".default_timeout", pool.DefaultTimeout)
	}

	v.SetDefault("sweeper.payment_expiry", 30*24*time.Hour)
	v.SetDefault("sweeper.interval", time.Duration(0))
}
