package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beancounter.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
[service]
address = "127.0.0.1:50051"

[metrics]
address = "127.0.0.1:9090"

[database.reader]
host = "db-reader.internal"
port = 5432
database = "beancounter"
username = "bc_reader"
password = "secret"

[database.writer]
host = "db-writer.internal"
port = 5432
database = "beancounter"
username = "bc_writer"
password = "secret"

[stripe]
secret_key = "sk_test_123"
connect_client_id = "ca_test_123"
`

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:50051", cfg.Service.Address)
	assert.Equal(t, "db-reader.internal", cfg.Database.Reader.Host)
	assert.Equal(t, "db-writer.internal", cfg.Database.Writer.Host)
	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, path, cfg.Path())

	// Defaults fill in what the file omits.
	assert.Equal(t, 4*1024*1024, cfg.Service.MaxRecvMsgSize)
	assert.Equal(t, 25, cfg.Database.Reader.MaxOpenConns)
	assert.Equal(t, 30*24*time.Hour, cfg.Sweeper.PaymentExpiry)
	assert.Equal(t, time.Duration(0), cfg.Sweeper.Interval)
}

func TestLoadConfigSweeperOverrides(t *testing.T) {
	path := writeConfigFile(t, minimalConfig+`
[sweeper]
payment_expiry = "720h"
interval = "1h"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, cfg.Sweeper.PaymentExpiry)
	assert.Equal(t, time.Hour, cfg.Sweeper.Interval)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadConfigRejectsMissingStripeKey(t *testing.T) {
	path := writeConfigFile(t, `
[service]
address = "127.0.0.1:50051"

[metrics]
address = "127.0.0.1:9090"

[database.reader]
host = "db.internal"
username = "bc"

[database.writer]
host = "db.internal"
username = "bc"
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_key")
}

func TestEnvironmentOverride(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	t.Setenv("BEANCOUNTER_SERVICE_ADDRESS", "0.0.0.0:6000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:6000", cfg.Service.Address)
}
