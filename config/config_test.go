package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "ride_ledger", cfg.Database.DBName)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)

	assert.Equal(t, "USD", cfg.Wallet.Currency)
	assert.Equal(t, 1000.0, cfg.Wallet.DefaultDailyLimit)
	assert.Equal(t, 10000.0, cfg.Wallet.DefaultMonthlyLimit)

	assert.Equal(t, 10.0, cfg.Withdrawal.MinAmount)
	assert.Equal(t, 5000.0, cfg.Withdrawal.MaxAmount)

	assert.Equal(t, 5*time.Minute, cfg.Commission.CacheTTL)
	assert.Equal(t, "sandbox", cfg.Gateway.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Gateway.WebhookTolerance)

	assert.Equal(t, 5, cfg.Payout.MaxAttempts)
	assert.Equal(t, 0.25, cfg.Payout.Fees.BankTransfer.Fixed)
	assert.Equal(t, 2.0, cfg.Payout.Fees.PayPal.Percentage)

	assert.True(t, cfg.Worker.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Worker.Lease)
	assert.Equal(t, 24*time.Hour, cfg.Worker.ConfirmWindow)

	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "ledger-events", cfg.Kafka.Topic)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromYAMLFile(t *testing.T) {
	content := []byte(`
server:
  port: 9090
  mode: "release"
database:
  driver: "memory"
  host: "db.example.com"
  dbname: "testdb"
redis:
  host: "redis.example.com"
  port: 6380
jwt:
  secret: "my-jwt-secret"
  issuer: "rides"
withdrawal:
  min_amount: 20
  daily_limit: 750.5
payout:
  max_attempts: 3
  fees:
    card:
      percentage: 2.5
      fixed: 0.30
kafka:
  brokers: ["k1:9092", "k2:9092"]
log:
  level: "debug"
  pretty: true
`)
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, content, 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, "redis.example.com:6380", cfg.Redis.Addr())
	assert.Equal(t, "my-jwt-secret", cfg.JWT.Secret)
	assert.Equal(t, "rides", cfg.JWT.Issuer)
	assert.Equal(t, 20.0, cfg.Withdrawal.MinAmount)
	assert.Equal(t, 750.5, cfg.Withdrawal.DailyLimit)
	assert.Equal(t, 3, cfg.Payout.MaxAttempts)
	assert.Equal(t, 2.5, cfg.Payout.Fees.Card.Percentage)
	assert.Equal(t, 0.30, cfg.Payout.Fees.Card.Fixed)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RL_SERVER_PORT", "3000")
	t.Setenv("RL_DATABASE_HOST", "env-db-host")
	t.Setenv("RL_JWT_SECRET", "env-secret")
	t.Setenv("RL_PAYOUT_MAX_ATTEMPTS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "env-db-host", cfg.Database.Host)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, 7, cfg.Payout.MaxAttempts)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load("/non/existent/path/config.yaml")
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	dbCfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ledger",
		Password: "pw",
		DBName:   "ride_ledger",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://ledger:pw@localhost:5432/ride_ledger?sslmode=disable", dbCfg.DSN())
}
