package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Crypto     CryptoConfig     `mapstructure:"crypto"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Commission CommissionConfig `mapstructure:"commission"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Payout     PayoutConfig     `mapstructure:"payout"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type CryptoConfig struct {
	Secret string `mapstructure:"secret"` // master secret, the AES-256 key is derived with HKDF
	Salt   string `mapstructure:"salt"`
}

type WalletConfig struct {
	Currency            string  `mapstructure:"currency"`
	DefaultDailyLimit   float64 `mapstructure:"default_daily_limit"`
	DefaultMonthlyLimit float64 `mapstructure:"default_monthly_limit"`
}

type WithdrawalConfig struct {
	MinAmount    float64 `mapstructure:"min_amount"`
	MaxAmount    float64 `mapstructure:"max_amount"`
	DailyLimit   float64 `mapstructure:"daily_limit"`
	MonthlyLimit float64 `mapstructure:"monthly_limit"`
}

type CommissionConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type GatewayConfig struct {
	Mode             string        `mapstructure:"mode"` // sandbox, http
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type FeeRule struct {
	Percentage float64 `mapstructure:"percentage"`
	Fixed      float64 `mapstructure:"fixed"`
}

type FeeSchedule struct {
	BankTransfer FeeRule `mapstructure:"bank_transfer"`
	PayPal       FeeRule `mapstructure:"paypal"`
	Card         FeeRule `mapstructure:"card"`
}

type PayoutConfig struct {
	Mode        string        `mapstructure:"mode"` // sandbox, http
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Fees        FeeSchedule   `mapstructure:"fees"`
}

type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	Lease        time.Duration `mapstructure:"lease"`
	// ConfirmWindow bounds how long an accepted payout may wait for the rail's confirmation.
	ConfirmWindow time.Duration `mapstructure:"confirm_window"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"` // empty = events are only logged
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: RL_ (Ride Ledger).
// Nested keys use underscore: RL_DATABASE_HOST, RL_PAYOUT_MAX_ATTEMPTS, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "ride_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "ride-platform")
	v.SetDefault("crypto.secret", "")
	v.SetDefault("crypto.salt", "ride-ledger/account-details")
	v.SetDefault("wallet.currency", "USD")
	v.SetDefault("wallet.default_daily_limit", 1000.00)
	v.SetDefault("wallet.default_monthly_limit", 10000.00)
	v.SetDefault("withdrawal.min_amount", 10.00)
	v.SetDefault("withdrawal.max_amount", 5000.00)
	v.SetDefault("withdrawal.daily_limit", 5000.00)
	v.SetDefault("withdrawal.monthly_limit", 20000.00)
	v.SetDefault("commission.cache_ttl", "5m")
	v.SetDefault("gateway.mode", "sandbox")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.webhook_secret", "")
	v.SetDefault("gateway.webhook_tolerance", "5m")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("payout.mode", "sandbox")
	v.SetDefault("payout.base_url", "")
	v.SetDefault("payout.api_key", "")
	v.SetDefault("payout.timeout", "15s")
	v.SetDefault("payout.max_attempts", 5)
	v.SetDefault("payout.fees.bank_transfer.percentage", 0.0)
	v.SetDefault("payout.fees.bank_transfer.fixed", 0.25)
	v.SetDefault("payout.fees.paypal.percentage", 2.0)
	v.SetDefault("payout.fees.paypal.fixed", 0.0)
	v.SetDefault("payout.fees.card.percentage", 1.5)
	v.SetDefault("payout.fees.card.fixed", 0.0)
	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.lease", "2m")
	v.SetDefault("worker.confirm_window", "24h")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "ledger-events")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: RL_DATABASE_HOST -> database.host
	v.SetEnvPrefix("RL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
