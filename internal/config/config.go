// Package config defines the top-level configuration for the kalshi series
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by KALSHIBOT_* environment variables.
type Config struct {
	Series   SeriesConfig   `toml:"series"`
	Feed     FeedConfig     `toml:"feed"`
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// SeriesConfig identifies the market series the bot trades.
type SeriesConfig struct {
	Ticker string `toml:"ticker"`
}

// FeedConfig holds reference-price feed parameters.
type FeedConfig struct {
	// Transport selects the spot-price source: "rest" polls the Coinbase
	// spot endpoint each cycle, "ws" streams the Coinbase ticker channel and
	// the sampler reads the latest streamed price.
	Transport    string   `toml:"transport"`
	Pair         string   `toml:"pair"`
	SpotHost     string   `toml:"spot_host"`
	WsHost       string   `toml:"ws_host"`
	PollInterval duration `toml:"poll_interval"`
}

// KalshiConfig holds Kalshi exchange API credentials and endpoints.
type KalshiConfig struct {
	ApiKeyID          string `toml:"api_key_id"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	EncryptedKeyPath  string `toml:"encrypted_key_path"`
	KeyPassword       string `toml:"key_password"`
	BaseURL           string `toml:"base_url"`
	DemoBaseURL       string `toml:"demo_base_url"`
	UseDemo           bool   `toml:"use_demo"`
}

// APIBase returns the API root the client should use.
func (k KalshiConfig) APIBase() string {
	if k.UseDemo {
		return k.DemoBaseURL
	}
	return k.BaseURL
}

// TradingConfig holds execution parameters shared by all strategies.
type TradingConfig struct {
	// Active lists the strategy policies to evaluate each cycle. Empty means
	// all registered policies.
	Active            []string `toml:"active"`
	StakeUSD          float64  `toml:"stake_usd"`
	DealMaxPrice      float64  `toml:"deal_max_price"`
	MaxHedgeBudgetUSD float64  `toml:"max_hedge_budget_usd"`
	// DryRun keeps live market data but routes orders to the paper executor.
	DryRun bool `toml:"dry_run"`
}

// RiskConfig holds the bankroll and loss-cap parameters for risk-managed
// strategies.
type RiskConfig struct {
	InitialBankrollUSD float64 `toml:"initial_bankroll_usd"`
	RiskPct            float64 `toml:"risk_pct"`
	MaxRiskPct         float64 `toml:"max_risk_pct"`
	MaxPrice           float64 `toml:"max_price"`
	FeePct             float64 `toml:"fee_pct"`
	RollingWindow      int     `toml:"rolling_window"`
	DailyLossCapR      float64 `toml:"daily_loss_cap_r"`
	WeeklyLossCapR     float64 `toml:"weekly_loss_cap_r"`
}

// LedgerConfig selects and configures the trade ledger backend.
type LedgerConfig struct {
	// Backend is "csv" or "postgres".
	Backend  string         `toml:"backend"`
	CSVPath  string         `toml:"csv_path"`
	Postgres PostgresConfig `toml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the optional spot-price
// mirror and event stream.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger archival.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	Prefix          string   `toml:"prefix"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "15m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5s" or "15m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Series: SeriesConfig{
			Ticker: "KXBTC15M",
		},
		Feed: FeedConfig{
			Transport:    "rest",
			Pair:         "BTC-USD",
			SpotHost:     "https://api.coinbase.com",
			WsHost:       "wss://ws-feed.exchange.coinbase.com",
			PollInterval: duration{5 * time.Second},
		},
		Kalshi: KalshiConfig{
			BaseURL:     "https://api.elections.kalshi.com/trade-api/v2",
			DemoBaseURL: "https://demo-api.kalshi.co/trade-api/v2",
			UseDemo:     true,
		},
		Trading: TradingConfig{
			StakeUSD:          5.0,
			DealMaxPrice:      0.45,
			MaxHedgeBudgetUSD: 10.0,
			DryRun:            true,
		},
		Risk: RiskConfig{
			InitialBankrollUSD: 500.0,
			RiskPct:            0.01,
			MaxRiskPct:         0.02,
			MaxPrice:           0.55,
			FeePct:             0.0,
			RollingWindow:      30,
			DailyLossCapR:      3,
			WeeklyLossCapR:     8,
		},
		Ledger: LedgerConfig{
			Backend: "csv",
			CSVPath: "data/trades.csv",
			Postgres: PostgresConfig{
				Host:          "localhost",
				Port:          5432,
				Database:      "kalshibot",
				User:          "postgres",
				SSLMode:       "disable",
				PoolMaxConns:  4,
				PoolMinConns:  1,
				RunMigrations: true,
			},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "kalshibot-data",
			Prefix:          "ledger",
			UseSSL:          false,
			ForcePathStyle:  true,
			ArchiveInterval: duration{1 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_placed", "trade_settled", "cap_hit", "order_failed", "error"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"paper": true,
	"live":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLedgerBackends enumerates the accepted values for Ledger.Backend.
var validLedgerBackends = map[string]bool{
	"csv":      true,
	"postgres": true,
}

// validFeedTransports enumerates the accepted values for Feed.Transport.
var validFeedTransports = map[string]bool{
	"rest": true,
	"ws":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Series
	if strings.TrimSpace(c.Series.Ticker) == "" {
		errs = append(errs, "series: ticker must not be empty")
	}

	// Feed
	if !validFeedTransports[strings.ToLower(c.Feed.Transport)] {
		errs = append(errs, fmt.Sprintf("feed: unknown transport %q (valid: rest, ws)", c.Feed.Transport))
	}
	if c.Feed.Pair == "" {
		errs = append(errs, "feed: pair must not be empty")
	}
	if c.Feed.PollInterval.Duration <= 0 {
		errs = append(errs, "feed: poll_interval must be positive")
	}
	if strings.ToLower(c.Feed.Transport) == "ws" && c.Feed.WsHost == "" {
		errs = append(errs, "feed: ws_host must not be empty for ws transport")
	}

	// Kalshi — live mode needs full credentials; paper mode only reads
	// public endpoints.
	if c.Kalshi.APIBase() == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}
	if strings.ToLower(c.Mode) == "live" {
		if c.Kalshi.ApiKeyID == "" {
			errs = append(errs, "kalshi: api_key_id is required for live mode")
		}
		if c.Kalshi.RsaPrivateKeyPath == "" && c.Kalshi.EncryptedKeyPath == "" {
			errs = append(errs, "kalshi: either rsa_private_key_path or encrypted_key_path must be set for live mode")
		}
		if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
			errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
		}
	}

	// Trading
	if c.Trading.StakeUSD <= 0 {
		errs = append(errs, "trading: stake_usd must be > 0")
	}
	if c.Trading.DealMaxPrice <= 0 || c.Trading.DealMaxPrice >= 1 {
		errs = append(errs, "trading: deal_max_price must be in (0, 1)")
	}
	if c.Trading.MaxHedgeBudgetUSD <= 0 {
		errs = append(errs, "trading: max_hedge_budget_usd must be > 0")
	}

	// Risk
	if c.Risk.InitialBankrollUSD <= 0 {
		errs = append(errs, "risk: initial_bankroll_usd must be > 0")
	}
	if c.Risk.RiskPct <= 0 || c.Risk.RiskPct > 1 {
		errs = append(errs, "risk: risk_pct must be in (0, 1]")
	}
	if c.Risk.MaxRiskPct < c.Risk.RiskPct || c.Risk.MaxRiskPct > 1 {
		errs = append(errs, "risk: max_risk_pct must be in [risk_pct, 1]")
	}
	if c.Risk.MaxPrice <= 0 || c.Risk.MaxPrice >= 1 {
		errs = append(errs, "risk: max_price must be in (0, 1)")
	}
	if c.Risk.FeePct < 0 || c.Risk.FeePct >= 1 {
		errs = append(errs, "risk: fee_pct must be in [0, 1)")
	}
	if c.Risk.RollingWindow < 1 {
		errs = append(errs, "risk: rolling_window must be >= 1")
	}
	if c.Risk.DailyLossCapR <= 0 {
		errs = append(errs, "risk: daily_loss_cap_r must be > 0")
	}
	if c.Risk.WeeklyLossCapR <= 0 {
		errs = append(errs, "risk: weekly_loss_cap_r must be > 0")
	}

	// Ledger
	backend := strings.ToLower(c.Ledger.Backend)
	if !validLedgerBackends[backend] {
		errs = append(errs, fmt.Sprintf("ledger: unknown backend %q (valid: csv, postgres)", c.Ledger.Backend))
	}
	if backend == "csv" && strings.TrimSpace(c.Ledger.CSVPath) == "" {
		errs = append(errs, "ledger: csv_path must not be empty for csv backend")
	}
	if backend == "postgres" {
		pg := c.Ledger.Postgres
		if strings.TrimSpace(pg.DSN) == "" {
			if pg.Host == "" {
				errs = append(errs, "ledger: postgres.host must not be empty (or set postgres.dsn)")
			}
			if pg.Port <= 0 || pg.Port > 65535 {
				errs = append(errs, fmt.Sprintf("ledger: postgres.port must be 1-65535, got %d", pg.Port))
			}
			if pg.Database == "" {
				errs = append(errs, "ledger: postgres.database must not be empty")
			}
		}
		if pg.PoolMaxConns < 1 {
			errs = append(errs, "ledger: postgres.pool_max_conns must be >= 1")
		}
		if pg.PoolMinConns < 0 || pg.PoolMinConns > pg.PoolMaxConns {
			errs = append(errs, "ledger: postgres.pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
