package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KALSHIBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// A missing config file is not an error: the defaults plus environment
// overrides are used, which is enough for paper mode.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KALSHIBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Series ──
	setStr(&cfg.Series.Ticker, "KALSHIBOT_SERIES_TICKER")

	// ── Feed ──
	setStr(&cfg.Feed.Transport, "KALSHIBOT_FEED_TRANSPORT")
	setStr(&cfg.Feed.Pair, "KALSHIBOT_FEED_PAIR")
	setStr(&cfg.Feed.SpotHost, "KALSHIBOT_FEED_SPOT_HOST")
	setStr(&cfg.Feed.WsHost, "KALSHIBOT_FEED_WS_HOST")
	setDuration(&cfg.Feed.PollInterval, "KALSHIBOT_FEED_POLL_INTERVAL")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKeyID, "KALSHIBOT_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.ApiKeyID, "KALSHI_API_KEY_ID") // compatibility alias
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "KALSHIBOT_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "KALSHI_PRIVATE_KEY_PATH") // compatibility alias
	setStr(&cfg.Kalshi.EncryptedKeyPath, "KALSHIBOT_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "KALSHIBOT_KALSHI_KEY_PASSWORD")
	setStr(&cfg.Kalshi.BaseURL, "KALSHIBOT_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.DemoBaseURL, "KALSHIBOT_KALSHI_DEMO_BASE_URL")
	setBool(&cfg.Kalshi.UseDemo, "KALSHIBOT_KALSHI_USE_DEMO")
	setBool(&cfg.Kalshi.UseDemo, "KALSHI_USE_DEMO") // compatibility alias

	// ── Trading ──
	setStringSlice(&cfg.Trading.Active, "KALSHIBOT_TRADING_ACTIVE")
	setFloat64(&cfg.Trading.StakeUSD, "KALSHIBOT_TRADING_STAKE_USD")
	setFloat64(&cfg.Trading.DealMaxPrice, "KALSHIBOT_TRADING_DEAL_MAX_PRICE")
	setFloat64(&cfg.Trading.MaxHedgeBudgetUSD, "KALSHIBOT_TRADING_MAX_HEDGE_BUDGET_USD")
	setBool(&cfg.Trading.DryRun, "KALSHIBOT_TRADING_DRY_RUN")
	setBool(&cfg.Trading.DryRun, "DRY_RUN") // compatibility alias

	// ── Risk ──
	setFloat64(&cfg.Risk.InitialBankrollUSD, "KALSHIBOT_RISK_INITIAL_BANKROLL_USD")
	setFloat64(&cfg.Risk.RiskPct, "KALSHIBOT_RISK_RISK_PCT")
	setFloat64(&cfg.Risk.MaxRiskPct, "KALSHIBOT_RISK_MAX_RISK_PCT")
	setFloat64(&cfg.Risk.MaxPrice, "KALSHIBOT_RISK_MAX_PRICE")
	setFloat64(&cfg.Risk.FeePct, "KALSHIBOT_RISK_FEE_PCT")
	setInt(&cfg.Risk.RollingWindow, "KALSHIBOT_RISK_ROLLING_WINDOW")
	setFloat64(&cfg.Risk.DailyLossCapR, "KALSHIBOT_RISK_DAILY_LOSS_CAP_R")
	setFloat64(&cfg.Risk.WeeklyLossCapR, "KALSHIBOT_RISK_WEEKLY_LOSS_CAP_R")

	// ── Ledger ──
	setStr(&cfg.Ledger.Backend, "KALSHIBOT_LEDGER_BACKEND")
	setStr(&cfg.Ledger.CSVPath, "KALSHIBOT_LEDGER_CSV_PATH")
	setStr(&cfg.Ledger.Postgres.DSN, "KALSHIBOT_LEDGER_POSTGRES_DSN")
	setStr(&cfg.Ledger.Postgres.Host, "KALSHIBOT_LEDGER_POSTGRES_HOST")
	setInt(&cfg.Ledger.Postgres.Port, "KALSHIBOT_LEDGER_POSTGRES_PORT")
	setStr(&cfg.Ledger.Postgres.Database, "KALSHIBOT_LEDGER_POSTGRES_DATABASE")
	setStr(&cfg.Ledger.Postgres.User, "KALSHIBOT_LEDGER_POSTGRES_USER")
	setStr(&cfg.Ledger.Postgres.Password, "KALSHIBOT_LEDGER_POSTGRES_PASSWORD")
	setStr(&cfg.Ledger.Postgres.SSLMode, "KALSHIBOT_LEDGER_POSTGRES_SSLMODE")
	setInt(&cfg.Ledger.Postgres.PoolMaxConns, "KALSHIBOT_LEDGER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Ledger.Postgres.PoolMinConns, "KALSHIBOT_LEDGER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Ledger.Postgres.RunMigrations, "KALSHIBOT_LEDGER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "KALSHIBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "KALSHIBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KALSHIBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KALSHIBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KALSHIBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KALSHIBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KALSHIBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "KALSHIBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "KALSHIBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KALSHIBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "KALSHIBOT_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "KALSHIBOT_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "KALSHIBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KALSHIBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KALSHIBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KALSHIBOT_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "KALSHIBOT_S3_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KALSHIBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KALSHIBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KALSHIBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KALSHIBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KALSHIBOT_MODE")
	setStr(&cfg.LogLevel, "KALSHIBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
