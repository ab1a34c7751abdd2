package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/kalshibot/internal/blob/s3"
	"github.com/alanyoungcy/kalshibot/internal/cache/redis"
	"github.com/alanyoungcy/kalshibot/internal/config"
	"github.com/alanyoungcy/kalshibot/internal/crypto"
	"github.com/alanyoungcy/kalshibot/internal/domain"
	"github.com/alanyoungcy/kalshibot/internal/feed"
	"github.com/alanyoungcy/kalshibot/internal/notify"
	"github.com/alanyoungcy/kalshibot/internal/platform/coinbase"
	"github.com/alanyoungcy/kalshibot/internal/platform/kalshi"
	csvstore "github.com/alanyoungcy/kalshibot/internal/store/csv"
	"github.com/alanyoungcy/kalshibot/internal/store/postgres"
)

// Dependencies bundles the wired collaborators the operating modes need. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Kalshi *kalshi.Client
	Ledger domain.TradeLedger
	Feed   domain.PriceFeed
	// WSFeed is non-nil when feed.transport is "ws"; its Run loop must be
	// started by the mode.
	WSFeed *feed.WSFeed

	Spot     domain.SpotCache
	Bus      domain.EventBus
	Archiver *s3blob.Archiver
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	live := strings.ToLower(cfg.Mode) == "live"

	// --- Kalshi exchange client ---
	kc, err := kalshi.NewClient(cfg.Kalshi.APIBase(), cfg.Kalshi.ApiKeyID)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: kalshi: %w", err)
	}
	if cfg.Kalshi.RsaPrivateKeyPath != "" || cfg.Kalshi.EncryptedKeyPath != "" {
		pem, keyErr := crypto.LoadKeyPEM(crypto.KeyConfig{
			PEMPath:          cfg.Kalshi.RsaPrivateKeyPath,
			EncryptedKeyPath: cfg.Kalshi.EncryptedKeyPath,
			KeyPassword:      cfg.Kalshi.KeyPassword,
		})
		if keyErr == nil {
			keyErr = kc.SetRSAPrivateKey(pem)
		}
		if keyErr != nil {
			// Paper mode only reads public endpoints, so a bad key is not
			// fatal there.
			if live {
				cleanup()
				return nil, nil, fmt.Errorf("wire: kalshi signing key: %w", keyErr)
			}
			logger.Warn("kalshi signing key unavailable, continuing unsigned",
				slog.String("error", keyErr.Error()))
		}
	}
	deps.Kalshi = kc

	// --- Trade ledger ---
	switch strings.ToLower(cfg.Ledger.Backend) {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Ledger.Postgres.DSN,
			Host:     cfg.Ledger.Postgres.Host,
			Port:     cfg.Ledger.Postgres.Port,
			Database: cfg.Ledger.Postgres.Database,
			User:     cfg.Ledger.Postgres.User,
			Password: cfg.Ledger.Postgres.Password,
			SSLMode:  cfg.Ledger.Postgres.SSLMode,
			MaxConns: cfg.Ledger.Postgres.PoolMaxConns,
			MinConns: cfg.Ledger.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Ledger.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Ledger = postgres.NewLedgerStore(pgClient.Pool())

	default:
		ledger, err := csvstore.Open(cfg.Ledger.CSVPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: csv ledger: %w", err)
		}
		deps.Ledger = ledger
	}

	// --- Redis (optional spot mirror and event stream) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Spot = redis.NewSpotCache(redisClient)
		deps.Bus = redis.NewEventBus(redisClient)
	}

	// --- S3 ledger archival (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client), deps.Ledger, cfg.S3.Prefix, logger,
		)
	}

	// --- Reference price feed ---
	switch strings.ToLower(cfg.Feed.Transport) {
	case "ws":
		wsFeed := feed.NewWSFeed(cfg.Feed.WsHost, cfg.Feed.Pair, logger)
		closers = append(closers, wsFeed.Close)
		deps.WSFeed = wsFeed
		deps.Feed = wsFeed
	default:
		deps.Feed = coinbase.NewClient(cfg.Feed.SpotHost, cfg.Feed.Pair)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
