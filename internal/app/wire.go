package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/matchbox/internal/blob/s3"
	"github.com/alanyoungcy/matchbox/internal/cache/memory"
	"github.com/alanyoungcy/matchbox/internal/cache/redis"
	"github.com/alanyoungcy/matchbox/internal/chain"
	"github.com/alanyoungcy/matchbox/internal/config"
	"github.com/alanyoungcy/matchbox/internal/crypto"
	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/notify"
	"github.com/alanyoungcy/matchbox/internal/platform/polymarket"
	"github.com/alanyoungcy/matchbox/internal/proxy"
	"github.com/alanyoungcy/matchbox/internal/resolver"
	"github.com/alanyoungcy/matchbox/internal/server/handler"
	memstore "github.com/alanyoungcy/matchbox/internal/store/memory"
	"github.com/alanyoungcy/matchbox/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
// Deployer and Reader are nil when no chain (or, for Deployer, no wallet
// and factory) is configured.
type Dependencies struct {
	// Caches
	Responses   domain.ResponseCache
	RateLimiter domain.RateLimiter
	Locks       domain.LockManager
	SignalBus   domain.SignalBus

	// Stores
	Deployments domain.DeploymentStore
	Audit       domain.AuditStore

	// Blob storage
	Blobs domain.BlobWriter

	// Market data
	Proxy    *proxy.Service
	Resolver *resolver.Resolver

	// Chain
	Deployer *chain.Deployer
	Reader   *chain.Reader

	Notifier *notify.Notifier

	// Health probes keyed by dependency name.
	Checks map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources. Redis, Postgres and S3 are
// optional: without them the in-memory caches and stores are used and
// manifests are not archived.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Pinger)}

	// --- Redis or in-memory caches ---
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			URL:        cfg.Redis.URL,
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Responses = redis.NewResponseCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		logger.InfoContext(ctx, "wire: redis not configured, using in-memory caches")
		deps.Responses = memory.NewResponseCache()
		deps.RateLimiter = memory.NewRateLimiter()
		deps.Locks = memory.NewLockManager()
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- PostgreSQL or in-memory stores ---
	if cfg.Supabase.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Deployments = postgres.NewDeploymentStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	} else {
		logger.InfoContext(ctx, "wire: database not configured, deployments are kept in memory")
		deps.Deployments = memstore.NewDeploymentStore()
		deps.Audit = memstore.NewAuditStore()
	}

	// --- S3 manifest archive ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Blobs = s3blob.NewWriter(s3Client)
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Market data ---
	// With a proxy URL, lookups share a running server's cache instead of
	// calling Gamma from this process.
	timeout := cfg.Polymarket.Timeout.Duration
	var upstream proxy.Upstream = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, timeout)
	deps.Proxy = proxy.NewService(upstream, deps.Responses, cfg.Proxy.CacheTTL.Duration, logger)
	var fetcher resolver.Fetcher = deps.Proxy
	if cfg.Polymarket.ProxyURL != "" {
		fetcher = polymarket.NewProxyClient(cfg.Polymarket.ProxyURL, timeout)
	}
	deps.Resolver = resolver.New(fetcher, logger)

	// --- Chain ---
	if rpcURL := cfg.RPCURL(); rpcURL != "" {
		client, err := chain.Dial(ctx, rpcURL)
		if err != nil {
			return fail(fmt.Errorf("wire: chain: %w", err))
		}
		closers = append(closers, client.Close)
		deps.Checks["chain"] = func(ctx context.Context) error {
			_, err := client.ChainID(ctx)
			return err
		}

		factory := common.HexToAddress(cfg.Contracts.Factory)
		deps.Reader = chain.NewReader(client, factory)

		if cfg.HasWallet() && cfg.Contracts.Factory != "" {
			pk, err := crypto.LoadKey(crypto.KeyConfig{
				RawPrivateKey:    cfg.Wallet.PrivateKey,
				EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
				KeyPassword:      cfg.Wallet.KeyPassword,
			})
			if err != nil {
				return fail(fmt.Errorf("wire: wallet: %w", err))
			}
			signer := crypto.NewSigner(pk, cfg.ChainID())
			tx := chain.NewTransactor(client, signer, logger)
			deps.Deployer, err = chain.NewDeployer(factory, client, tx)
			if err != nil {
				return fail(fmt.Errorf("wire: deployer: %w", err))
			}
			logger.InfoContext(ctx, "wire: deployer ready",
				slog.String("from", deps.Deployer.From().Hex()),
				slog.Int64("chain_id", cfg.ChainID()),
			)
		} else {
			logger.InfoContext(ctx, "wire: no wallet or factory, deployments disabled")
		}
	} else {
		logger.InfoContext(ctx, "wire: no rpc configured, chain features disabled")
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
