package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads an optional TOML configuration file at path, merges it on top of
// the built-in defaults, applies environment variable overrides, and returns
// the final Config. An empty path or a missing file leaves the defaults in
// place. The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set. NEXT_PUBLIC_* names are
// accepted for deployments that share an env file with the web frontend; the
// MATCHBOX_* name wins when both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.InfuraAPIKey, "NEXT_PUBLIC_INFURA_API_KEY")
	setStr(&cfg.Chain.InfuraAPIKey, "MATCHBOX_CHAIN_INFURA_API_KEY")
	setBool(&cfg.Chain.UseLocalChain, "NEXT_PUBLIC_USE_LOCAL_CHAIN")
	setBool(&cfg.Chain.UseLocalChain, "MATCHBOX_CHAIN_USE_LOCAL_CHAIN")
	setStr(&cfg.Chain.RPCURL, "MATCHBOX_CHAIN_RPC_URL")
	setStr(&cfg.Chain.LocalRPCURL, "MATCHBOX_CHAIN_LOCAL_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "MATCHBOX_CHAIN_ID")

	// ── Contracts ──
	setStr(&cfg.Contracts.Factory, "NEXT_PUBLIC_MATCHBOX_FACTORY_ADDRESS")
	setStr(&cfg.Contracts.Factory, "MATCHBOX_CONTRACTS_FACTORY")
	setStr(&cfg.Contracts.Router, "NEXT_PUBLIC_MATCHBOX_ROUTER_ADDRESS")
	setStr(&cfg.Contracts.Router, "MATCHBOX_CONTRACTS_ROUTER")
	setStr(&cfg.Contracts.CTF, "NEXT_PUBLIC_CTF_ADDRESS")
	setStr(&cfg.Contracts.CTF, "MATCHBOX_CONTRACTS_CTF")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "MATCHBOX_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "MATCHBOX_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "MATCHBOX_WALLET_KEY_PASSWORD")

	// ── Polymarket / proxy ──
	setStr(&cfg.Polymarket.GammaHost, "MATCHBOX_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ProxyURL, "MATCHBOX_POLYMARKET_PROXY_URL")
	setDuration(&cfg.Polymarket.Timeout, "MATCHBOX_POLYMARKET_TIMEOUT")
	setDuration(&cfg.Proxy.CacheTTL, "MATCHBOX_PROXY_CACHE_TTL")
	setDuration(&cfg.Proxy.StaleWhileRevalidate, "MATCHBOX_PROXY_STALE_WHILE_REVALIDATE")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "MATCHBOX_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "MATCHBOX_DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "MATCHBOX_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "MATCHBOX_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "MATCHBOX_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "MATCHBOX_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "MATCHBOX_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "MATCHBOX_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "MATCHBOX_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "MATCHBOX_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "MATCHBOX_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "MATCHBOX_REDIS_URL")
	setStr(&cfg.Redis.Addr, "MATCHBOX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MATCHBOX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MATCHBOX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MATCHBOX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MATCHBOX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MATCHBOX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "MATCHBOX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MATCHBOX_S3_REGION")
	setStr(&cfg.S3.Bucket, "MATCHBOX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MATCHBOX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MATCHBOX_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "MATCHBOX_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "MATCHBOX_S3_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "MATCHBOX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MATCHBOX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MATCHBOX_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MATCHBOX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "MATCHBOX_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MATCHBOX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MATCHBOX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MATCHBOX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MATCHBOX_NOTIFY_EVENTS")

	// ── Deploy ──
	setStr(&cfg.Deploy.LegsFile, "MATCHBOX_DEPLOY_LEGS_FILE")
	setStr(&cfg.Deploy.Owner, "MATCHBOX_DEPLOY_OWNER")
	setStr(&cfg.Deploy.Vault, "MATCHBOX_DEPLOY_VAULT")
	setDuration(&cfg.Deploy.LockTTL, "MATCHBOX_DEPLOY_LOCK_TTL")
	setDuration(&cfg.Deploy.TxTimeout, "MATCHBOX_DEPLOY_TX_TIMEOUT")

	// ── Top-level ──
	setStr(&cfg.Mode, "MATCHBOX_MODE")
	setStr(&cfg.LogLevel, "MATCHBOX_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
