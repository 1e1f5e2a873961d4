// Package config defines the top-level configuration for matchbox and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// PolygonChainID is the chain used when the local chain flag is off.
	PolygonChainID = 137
	// LocalChainID is the chain id of a local development node.
	LocalChainID = 31337
	// LocalRPCURL is the default local development node endpoint.
	LocalRPCURL = "http://127.0.0.1:8545"

	infuraPolygonURL = "https://polygon-mainnet.infura.io/v3/"
)

// Config is the root configuration structure. Fields are populated from an
// optional TOML file and then overridden by MATCHBOX_* environment variables.
type Config struct {
	Chain      ChainConfig      `toml:"chain"`
	Contracts  ContractsConfig  `toml:"contracts"`
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Proxy      ProxyConfig      `toml:"proxy"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Deploy     DeployConfig     `toml:"deploy"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ChainConfig selects the RPC endpoint. RPCURL wins when set; otherwise the
// local flag picks between a local node and Polygon via Infura.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	InfuraAPIKey  string `toml:"infura_api_key"`
	UseLocalChain bool   `toml:"use_local_chain"`
	LocalRPCURL   string `toml:"local_rpc_url"`
	ChainID       int64  `toml:"chain_id"`
}

// ContractsConfig holds deployed contract addresses.
type ContractsConfig struct {
	Factory string `toml:"factory"`
	Router  string `toml:"router"`
	CTF     string `toml:"ctf"`
}

// WalletConfig holds the deployer key source.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds the market-data upstream. When ProxyURL is set,
// the deploy mode resolves markets through that matchbox server's proxy
// route instead of calling Gamma directly.
type PolymarketConfig struct {
	GammaHost string   `toml:"gamma_host"`
	ProxyURL  string   `toml:"proxy_url"`
	Timeout   duration `toml:"timeout"`
}

// ProxyConfig controls the /api/polymarket response cache.
type ProxyConfig struct {
	CacheTTL             duration `toml:"cache_ttl"`
	StaleWhileRevalidate duration `toml:"stale_while_revalidate"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. An empty
// DSN and Host disables persistence.
type SupabaseConfig struct {
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

// Enabled reports whether a database is configured.
func (s SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != "" || s.Host != ""
}

// RedisConfig holds Redis connection parameters. Empty URL and Addr means
// the in-memory fallbacks are used.
type RedisConfig struct {
	URL        string `toml:"url"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Addr != ""
}

// S3Config holds S3-compatible object storage parameters. An empty bucket
// disables manifest archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// DeployConfig holds inputs for the deploy and status modes.
type DeployConfig struct {
	LegsFile  string   `toml:"legs_file"`
	Owner     string   `toml:"owner"`
	Vault     string   `toml:"vault"`
	LockTTL   duration `toml:"lock_ttl"`
	TxTimeout duration `toml:"tx_timeout"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
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
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			LocalRPCURL: LocalRPCURL,
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			Timeout:   duration{10 * time.Second},
		},
		Proxy: ProxyConfig{
			CacheTTL:             duration{60 * time.Second},
			StaleWhileRevalidate: duration{120 * time.Second},
		},
		Supabase: SupabaseConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
			Prefix:         "deployments",
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"deploy_complete", "deploy_error"},
		},
		Deploy: DeployConfig{
			LockTTL:   duration{5 * time.Minute},
			TxTimeout: duration{3 * time.Minute},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// RPCURL returns the endpoint the chain client should dial.
func (c *Config) RPCURL() string {
	switch {
	case c.Chain.RPCURL != "":
		return c.Chain.RPCURL
	case c.Chain.UseLocalChain:
		if c.Chain.LocalRPCURL != "" {
			return c.Chain.LocalRPCURL
		}
		return LocalRPCURL
	case c.Chain.InfuraAPIKey != "":
		return infuraPolygonURL + c.Chain.InfuraAPIKey
	}
	return ""
}

// ChainID returns the configured chain id, or the default for the selected
// network.
func (c *Config) ChainID() int64 {
	if c.Chain.ChainID > 0 {
		return c.Chain.ChainID
	}
	if c.Chain.UseLocalChain {
		return LocalChainID
	}
	return PolygonChainID
}

// HasWallet reports whether any deployer key source is configured.
func (c *Config) HasWallet() bool {
	return c.Wallet.PrivateKey != "" || c.Wallet.EncryptedKeyPath != ""
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"deploy": true,
	"status": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, deploy, status)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Contracts
	for name, addr := range map[string]string{
		"factory": c.Contracts.Factory,
		"router":  c.Contracts.Router,
		"ctf":     c.Contracts.CTF,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("contracts: %s is not a valid address: %q", name, addr))
		}
	}

	// Chain-touching modes
	switch c.Mode {
	case "deploy":
		if c.RPCURL() == "" {
			errs = append(errs, "chain: rpc_url, infura_api_key or use_local_chain is required for mode deploy")
		}
		if c.Contracts.Factory == "" {
			errs = append(errs, "contracts: factory is required for mode deploy")
		}
		if !c.HasWallet() {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode deploy")
		}
		if c.Deploy.LegsFile == "" {
			errs = append(errs, "deploy: legs_file is required for mode deploy")
		}
	case "status":
		if c.RPCURL() == "" {
			errs = append(errs, "chain: rpc_url, infura_api_key or use_local_chain is required for mode status")
		}
		if !common.IsHexAddress(c.Deploy.Vault) {
			errs = append(errs, fmt.Sprintf("deploy: vault must be a valid address for mode status, got %q", c.Deploy.Vault))
		}
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Polymarket
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Proxy.CacheTTL.Duration < 0 {
		errs = append(errs, "proxy: cache_ttl must not be negative")
	}

	// Supabase
	if c.Supabase.Enabled() {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled() && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server
	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
