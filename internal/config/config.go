package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Treasury TreasuryConfig `mapstructure:"treasury"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Games    []GameConfig   `mapstructure:"games"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
	AuditDir string `mapstructure:"audit_dir"`
}

type AuthConfig struct {
	// AdminKey gates the admin HTTP routes; AdminAddress is the identity those
	// routes act as inside the treasury.
	AdminKey     string `mapstructure:"admin_key"`
	AdminAddress string `mapstructure:"admin_address"`
	InvestorKey  string `mapstructure:"investor_key"`
	// ChainID goes into the EIP-712 domain of capability claims.
	ChainID int64 `mapstructure:"chain_id"`
}

// ChainConfig enables claims from contract wallets. Without an RPC URL only
// EOA module identities can claim a capability.
type ChainConfig struct {
	RPCURL              string `mapstructure:"rpc_url"`
	EIP1271CacheSeconds int    `mapstructure:"eip1271_cache_seconds"`
	EIP1271TimeoutMs    int    `mapstructure:"eip1271_timeout_ms"`
	EIP1271Retries      int    `mapstructure:"eip1271_retries"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	AuditRetentionDays     int    `mapstructure:"audit_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	KeyPrefix             string `mapstructure:"key_prefix"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	AuditListKey          string `mapstructure:"audit_list_key"`
	AuditListMax          int    `mapstructure:"audit_list_max"`
}

type TreasuryConfig struct {
	MinTargetReserve    uint64 `mapstructure:"min_target_reserve"`
	OverflowBps         uint64 `mapstructure:"overflow_bps"`          // 11000 = target * 1.10
	DrainBps            uint64 `mapstructure:"drain_bps"`             // 2500 = target * 0.25
	OverflowTransferBps uint64 `mapstructure:"overflow_transfer_bps"` // 1000 = 10% of excess
	VolumeWeight        uint64 `mapstructure:"volume_weight"`         // 6 -> (v*6 + bet*1.5) / 7
	VolumeBoostBps      uint64 `mapstructure:"volume_boost_bps"`      // 15000 = bet * 1.5
	TargetMultiplierBps uint64 `mapstructure:"target_multiplier_bps"` // 15000 = volume * 1.5
	JournalBuffer       int    `mapstructure:"journal_buffer"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type StreamConfig struct {
	NAVIntervalMs int `mapstructure:"nav_interval_ms"`
	// AllowedOrigins lists browser origins that may open the NAV stream.
	// Empty means same-origin only; "*" allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

// GameConfig registers a game at startup, as if the admin had called the API.
type GameConfig struct {
	Identity     string            `mapstructure:"identity"`
	Name         string            `mapstructure:"name"`
	Version      string            `mapstructure:"version"`
	MinBet       uint64            `mapstructure:"min_bet"`
	MaxBet       uint64            `mapstructure:"max_bet"`
	HouseEdgeBps uint32            `mapstructure:"house_edge_bps"`
	MaxPayout    uint64            `mapstructure:"max_payout"`
	Metadata     map[string]string `mapstructure:"metadata"`
	RateLimit    RateLimitConfig   `mapstructure:"rate_limit"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. HOUSEVAULT_AUTH_ADMIN_KEY
	v.SetEnvPrefix("housevault")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.audit_dir", "./logs")
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auth.admin_address", "")
	v.SetDefault("auth.investor_key", "")
	v.SetDefault("auth.chain_id", 137)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.eip1271_cache_seconds", 60)
	v.SetDefault("chain.eip1271_timeout_ms", 5000)
	v.SetDefault("chain.eip1271_retries", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.audit_retention_days", 30)
	v.SetDefault("database.cleanup_interval_minutes", 60)
	v.SetDefault("redis.key_prefix", "housevault")
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("redis.audit_list_key", "audit_logs")
	v.SetDefault("redis.audit_list_max", 10000)
	v.SetDefault("treasury.min_target_reserve", 1000)
	v.SetDefault("treasury.overflow_bps", 11000)
	v.SetDefault("treasury.drain_bps", 2500)
	v.SetDefault("treasury.overflow_transfer_bps", 1000)
	v.SetDefault("treasury.volume_weight", 6)
	v.SetDefault("treasury.volume_boost_bps", 15000)
	v.SetDefault("treasury.target_multiplier_bps", 15000)
	v.SetDefault("treasury.journal_buffer", 4096)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("stream.nav_interval_ms", 1000)
	v.SetDefault("stream.allowed_origins", []string{})
}
