package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Bot        BotConfig        `mapstructure:"bot"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port               string `mapstructure:"port"`
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins"` // comma separated
	TrustedProxiesCSV  string `mapstructure:"trusted_proxies"`      // comma separated IPs or CIDRs
	EnforceHTTPS       bool   `mapstructure:"enforce_https"`
	LogLevel           string `mapstructure:"log_level"`
	LogFormat          string `mapstructure:"log_format"`
}

type AuthConfig struct {
	JWTSecret              string `mapstructure:"jwt_secret"`
	JWTTTLSeconds          int    `mapstructure:"jwt_ttl_seconds"`
	NonceTTLSeconds        int    `mapstructure:"nonce_ttl_seconds"`
	RateLimitWindowSeconds int    `mapstructure:"rate_limit_window_seconds"`
	RateLimitMaxRequests   int    `mapstructure:"rate_limit_max_requests"`
	AdminKey               string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN            string `mapstructure:"dsn"`
	ConnectRetries int    `mapstructure:"connect_retries"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type PolymarketConfig struct {
	PublicAPIBase        string  `mapstructure:"public_api_base"` // gamma
	APIBase              string  `mapstructure:"api_base"`        // clob
	APIKey               string  `mapstructure:"api_key"`
	TimeoutSeconds       float64 `mapstructure:"timeout_seconds"`
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second"`
	StreamEnabled        bool    `mapstructure:"stream_enabled"`
	WSURL                string  `mapstructure:"ws_url"`
}

type BotConfig struct {
	LoopIntervalSeconds float64 `mapstructure:"loop_interval_seconds"`
	BackoffMultiplier   float64 `mapstructure:"backoff_multiplier"`
	MaxBackoffSeconds   float64 `mapstructure:"max_backoff_seconds"`
	JitterRatio         float64 `mapstructure:"jitter_ratio"`
	PositionSize        float64 `mapstructure:"position_size"`
	InventoryCap        float64 `mapstructure:"inventory_cap"` // reserved, not enforced
}

type StreamConfig struct {
	IntervalMs int `mapstructure:"interval_ms"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// legacyEnv maps config keys to the unprefixed variable names older
// deployments export.
var legacyEnv = map[string]string{
	"database.dsn":                   "DATABASE_URL",
	"server.cors_allowed_origins":    "CORS_ALLOWED_ORIGINS",
	"server.enforce_https":           "ENFORCE_HTTPS",
	"auth.jwt_secret":                "JWT_SECRET",
	"auth.jwt_ttl_seconds":           "JWT_TTL_SECONDS",
	"auth.nonce_ttl_seconds":         "NONCE_TTL_SECONDS",
	"auth.rate_limit_window_seconds": "AUTH_RATE_LIMIT_WINDOW_SECONDS",
	"auth.rate_limit_max_requests":   "AUTH_RATE_LIMIT_MAX_REQUESTS",
	"polymarket.public_api_base":     "POLYMARKET_PUBLIC_API_BASE",
	"polymarket.api_base":            "POLYMARKET_API_BASE",
	"polymarket.api_key":             "POLYMARKET_API_KEY",
	"polymarket.timeout_seconds":     "POLYMARKET_TIMEOUT_SECONDS",
	"bot.loop_interval_seconds":      "BOT_LOOP_INTERVAL_SECONDS",
	"bot.backoff_multiplier":         "BOT_RETRY_BACKOFF_SECONDS",
	"bot.max_backoff_seconds":        "BOT_MAX_BACKOFF_SECONDS",
	"bot.position_size":              "BOT_QUOTE_SIZE",
	"bot.inventory_cap":              "BOT_INVENTORY_CAP",
}

const envPrefix = "paperbot"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.cors_allowed_origins", "http://localhost:3000")
	v.SetDefault("server.trusted_proxies", "")
	v.SetDefault("server.enforce_https", false)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_ttl_seconds", 86400)
	v.SetDefault("auth.nonce_ttl_seconds", 300)
	v.SetDefault("auth.rate_limit_window_seconds", 60)
	v.SetDefault("auth.rate_limit_max_requests", 10)
	v.SetDefault("auth.admin_key", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.connect_retries", 15)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "paperbot:ratelimit:")

	v.SetDefault("polymarket.public_api_base", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.api_base", "https://clob.polymarket.com")
	v.SetDefault("polymarket.api_key", "")
	v.SetDefault("polymarket.timeout_seconds", 5.0)
	v.SetDefault("polymarket.max_requests_per_second", 10.0)
	v.SetDefault("polymarket.stream_enabled", false)
	v.SetDefault("polymarket.ws_url", "wss://ws-subscriptions-clob.polymarket.com/ws/market")

	v.SetDefault("bot.loop_interval_seconds", 1.0)
	v.SetDefault("bot.backoff_multiplier", 2.0)
	v.SetDefault("bot.max_backoff_seconds", 30.0)
	v.SetDefault("bot.jitter_ratio", 0.1)
	v.SetDefault("bot.position_size", 25.0)
	v.SetDefault("bot.inventory_cap", 1000.0)

	v.SetDefault("stream.interval_ms", 1000)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads config.yaml from "." or "./configs" when present, then applies
// environment overrides, e.g. PAPERBOT_AUTH_JWT_SECRET or JWT_SECRET.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, legacy := range legacyEnv {
		prefixed := strings.ToUpper(envPrefix + "_" + strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	for _, proxy := range c.Server.TrustedProxies() {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				errs = append(errs, fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", proxy))
			}
		}
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.JWTTTLSeconds <= 0 {
		errs = append(errs, errors.New("auth.jwt_ttl_seconds must be positive"))
	}
	if c.Auth.NonceTTLSeconds <= 0 {
		errs = append(errs, errors.New("auth.nonce_ttl_seconds must be positive"))
	}
	if c.Auth.RateLimitWindowSeconds <= 0 || c.Auth.RateLimitMaxRequests <= 0 {
		errs = append(errs, errors.New("auth rate limit window and max requests must be positive"))
	}
	if c.Bot.LoopIntervalSeconds <= 0 {
		errs = append(errs, errors.New("bot.loop_interval_seconds must be positive"))
	}
	if c.Bot.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("bot.backoff_multiplier must be >= 1"))
	}
	if c.Bot.MaxBackoffSeconds < c.Bot.LoopIntervalSeconds {
		errs = append(errs, errors.New("bot.max_backoff_seconds must be >= bot.loop_interval_seconds"))
	}
	if c.Bot.JitterRatio < 0 {
		errs = append(errs, errors.New("bot.jitter_ratio must not be negative"))
	}
	if c.Polymarket.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("polymarket.timeout_seconds must be positive"))
	}
	if c.Stream.IntervalMs <= 0 {
		errs = append(errs, errors.New("stream.interval_ms must be positive"))
	}
	return errors.Join(errs...)
}

// AllowedOrigins splits the comma separated CORS allow-list.
func (s ServerConfig) AllowedOrigins() []string { return splitList(s.CORSAllowedOrigins) }

// TrustedProxies lists the peers whose X-Forwarded-For is believed. Empty
// means the socket address is the client address.
func (s ServerConfig) TrustedProxies() []string { return splitList(s.TrustedProxiesCSV) }

func splitList(csv string) []string {
	var out []string
	for _, item := range strings.Split(csv, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (a AuthConfig) JWTTTL() time.Duration   { return time.Duration(a.JWTTTLSeconds) * time.Second }
func (a AuthConfig) NonceTTL() time.Duration { return time.Duration(a.NonceTTLSeconds) * time.Second }
func (a AuthConfig) RateLimitWindow() time.Duration {
	return time.Duration(a.RateLimitWindowSeconds) * time.Second
}

func (p PolymarketConfig) Timeout() time.Duration { return seconds(p.TimeoutSeconds) }

func (b BotConfig) LoopInterval() time.Duration { return seconds(b.LoopIntervalSeconds) }
func (b BotConfig) MaxBackoff() time.Duration   { return seconds(b.MaxBackoffSeconds) }

func (s StreamConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
