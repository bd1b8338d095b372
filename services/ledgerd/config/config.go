package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the ledger service daemon.
type Config struct {
	ListenAddress string            `yaml:"listen"`
	TLS           TLSConfig         `yaml:"tls"`
	Auth          AuthConfig        `yaml:"auth"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit"`
	Audit         AuditConfig       `yaml:"audit"`
	Idempotency   IdempotencyConfig `yaml:"idempotency"`
	Ledger        LedgerConfig      `yaml:"ledger"`
	Log           LogConfig         `yaml:"log"`
}

// LogConfig optionally redirects logs to a rotating file.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Level      string `yaml:"level"`
}

// TLSConfig describes the TLS material for the HTTP listener.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig configures bearer JWT validation. The token subject is the
// caller's bech32 address.
type AuthConfig struct {
	HMACSecret string        `yaml:"hmac_secret"`
	SecretEnv  string        `yaml:"hmac_secret_env"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	ClockSkew  time.Duration `yaml:"clock_skew"`
}

// RateLimitConfig throttles mutating requests per client.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// AuditConfig selects the audit log database. Empty disables the log.
type AuditConfig struct {
	DSN string `yaml:"dsn"`
}

// IdempotencyConfig configures replay protection for POST requests.
type IdempotencyConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

// LedgerConfig points at the TOML ledger configuration and lists the
// addresses wired at first start.
type LedgerConfig struct {
	ConfigPath      string   `yaml:"config"`
	Treasury        string   `yaml:"treasury"`
	MarketTreasury  string   `yaml:"market_treasury"`
	SeniorRecipient string   `yaml:"senior_recipient"`
	JuniorRecipient string   `yaml:"junior_recipient"`
	Operators       []string `yaml:"operators"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8085",
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8085"
	}
	cfg.TLS.CertPath = strings.TrimSpace(cfg.TLS.CertPath)
	cfg.TLS.KeyPath = strings.TrimSpace(cfg.TLS.KeyPath)
	cfg.Auth.normalize()
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 20
	}
	cfg.Audit.DSN = strings.TrimSpace(cfg.Audit.DSN)
	cfg.Idempotency.Path = strings.TrimSpace(cfg.Idempotency.Path)
	if cfg.Idempotency.Path == "" {
		cfg.Idempotency.Path = ":memory:"
	}
	if cfg.Idempotency.TTL <= 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}
	cfg.Ledger.ConfigPath = strings.TrimSpace(cfg.Ledger.ConfigPath)
	if cfg.Ledger.ConfigPath == "" {
		cfg.Ledger.ConfigPath = "ledger.toml"
	}
	operators := make([]string, 0, len(cfg.Ledger.Operators))
	for _, op := range cfg.Ledger.Operators {
		if trimmed := strings.TrimSpace(op); trimmed != "" {
			operators = append(operators, trimmed)
		}
	}
	cfg.Ledger.Operators = operators
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	hasCert := cfg.TLS.CertPath != ""
	hasKey := cfg.TLS.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("tls: cert and key must either both be provided or both be empty")
	}
	if !cfg.TLS.AllowInsecure && !hasCert {
		return fmt.Errorf("tls: cert and key are required unless allow_insecure=true")
	}
	if err := cfg.Auth.validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// SlogLevel parses the configured level name.
func (cfg LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", cfg.Level)
	}
	return level, nil
}

func (cfg *AuthConfig) normalize() {
	cfg.HMACSecret = strings.TrimSpace(cfg.HMACSecret)
	cfg.SecretEnv = strings.TrimSpace(cfg.SecretEnv)
	if cfg.HMACSecret == "" && cfg.SecretEnv != "" {
		cfg.HMACSecret = strings.TrimSpace(os.Getenv(cfg.SecretEnv))
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
}

func (cfg AuthConfig) validate() error {
	if cfg.HMACSecret == "" {
		return fmt.Errorf("hmac_secret or hmac_secret_env must be configured")
	}
	if len(cfg.HMACSecret) < 16 {
		return fmt.Errorf("hmac secret must be at least 16 bytes")
	}
	return nil
}
